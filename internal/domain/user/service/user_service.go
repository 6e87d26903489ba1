package service

import (
	"context"
	"keyshop/internal/domain/loyalty"
	"keyshop/internal/domain/user/model"
	"keyshop/internal/domain/user/repository"
	"keyshop/internal/pkg/apperr"
	"keyshop/pkg/database"

	"github.com/shopspring/decimal"
)

// SpendReader 累计已完成订单金额
type SpendReader interface {
	SumCompletedSpend(ctx context.Context, userID string) (decimal.Decimal, error)
}

// Profile 用户信息 + 当前等级，等级每次按累计消费实时计算
type Profile struct {
	*model.User
	Tier       string          `json:"tier"`
	TierRate   decimal.Decimal `json:"tierPercent"`
	TotalSpend decimal.Decimal `json:"totalSpend"`
}

type UserService interface {
	Profile(ctx context.Context, userID string) (*Profile, error)
	List(ctx context.Context, offset, limit int) ([]model.User, int64, error)
}

type userService struct {
	repo  repository.UserRepository
	spend SpendReader
	tiers *loyalty.Calculator
}

func NewUserService(repo repository.UserRepository, spend SpendReader, tiers *loyalty.Calculator) UserService {
	if tiers == nil {
		tiers = loyalty.NewCalculator(nil)
	}
	return &userService{repo: repo, spend: spend, tiers: tiers}
}

func (s *userService) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}

	total, err := s.spend.SumCompletedSpend(ctx, userID)
	if err != nil {
		return nil, err
	}
	tier := s.tiers.TierOf(total)
	return &Profile{User: user, Tier: tier.Name, TierRate: tier.Percent, TotalSpend: total}, nil
}

// List 管理员分页查看用户
func (s *userService) List(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	return s.repo.GetList(ctx, offset, limit)
}
