package service

import (
	"context"
	userRepo "keyshop/internal/domain/user/repository"
	"keyshop/internal/domain/wallet/model"
	"keyshop/internal/domain/wallet/repository"
	"keyshop/internal/pkg/apperr"
	"keyshop/internal/pkg/txn"
	"keyshop/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletService 余额充值与流水查询
type WalletService interface {
	Credit(ctx context.Context, userID string, amount decimal.Decimal, reference, description string) (*model.Transaction, error)
	List(ctx context.Context, userID string, offset, limit int) ([]model.Transaction, int64, error)
}

type walletService struct {
	users  userRepo.UserRepository
	ledger repository.TransactionRepository
	tm     *txn.Manager
}

func NewWalletService(users userRepo.UserRepository, ledger repository.TransactionRepository, tm *txn.Manager) WalletService {
	return &walletService{users: users, ledger: ledger, tm: tm}
}

// Credit 管理员加余额，余额变动和 BONUS 流水同一事务
func (s *walletService) Credit(ctx context.Context, userID string, amount decimal.Decimal, reference, description string) (*model.Transaction, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be greater than 0")
	}

	entry := &model.Transaction{
		UserID:      userID,
		Type:        model.TypeBonus,
		Amount:      amount,
		Reference:   reference,
		Description: description,
	}
	err := s.tm.Do(ctx, nil, func(sess *txn.Session) error {
		ok, err := s.users.WithTx(sess.DB()).CreditBalance(ctx, userID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("user not found")
		}
		return s.ledger.WithTx(sess.DB()).Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("balance credited",
		zap.String("user_id", userID),
		zap.String("amount", amount.String()),
		zap.String("reference", reference),
	)
	return entry, nil
}

func (s *walletService) List(ctx context.Context, userID string, offset, limit int) ([]model.Transaction, int64, error) {
	return s.ledger.ListByUser(ctx, userID, offset, limit)
}
