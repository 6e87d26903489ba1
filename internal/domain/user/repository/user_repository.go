package repository

import (
	"context"
	"keyshop/internal/domain/user/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UserRepository 接口定义。余额与积分只能通过带条件的原子更新修改，返回值表示是否命中一行。
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetList(ctx context.Context, offset, limit int) ([]model.User, int64, error)
	DebitBalance(ctx context.Context, id string, amount decimal.Decimal) (bool, error)
	CreditBalance(ctx context.Context, id string, amount decimal.Decimal) (bool, error)
	AddPoints(ctx context.Context, id string, points int64) (bool, error)
}

// userRepository 实现
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建新的仓库实例
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// WithTx 绑定到事务句柄
func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return &userRepository{db: tx}
}

// Create 创建用户
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID 根据ID获取用户
func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetList 获取用户列表（分页）
func (r *userRepository) GetList(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	query := r.db.WithContext(ctx).Model(&model.User{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// DebitBalance 扣减余额：balance >= amount 时才扣减
func (r *userRepository) DebitBalance(ctx context.Context, id string, amount decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND balance >= ?", id, amount).
		UpdateColumn("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CreditBalance 增加余额
func (r *userRepository) CreditBalance(ctx context.Context, id string, amount decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumn("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AddPoints 增加积分
func (r *userRepository) AddPoints(ctx context.Context, id string, points int64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumn("points", gorm.Expr("points + ?", points))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
