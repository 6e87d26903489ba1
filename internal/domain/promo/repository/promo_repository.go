package repository

import (
	"context"
	"keyshop/internal/domain/promo/model"
	"time"

	"gorm.io/gorm"
)

// PromoRepository 优惠码计数只通过条件更新修改
type PromoRepository interface {
	WithTx(tx *gorm.DB) PromoRepository
	Create(ctx context.Context, promo *model.PromoCode) error
	GetByID(ctx context.Context, id string) (*model.PromoCode, error)
	GetByCode(ctx context.Context, code string) (*model.PromoCode, error)
	IncrementUsage(ctx context.Context, promoID string) (bool, error)
	DecrementUsage(ctx context.Context, promoID string) (bool, error)
	HasUserUsed(ctx context.Context, userID, promoID string) (bool, error)
	CreateUsage(ctx context.Context, usage *model.PromoCodeUsage) error
	GetUsageByOrder(ctx context.Context, orderID string) (*model.PromoCodeUsage, error)
	MarkRedeemed(ctx context.Context, orderID string, at time.Time) (bool, error)
	DeleteUsage(ctx context.Context, usageID string) error
}

type promoRepository struct {
	db *gorm.DB
}

func NewPromoRepository(db *gorm.DB) PromoRepository {
	return &promoRepository{db: db}
}

func (r *promoRepository) WithTx(tx *gorm.DB) PromoRepository {
	return &promoRepository{db: tx}
}

func (r *promoRepository) Create(ctx context.Context, promo *model.PromoCode) error {
	return r.db.WithContext(ctx).Create(promo).Error
}

func (r *promoRepository) GetByID(ctx context.Context, id string) (*model.PromoCode, error) {
	var promo model.PromoCode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&promo).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *promoRepository) GetByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	var promo model.PromoCode
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&promo).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

// IncrementUsage 有上限时只在 used_count < usage_limit 时自增
func (r *promoRepository) IncrementUsage(ctx context.Context, promoID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.PromoCode{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", promoID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DecrementUsage 取消订单时归还名额
func (r *promoRepository) DecrementUsage(ctx context.Context, promoID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.PromoCode{}).
		Where("id = ? AND used_count > 0", promoID).
		UpdateColumn("used_count", gorm.Expr("used_count - 1"))

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *promoRepository) HasUserUsed(ctx context.Context, userID, promoID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.PromoCodeUsage{}).
		Where("user_id = ? AND promo_code_id = ?", userID, promoID).
		Count(&count).Error
	return count > 0, err
}

func (r *promoRepository) CreateUsage(ctx context.Context, usage *model.PromoCodeUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

func (r *promoRepository) GetUsageByOrder(ctx context.Context, orderID string) (*model.PromoCodeUsage, error) {
	var usage model.PromoCodeUsage
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&usage).Error; err != nil {
		return nil, err
	}
	return &usage, nil
}

// MarkRedeemed 订单完成时写入核销时间
func (r *promoRepository) MarkRedeemed(ctx context.Context, orderID string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.PromoCodeUsage{}).
		Where("order_id = ? AND redeemed_at IS NULL", orderID).
		UpdateColumn("redeemed_at", at)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DeleteUsage 物理删除，释放 (user, promo) 唯一约束
func (r *promoRepository) DeleteUsage(ctx context.Context, usageID string) error {
	return r.db.WithContext(ctx).Unscoped().Where("id = ?", usageID).Delete(&model.PromoCodeUsage{}).Error
}
