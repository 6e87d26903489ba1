package service

import (
	"context"
	"keyshop/internal/domain/promo/model"
	"keyshop/internal/domain/promo/repository"
	"keyshop/internal/pkg/apperr"
	"keyshop/internal/pkg/txn"
	"keyshop/pkg/database"
	"keyshop/pkg/logger"
	"keyshop/pkg/metrics"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Preview 优惠码试算结果
type Preview struct {
	PromoCodeID   string             `json:"promoCodeId"`
	Code          string             `json:"code"`
	DiscountType  model.DiscountType `json:"discountType"`
	DiscountValue decimal.Decimal    `json:"discountValue"`
	Discount      decimal.Decimal    `json:"discount"`
}

// CreatePromoInput 管理员创建优惠码
type CreatePromoInput struct {
	Code          string
	DiscountType  model.DiscountType
	DiscountValue decimal.Decimal
	MinPurchase   *decimal.Decimal
	MaxDiscount   *decimal.Decimal
	UsageLimit    *int
	ExpiresAt     *time.Time
}

// PromoLedger 优惠码核销账本。
// 名额通过条件自增控制，每用户一次由 (user_id, promo_code_id) 唯一约束保证，不加锁不重试。
type PromoLedger interface {
	Preview(ctx context.Context, code string, cartTotal decimal.Decimal, userID string) (*Preview, error)
	Reserve(ctx context.Context, sess *txn.Session, code, userID, orderID string, cartTotal decimal.Decimal) (*model.PromoCode, error)
	Redeem(ctx context.Context, sess *txn.Session, userID, promoID, orderID string) error
	Release(ctx context.Context, sess *txn.Session, orderID string) error
	Create(ctx context.Context, input CreatePromoInput) (*model.PromoCode, error)
	GetByCode(ctx context.Context, code string) (*model.PromoCode, error)
}

type promoLedger struct {
	repo repository.PromoRepository
	tm   *txn.Manager
	now  func() time.Time
}

func NewPromoLedger(repo repository.PromoRepository, tm *txn.Manager) PromoLedger {
	return &promoLedger{repo: repo, tm: tm, now: time.Now}
}

// NormalizeCode 优惠码不区分大小写
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *promoLedger) GetByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	promo, err := s.repo.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("promo code not found")
		}
		return nil, err
	}
	return promo, nil
}

func (s *promoLedger) Preview(ctx context.Context, code string, cartTotal decimal.Decimal, userID string) (*Preview, error) {
	promo, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := checkRules(promo, cartTotal, s.now()); err != nil {
		return nil, err
	}
	if userID != "" {
		used, err := s.repo.HasUserUsed(ctx, userID, promo.ID)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, apperr.BadRequest("promo code already used")
		}
	}

	return &Preview{
		PromoCodeID:   promo.ID,
		Code:          promo.Code,
		DiscountType:  promo.DiscountType,
		DiscountValue: promo.DiscountValue,
		Discount:      ComputeDiscount(promo, cartTotal),
	}, nil
}

// Reserve 在下单事务中占用一个名额并写入使用记录，任何失败都应让外层事务回滚
func (s *promoLedger) Reserve(ctx context.Context, sess *txn.Session, code, userID, orderID string, cartTotal decimal.Decimal) (*model.PromoCode, error) {
	var reserved *model.PromoCode
	err := s.tm.Do(ctx, sess, func(sess *txn.Session) error {
		repo := s.repo.WithTx(sess.DB())

		promo, err := repo.GetByCode(ctx, NormalizeCode(code))
		if err != nil {
			if database.IsNotFound(err) {
				return apperr.NotFound("promo code not found")
			}
			return err
		}
		if err := checkRules(promo, cartTotal, s.now()); err != nil {
			return err
		}
		used, err := repo.HasUserUsed(ctx, userID, promo.ID)
		if err != nil {
			return err
		}
		if used {
			return apperr.BadRequest("promo code already used")
		}

		ok, err := repo.IncrementUsage(ctx, promo.ID)
		if err != nil {
			return err
		}
		if !ok {
			metrics.GuardRejections.WithLabelValues("promo_usage").Inc()
			return apperr.BadRequest("promo code usage limit reached")
		}

		usage := &model.PromoCodeUsage{UserID: userID, PromoCodeID: promo.ID, OrderID: orderID}
		if err := repo.CreateUsage(ctx, usage); err != nil {
			if database.IsDuplicateKey(err) {
				metrics.GuardRejections.WithLabelValues("promo_per_user").Inc()
				return apperr.BadRequest("promo code already used")
			}
			return err
		}

		promo.UsedCount++
		reserved = promo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

// Redeem 订单完成时核销：已有占用记录则写入核销时间，没有则补写一条
func (s *promoLedger) Redeem(ctx context.Context, sess *txn.Session, userID, promoID, orderID string) error {
	return s.tm.Do(ctx, sess, func(sess *txn.Session) error {
		repo := s.repo.WithTx(sess.DB())
		now := s.now()

		ok, err := repo.MarkRedeemed(ctx, orderID, now)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if _, err := repo.GetUsageByOrder(ctx, orderID); err == nil {
			return nil
		} else if !database.IsNotFound(err) {
			return err
		}

		usage := &model.PromoCodeUsage{UserID: userID, PromoCodeID: promoID, OrderID: orderID, RedeemedAt: &now}
		if err := repo.CreateUsage(ctx, usage); err != nil {
			if database.IsDuplicateKey(err) {
				return apperr.BadRequest("promo code already used")
			}
			return err
		}
		return nil
	})
}

// Release 取消待支付订单时归还名额并删除占用记录
func (s *promoLedger) Release(ctx context.Context, sess *txn.Session, orderID string) error {
	return s.tm.Do(ctx, sess, func(sess *txn.Session) error {
		repo := s.repo.WithTx(sess.DB())

		usage, err := repo.GetUsageByOrder(ctx, orderID)
		if err != nil {
			if database.IsNotFound(err) {
				return nil
			}
			return err
		}
		if usage.RedeemedAt != nil {
			return apperr.BadRequest("promo code already redeemed for this order")
		}
		if err := repo.DeleteUsage(ctx, usage.ID); err != nil {
			return err
		}

		ok, err := repo.DecrementUsage(ctx, usage.PromoCodeID)
		if err != nil {
			return err
		}
		if !ok {
			logger.Log.Warn("promo used_count already zero on release",
				zap.String("promo_code_id", usage.PromoCodeID),
				zap.String("order_id", orderID),
			)
		}
		return nil
	})
}

func (s *promoLedger) Create(ctx context.Context, input CreatePromoInput) (*model.PromoCode, error) {
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, apperr.Validation("code is required")
	}
	if input.DiscountType != model.DiscountPercentage && input.DiscountType != model.DiscountFixed {
		return nil, apperr.Validation("discountType must be PERCENTAGE or FIXED")
	}
	if !input.DiscountValue.IsPositive() {
		return nil, apperr.Validation("discountValue must be positive")
	}
	if input.DiscountType == model.DiscountPercentage && input.DiscountValue.GreaterThan(hundred) {
		return nil, apperr.Validation("percentage discount cannot exceed 100")
	}
	if input.UsageLimit != nil && *input.UsageLimit < 0 {
		return nil, apperr.Validation("usageLimit cannot be negative")
	}

	promo := &model.PromoCode{
		Code:          code,
		DiscountType:  input.DiscountType,
		DiscountValue: input.DiscountValue,
		MinPurchase:   input.MinPurchase,
		MaxDiscount:   input.MaxDiscount,
		UsageLimit:    input.UsageLimit,
		ExpiresAt:     input.ExpiresAt,
		Active:        true,
	}
	if err := s.repo.Create(ctx, promo); err != nil {
		if database.IsDuplicateKey(err) {
			return nil, apperr.BadRequest("promo code %s already exists", code)
		}
		return nil, err
	}
	return promo, nil
}

// checkRules 除每用户限用外的全部规则
func checkRules(promo *model.PromoCode, cartTotal decimal.Decimal, now time.Time) error {
	if !promo.Active {
		return apperr.BadRequest("promo code is not active")
	}
	if promo.ExpiresAt != nil && !now.Before(*promo.ExpiresAt) {
		return apperr.BadRequest("promo code has expired")
	}
	if promo.UsageLimit != nil && promo.UsedCount >= *promo.UsageLimit {
		return apperr.BadRequest("promo code usage limit reached")
	}
	if promo.MinPurchase != nil && cartTotal.LessThan(*promo.MinPurchase) {
		return apperr.BadRequest("minimum purchase of %s required", promo.MinPurchase.StringFixed(2))
	}
	return nil
}

// ComputeDiscount 百分比折扣受 MaxDiscount 限制，固定折扣不超过订单金额
func ComputeDiscount(promo *model.PromoCode, cartTotal decimal.Decimal) decimal.Decimal {
	if !cartTotal.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch promo.DiscountType {
	case model.DiscountPercentage:
		discount = cartTotal.Mul(promo.DiscountValue).Div(hundred).Round(2)
		if promo.MaxDiscount != nil && discount.GreaterThan(*promo.MaxDiscount) {
			discount = *promo.MaxDiscount
		}
	case model.DiscountFixed:
		discount = decimal.Min(promo.DiscountValue, cartTotal)
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}
