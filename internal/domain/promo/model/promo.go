package model

import (
	baseModel "keyshop/pkg/model"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// PromoCode 优惠码
type PromoCode struct {
	baseModel.BaseModel
	Code          string           `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	DiscountValue decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"discountValue"`
	DiscountType  DiscountType     `gorm:"type:varchar(16);not null" json:"discountType"`
	MinPurchase   *decimal.Decimal `gorm:"type:decimal(12,2)" json:"minPurchase,omitempty"`
	MaxDiscount   *decimal.Decimal `gorm:"type:decimal(12,2)" json:"maxDiscount,omitempty"`
	UsageLimit    *int             `json:"usageLimit,omitempty"`
	UsedCount     int              `gorm:"not null;default:0" json:"usedCount"`
	ExpiresAt     *time.Time       `json:"expiresAt,omitempty"`
	Active        bool             `gorm:"not null" json:"active"`
}

// PromoCodeUsage 用户使用记录，(user_id, promo_code_id) 唯一
type PromoCodeUsage struct {
	baseModel.BaseModel
	UserID      string     `gorm:"type:uuid;not null;uniqueIndex:idx_promo_usage_user_promo" json:"userId"`
	PromoCodeID string     `gorm:"type:uuid;not null;uniqueIndex:idx_promo_usage_user_promo" json:"promoCodeId"`
	OrderID     string     `gorm:"type:uuid;index" json:"orderId"`
	RedeemedAt  *time.Time `json:"redeemedAt,omitempty"` // 订单完成时写入
}
