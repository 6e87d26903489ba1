package model

import (
	productModel "keyshop/internal/domain/product/model"
	baseModel "keyshop/pkg/model"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
)

// IsTerminal 终态不可再迁移
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRefunded
}

type PaymentMethod string

const (
	PaymentExternal PaymentMethod = "EXTERNAL"
	PaymentBalance  PaymentMethod = "BALANCE"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentExternal || m == PaymentBalance
}

const (
	ChannelAlipay = "alipay"
	ChannelWechat = "wechat"
)

// Order 订单
type Order struct {
	baseModel.BaseModel
	OrderNo        string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"orderNo"`
	UserID         string          `gorm:"type:uuid;index;not null" json:"userId"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	TierDiscount   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tierDiscount"`
	PromoDiscount  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"promoDiscount"`
	Discount       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	PromoCodeID    *string         `gorm:"type:uuid" json:"promoCodeId,omitempty"`
	PromoCode      string          `gorm:"type:varchar(64)" json:"promoCode,omitempty"`
	Status         Status          `gorm:"type:varchar(16);index;not null;default:'PENDING'" json:"status"`
	PaymentMethod  PaymentMethod   `gorm:"type:varchar(16);not null" json:"paymentMethod"`
	PaymentChannel string          `gorm:"type:varchar(16)" json:"paymentChannel,omitempty"` // alipay, wechat
	PaymentRef     string          `gorm:"type:varchar(128)" json:"paymentRef,omitempty"`
	PaidAt         *time.Time      `json:"paidAt,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	CancelledAt    *time.Time      `json:"cancelledAt,omitempty"`
	ExpiresAt      *time.Time      `gorm:"index" json:"expiresAt,omitempty"`
	Items          []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
}

// OrderItem 订单明细，Price 为下单时的单价快照
type OrderItem struct {
	baseModel.BaseModel
	OrderID   string                `gorm:"type:uuid;index;not null" json:"orderId"`
	ProductID string                `gorm:"type:uuid;index;not null" json:"productId"`
	Quantity  int                   `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal       `gorm:"type:decimal(12,2);not null" json:"price"`
	Product   *productModel.Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// Sanitize 去掉商品的内部下载引用
func (o *Order) Sanitize() *Order {
	if o == nil {
		return nil
	}
	for i := range o.Items {
		o.Items[i].Product.Sanitize()
	}
	return o
}

// TotalQuantity 订单内授权数量
func (o *Order) TotalQuantity() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}
