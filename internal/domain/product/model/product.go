package model

import (
	baseModel "keyshop/pkg/model"
	"time"

	"github.com/shopspring/decimal"
)

// UnlimitedStock 不限库存
const UnlimitedStock = -1

// Product 可售卖的授权商品
type Product struct {
	baseModel.BaseModel
	Name           string           `gorm:"type:varchar(200);not null" json:"name"`
	Description    string           `gorm:"type:text" json:"description"`
	Price          decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"price"`
	FlashSalePrice *decimal.Decimal `gorm:"type:decimal(12,2)" json:"flashSalePrice,omitempty"`
	FlashSaleStart *time.Time       `json:"flashSaleStart,omitempty"`
	FlashSaleEnd   *time.Time       `json:"flashSaleEnd,omitempty"`
	Stock          int              `gorm:"not null" json:"stock"` // -1 表示不限
	RewardPoints   int64            `gorm:"not null;default:0" json:"rewardPoints"`
	FileKey        string           `gorm:"type:varchar(255)" json:"fileKey,omitempty"` // 下载文件的内部引用，不对外返回
	Active         bool             `gorm:"not null" json:"active"`
}

// TracksStock 是否需要扣减库存
func (p *Product) TracksStock() bool {
	return p.Stock != UnlimitedStock
}

// EffectivePrice 秒杀窗口内返回秒杀价，否则返回原价
func (p *Product) EffectivePrice(now time.Time) decimal.Decimal {
	if p.FlashSalePrice == nil || p.FlashSaleStart == nil || p.FlashSaleEnd == nil {
		return p.Price
	}
	if now.Before(*p.FlashSaleStart) || now.After(*p.FlashSaleEnd) {
		return p.Price
	}
	return *p.FlashSalePrice
}

// Sanitize 去掉内部字段后返回
func (p *Product) Sanitize() *Product {
	if p == nil {
		return nil
	}
	p.FileKey = ""
	return p
}
