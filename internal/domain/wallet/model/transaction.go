package model

import (
	baseModel "keyshop/pkg/model"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypePurchase     TransactionType = "PURCHASE"
	TypeRefund       TransactionType = "REFUND"
	TypePointsEarned TransactionType = "POINTS_EARNED"
	TypeBonus        TransactionType = "BONUS"
)

const StatusCompleted = "COMPLETED"

// Transaction 资金与积分流水，只追加不修改。Amount 带符号，扣款为负
type Transaction struct {
	baseModel.BaseModel
	UserID      string          `gorm:"type:uuid;index;not null" json:"userId"`
	Type        TransactionType `gorm:"type:varchar(20);not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	Points      int64           `gorm:"not null;default:0" json:"points"`
	Status      string          `gorm:"type:varchar(16);not null" json:"status"`
	OrderID     *string         `gorm:"type:uuid;index" json:"orderId,omitempty"`
	Reference   string          `gorm:"type:varchar(128)" json:"reference,omitempty"`
	Description string          `gorm:"type:varchar(255)" json:"description"`
}
