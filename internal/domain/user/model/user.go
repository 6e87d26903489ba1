package model

import (
	baseModel "keyshop/pkg/model"

	"github.com/shopspring/decimal"
)

const (
	RoleUser  = 1
	RoleAdmin = 2
)

// User 用户模型，balance / points 只能通过带条件的原子更新修改
type User struct {
	baseModel.BaseModel
	Username string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Email    string          `gorm:"type:varchar(128)" json:"email"`
	Role     int             `gorm:"default:1" json:"role"`
	Balance  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
	Points   int64           `gorm:"not null;default:0" json:"points"`
}
