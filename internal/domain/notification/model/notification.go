package model

import (
	baseModel "keyshop/pkg/model"
	"time"
)

const (
	TypeOrderConfirmed = "ORDER_CONFIRMED"
	TypeLicenseIssued  = "LICENSE_ISSUED"
	TypePointsEarned   = "POINTS_EARNED"
)

// Notification 站内通知
type Notification struct {
	baseModel.BaseModel
	UserID string `gorm:"type:uuid;index;not null" json:"userId"`
	Type   string `gorm:"type:varchar(32);not null" json:"type"`
	Title  string `gorm:"type:varchar(200);not null" json:"title"`
	Body   string `gorm:"type:text" json:"body"`
	Read   bool   `gorm:"not null;default:false" json:"read"`
}

type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "PENDING"
	OutboxSending    OutboxStatus = "SENDING"
	OutboxDispatched OutboxStatus = "DISPATCHED"
	OutboxFailed     OutboxStatus = "FAILED"
)

// OutboxEvent 与业务写入同事务落库，提交后异步派发
type OutboxEvent struct {
	baseModel.BaseModel
	Type         string       `gorm:"type:varchar(32);not null" json:"type"`
	AggregateID  string       `gorm:"type:uuid;index;not null" json:"aggregateId"`
	Payload      string       `gorm:"type:jsonb;not null" json:"payload"`
	Status       OutboxStatus `gorm:"type:varchar(16);index;not null;default:'PENDING'" json:"status"`
	Attempts     int          `gorm:"not null;default:0" json:"attempts"`
	LastError    string       `gorm:"type:text" json:"lastError,omitempty"`
	DispatchedAt *time.Time   `json:"dispatchedAt,omitempty"`
}
