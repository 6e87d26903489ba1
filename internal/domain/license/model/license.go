package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	baseModel "keyshop/pkg/model"
	"time"
)

type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
	StatusRevoked Status = "REVOKED"
)

// StringList 以 JSON 数组存储
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported ip whitelist type")
	}
	return json.Unmarshal(raw, (*[]string)(l))
}

// License 授权码，每个购买单位一条
type License struct {
	baseModel.BaseModel
	UserID      string     `gorm:"type:uuid;index;not null" json:"userId"`
	ProductID   string     `gorm:"type:uuid;index;not null" json:"productId"`
	OrderID     string     `gorm:"type:uuid;index;not null" json:"orderId"`
	Key         string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"key"`
	Status      Status     `gorm:"type:varchar(16);not null;default:'ACTIVE'" json:"status"`
	IPWhitelist StringList `gorm:"type:jsonb;not null;default:'[]'" json:"ipWhitelist"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}
