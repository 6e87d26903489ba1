// Package sink 订单事件的下游通知渠道：App 推送、Kafka、日志。
package sink

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OrderConfirmed 订单完成
type OrderConfirmed struct {
	OrderID      string          `json:"order_id"`
	OrderNo      string          `json:"order_no"`
	UserID       string          `json:"user_id"`
	Total        decimal.Decimal `json:"total"`
	LicenseCount int             `json:"license_count"`
	PointsEarned int64           `json:"points_earned"`
	CompletedAt  time.Time       `json:"completed_at"`
}

// LicenseIssued 授权码签发
type LicenseIssued struct {
	LicenseID   string `json:"license_id"`
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Key         string `json:"key"`
}

// Sink 通知渠道，调用发生在事务提交之后，失败不影响订单
type Sink interface {
	NotifyOrderConfirmed(ctx context.Context, ev OrderConfirmed) error
	NotifyLicenseIssued(ctx context.Context, ev LicenseIssued) error
}

// MultiSink 依次调用所有渠道，汇总错误
type MultiSink []Sink

func (m MultiSink) NotifyOrderConfirmed(ctx context.Context, ev OrderConfirmed) error {
	var errs []error
	for _, s := range m {
		if err := s.NotifyOrderConfirmed(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) NotifyLicenseIssued(ctx context.Context, ev LicenseIssued) error {
	var errs []error
	for _, s := range m {
		if err := s.NotifyLicenseIssued(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
