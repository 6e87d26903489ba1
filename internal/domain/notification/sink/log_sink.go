package sink

import (
	"context"

	"go.uber.org/zap"
)

// LogSink 只写日志，未配置推送和 Kafka 时兜底
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) NotifyOrderConfirmed(ctx context.Context, ev OrderConfirmed) error {
	s.log.Info("order confirmed",
		zap.String("order_id", ev.OrderID),
		zap.String("order_no", ev.OrderNo),
		zap.String("user_id", ev.UserID),
		zap.String("total", ev.Total.StringFixed(2)),
		zap.Int("licenses", ev.LicenseCount),
		zap.Int64("points", ev.PointsEarned),
	)
	return nil
}

func (s *LogSink) NotifyLicenseIssued(ctx context.Context, ev LicenseIssued) error {
	s.log.Info("license issued",
		zap.String("license_id", ev.LicenseID),
		zap.String("order_id", ev.OrderID),
		zap.String("product_id", ev.ProductID),
	)
	return nil
}
