package sink

import (
	"context"
	"fmt"
	"keyshop/internal/pkg/push"
)

// PushSink 通过阿里云推送通知买家
type PushSink struct {
	push push.PushService
}

func NewPushSink(p push.PushService) *PushSink {
	return &PushSink{push: p}
}

func (s *PushSink) NotifyOrderConfirmed(ctx context.Context, ev OrderConfirmed) error {
	body := fmt.Sprintf("订单 %s 已完成，共 %d 个授权码。", ev.OrderNo, ev.LicenseCount)
	if ev.PointsEarned > 0 {
		body += fmt.Sprintf(" 获得 %d 积分。", ev.PointsEarned)
	}
	return s.push.Push(ctx, push.Message{
		Account: ev.UserID,
		Title:   "订单已完成",
		Body:    body,
		Extras:  map[string]string{"type": "order_confirmed", "order_id": ev.OrderID},
	})
}

// NotifyLicenseIssued 授权码内容不走推送通道
func (s *PushSink) NotifyLicenseIssued(ctx context.Context, ev LicenseIssued) error {
	return s.push.Push(ctx, push.Message{
		Account: ev.UserID,
		Title:   "授权码已签发",
		Body:    fmt.Sprintf("%s 的授权码已签发，请在我的授权中查看。", ev.ProductName),
		Extras:  map[string]string{"type": "license_issued", "license_id": ev.LicenseID},
	})
}
