package sink

import (
	"context"
	"encoding/json"
	"keyshop/internal/pkg/events"

	"github.com/segmentio/kafka-go"
)

// EventSink 把订单事件写入 Kafka，按订单 ID 分区
type EventSink struct {
	pub events.Publisher
}

func NewEventSink(pub events.Publisher) *EventSink {
	return &EventSink{pub: pub}
}

func (s *EventSink) NotifyOrderConfirmed(ctx context.Context, ev OrderConfirmed) error {
	return s.publish(ctx, events.EventOrderConfirmed, ev.OrderID, ev)
}

// NotifyLicenseIssued 事件中不携带授权码明文
func (s *EventSink) NotifyLicenseIssued(ctx context.Context, ev LicenseIssued) error {
	ev.Key = ""
	return s.publish(ctx, events.EventLicenseIssued, ev.OrderID, ev)
}

func (s *EventSink) publish(ctx context.Context, eventType, orderID string, payload any) error {
	env, err := events.NewEnvelope(eventType, orderID, payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.pub.Publish(ctx, []byte(orderID), value, kafka.Header{Key: "event_type", Value: []byte(eventType)})
}
