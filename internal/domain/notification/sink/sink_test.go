package sink

import (
	"context"
	"encoding/json"
	"errors"
	"keyshop/internal/pkg/events"
	"keyshop/internal/pkg/push"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	args := m.Called(key, value, headers)
	return args.Error(0)
}

type MockPushService struct {
	mock.Mock
}

func (m *MockPushService) Push(ctx context.Context, msg push.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func TestEventSink(t *testing.T) {
	pub := new(MockPublisher)
	var captured []byte
	pub.On("Publish", []byte("order-1"), mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).([]byte) }).
		Return(nil).Twice()

	s := NewEventSink(pub)
	require.NoError(t, s.NotifyOrderConfirmed(context.Background(), OrderConfirmed{
		OrderID: "order-1", OrderNo: "N1", UserID: "u1", Total: decimal.NewFromInt(90), LicenseCount: 2,
	}))

	var env events.Envelope
	require.NoError(t, json.Unmarshal(captured, &env))
	assert.Equal(t, events.EventOrderConfirmed, env.EventType)
	assert.Equal(t, "order-1", env.CorrelationID)
	payload, err := events.UnwrapPayload[OrderConfirmed](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, 2, payload.LicenseCount)

	require.NoError(t, s.NotifyLicenseIssued(context.Background(), LicenseIssued{OrderID: "order-1", Key: "SECRET"}))
	require.NoError(t, json.Unmarshal(captured, &env))
	issued, err := events.UnwrapPayload[LicenseIssued](env.Payload)
	require.NoError(t, err)
	assert.Empty(t, issued.Key)

	pub.AssertExpectations(t)
}

func TestPushSink(t *testing.T) {
	p := new(MockPushService)
	p.On("Push", mock.MatchedBy(func(msg push.Message) bool {
		return msg.Account == "u1" && msg.Title == "订单已完成" &&
			strings.Contains(msg.Body, "N1") && strings.Contains(msg.Body, "20 积分") &&
			msg.Extras["order_id"] == "o1"
	})).Return(nil)

	s := NewPushSink(p)
	require.NoError(t, s.NotifyOrderConfirmed(context.Background(), OrderConfirmed{
		OrderID: "o1", OrderNo: "N1", UserID: "u1", LicenseCount: 2, PointsEarned: 20,
	}))
	p.AssertExpectations(t)
}

func TestMultiSink(t *testing.T) {
	failing := new(MockPushService)
	failing.On("Push", mock.Anything).Return(errors.New("push down"))

	m := MultiSink{NewLogSink(zap.NewNop()), NewPushSink(failing)}
	err := m.NotifyOrderConfirmed(context.Background(), OrderConfirmed{OrderID: "o1", UserID: "u1"})
	assert.ErrorContains(t, err, "push down")

	assert.ErrorContains(t, m.NotifyLicenseIssued(context.Background(), LicenseIssued{UserID: "u1"}), "push down")
}
