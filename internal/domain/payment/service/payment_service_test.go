package service

import (
	"context"
	"errors"
	"keyshop/internal/domain/order/model"
	"keyshop/internal/domain/order/repository"
	"keyshop/internal/domain/payment/strategy"
	"keyshop/internal/pkg/apperr"
	"keyshop/internal/pkg/txn"
	"keyshop/pkg/metrics"
	baseModel "keyshop/pkg/model"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// MockOrderRepository is a mock of OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) WithTx(tx *gorm.DB) repository.OrderRepository { return m }

func (m *MockOrderRepository) Create(ctx context.Context, order *model.Order) error {
	return m.Called(order).Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	args := m.Called(orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Order, int64, error) {
	args := m.Called(userID, offset, limit)
	return args.Get(0).([]model.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) Transition(ctx context.Context, id string, from []model.Status, updates map[string]interface{}) (bool, error) {
	args := m.Called(id, from, updates)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) TransitionForUser(ctx context.Context, id, userID string, from []model.Status, updates map[string]interface{}) (bool, error) {
	args := m.Called(id, userID, from, updates)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) AttachPayment(ctx context.Context, id, channel, ref string) (bool, error) {
	args := m.Called(id, channel, ref)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) SumCompletedSpend(ctx context.Context, userID string) (decimal.Decimal, error) {
	args := m.Called(userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockOrderRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Order, error) {
	args := m.Called(now, limit)
	return args.Get(0).([]model.Order), args.Error(1)
}

// MockCompletionEngine is a mock of CompletionEngine
type MockCompletionEngine struct {
	mock.Mock
}

func (m *MockCompletionEngine) CompleteOrder(ctx context.Context, orderID string, sess *txn.Session) (*model.Order, error) {
	args := m.Called(orderID, sess)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockStrategy is a mock of PaymentStrategy
type MockStrategy struct {
	mock.Mock
	channel string
}

func (m *MockStrategy) Channel() string { return m.channel }

func (m *MockStrategy) CreateSession(ctx context.Context, req strategy.SessionRequest) (*strategy.Session, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*strategy.Session), args.Error(1)
}

func (m *MockStrategy) ParseNotify(ctx context.Context, params interface{}) (*strategy.Confirmation, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*strategy.Confirmation), args.Error(1)
}

func (m *MockStrategy) Query(ctx context.Context, orderNo string) (*strategy.Confirmation, error) {
	args := m.Called(orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*strategy.Confirmation), args.Error(1)
}

func newOrder(status model.Status, total string) *model.Order {
	return &model.Order{
		BaseModel:     baseModel.BaseModel{ID: "order-1"},
		OrderNo:       "KS202610160001",
		UserID:        "user-1",
		Total:         decimal.RequireFromString(total),
		Status:        status,
		PaymentMethod: model.PaymentExternal,
	}
}

// viaAlipay 网关完成后的订单
func viaAlipay(status model.Status, total string) *model.Order {
	o := newOrder(status, total)
	o.PaymentChannel = model.ChannelAlipay
	o.PaymentRef = o.OrderNo
	return o
}

func refundFlags() float64 {
	return testutil.ToFloat64(metrics.PaymentConfirmations.WithLabelValues(model.ChannelAlipay, "refund_required"))
}

func setup() (*paymentService, *MockOrderRepository, *MockCompletionEngine, *MockStrategy) {
	orders := new(MockOrderRepository)
	engine := new(MockCompletionEngine)
	alipay := &MockStrategy{channel: model.ChannelAlipay}
	svc := NewPaymentService(orders, engine).(*paymentService)
	svc.RegisterStrategy(alipay)
	return svc, orders, engine, alipay
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc, orders, _, alipay := setup()
		order := newOrder(model.StatusPending, "99.00")
		orders.On("GetByID", "order-1").Return(order, nil)
		alipay.On("CreateSession", mock.MatchedBy(func(req strategy.SessionRequest) bool {
			return req.OrderNo == order.OrderNo && req.Amount.Equal(order.Total)
		})).Return(&strategy.Session{Channel: model.ChannelAlipay, OrderNo: order.OrderNo, PayParam: "signed", Ref: order.OrderNo}, nil)
		orders.On("AttachPayment", "order-1", model.ChannelAlipay, order.OrderNo).Return(true, nil)

		result, err := svc.Checkout(ctx, "user-1", "order-1", model.ChannelAlipay)
		require.NoError(t, err)
		assert.Equal(t, "signed", result.Session.PayParam)
		assert.Equal(t, model.ChannelAlipay, result.Order.PaymentChannel)
		orders.AssertExpectations(t)
	})

	t.Run("channel not enabled", func(t *testing.T) {
		svc, _, _, _ := setup()
		_, err := svc.Checkout(ctx, "user-1", "order-1", model.ChannelWechat)
		assert.True(t, apperr.IsBadRequest(err))
	})

	t.Run("someone else's order", func(t *testing.T) {
		svc, orders, _, _ := setup()
		orders.On("GetByID", "order-1").Return(newOrder(model.StatusPending, "10"), nil)
		_, err := svc.Checkout(ctx, "user-2", "order-1", model.ChannelAlipay)
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("order already completed", func(t *testing.T) {
		svc, orders, _, alipay := setup()
		orders.On("GetByID", "order-1").Return(newOrder(model.StatusCompleted, "10"), nil)
		_, err := svc.Checkout(ctx, "user-1", "order-1", model.ChannelAlipay)
		assert.True(t, apperr.IsBadRequest(err))
		alipay.AssertNotCalled(t, "CreateSession", mock.Anything)
	})

	t.Run("guard lost to concurrent payment", func(t *testing.T) {
		svc, orders, _, alipay := setup()
		order := newOrder(model.StatusPending, "10")
		orders.On("GetByID", "order-1").Return(order, nil)
		alipay.On("CreateSession", mock.Anything).Return(&strategy.Session{Ref: order.OrderNo}, nil)
		orders.On("AttachPayment", "order-1", model.ChannelAlipay, order.OrderNo).Return(false, nil)

		_, err := svc.Checkout(ctx, "user-1", "order-1", model.ChannelAlipay)
		assert.True(t, apperr.IsBadRequest(err))
	})

	t.Run("zero total completes directly", func(t *testing.T) {
		svc, orders, engine, alipay := setup()
		orders.On("GetByID", "order-1").Return(newOrder(model.StatusPending, "0"), nil)
		engine.On("CompleteOrder", "order-1", (*txn.Session)(nil)).Return(newOrder(model.StatusCompleted, "0"), nil)

		result, err := svc.Checkout(ctx, "user-1", "order-1", model.ChannelAlipay)
		require.NoError(t, err)
		assert.Nil(t, result.Session)
		assert.Equal(t, model.StatusCompleted, result.Order.Status)
		alipay.AssertNotCalled(t, "CreateSession", mock.Anything)
	})
}

func TestHandleNotify(t *testing.T) {
	ctx := context.Background()
	form := url.Values{"out_trade_no": {"KS202610160001"}}
	paid := &strategy.Confirmation{OrderNo: "KS202610160001", TradeNo: "T1", Amount: decimal.RequireFromString("99"), Paid: true}

	t.Run("paid completes order", func(t *testing.T) {
		svc, orders, engine, alipay := setup()
		alipay.On("ParseNotify", form).Return(paid, nil)
		orders.On("GetByOrderNo", "KS202610160001").Return(viaAlipay(model.StatusPending, "99.00"), nil)
		engine.On("CompleteOrder", "order-1", (*txn.Session)(nil)).Return(viaAlipay(model.StatusCompleted, "99.00"), nil)

		before := refundFlags()
		require.NoError(t, svc.HandleNotify(ctx, model.ChannelAlipay, form))
		engine.AssertExpectations(t)
		assert.Equal(t, before, refundFlags())
	})

	t.Run("duplicate notification is a no-op", func(t *testing.T) {
		svc, orders, engine, alipay := setup()
		completed := newOrder(model.StatusCompleted, "99")
		completed.PaymentChannel = model.ChannelAlipay
		alipay.On("ParseNotify", form).Return(paid, nil)
		orders.On("GetByOrderNo", "KS202610160001").Return(completed, nil)

		require.NoError(t, svc.HandleNotify(ctx, model.ChannelAlipay, form))
		engine.AssertNotCalled(t, "CompleteOrder", mock.Anything, mock.Anything)
	})

	t.Run("already paid by balance", func(t *testing.T) {
		svc, orders, engine, alipay := setup()
		completed := newOrder(model.StatusCompleted, "99")
		completed.PaymentMethod = model.PaymentBalance
		alipay.On("ParseNotify", form).Return(paid, nil)
		orders.On("GetByOrderNo", "KS202610160001").Return(completed, nil)

		// 只记录人工退款，回调仍确认成功
		require.NoError(t, svc.HandleNotify(ctx, model.ChannelAlipay, form))
		engine.AssertNotCalled(t, "CompleteOrder", mock.Anything, mock.Anything)
	})

	t.Run("cancelled order", func(t *testing.T) {
		svc, orders, engine, alipay := setup()
		alipay.On("ParseNotify", form).Return(paid, nil)
		orders.On("GetByOrderNo", "KS202610160001").Return(newOrder(model.StatusCancelled, "99"), nil)

		require.NoError(t, svc.HandleNotify(ctx, model.ChannelAlipay, form))
		engine.AssertNotCalled(t, "CompleteOrder", mock.Anything, mock.Anything)
	})

	t.Run("amount mismatch", func(t *testing.T) {
		svc, orders, engine, alipay := setup()
		alipay.On("ParseNotify", form).Return(paid, nil)
		orders.On("GetByOrderNo", "KS202610160001").Return(newOrder(model.StatusPending, "100"), nil)

		err := svc.HandleNotify(ctx, model.ChannelAlipay, form)
		assert.True(t, apperr.IsBadRequest(err))
		engine.AssertNotCalled(t, "CompleteOrder", mock.Anything, mock.Anything)
	})

	t.Run("unpaid leaves order pending", func(t *testing.T) {
		svc, orders, engine, alipay := setup()
		alipay.On("ParseNotify", form).Return(&strategy.Confirmation{OrderNo: "KS202610160001"}, nil)
		orders.On("GetByOrderNo", "KS202610160001").Return(newOrder(model.StatusPending, "99"), nil)

		require.NoError(t, svc.HandleNotify(ctx, model.ChannelAlipay, form))
		engine.AssertNotCalled(t, "CompleteOrder", mock.Anything, mock.Anything)
		orders.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("bad signature", func(t *testing.T) {
		svc, _, _, alipay := setup()
		alipay.On("ParseNotify", form).Return(nil, errors.New("verify sign failed"))
		assert.Error(t, svc.HandleNotify(ctx, model.ChannelAlipay, form))
	})

	t.Run("balance payment wins the race during completion", func(t *testing.T) {
		svc, orders, engine, alipay := setup()
		alipay.On("ParseNotify", form).Return(paid, nil)
		// 读到时仍待支付，完成时余额支付已先提交
		orders.On("GetByOrderNo", "KS202610160001").Return(viaAlipay(model.StatusPending, "99"), nil)
		byBalance := newOrder(model.StatusCompleted, "99")
		byBalance.PaymentMethod = model.PaymentBalance
		engine.On("CompleteOrder", "order-1", (*txn.Session)(nil)).Return(byBalance, nil)

		before := refundFlags()
		require.NoError(t, svc.HandleNotify(ctx, model.ChannelAlipay, form))
		assert.Equal(t, before+1, refundFlags())
	})

	t.Run("paid order that cannot complete is flagged for refund", func(t *testing.T) {
		svc, orders, engine, alipay := setup()
		alipay.On("ParseNotify", form).Return(paid, nil)
		orders.On("GetByOrderNo", "KS202610160001").Return(viaAlipay(model.StatusPending, "99"), nil)
		engine.On("CompleteOrder", "order-1", (*txn.Session)(nil)).Return(nil, apperr.BadRequest("insufficient stock for tool"))

		before := refundFlags()
		require.NoError(t, svc.HandleNotify(ctx, model.ChannelAlipay, form))
		assert.Equal(t, before+1, refundFlags())
	})

	t.Run("infrastructure failure surfaces for retry", func(t *testing.T) {
		svc, orders, engine, alipay := setup()
		alipay.On("ParseNotify", form).Return(paid, nil)
		orders.On("GetByOrderNo", "KS202610160001").Return(viaAlipay(model.StatusPending, "99"), nil)
		engine.On("CompleteOrder", "order-1", (*txn.Session)(nil)).Return(nil, errors.New("connection reset"))

		before := refundFlags()
		assert.EqualError(t, svc.HandleNotify(ctx, model.ChannelAlipay, form), "connection reset")
		assert.Equal(t, before, refundFlags())
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("queries gateway and completes", func(t *testing.T) {
		svc, orders, engine, alipay := setup()
		pending := newOrder(model.StatusPending, "20")
		pending.PaymentChannel = model.ChannelAlipay
		orders.On("GetByID", "order-1").Return(pending, nil).Once()
		alipay.On("Query", pending.OrderNo).Return(&strategy.Confirmation{OrderNo: pending.OrderNo, Amount: decimal.RequireFromString("20"), Paid: true}, nil)
		orders.On("GetByOrderNo", pending.OrderNo).Return(pending, nil)
		engine.On("CompleteOrder", "order-1", (*txn.Session)(nil)).Return(viaAlipay(model.StatusCompleted, "20"), nil)
		orders.On("GetByID", "order-1").Return(viaAlipay(model.StatusCompleted, "20"), nil).Once()

		order, err := svc.Verify(ctx, "user-1", "order-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, order.Status)
	})

	t.Run("terminal order returned as is", func(t *testing.T) {
		svc, orders, _, alipay := setup()
		orders.On("GetByID", "order-1").Return(newOrder(model.StatusCompleted, "20"), nil)

		order, err := svc.Verify(ctx, "user-1", "order-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, order.Status)
		alipay.AssertNotCalled(t, "Query", mock.Anything)
	})

	t.Run("no checkout yet", func(t *testing.T) {
		svc, orders, _, _ := setup()
		orders.On("GetByID", "order-1").Return(newOrder(model.StatusPending, "20"), nil)

		_, err := svc.Verify(ctx, "user-1", "order-1")
		assert.True(t, apperr.IsBadRequest(err))
	})
}
