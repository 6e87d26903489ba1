package service

import (
	"context"
	"keyshop/internal/domain/order/model"
	"keyshop/internal/domain/order/repository"
	promoService "keyshop/internal/domain/promo/service"
	"keyshop/internal/pkg/apperr"
	"keyshop/internal/pkg/txn"
	"keyshop/pkg/database"
	"keyshop/pkg/logger"
	"keyshop/pkg/metrics"
	"time"

	"go.uber.org/zap"
)

const expireBatch = 100

// OrderService 订单查询、下单入口、取消与超时关闭
type OrderService interface {
	PlaceOrder(ctx context.Context, input CreateOrderInput) (*model.Order, error)
	Get(ctx context.Context, userID, orderID string) (*model.Order, error)
	List(ctx context.Context, userID string, offset, limit int) ([]model.Order, int64, error)
	Cancel(ctx context.Context, userID, orderID string) (*model.Order, error)
	ExpirePending(ctx context.Context, now time.Time) (int, error)
}

type orderService struct {
	orders  repository.OrderRepository
	builder OrderBuilder
	balance BalancePayment
	promos  promoService.PromoLedger
	tm      *txn.Manager
	now     func() time.Time
}

func NewOrderService(
	orders repository.OrderRepository,
	builder OrderBuilder,
	balance BalancePayment,
	promos promoService.PromoLedger,
	tm *txn.Manager,
) OrderService {
	return &orderService{
		orders:  orders,
		builder: builder,
		balance: balance,
		promos:  promos,
		tm:      tm,
		now:     time.Now,
	}
}

// PlaceOrder 创建订单，余额支付的订单立即扣款完成。
// 扣款失败时订单保持 PENDING，可稍后重新支付或等待超时关闭。
func (s *orderService) PlaceOrder(ctx context.Context, input CreateOrderInput) (*model.Order, error) {
	order, err := s.builder.CreateOrder(ctx, input)
	if err != nil {
		return nil, err
	}
	if input.PaymentMethod != model.PaymentBalance {
		return order, nil
	}
	return s.balance.Pay(ctx, input.UserID, order.ID)
}

func (s *orderService) Get(ctx context.Context, userID, orderID string) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, err
	}
	if userID != "" && order.UserID != userID {
		return nil, apperr.NotFound("order not found")
	}
	return order.Sanitize(), nil
}

func (s *orderService) List(ctx context.Context, userID string, offset, limit int) ([]model.Order, int64, error) {
	orders, total, err := s.orders.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		orders[i].Sanitize()
	}
	return orders, total, nil
}

// Cancel 只有待支付订单可以取消，取消时归还优惠码名额
func (s *orderService) Cancel(ctx context.Context, userID, orderID string) (*model.Order, error) {
	var result *model.Order
	err := s.tm.Do(ctx, nil, func(sess *txn.Session) error {
		orders := s.orders.WithTx(sess.DB())
		ok, err := orders.TransitionForUser(ctx, orderID, userID,
			[]model.Status{model.StatusPending},
			map[string]interface{}{"status": model.StatusCancelled, "cancelled_at": s.now()},
		)
		if err != nil {
			return err
		}

		order, err := orders.GetByID(ctx, orderID)
		if err != nil {
			if database.IsNotFound(err) {
				return apperr.NotFound("order not found")
			}
			return err
		}
		if order.UserID != userID {
			return apperr.NotFound("order not found")
		}
		if !ok {
			metrics.GuardRejections.WithLabelValues("order_status").Inc()
			return apperr.BadRequest("order can no longer be cancelled")
		}

		if err := s.promos.Release(ctx, sess, orderID); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("order cancelled", zap.String("order_id", orderID), zap.String("user_id", userID))
	return result.Sanitize(), nil
}

// ExpirePending 关闭超时未支付的订单，返回关闭数量
func (s *orderService) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.orders.FindExpiredPending(ctx, now, expireBatch)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, o := range expired {
		cancelled := false
		err := s.tm.Do(ctx, nil, func(sess *txn.Session) error {
			ok, err := s.orders.WithTx(sess.DB()).Transition(ctx, o.ID,
				[]model.Status{model.StatusPending},
				map[string]interface{}{"status": model.StatusCancelled, "cancelled_at": now},
			)
			if err != nil || !ok {
				return err
			}
			cancelled = true
			return s.promos.Release(ctx, sess, o.ID)
		})
		if err != nil {
			logger.Log.Warn("expire order failed", zap.String("order_id", o.ID), zap.Error(err))
			return closed, err
		}
		if cancelled {
			closed++
		}
	}
	return closed, nil
}

// RunExpirySweeper 定期关闭超时订单，阻塞直到 ctx 取消
func RunExpirySweeper(ctx context.Context, svc OrderService, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := svc.ExpirePending(ctx, now)
			if err != nil {
				logger.Log.Error("expire pending orders failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Log.Info("pending orders expired", zap.Int("count", n))
			}
		}
	}
}
