package service

import (
	"context"
	"fmt"
	licenseService "keyshop/internal/domain/license/service"
	notificationModel "keyshop/internal/domain/notification/model"
	notificationService "keyshop/internal/domain/notification/service"
	"keyshop/internal/domain/notification/sink"
	"keyshop/internal/domain/order/model"
	"keyshop/internal/domain/order/repository"
	productRepo "keyshop/internal/domain/product/repository"
	promoService "keyshop/internal/domain/promo/service"
	userRepo "keyshop/internal/domain/user/repository"
	walletModel "keyshop/internal/domain/wallet/model"
	walletRepo "keyshop/internal/domain/wallet/repository"
	"keyshop/internal/pkg/apperr"
	"keyshop/internal/pkg/txn"
	"keyshop/pkg/database"
	"keyshop/pkg/logger"
	"keyshop/pkg/metrics"
	"time"

	"go.uber.org/zap"
)

// CompletionEngine 订单完成状态机。
// 网关回调、主动查询、余额支付、管理员操作可能同时触发，
// 状态守卫 UPDATE 只会让其中一个命中，其余直接返回当前订单。
type CompletionEngine interface {
	CompleteOrder(ctx context.Context, orderID string, sess *txn.Session) (*model.Order, error)
}

type completionEngine struct {
	orders        repository.OrderRepository
	products      productRepo.ProductRepository
	users         userRepo.UserRepository
	ledger        walletRepo.TransactionRepository
	promos        promoService.PromoLedger
	licenses      licenseService.Issuer
	notifications notificationService.NotificationService
	outbox        *notificationService.Outbox
	tm            *txn.Manager
	now           func() time.Time
}

// CompletionDeps 完成订单所需的依赖
type CompletionDeps struct {
	Orders        repository.OrderRepository
	Products      productRepo.ProductRepository
	Users         userRepo.UserRepository
	Ledger        walletRepo.TransactionRepository
	Promos        promoService.PromoLedger
	Licenses      licenseService.Issuer
	Notifications notificationService.NotificationService
	Outbox        *notificationService.Outbox
	TM            *txn.Manager
}

func NewCompletionEngine(deps CompletionDeps) CompletionEngine {
	return &completionEngine{
		orders:        deps.Orders,
		products:      deps.Products,
		users:         deps.Users,
		ledger:        deps.Ledger,
		promos:        deps.Promos,
		licenses:      deps.Licenses,
		notifications: deps.Notifications,
		outbox:        deps.Outbox,
		tm:            deps.TM,
		now:           time.Now,
	}
}

// CompleteOrder sess 为 nil 时开启新事务，否则在调用方事务中执行
func (e *completionEngine) CompleteOrder(ctx context.Context, orderID string, sess *txn.Session) (*model.Order, error) {
	var result *model.Order
	completed := false

	err := e.tm.Do(ctx, sess, func(sess *txn.Session) error {
		orders := e.orders.WithTx(sess.DB())
		now := e.now()

		ok, err := orders.Transition(ctx, orderID,
			[]model.Status{model.StatusPending, model.StatusProcessing},
			map[string]interface{}{"status": model.StatusCompleted, "completed_at": now},
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
		if !ok {
			// 已被其他触发方完成或已取消，不做任何修改
			result = order
			return nil
		}

		if err := e.fulfil(ctx, sess, order, now); err != nil {
			return err
		}
		result = order
		completed = true
		return nil
	})

	switch {
	case err != nil:
		metrics.OrderCompletions.WithLabelValues("failed").Inc()
		logger.FromContext(ctx).Warn("order completion failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	case completed:
		metrics.OrderCompletions.WithLabelValues("completed").Inc()
		logger.FromContext(ctx).Info("order completed",
			zap.String("order_id", result.ID),
			zap.String("order_no", result.OrderNo),
			zap.Int("licenses", result.TotalQuantity()),
		)
	default:
		metrics.OrderCompletions.WithLabelValues("noop").Inc()
	}
	return result.Sanitize(), nil
}

// fulfil 积分、库存、授权码、通知事件，全部在同一事务内
func (e *completionEngine) fulfil(ctx context.Context, sess *txn.Session, order *model.Order, now time.Time) error {
	order.Status = model.StatusCompleted
	order.CompletedAt = &now

	// 1. 优惠码核销
	if order.PromoCodeID != nil {
		if err := e.promos.Redeem(ctx, sess, order.UserID, *order.PromoCodeID, order.ID); err != nil {
			return err
		}
	}

	// 2. 积分
	var points int64
	for _, item := range order.Items {
		if item.Product != nil && item.Product.RewardPoints > 0 {
			points += int64(item.Quantity) * item.Product.RewardPoints
		}
	}
	if points > 0 {
		if err := e.creditPoints(ctx, sess, order, points); err != nil {
			return err
		}
	}

	// 3. 库存
	products := e.products.WithTx(sess.DB())
	for _, item := range order.Items {
		if item.Product == nil || !item.Product.TracksStock() {
			continue
		}
		ok, err := products.DecreaseStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			metrics.GuardRejections.WithLabelValues("stock").Inc()
			return apperr.BadRequest("insufficient stock for %s", item.Product.Name)
		}
	}

	// 4. 授权码
	issued := make([]sink.LicenseIssued, 0, order.TotalQuantity())
	for _, item := range order.Items {
		for i := 0; i < item.Quantity; i++ {
			lic, err := e.licenses.Issue(ctx, sess, order.UserID, item.ProductID, order.ID)
			if err != nil {
				return fmt.Errorf("issue license for %s: %w", item.ProductID, err)
			}
			ev := sink.LicenseIssued{
				LicenseID: lic.ID,
				OrderID:   order.ID,
				UserID:    order.UserID,
				ProductID: item.ProductID,
				Key:       lic.Key,
			}
			if item.Product != nil {
				ev.ProductName = item.Product.Name
			}
			issued = append(issued, ev)
		}
	}

	// 5. 通知事件，提交后异步派发
	if err := e.outbox.StageOrderConfirmed(ctx, sess, sink.OrderConfirmed{
		OrderID:      order.ID,
		OrderNo:      order.OrderNo,
		UserID:       order.UserID,
		Total:        order.Total,
		LicenseCount: len(issued),
		PointsEarned: points,
		CompletedAt:  now,
	}); err != nil {
		return err
	}
	for _, ev := range issued {
		if err := e.outbox.StageLicenseIssued(ctx, sess, ev); err != nil {
			return err
		}
	}
	return nil
}

func (e *completionEngine) creditPoints(ctx context.Context, sess *txn.Session, order *model.Order, points int64) error {
	ok, err := e.users.WithTx(sess.DB()).AddPoints(ctx, order.UserID, points)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("user not found")
	}

	orderID := order.ID
	if err := e.ledger.WithTx(sess.DB()).Append(ctx, &walletModel.Transaction{
		UserID:      order.UserID,
		Type:        walletModel.TypePointsEarned,
		Points:      points,
		OrderID:     &orderID,
		Reference:   order.OrderNo,
		Description: "points earned for order " + order.OrderNo,
	}); err != nil {
		return err
	}

	return e.notifications.Create(ctx, sess, &notificationModel.Notification{
		UserID: order.UserID,
		Type:   notificationModel.TypePointsEarned,
		Title:  "积分到账",
		Body:   fmt.Sprintf("订单 %s 获得 %d 积分。", order.OrderNo, points),
	})
}
