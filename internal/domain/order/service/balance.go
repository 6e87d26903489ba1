package service

import (
	"context"
	"keyshop/internal/domain/order/model"
	"keyshop/internal/domain/order/repository"
	userRepo "keyshop/internal/domain/user/repository"
	walletModel "keyshop/internal/domain/wallet/model"
	walletRepo "keyshop/internal/domain/wallet/repository"
	"keyshop/internal/pkg/apperr"
	"keyshop/internal/pkg/txn"
	"keyshop/pkg/database"
	"keyshop/pkg/metrics"
	"time"
)

// BalancePayment 余额支付：状态守卫、余额守卫、流水、完成订单在同一事务中
type BalancePayment interface {
	Pay(ctx context.Context, userID, orderID string) (*model.Order, error)
}

type balancePayment struct {
	orders   repository.OrderRepository
	users    userRepo.UserRepository
	ledger   walletRepo.TransactionRepository
	complete CompletionEngine
	tm       *txn.Manager
	now      func() time.Time
}

func NewBalancePayment(
	orders repository.OrderRepository,
	users userRepo.UserRepository,
	ledger walletRepo.TransactionRepository,
	complete CompletionEngine,
	tm *txn.Manager,
) BalancePayment {
	return &balancePayment{
		orders:   orders,
		users:    users,
		ledger:   ledger,
		complete: complete,
		tm:       tm,
		now:      time.Now,
	}
}

func (p *balancePayment) Pay(ctx context.Context, userID, orderID string) (*model.Order, error) {
	var result *model.Order
	err := p.tm.Do(ctx, nil, func(sess *txn.Session) error {
		orders := p.orders.WithTx(sess.DB())

		// 1. PENDING -> PROCESSING，同时校验归属
		ok, err := orders.TransitionForUser(ctx, orderID, userID,
			[]model.Status{model.StatusPending},
			map[string]interface{}{
				"status":         model.StatusProcessing,
				"payment_method": model.PaymentBalance,
				"paid_at":        p.now(),
			},
		)
		if err != nil {
			return err
		}
		if !ok {
			existing, err := orders.GetByID(ctx, orderID)
			if err != nil {
				if database.IsNotFound(err) {
					return apperr.NotFound("order not found")
				}
				return err
			}
			if existing.UserID != userID {
				return apperr.NotFound("order not found")
			}
			metrics.GuardRejections.WithLabelValues("order_status").Inc()
			return apperr.BadRequest("order is already being processed or completed")
		}

		order, err := orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		// 2. 扣余额
		debited, err := p.users.WithTx(sess.DB()).DebitBalance(ctx, userID, order.Total)
		if err != nil {
			return err
		}
		if !debited {
			metrics.GuardRejections.WithLabelValues("balance").Inc()
			return apperr.BadRequest("insufficient balance")
		}

		// 3. 流水，扣款为负
		id := order.ID
		if err := p.ledger.WithTx(sess.DB()).Append(ctx, &walletModel.Transaction{
			UserID:      userID,
			Type:        walletModel.TypePurchase,
			Amount:      order.Total.Neg(),
			OrderID:     &id,
			Reference:   order.OrderNo,
			Description: "balance payment for order " + order.OrderNo,
		}); err != nil {
			return err
		}

		// 4. 同一事务内完成订单
		result, err = p.complete.CompleteOrder(ctx, orderID, sess)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
