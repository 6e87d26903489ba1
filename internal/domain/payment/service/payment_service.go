package service

import (
	"context"
	"fmt"
	"keyshop/internal/domain/order/model"
	"keyshop/internal/domain/order/repository"
	orderService "keyshop/internal/domain/order/service"
	"keyshop/internal/domain/payment/strategy"
	"keyshop/internal/pkg/apperr"
	"keyshop/pkg/database"
	"keyshop/pkg/logger"
	"keyshop/pkg/metrics"

	"go.uber.org/zap"
)

// CheckoutResult 发起支付的结果，零元订单直接完成，Session 为空
type CheckoutResult struct {
	Order   *model.Order      `json:"order"`
	Session *strategy.Session `json:"session,omitempty"`
}

type PaymentService interface {
	RegisterStrategy(s strategy.PaymentStrategy)
	Channels() []string
	Checkout(ctx context.Context, userID, orderID, channel string) (*CheckoutResult, error)
	HandleNotify(ctx context.Context, channel string, params interface{}) error
	Verify(ctx context.Context, userID, orderID string) (*model.Order, error)
}

type paymentService struct {
	orders     repository.OrderRepository
	completion orderService.CompletionEngine
	strategies map[string]strategy.PaymentStrategy
}

func NewPaymentService(orders repository.OrderRepository, completion orderService.CompletionEngine) PaymentService {
	return &paymentService{
		orders:     orders,
		completion: completion,
		strategies: make(map[string]strategy.PaymentStrategy),
	}
}

// RegisterStrategy 注册支付渠道
func (s *paymentService) RegisterStrategy(st strategy.PaymentStrategy) {
	s.strategies[st.Channel()] = st
}

func (s *paymentService) Channels() []string {
	channels := make([]string, 0, len(s.strategies))
	for ch := range s.strategies {
		channels = append(channels, ch)
	}
	return channels
}

func (s *paymentService) strategy(channel string) (strategy.PaymentStrategy, error) {
	st, ok := s.strategies[channel]
	if !ok {
		return nil, apperr.BadRequest("payment channel %s is not enabled", channel)
	}
	return st, nil
}

func (s *paymentService) ownedOrder(ctx context.Context, userID, orderID string) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperr.NotFound("order not found")
	}
	return order, nil
}

// Checkout 为待支付订单创建网关支付会话，并把网关流水记到订单上
func (s *paymentService) Checkout(ctx context.Context, userID, orderID, channel string) (*CheckoutResult, error) {
	st, err := s.strategy(channel)
	if err != nil {
		return nil, err
	}

	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.StatusPending {
		return nil, apperr.BadRequest("order is not awaiting payment")
	}

	// 优惠后为零元，网关不接受，直接完成
	if order.Total.IsZero() {
		completed, err := s.completion.CompleteOrder(ctx, order.ID, nil)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Order: completed}, nil
	}

	session, err := st.CreateSession(ctx, strategy.SessionRequest{
		OrderNo: order.OrderNo,
		Amount:  order.Total,
		Subject: fmt.Sprintf("订单 %s", order.OrderNo),
	})
	if err != nil {
		return nil, err
	}

	ok, err := s.orders.AttachPayment(ctx, order.ID, channel, session.Ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.GuardRejections.WithLabelValues("order_status").Inc()
		return nil, apperr.BadRequest("order is not awaiting payment")
	}

	order.PaymentMethod = model.PaymentExternal
	order.PaymentChannel = channel
	order.PaymentRef = session.Ref
	logger.FromContext(ctx).Info("payment session created",
		zap.String("order_id", order.ID),
		zap.String("channel", channel),
	)
	return &CheckoutResult{Order: order.Sanitize(), Session: session}, nil
}

// HandleNotify 处理网关异步回调，返回错误时网关会重试
func (s *paymentService) HandleNotify(ctx context.Context, channel string, params interface{}) error {
	st, err := s.strategy(channel)
	if err != nil {
		return err
	}

	conf, err := st.ParseNotify(ctx, params)
	if err != nil {
		metrics.PaymentConfirmations.WithLabelValues(channel, "failed").Inc()
		logger.FromContext(ctx).Warn("payment notification rejected", zap.String("channel", channel), zap.Error(err))
		return err
	}
	return s.confirm(ctx, channel, conf)
}

// Verify 前端轮询，主动向网关查询支付结果
func (s *paymentService) Verify(ctx context.Context, userID, orderID string) (*model.Order, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return order.Sanitize(), nil
	}
	if order.PaymentChannel == "" {
		return nil, apperr.BadRequest("order has no gateway payment")
	}

	st, err := s.strategy(order.PaymentChannel)
	if err != nil {
		return nil, err
	}
	conf, err := st.Query(ctx, order.OrderNo)
	if err != nil {
		return nil, err
	}
	if err := s.confirm(ctx, order.PaymentChannel, conf); err != nil {
		return nil, err
	}

	order, err = s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order.Sanitize(), nil
}

// confirm 网关确认到账后完成订单，重复确认是幂等的
func (s *paymentService) confirm(ctx context.Context, channel string, conf *strategy.Confirmation) error {
	fields := []zap.Field{
		zap.String("channel", channel),
		zap.String("order_no", conf.OrderNo),
		zap.String("trade_no", conf.TradeNo),
	}

	order, err := s.orders.GetByOrderNo(ctx, conf.OrderNo)
	if err != nil {
		if database.IsNotFound(err) {
			return apperr.NotFound("order not found")
		}
		return err
	}

	// 未支付的回调不取消订单，交给超时关闭
	if !conf.Paid {
		metrics.PaymentConfirmations.WithLabelValues(channel, "unpaid").Inc()
		logger.FromContext(ctx).Info("payment not completed", fields...)
		return nil
	}

	if !conf.Amount.Equal(order.Total) {
		metrics.PaymentConfirmations.WithLabelValues(channel, "mismatch").Inc()
		logger.FromContext(ctx).Error("payment amount mismatch",
			append(fields,
				zap.String("paid", conf.Amount.String()),
				zap.String("expected", order.Total.String()),
			)...,
		)
		return apperr.BadRequest("payment amount mismatch")
	}

	switch order.Status {
	case model.StatusCompleted:
		if !paidVia(order, channel) {
			s.refundRequired(ctx, channel, order, fields)
			return nil
		}
		metrics.PaymentConfirmations.WithLabelValues(channel, "duplicate").Inc()
		return nil
	case model.StatusCancelled, model.StatusRefunded:
		s.refundRequired(ctx, channel, order, fields)
		return nil
	}

	completed, err := s.completion.CompleteOrder(ctx, order.ID, nil)
	if err != nil {
		// 款已到账但订单完成不了（如库存不足），应答网关，转人工退款，订单留给超时关闭
		if apperr.IsBadRequest(err) {
			s.refundRequired(ctx, channel, order, append(fields, zap.Error(err)))
			return nil
		}
		metrics.PaymentConfirmations.WithLabelValues(channel, "failed").Inc()
		return err
	}
	// 读订单之后可能被取消或被并发的余额支付抢先完成
	if completed.Status != model.StatusCompleted || !paidVia(completed, channel) {
		s.refundRequired(ctx, channel, completed, fields)
		return nil
	}

	metrics.PaymentConfirmations.WithLabelValues(channel, "completed").Inc()
	logger.FromContext(ctx).Info("payment confirmed", fields...)
	return nil
}

// paidVia 订单是否记在该网关渠道名下
func paidVia(order *model.Order, channel string) bool {
	return order.PaymentMethod != model.PaymentBalance && order.PaymentChannel == channel
}

func (s *paymentService) refundRequired(ctx context.Context, channel string, order *model.Order, fields []zap.Field) {
	metrics.PaymentConfirmations.WithLabelValues(channel, "refund_required").Inc()
	logger.FromContext(ctx).Warn("gateway payment for closed order, manual refund required",
		append(fields,
			zap.String("order_id", order.ID),
			zap.String("status", string(order.Status)),
			zap.String("payment_method", string(order.PaymentMethod)),
		)...,
	)
}
