package handler

import (
	"errors"
	"keyshop/internal/domain/order/model"
	"keyshop/internal/domain/order/service"
	"keyshop/internal/pkg/middleware"
	"keyshop/pkg/cache"
	"keyshop/pkg/logger"
	"keyshop/pkg/response"
	"keyshop/pkg/utils"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HeaderIdempotencyKey 客户端生成的下单幂等键
const HeaderIdempotencyKey = "Idempotency-Key"

type OrderHandler struct {
	orders     service.OrderService
	balance    service.BalancePayment
	completion service.CompletionEngine
	idem       *cache.IdempotencyStore
}

// NewOrderHandler idem 为 nil 时不做请求去重
func NewOrderHandler(orders service.OrderService, balance service.BalancePayment, completion service.CompletionEngine, idem *cache.IdempotencyStore) *OrderHandler {
	return &OrderHandler{orders: orders, balance: balance, completion: completion, idem: idem}
}

type CreateOrderInput struct {
	Items         []service.CreateOrderItem `json:"items" binding:"required,min=1"`
	PaymentMethod string                    `json:"paymentMethod" binding:"required"`
	PromoCode     string                    `json:"promoCode"`
}

// CreateOrder 下单。携带 Idempotency-Key 的重复请求返回同一笔订单
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var input CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	ctx := c.Request.Context()
	userID := middleware.CurrentUserID(c)
	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))

	guarded := false
	if key != "" && h.idem != nil {
		orderID, acquired, err := h.idem.Begin(ctx, userID, key)
		switch {
		case errors.Is(err, cache.ErrRequestInFlight):
			response.Error(c, http.StatusConflict, response.ErrDuplicateRequest, err.Error())
			return
		case err != nil:
			// 缓存不可用时退化为普通下单
			logger.FromContext(ctx).Warn("idempotency store unavailable", zap.String("user_id", userID), zap.Error(err))
		case !acquired:
			order, err := h.orders.Get(ctx, userID, orderID)
			if err != nil {
				response.FromError(c, err)
				return
			}
			response.Success(c, order)
			return
		default:
			guarded = true
		}
	}

	order, err := h.orders.PlaceOrder(ctx, service.CreateOrderInput{
		UserID:        userID,
		Items:         input.Items,
		PaymentMethod: model.PaymentMethod(strings.ToUpper(input.PaymentMethod)),
		PromoCode:     input.PromoCode,
	})
	if err != nil {
		if guarded {
			if abortErr := h.idem.Abort(ctx, userID, key); abortErr != nil {
				logger.FromContext(ctx).Warn("release idempotency key failed", zap.String("user_id", userID), zap.Error(abortErr))
			}
		}
		response.FromError(c, err)
		return
	}

	if guarded {
		if err := h.idem.Complete(ctx, userID, key, order.ID); err != nil {
			logger.FromContext(ctx).Warn("record idempotency key failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	response.Success(c, order)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	offset, limit := p.GetPageOffset()

	list, total, err := h.orders.List(c.Request.Context(), middleware.CurrentUserID(c), offset, limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, p.Result(list, total))
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order)
}

// PayWithBalance 待支付订单改用余额支付
func (h *OrderHandler) PayWithBalance(c *gin.Context) {
	order, err := h.balance.Pay(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order.Sanitize())
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	order, err := h.orders.Cancel(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order)
}

// CompleteOrder 管理员手工完成订单，已完成的订单原样返回
func (h *OrderHandler) CompleteOrder(c *gin.Context) {
	ctx := c.Request.Context()
	order, err := h.completion.CompleteOrder(ctx, c.Param("id"), nil)
	if err != nil {
		response.FromError(c, err)
		return
	}
	logger.FromContext(ctx).Info("order completed by admin",
		zap.String("order_id", order.ID),
		zap.String("admin_id", middleware.CurrentUserID(c)),
	)
	response.Success(c, order.Sanitize())
}
