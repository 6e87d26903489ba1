package handler

import (
	"keyshop/internal/domain/order/model"
	"keyshop/internal/domain/payment/service"
	"keyshop/internal/pkg/middleware"
	"keyshop/pkg/logger"
	"keyshop/pkg/response"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	service service.PaymentService
}

func NewPaymentHandler(s service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: s}
}

type CheckoutInput struct {
	Channel string `json:"channel" binding:"required,oneof=alipay wechat"`
}

// Checkout 为待支付订单发起网关支付
func (h *PaymentHandler) Checkout(c *gin.Context) {
	var input CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	result, err := h.service.Checkout(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), input.Channel)
	if err != nil {
		response.FromError(c, err)
		return
	}
	result.Order.Sanitize()
	response.Success(c, result)
}

// Verify 客户端支付完成后主动查询网关
func (h *PaymentHandler) Verify(c *gin.Context) {
	order, err := h.service.Verify(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order.Sanitize())
}

// Channels 已启用的支付渠道
func (h *PaymentHandler) Channels(c *gin.Context) {
	response.Success(c, h.service.Channels())
}

// AlipayNotify 支付宝回调
func (h *PaymentHandler) AlipayNotify(c *gin.Context) {
	// 支付宝回调是 POST Form 格式
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusOK, "fail")
		return
	}
	if err := h.service.HandleNotify(c.Request.Context(), model.ChannelAlipay, c.Request.Form); err != nil {
		logger.Log.Warn("alipay notify rejected", zap.Error(err))
		c.String(http.StatusOK, "fail") // 告诉支付宝处理失败，它会重试
		return
	}
	c.String(http.StatusOK, "success")
}

// WechatNotify 微信支付回调，签名信息在 Header 中，直接传 *http.Request
func (h *PaymentHandler) WechatNotify(c *gin.Context) {
	if err := h.service.HandleNotify(c.Request.Context(), model.ChannelWechat, c.Request); err != nil {
		logger.Log.Warn("wechat notify rejected", zap.Error(err))
		// 返回 4xx/5xx 表示失败
		c.JSON(http.StatusInternalServerError, gin.H{"code": "FAIL", "message": "notify handling failed"})
		return
	}
	c.Status(http.StatusOK)
}
