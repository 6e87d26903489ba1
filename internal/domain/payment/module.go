package payment

import (
	"context"
	"keyshop/internal/domain/order"
	"keyshop/internal/domain/payment/handler"
	"keyshop/internal/domain/payment/service"
	"keyshop/internal/domain/payment/strategy"
	"keyshop/internal/pkg/middleware"
	"keyshop/internal/pkg/registry"
	"keyshop/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentModule 支付模块
type PaymentModule struct{}

func init() {
	registry.Register(&PaymentModule{})
}

func (m *PaymentModule) Name() string {
	return "payment"
}

func (m *PaymentModule) Priority() int {
	// 依赖订单服务
	return 30
}

func (m *PaymentModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	orders := order.NewServices(ctx)
	pService := service.NewPaymentService(orders.Orders, orders.Completion)

	// 2. 注册支付策略，未配置的渠道不启用
	if cfg := ctx.Config.Alipay; cfg.AppID != "" {
		alipayStrategy, err := strategy.NewAlipayStrategy(cfg)
		if err != nil {
			logger.Log.Error("init alipay strategy failed", zap.Error(err))
		} else {
			pService.RegisterStrategy(alipayStrategy)
		}
	}
	if cfg := ctx.Config.Wechat; cfg.MchID != "" {
		wechatStrategy, err := strategy.NewWechatStrategy(context.Background(), cfg)
		if err != nil {
			logger.Log.Error("init wechat strategy failed", zap.Error(err))
		} else {
			pService.RegisterStrategy(wechatStrategy)
		}
	}
	logger.Log.Info("payment channels ready", zap.Strings("channels", pService.Channels()))

	// 3. 路由注册
	setupRoutes(ctx.Router, handler.NewPaymentHandler(pService))
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.PaymentHandler) {
	g := r.Group("/payment")

	// 支付回调 (无需鉴权，但需验签)
	g.POST("/notify/alipay", h.AlipayNotify)
	g.POST("/notify/wechat", h.WechatNotify)

	auth := g.Group("")
	auth.Use(middleware.AuthMiddleware())
	{
		auth.GET("/channels", h.Channels)
		auth.POST("/orders/:id/checkout", h.Checkout)
		auth.GET("/orders/:id/verify", h.Verify)
	}
}
