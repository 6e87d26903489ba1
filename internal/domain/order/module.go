package order

import (
	licenseRepo "keyshop/internal/domain/license/repository"
	licenseService "keyshop/internal/domain/license/service"
	notificationRepo "keyshop/internal/domain/notification/repository"
	notificationService "keyshop/internal/domain/notification/service"
	"keyshop/internal/domain/order/handler"
	"keyshop/internal/domain/order/repository"
	"keyshop/internal/domain/order/service"
	productRepo "keyshop/internal/domain/product/repository"
	promoRepo "keyshop/internal/domain/promo/repository"
	promoService "keyshop/internal/domain/promo/service"
	userRepo "keyshop/internal/domain/user/repository"
	walletRepo "keyshop/internal/domain/wallet/repository"
	"keyshop/internal/pkg/middleware"
	"keyshop/internal/pkg/registry"
	"keyshop/pkg/cache"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// OrderModule 下单、余额支付、取消、超时关闭
type OrderModule struct{}

func init() {
	registry.Register(&OrderModule{})
}

func (m *OrderModule) Name() string {
	return "order"
}

func (m *OrderModule) Priority() int {
	return 20
}

// Services 订单相关服务，支付模块复用同一套组装
type Services struct {
	Orders     repository.OrderRepository
	Order      service.OrderService
	Balance    service.BalancePayment
	Completion service.CompletionEngine
}

// NewServices 按模块上下文组装订单服务
func NewServices(ctx *registry.ModuleContext) *Services {
	shop := ctx.Config.Shop

	orders := repository.NewOrderRepository(ctx.DB)
	products := productRepo.NewProductRepository(ctx.DB)
	users := userRepo.NewUserRepository(ctx.DB)
	ledger := walletRepo.NewTransactionRepository(ctx.DB)
	promos := promoService.NewPromoLedger(promoRepo.NewPromoRepository(ctx.DB), ctx.TM)

	completion := service.NewCompletionEngine(service.CompletionDeps{
		Orders:        orders,
		Products:      products,
		Users:         users,
		Ledger:        ledger,
		Promos:        promos,
		Licenses:      licenseService.NewIssuer(licenseRepo.NewLicenseRepository(ctx.DB), ctx.TM, shop.LicenseKeyAttempts),
		Notifications: notificationService.NewNotificationService(notificationRepo.NewNotificationRepository(ctx.DB), ctx.TM),
		Outbox:        ctx.Outbox,
		TM:            ctx.TM,
	})
	builder := service.NewOrderBuilder(orders, products, promos, ctx.Tiers, ctx.TM,
		time.Duration(shop.OrderExpireMinutes)*time.Minute)
	balance := service.NewBalancePayment(orders, users, ledger, completion, ctx.TM)

	return &Services{
		Orders:     orders,
		Order:      service.NewOrderService(orders, builder, balance, promos, ctx.TM),
		Balance:    balance,
		Completion: completion,
	}
}

func (m *OrderModule) Init(ctx *registry.ModuleContext) error {
	svc := NewServices(ctx)

	var idem *cache.IdempotencyStore
	if ctx.Cache != nil {
		idem = cache.NewIdempotencyStore(ctx.Cache, time.Duration(ctx.Config.Shop.IdempotencyTTLMinute)*time.Minute)
	}

	setupRoutes(ctx.Router, handler.NewOrderHandler(svc.Order, svc.Balance, svc.Completion, idem))
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.OrderHandler) {
	// 下单与扣款按用户限流
	perUser := middleware.RateLimitMiddleware(middleware.NewKeyedRateLimiter(rate.Limit(5), 10), middleware.ByUser)

	orderGroup := r.Group("/orders")
	orderGroup.Use(middleware.AuthMiddleware())
	{
		orderGroup.POST("", perUser, h.CreateOrder)
		orderGroup.GET("", h.ListOrders)
		orderGroup.GET("/:id", h.GetOrder)
		orderGroup.POST("/:id/pay-balance", perUser, h.PayWithBalance)
		orderGroup.POST("/:id/cancel", h.CancelOrder)
	}

	admin := r.Group("/admin/orders")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.POST("/:id/complete", h.CompleteOrder)
	}
}
