package wallet

import (
	userRepo "keyshop/internal/domain/user/repository"
	"keyshop/internal/domain/wallet/handler"
	"keyshop/internal/domain/wallet/repository"
	"keyshop/internal/domain/wallet/service"
	"keyshop/internal/pkg/middleware"
	"keyshop/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// WalletModule 余额与流水
type WalletModule struct{}

func init() {
	registry.Register(&WalletModule{})
}

func (m *WalletModule) Name() string {
	return "wallet"
}

func (m *WalletModule) Priority() int {
	return 10
}

func (m *WalletModule) Init(ctx *registry.ModuleContext) error {
	svc := service.NewWalletService(userRepo.NewUserRepository(ctx.DB), repository.NewTransactionRepository(ctx.DB), ctx.TM)
	setupRoutes(ctx.Router, handler.NewWalletHandler(svc))
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.WalletHandler) {
	r.GET("/wallet/transactions", middleware.AuthMiddleware(), h.ListTransactions)

	admin := r.Group("/admin/users")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.POST("/:id/balance", h.CreditBalance)
	}
}
