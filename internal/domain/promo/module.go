package promo

import (
	"keyshop/internal/domain/promo/handler"
	"keyshop/internal/domain/promo/repository"
	"keyshop/internal/domain/promo/service"
	"keyshop/internal/pkg/middleware"
	"keyshop/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// PromoModule 优惠码
type PromoModule struct{}

func init() {
	registry.Register(&PromoModule{})
}

func (m *PromoModule) Name() string {
	return "promo"
}

func (m *PromoModule) Priority() int {
	return 5
}

func (m *PromoModule) Init(ctx *registry.ModuleContext) error {
	ledger := service.NewPromoLedger(repository.NewPromoRepository(ctx.DB), ctx.TM)
	setupRoutes(ctx.Router, handler.NewPromoHandler(ledger))
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.PromoHandler) {
	r.GET("/promo-codes/:code/preview", middleware.AuthMiddleware(), h.Preview)

	admin := r.Group("/admin/promo-codes")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.POST("", h.CreatePromo)
	}
}
