package license

import (
	"keyshop/internal/domain/license/handler"
	"keyshop/internal/domain/license/repository"
	"keyshop/internal/domain/license/service"
	"keyshop/internal/pkg/middleware"
	"keyshop/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// LicenseModule 授权码查询
type LicenseModule struct{}

func init() {
	registry.Register(&LicenseModule{})
}

func (m *LicenseModule) Name() string {
	return "license"
}

func (m *LicenseModule) Priority() int {
	return 10
}

func (m *LicenseModule) Init(ctx *registry.ModuleContext) error {
	repo := repository.NewLicenseRepository(ctx.DB)
	issuer := service.NewIssuer(repo, ctx.TM, ctx.Config.Shop.LicenseKeyAttempts)

	setupRoutes(ctx.Router, handler.NewLicenseHandler(issuer))
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.LicenseHandler) {
	g := r.Group("/licenses")
	g.Use(middleware.AuthMiddleware())
	{
		g.GET("", h.ListLicenses)
	}
}
