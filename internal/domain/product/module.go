package product

import (
	"keyshop/internal/domain/product/handler"
	"keyshop/internal/domain/product/repository"
	"keyshop/internal/domain/product/service"
	"keyshop/internal/pkg/middleware"
	"keyshop/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// ProductModule 商品目录
type ProductModule struct{}

func init() {
	registry.Register(&ProductModule{})
}

func (m *ProductModule) Name() string {
	return "product"
}

func (m *ProductModule) Priority() int {
	return 5
}

func (m *ProductModule) Init(ctx *registry.ModuleContext) error {
	repo := repository.NewProductRepository(ctx.DB)
	h := handler.NewProductHandler(service.NewProductService(repo, ctx.Cache, ctx.Files))

	setupRoutes(ctx.Router, h)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.ProductHandler) {
	g := r.Group("/products")
	{
		g.GET("", h.ListProducts)
		g.GET("/:id", h.GetProduct)
	}

	admin := r.Group("/admin/products")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.POST("", h.CreateProduct)
		admin.POST("/:id/file", h.UploadFile)
	}
}
