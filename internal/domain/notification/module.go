package notification

import (
	"keyshop/internal/domain/notification/handler"
	"keyshop/internal/domain/notification/repository"
	"keyshop/internal/domain/notification/service"
	"keyshop/internal/pkg/middleware"
	"keyshop/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// NotificationModule 站内通知。outbox 派发器由 cmd/server 启动
type NotificationModule struct{}

func init() {
	registry.Register(&NotificationModule{})
}

func (m *NotificationModule) Name() string {
	return "notification"
}

func (m *NotificationModule) Priority() int {
	return 10
}

func (m *NotificationModule) Init(ctx *registry.ModuleContext) error {
	svc := service.NewNotificationService(repository.NewNotificationRepository(ctx.DB), ctx.TM)
	setupRoutes(ctx.Router, handler.NewNotificationHandler(svc))
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.NotificationHandler) {
	g := r.Group("/notifications")
	g.Use(middleware.AuthMiddleware())
	{
		g.GET("", h.ListNotifications)
		g.POST("/:id/read", h.MarkRead)
	}
}
