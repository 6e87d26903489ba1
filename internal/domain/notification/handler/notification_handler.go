package handler

import (
	"keyshop/internal/domain/notification/service"
	"keyshop/internal/pkg/middleware"
	"keyshop/pkg/response"
	"keyshop/pkg/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	service service.NotificationService
}

func NewNotificationHandler(s service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: s}
}

func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	offset, limit := p.GetPageOffset()

	list, total, err := h.service.List(c.Request.Context(), middleware.CurrentUserID(c), offset, limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, p.Result(list, total))
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, nil)
}
