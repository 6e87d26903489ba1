package handler

import (
	"keyshop/internal/domain/user/service"
	"keyshop/internal/pkg/middleware"
	"keyshop/pkg/response"
	"keyshop/pkg/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户处理器
type UserHandler struct {
	service service.UserService
}

// NewUserHandler 创建处理器
func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// Me 当前用户信息，包含余额、积分与实时等级
func (h *UserHandler) Me(c *gin.Context) {
	profile, err := h.service.Profile(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, profile)
}

// GetUsers 管理员分页查看用户
func (h *UserHandler) GetUsers(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	offset, limit := p.GetPageOffset()

	users, total, err := h.service.List(c.Request.Context(), offset, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Failed to fetch users")
		return
	}
	response.Success(c, p.Result(users, total))
}
