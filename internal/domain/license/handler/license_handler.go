package handler

import (
	"keyshop/internal/domain/license/service"
	"keyshop/internal/pkg/middleware"
	"keyshop/pkg/response"
	"keyshop/pkg/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

type LicenseHandler struct {
	issuer service.Issuer
}

func NewLicenseHandler(issuer service.Issuer) *LicenseHandler {
	return &LicenseHandler{issuer: issuer}
}

// ListLicenses 当前用户的授权码
func (h *LicenseHandler) ListLicenses(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	offset, limit := p.GetPageOffset()

	licenses, total, err := h.issuer.ListByUser(c.Request.Context(), middleware.CurrentUserID(c), offset, limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, p.Result(licenses, total))
}
