package handler

import (
	"keyshop/internal/domain/wallet/service"
	"keyshop/internal/pkg/middleware"
	"keyshop/pkg/response"
	"keyshop/pkg/utils"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type WalletHandler struct {
	service service.WalletService
}

func NewWalletHandler(s service.WalletService) *WalletHandler {
	return &WalletHandler{service: s}
}

type CreditInput struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
}

func (h *WalletHandler) ListTransactions(c *gin.Context) {
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

// CreditBalance 管理员给用户加余额
func (h *WalletHandler) CreditBalance(c *gin.Context) {
	var input CreditInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	description := input.Description
	if description == "" {
		description = "balance credited by " + middleware.CurrentUserID(c)
	}
	entry, err := h.service.Credit(c.Request.Context(), c.Param("id"), input.Amount, input.Reference, description)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entry)
}
