package handler

import (
	"keyshop/internal/domain/promo/model"
	"keyshop/internal/domain/promo/service"
	"keyshop/internal/pkg/middleware"
	"keyshop/pkg/response"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type PromoHandler struct {
	ledger service.PromoLedger
}

func NewPromoHandler(ledger service.PromoLedger) *PromoHandler {
	return &PromoHandler{ledger: ledger}
}

type CreatePromoInput struct {
	Code          string             `json:"code" binding:"required"`
	DiscountType  model.DiscountType `json:"discountType" binding:"required,oneof=PERCENTAGE FIXED"`
	DiscountValue decimal.Decimal    `json:"discountValue" binding:"required"`
	MinPurchase   *decimal.Decimal   `json:"minPurchase"`
	MaxDiscount   *decimal.Decimal   `json:"maxDiscount"`
	UsageLimit    *int               `json:"usageLimit"`
	ExpiresAt     *time.Time         `json:"expiresAt"`
}

// Preview 试算优惠，?amount= 为购物车金额
func (h *PromoHandler) Preview(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil || amount.IsNegative() {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "amount must be a non-negative number")
		return
	}

	preview, err := h.ledger.Preview(c.Request.Context(), c.Param("code"), amount, middleware.CurrentUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, preview)
}

// CreatePromo 管理员创建优惠码
func (h *PromoHandler) CreatePromo(c *gin.Context) {
	var input CreatePromoInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	promo, err := h.ledger.Create(c.Request.Context(), service.CreatePromoInput{
		Code:          input.Code,
		DiscountType:  input.DiscountType,
		DiscountValue: input.DiscountValue,
		MinPurchase:   input.MinPurchase,
		MaxDiscount:   input.MaxDiscount,
		UsageLimit:    input.UsageLimit,
		ExpiresAt:     input.ExpiresAt,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, promo)
}
