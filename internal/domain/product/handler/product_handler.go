package handler

import (
	"keyshop/internal/domain/product/service"
	"keyshop/pkg/response"
	"keyshop/pkg/utils"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type ProductHandler struct {
	service service.ProductService
}

func NewProductHandler(s service.ProductService) *ProductHandler {
	return &ProductHandler{service: s}
}

type CreateProductInput struct {
	Name           string           `json:"name" binding:"required"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `json:"price" binding:"required"`
	FlashSalePrice *decimal.Decimal `json:"flashSalePrice"`
	FlashSaleStart *time.Time       `json:"flashSaleStart"`
	FlashSaleEnd   *time.Time       `json:"flashSaleEnd"`
	Stock          int              `json:"stock"`
	RewardPoints   int64            `json:"rewardPoints"`
}

// ListProducts 商品列表
func (h *ProductHandler) ListProducts(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	offset, limit := p.GetPageOffset()

	page, err := h.service.List(c.Request.Context(), offset, limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, p.Result(page.List, page.Total))
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, product)
}

// CreateProduct 管理员上架
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var input CreateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	product, err := h.service.Create(c.Request.Context(), service.CreateProductInput{
		Name:           input.Name,
		Description:    input.Description,
		Price:          input.Price,
		FlashSalePrice: input.FlashSalePrice,
		FlashSaleStart: input.FlashSaleStart,
		FlashSaleEnd:   input.FlashSaleEnd,
		Stock:          input.Stock,
		RewardPoints:   input.RewardPoints,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, product)
}

// UploadFile 管理员上传安装包 (multipart, 字段名 file)
func (h *ProductHandler) UploadFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "file is required")
		return
	}
	src, err := header.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "invalid file")
		return
	}
	defer src.Close()

	if err := h.service.AttachFile(c.Request.Context(), c.Param("id"), header.Filename, src); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, nil)
}
