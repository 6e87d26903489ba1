package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"keyshop/internal/domain/product/model"
	"keyshop/internal/domain/product/repository"
	"keyshop/internal/pkg/apperr"
	"keyshop/internal/pkg/storage"
	"keyshop/pkg/cache"
	"keyshop/pkg/database"
	"keyshop/pkg/logger"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 商品列表短期缓存，库存展示允许轻微滞后
const (
	keyProductList = "product:list:%d:%d"
	listCacheTTL   = 30 * time.Second
)

// CreateProductInput 管理员上架商品
type CreateProductInput struct {
	Name           string
	Description    string
	Price          decimal.Decimal
	FlashSalePrice *decimal.Decimal
	FlashSaleStart *time.Time
	FlashSaleEnd   *time.Time
	Stock          int
	RewardPoints   int64
}

type ProductPage struct {
	List  []model.Product `json:"list"`
	Total int64           `json:"total"`
}

type ProductService interface {
	List(ctx context.Context, offset, limit int) (*ProductPage, error)
	Get(ctx context.Context, id string) (*model.Product, error)
	Create(ctx context.Context, input CreateProductInput) (*model.Product, error)
	AttachFile(ctx context.Context, productID, filename string, r io.Reader) error
}

type productService struct {
	repo  repository.ProductRepository
	cache cache.CacheService
	files storage.FileStore
	now   func() time.Time
}

// NewProductService files 为 nil 时不支持上传安装包
func NewProductService(repo repository.ProductRepository, c cache.CacheService, files storage.FileStore) ProductService {
	return &productService{repo: repo, cache: c, files: files, now: time.Now}
}

func (s *productService) List(ctx context.Context, offset, limit int) (*ProductPage, error) {
	key := fmt.Sprintf(keyProductList, offset, limit)
	var page ProductPage
	if s.cache != nil {
		err := s.cache.Get(ctx, key, &page)
		if err == nil {
			return &page, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Log.Warn("product list cache read failed", zap.Error(err))
		}
	}

	products, total, err := s.repo.ListActive(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Sanitize()
	}
	page = ProductPage{List: products, Total: total}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, page, listCacheTTL); err != nil {
			logger.Log.Warn("product list cache write failed", zap.Error(err))
		}
	}
	return &page, nil
}

func (s *productService) Get(ctx context.Context, id string) (*model.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("product not found")
		}
		return nil, err
	}
	if !product.Active {
		return nil, apperr.NotFound("product not found")
	}
	return product.Sanitize(), nil
}

func (s *productService) Create(ctx context.Context, input CreateProductInput) (*model.Product, error) {
	if err := validateProduct(input); err != nil {
		return nil, err
	}

	product := &model.Product{
		Name:           strings.TrimSpace(input.Name),
		Description:    input.Description,
		Price:          input.Price.Round(2),
		FlashSalePrice: input.FlashSalePrice,
		FlashSaleStart: input.FlashSaleStart,
		FlashSaleEnd:   input.FlashSaleEnd,
		Stock:          input.Stock,
		RewardPoints:   input.RewardPoints,
		Active:         true,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}

	logger.Log.Info("product created", zap.String("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

func validateProduct(input CreateProductInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return apperr.Validation("name is required")
	}
	if !input.Price.IsPositive() {
		return apperr.Validation("price must be greater than 0")
	}
	if input.Stock < model.UnlimitedStock {
		return apperr.Validation("stock must be -1 (unlimited) or non-negative")
	}
	if input.RewardPoints < 0 {
		return apperr.Validation("reward points must be non-negative")
	}

	flash := []bool{input.FlashSalePrice != nil, input.FlashSaleStart != nil, input.FlashSaleEnd != nil}
	if flash[0] != flash[1] || flash[1] != flash[2] {
		return apperr.Validation("flash sale requires price, start and end together")
	}
	if input.FlashSalePrice != nil {
		if !input.FlashSalePrice.IsPositive() || input.FlashSalePrice.GreaterThanOrEqual(input.Price) {
			return apperr.Validation("flash sale price must be between 0 and the regular price")
		}
		if !input.FlashSaleEnd.After(*input.FlashSaleStart) {
			return apperr.Validation("flash sale end must be after start")
		}
	}
	return nil
}

// AttachFile 上传安装包并记录到商品，旧文件保留在桶里
func (s *productService) AttachFile(ctx context.Context, productID, filename string, r io.Reader) error {
	if s.files == nil {
		return apperr.BadRequest("file storage is not configured")
	}
	if _, err := s.repo.GetByID(ctx, productID); err != nil {
		if database.IsNotFound(err) {
			return apperr.NotFound("product not found")
		}
		return err
	}

	key := storage.ObjectKey(productID, filename, s.now())
	if err := s.files.Put(ctx, key, r); err != nil {
		return err
	}
	if _, err := s.repo.UpdateFileKey(ctx, productID, key); err != nil {
		return err
	}

	logger.Log.Info("product file attached", zap.String("product_id", productID), zap.String("file_key", key))
	return nil
}
