package service

import (
	"context"
	"fmt"
	"keyshop/internal/domain/loyalty"
	"keyshop/internal/domain/order/model"
	"keyshop/internal/domain/order/repository"
	productModel "keyshop/internal/domain/product/model"
	productRepo "keyshop/internal/domain/product/repository"
	promoService "keyshop/internal/domain/promo/service"
	"keyshop/internal/pkg/apperr"
	"keyshop/internal/pkg/txn"
	"keyshop/pkg/logger"
	"keyshop/pkg/metrics"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateOrderItem 下单明细
type CreateOrderItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderInput 下单输入
type CreateOrderInput struct {
	UserID        string
	Items         []CreateOrderItem
	PaymentMethod model.PaymentMethod
	PromoCode     string
}

// OrderBuilder 计算价格与折扣并落库待支付订单。下单时不动库存、不发授权码、不加积分
type OrderBuilder interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*model.Order, error)
}

type orderBuilder struct {
	orders      repository.OrderRepository
	products    productRepo.ProductRepository
	promos      promoService.PromoLedger
	tiers       *loyalty.Calculator
	tm          *txn.Manager
	expireAfter time.Duration
	now         func() time.Time
}

func NewOrderBuilder(
	orders repository.OrderRepository,
	products productRepo.ProductRepository,
	promos promoService.PromoLedger,
	tiers *loyalty.Calculator,
	tm *txn.Manager,
	expireAfter time.Duration,
) OrderBuilder {
	return &orderBuilder{
		orders:      orders,
		products:    products,
		promos:      promos,
		tiers:       tiers,
		tm:          tm,
		expireAfter: expireAfter,
		now:         time.Now,
	}
}

func (b *orderBuilder) CreateOrder(ctx context.Context, input CreateOrderInput) (*model.Order, error) {
	items, err := validateInput(input)
	if err != nil {
		return nil, err
	}

	// 一次读取全部商品
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := b.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*productModel.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.BadRequest("products not found: %s", strings.Join(missing, ", "))
	}

	now := b.now()
	subtotal := decimal.Zero
	orderItems := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		p := byID[it.ProductID]
		if p.TracksStock() && p.Stock < it.Quantity {
			return nil, apperr.BadRequest("insufficient stock for %s", p.Name)
		}
		price := p.EffectivePrice(now)
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		orderItems = append(orderItems, model.OrderItem{
			ProductID: p.ID,
			Quantity:  it.Quantity,
			Price:     price,
		})
	}

	spend, err := b.orders.SumCompletedSpend(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	tierDiscount := b.tiers.Discount(spend, subtotal)

	promoCode := strings.TrimSpace(input.PromoCode)
	if promoCode != "" {
		// 提前试算，给出明确的拒绝原因；事务内 Reserve 会再校验一次
		if _, err := b.promos.Preview(ctx, promoCode, subtotal, input.UserID); err != nil {
			return nil, err
		}
	}

	orderID := uuid.NewString()
	var created *model.Order
	err = b.tm.Do(ctx, nil, func(sess *txn.Session) error {
		promoDiscount := decimal.Zero
		var promoID *string
		var code string
		if promoCode != "" {
			promo, err := b.promos.Reserve(ctx, sess, promoCode, input.UserID, orderID, subtotal)
			if err != nil {
				return err
			}
			promoDiscount = clampPromoDiscount(promoService.ComputeDiscount(promo, subtotal), subtotal, tierDiscount)
			promoID = &promo.ID
			code = promo.Code
		}

		discount := tierDiscount.Add(promoDiscount)
		expiresAt := now.Add(b.expireAfter)
		order := &model.Order{
			OrderNo:       newOrderNo(now),
			UserID:        input.UserID,
			Subtotal:      subtotal,
			TierDiscount:  tierDiscount,
			PromoDiscount: promoDiscount,
			Discount:      discount,
			Total:         subtotal.Sub(discount),
			PromoCodeID:   promoID,
			PromoCode:     code,
			Status:        model.StatusPending,
			PaymentMethod: input.PaymentMethod,
			ExpiresAt:     &expiresAt,
			Items:         orderItems,
		}
		order.ID = orderID

		repo := b.orders.WithTx(sess.DB())
		if err := repo.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		created, err = repo.GetByID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreated.WithLabelValues(string(input.PaymentMethod)).Inc()
	logger.FromContext(ctx).Info("order created",
		zap.String("order_id", created.ID),
		zap.String("order_no", created.OrderNo),
		zap.String("user_id", created.UserID),
		zap.String("total", created.Total.StringFixed(2)),
	)
	return created.Sanitize(), nil
}

// validateInput 校验并合并同一商品的多行，按首次出现顺序返回
func validateInput(input CreateOrderInput) ([]CreateOrderItem, error) {
	if input.UserID == "" {
		return nil, apperr.Validation("userId is required")
	}
	if len(input.Items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}
	if !input.PaymentMethod.Valid() {
		return nil, apperr.Validation("unsupported payment method %q", input.PaymentMethod)
	}

	merged := make([]CreateOrderItem, 0, len(input.Items))
	index := make(map[string]int, len(input.Items))
	for _, it := range input.Items {
		id := strings.TrimSpace(it.ProductID)
		if id == "" {
			return nil, apperr.Validation("productId is required")
		}
		if it.Quantity < 1 {
			return nil, apperr.Validation("quantity must be at least 1")
		}
		if i, ok := index[id]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, CreateOrderItem{ProductID: id, Quantity: it.Quantity})
	}
	return merged, nil
}

// clampPromoDiscount 总折扣不超过小计，订单金额不为负
func clampPromoDiscount(promoDiscount, subtotal, tierDiscount decimal.Decimal) decimal.Decimal {
	room := subtotal.Sub(tierDiscount)
	if room.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(promoDiscount, room)
}

func newOrderNo(now time.Time) string {
	return now.Format("20060102150405") + strings.ToUpper(uuid.NewString()[:8])
}

