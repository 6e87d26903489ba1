package service

import (
	"context"
	licenseModel "keyshop/internal/domain/license/model"
	notificationModel "keyshop/internal/domain/notification/model"
	"keyshop/internal/domain/order/model"
	productModel "keyshop/internal/domain/product/model"
	promoModel "keyshop/internal/domain/promo/model"
	walletModel "keyshop/internal/domain/wallet/model"
	"keyshop/internal/pkg/apperr"
	"keyshop/internal/pkg/testutil"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionEngine_PointsAndLicenses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "0")
	p := testutil.SeedProduct(t, f.db, "plugin", dec("25"), 5, 10)

	order, err := f.builder.CreateOrder(ctx, CreateOrderInput{
		UserID: u.ID, PaymentMethod: model.PaymentExternal,
		Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	completed, err := f.engine.CompleteOrder(ctx, order.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)
	assert.Empty(t, completed.Items[0].Product.FileKey)

	assert.Equal(t, int64(20), f.reloadUser(t, u.ID).Points)
	assert.Equal(t, int64(1), f.count(t, &walletModel.Transaction{}, "order_id = ? AND type = ?", order.ID, walletModel.TypePointsEarned))
	assert.Equal(t, int64(2), f.count(t, &licenseModel.License{}, "order_id = ?", order.ID))
	assert.Equal(t, int64(1), f.count(t, &notificationModel.Notification{}, "user_id = ?", u.ID))

	var stock productModel.Product
	require.NoError(t, f.db.First(&stock, "id = ?", p.ID).Error)
	assert.Equal(t, 3, stock.Stock)

	// 1 个订单事件 + 2 个授权码事件，提交后入队
	assert.Equal(t, int64(3), f.count(t, &notificationModel.OutboxEvent{}, "aggregate_id = ?", order.ID))
	assert.Equal(t, 3, f.enqueued.Count())
}

func TestCompletionEngine_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "0")
	p := testutil.SeedProduct(t, f.db, "tool", dec("10"), -1, 5)

	order, err := f.builder.CreateOrder(ctx, CreateOrderInput{
		UserID: u.ID, PaymentMethod: model.PaymentExternal,
		Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 3}},
	})
	require.NoError(t, err)

	const triggers = 8
	var wg sync.WaitGroup
	errs := make([]error, triggers)
	for i := 0; i < triggers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.CompleteOrder(ctx, order.ID, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, model.StatusCompleted, f.reload(t, order.ID).Status)
	assert.Equal(t, int64(3), f.count(t, &licenseModel.License{}, "order_id = ?", order.ID))
	assert.Equal(t, int64(15), f.reloadUser(t, u.ID).Points)
	assert.Equal(t, int64(1), f.count(t, &walletModel.Transaction{}, "order_id = ? AND type = ?", order.ID, walletModel.TypePointsEarned))

	// 完成后再次触发返回原订单
	again, err := f.engine.CompleteOrder(ctx, order.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, again.Status)
}

func TestCompletionEngine_StockAdmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := testutil.SeedProduct(t, f.db, "last-one", dec("10"), 1, 0)

	var orderIDs []string
	for i := 0; i < 2; i++ {
		u := f.user(t, "0")
		o, err := f.builder.CreateOrder(ctx, CreateOrderInput{
			UserID: u.ID, PaymentMethod: model.PaymentExternal,
			Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
		})
		require.NoError(t, err)
		orderIDs = append(orderIDs, o.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(orderIDs))
	for i, id := range orderIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.engine.CompleteOrder(ctx, id, nil)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		if err == nil {
			succeeded++
			assert.Equal(t, model.StatusCompleted, f.reload(t, orderIDs[i]).Status)
			continue
		}
		assert.True(t, apperr.IsBadRequest(err))
		assert.Contains(t, err.Error(), "insufficient stock for last-one")
		assert.Equal(t, model.StatusPending, f.reload(t, orderIDs[i]).Status)
		assert.Zero(t, f.count(t, &licenseModel.License{}, "order_id = ?", orderIDs[i]))
	}
	assert.Equal(t, 1, succeeded)

	var stock productModel.Product
	require.NoError(t, f.db.First(&stock, "id = ?", p.ID).Error)
	assert.Zero(t, stock.Stock)
}

func TestCompletionEngine_RollbackOnSecondItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "0")
	first := testutil.SeedProduct(t, f.db, "first", dec("10"), 5, 10)
	second := testutil.SeedProduct(t, f.db, "second", dec("10"), 5, 10)

	order, err := f.builder.CreateOrder(ctx, CreateOrderInput{
		UserID: u.ID, PaymentMethod: model.PaymentExternal,
		Items: []CreateOrderItem{{ProductID: first.ID, Quantity: 1}, {ProductID: second.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	// 下单后第二个商品被买光
	require.NoError(t, f.db.Model(&productModel.Product{}).Where("id = ?", second.ID).Update("stock", 1).Error)

	_, err = f.engine.CompleteOrder(ctx, order.ID, nil)
	require.Error(t, err)
	assert.True(t, apperr.IsBadRequest(err))
	assert.Contains(t, err.Error(), "insufficient stock for second")

	assert.Equal(t, model.StatusPending, f.reload(t, order.ID).Status)
	assert.Zero(t, f.count(t, &licenseModel.License{}, "order_id = ?", order.ID))
	assert.Zero(t, f.reloadUser(t, u.ID).Points)
	assert.Zero(t, f.count(t, &walletModel.Transaction{}, "order_id = ?", order.ID))
	assert.Zero(t, f.count(t, &notificationModel.OutboxEvent{}, "aggregate_id = ?", order.ID))
	assert.Zero(t, f.enqueued.Count())

	var p productModel.Product
	require.NoError(t, f.db.First(&p, "id = ?", first.ID).Error)
	assert.Equal(t, 5, p.Stock)
}

func TestCompletionEngine_PromoRedeemed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "0")
	p := testutil.SeedProduct(t, f.db, "bundle", dec("200"), -1, 0)
	f.promo(t, promoModel.PromoCode{Code: "TEN", DiscountType: promoModel.DiscountFixed, DiscountValue: dec("10")})

	order, err := f.builder.CreateOrder(ctx, CreateOrderInput{
		UserID: u.ID, PaymentMethod: model.PaymentExternal, PromoCode: "TEN",
		Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.engine.CompleteOrder(ctx, order.ID, nil)
	require.NoError(t, err)

	var usage promoModel.PromoCodeUsage
	require.NoError(t, f.db.Where("order_id = ?", order.ID).First(&usage).Error)
	assert.NotNil(t, usage.RedeemedAt)
}

func TestCompletionEngine_NotFoundAndCancelled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.CompleteOrder(ctx, uuid.NewString(), nil)
	assert.True(t, apperr.IsNotFound(err))

	u := f.user(t, "0")
	p := testutil.SeedProduct(t, f.db, "gone", dec("10"), -1, 0)
	order, err := f.builder.CreateOrder(ctx, CreateOrderInput{
		UserID: u.ID, PaymentMethod: model.PaymentExternal,
		Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = f.service.Cancel(ctx, u.ID, order.ID)
	require.NoError(t, err)

	// 已取消的订单不会被完成
	got, err := f.engine.CompleteOrder(ctx, order.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Zero(t, f.count(t, &licenseModel.License{}, "order_id = ?", order.ID))
}
