package service

import (
	"context"
	"keyshop/internal/domain/order/model"
	promoModel "keyshop/internal/domain/promo/model"
	userModel "keyshop/internal/domain/user/model"
	"keyshop/internal/pkg/apperr"
	"keyshop/internal/pkg/testutil"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderService_PromoAdmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := testutil.SeedProduct(t, f.db, "starter", dec("100"), -1, 0)
	promo := f.promo(t, promoModel.PromoCode{
		Code: "LAUNCH", DiscountType: promoModel.DiscountPercentage, DiscountValue: dec("10"), UsageLimit: intPtr(10),
	})

	const buyers = 50
	users := make([]*userModel.User, buyers)
	for i := range users {
		users[i] = f.user(t, "0")
	}

	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i, u := range users {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, errs[i] = f.service.PlaceOrder(ctx, CreateOrderInput{
				UserID: userID, PaymentMethod: model.PaymentExternal, PromoCode: "launch",
				Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
			})
		}(i, u.ID)
	}
	wg.Wait()

	ok, rejected := 0, 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		rejected++
		assert.True(t, apperr.IsBadRequest(err))
		assert.Contains(t, err.Error(), "usage limit reached")
	}
	assert.Equal(t, 10, ok)
	assert.Equal(t, 40, rejected)

	var reloaded promoModel.PromoCode
	require.NoError(t, f.db.First(&reloaded, "id = ?", promo.ID).Error)
	assert.Equal(t, 10, reloaded.UsedCount)
	assert.Equal(t, int64(10), f.count(t, &model.Order{}, "promo_code_id = ?", promo.ID))
}

func TestOrderService_PlaceOrderWithBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "50")
	p := testutil.SeedProduct(t, f.db, "sdk", dec("20"), -1, 0)

	order, err := f.service.PlaceOrder(ctx, CreateOrderInput{
		UserID: u.ID, PaymentMethod: model.PaymentBalance,
		Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, order.Status)
	assert.True(t, dec("10").Equal(f.reloadUser(t, u.ID).Balance))

	// 余额不足时订单已创建，保持待支付
	_, err = f.service.PlaceOrder(ctx, CreateOrderInput{
		UserID: u.ID, PaymentMethod: model.PaymentBalance,
		Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
	})
	assert.True(t, apperr.IsBadRequest(err))
	assert.Equal(t, int64(1), f.count(t, &model.Order{}, "user_id = ? AND status = ?", u.ID, model.StatusPending))
}

func TestOrderService_GetAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "0")
	other := f.user(t, "0")
	p := testutil.SeedProduct(t, f.db, "addon", dec("9.99"), -1, 0)

	order, err := f.service.PlaceOrder(ctx, CreateOrderInput{
		UserID: owner.ID, PaymentMethod: model.PaymentExternal,
		Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	got, err := f.service.Get(ctx, owner.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNo, got.OrderNo)

	_, err = f.service.Get(ctx, other.ID, order.ID)
	assert.True(t, apperr.IsNotFound(err))

	// 管理员不限归属
	_, err = f.service.Get(ctx, "", order.ID)
	assert.NoError(t, err)

	list, total, err := f.service.List(ctx, owner.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Items, 1)

	_, total, err = f.service.List(ctx, other.ID, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestOrderService_CancelReleasesPromo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "0")
	other := f.user(t, "0")
	p := testutil.SeedProduct(t, f.db, "plan", dec("100"), -1, 0)
	promo := f.promo(t, promoModel.PromoCode{
		Code: "ONCE", DiscountType: promoModel.DiscountFixed, DiscountValue: dec("20"), UsageLimit: intPtr(1),
	})

	order, err := f.service.PlaceOrder(ctx, CreateOrderInput{
		UserID: u.ID, PaymentMethod: model.PaymentExternal, PromoCode: "ONCE",
		Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.True(t, dec("80").Equal(order.Total))

	_, err = f.service.Cancel(ctx, other.ID, order.ID)
	assert.True(t, apperr.IsNotFound(err))

	cancelled, err := f.service.Cancel(ctx, u.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	var reloaded promoModel.PromoCode
	require.NoError(t, f.db.First(&reloaded, "id = ?", promo.ID).Error)
	assert.Zero(t, reloaded.UsedCount)
	assert.Zero(t, f.count(t, &promoModel.PromoCodeUsage{}, "order_id = ?", order.ID))

	_, err = f.service.Cancel(ctx, u.ID, order.ID)
	assert.True(t, apperr.IsBadRequest(err))

	// 名额已归还，同一用户可以再次使用
	_, err = f.service.PlaceOrder(ctx, CreateOrderInput{
		UserID: u.ID, PaymentMethod: model.PaymentExternal, PromoCode: "ONCE",
		Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
	})
	assert.NoError(t, err)
}

func TestOrderService_CancelCompletedOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "100")
	p := testutil.SeedProduct(t, f.db, "license", dec("10"), -1, 0)

	order, err := f.service.PlaceOrder(ctx, CreateOrderInput{
		UserID: u.ID, PaymentMethod: model.PaymentBalance,
		Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.service.Cancel(ctx, u.ID, order.ID)
	assert.True(t, apperr.IsBadRequest(err))
	assert.Equal(t, "order can no longer be cancelled", apperr.Message(err))
	assert.Equal(t, model.StatusCompleted, f.reload(t, order.ID).Status)
}

func TestOrderService_ExpirePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "100")
	p := testutil.SeedProduct(t, f.db, "widget", dec("10"), -1, 0)
	f.promo(t, promoModel.PromoCode{Code: "FIVE", DiscountType: promoModel.DiscountFixed, DiscountValue: dec("5")})

	stale, err := f.service.PlaceOrder(ctx, CreateOrderInput{
		UserID: u.ID, PaymentMethod: model.PaymentExternal, PromoCode: "FIVE",
		Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	paid, err := f.service.PlaceOrder(ctx, CreateOrderInput{
		UserID: u.ID, PaymentMethod: model.PaymentBalance,
		Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	n, err := f.service.ExpirePending(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.service.ExpirePending(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, model.StatusCancelled, f.reload(t, stale.ID).Status)
	assert.Equal(t, model.StatusCompleted, f.reload(t, paid.ID).Status)
	assert.Zero(t, f.count(t, &promoModel.PromoCodeUsage{}, "order_id = ?", stale.ID))

	// 过期订单不能再被完成
	got, err := f.engine.CompleteOrder(ctx, stale.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
}
