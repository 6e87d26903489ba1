//go:build integration

package service

import (
	"context"
	"keyshop/internal/domain/order/model"
	promoModel "keyshop/internal/domain/promo/model"
	"keyshop/internal/pkg/apperr"
	"keyshop/internal/pkg/testutil"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 真实 PostgreSQL 上并发下单，50 人争 10 个名额，依赖行锁下的条件 UPDATE
func TestOrderService_PromoAdmissionPostgres(t *testing.T) {
	ctx := context.Background()
	f := newFixtureOn(t, testutil.NewPostgresTestDB(t))
	p := testutil.SeedProduct(t, f.db, "starter", dec("100"), 20, 0)
	promo := f.promo(t, promoModel.PromoCode{
		Code: "LAUNCH", DiscountType: promoModel.DiscountFixed, DiscountValue: dec("5"), UsageLimit: intPtr(10),
	})

	const buyers = 50
	userIDs := make([]string, buyers)
	for i := range userIDs {
		userIDs[i] = f.user(t, "1000").ID
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i, id := range userIDs {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			<-start
			_, errs[i] = f.service.PlaceOrder(ctx, CreateOrderInput{
				UserID: userID, PaymentMethod: model.PaymentBalance, PromoCode: "LAUNCH",
				Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
			})
		}(i, id)
	}
	close(start)
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, apperr.IsBadRequest(err), err)
	}
	assert.Equal(t, 10, ok)

	var reloaded promoModel.PromoCode
	require.NoError(t, f.db.First(&reloaded, "id = ?", promo.ID).Error)
	assert.Equal(t, 10, reloaded.UsedCount)
	assert.Equal(t, int64(10), f.count(t, &model.Order{}, "promo_code_id = ? AND status = ?", promo.ID, model.StatusCompleted))
	assert.Equal(t, int64(10), f.count(t, &promoModel.PromoCodeUsage{}, "promo_code_id = ? AND redeemed_at IS NOT NULL", promo.ID))

	var stock int
	require.NoError(t, f.db.Table("products").Select("stock").Where("id = ?", p.ID).Scan(&stock).Error)
	assert.Equal(t, 10, stock)
}
