package service

import (
	"context"
	licenseRepo "keyshop/internal/domain/license/repository"
	licenseService "keyshop/internal/domain/license/service"
	"keyshop/internal/domain/loyalty"
	notificationRepo "keyshop/internal/domain/notification/repository"
	notificationService "keyshop/internal/domain/notification/service"
	"keyshop/internal/domain/order/model"
	"keyshop/internal/domain/order/repository"
	productRepo "keyshop/internal/domain/product/repository"
	promoModel "keyshop/internal/domain/promo/model"
	promoRepo "keyshop/internal/domain/promo/repository"
	promoService "keyshop/internal/domain/promo/service"
	userModel "keyshop/internal/domain/user/model"
	userRepo "keyshop/internal/domain/user/repository"
	walletRepo "keyshop/internal/domain/wallet/repository"
	"keyshop/internal/pkg/testutil"
	"keyshop/internal/pkg/txn"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type enqueueRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *enqueueRecorder) Enqueue(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return true
}

func (r *enqueueRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

type fixture struct {
	db       *gorm.DB
	tm       *txn.Manager
	orders   repository.OrderRepository
	builder  OrderBuilder
	engine   CompletionEngine
	balance  BalancePayment
	service  OrderService
	enqueued *enqueueRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.NewTestDB(t))
}

func newFixtureOn(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	tm := txn.NewManager(db)

	orders := repository.NewOrderRepository(db)
	products := productRepo.NewProductRepository(db)
	users := userRepo.NewUserRepository(db)
	ledger := walletRepo.NewTransactionRepository(db)
	promos := promoService.NewPromoLedger(promoRepo.NewPromoRepository(db), tm)
	rec := &enqueueRecorder{}

	builder := NewOrderBuilder(orders, products, promos, loyalty.NewCalculator(nil), tm, 30*time.Minute)
	engine := NewCompletionEngine(CompletionDeps{
		Orders:        orders,
		Products:      products,
		Users:         users,
		Ledger:        ledger,
		Promos:        promos,
		Licenses:      licenseService.NewIssuer(licenseRepo.NewLicenseRepository(db), tm, 3),
		Notifications: notificationService.NewNotificationService(notificationRepo.NewNotificationRepository(db), tm),
		Outbox:        notificationService.NewOutbox(notificationRepo.NewOutboxRepository(db), tm, rec),
		TM:            tm,
	})
	balance := NewBalancePayment(orders, users, ledger, engine, tm)

	return &fixture{
		db:       db,
		tm:       tm,
		orders:   orders,
		builder:  builder,
		engine:   engine,
		balance:  balance,
		service:  NewOrderService(orders, builder, balance, promos, tm),
		enqueued: rec,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) user(t *testing.T, balance string) *userModel.User {
	return testutil.SeedUser(t, f.db, dec(balance))
}

func (f *fixture) reload(t *testing.T, orderID string) *model.Order {
	o, err := f.orders.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	return o
}

func (f *fixture) reloadUser(t *testing.T, id string) *userModel.User {
	var u userModel.User
	require.NoError(t, f.db.Where("id = ?", id).First(&u).Error)
	return &u
}

func (f *fixture) promo(t *testing.T, p promoModel.PromoCode) *promoModel.PromoCode {
	p.Active = true
	require.NoError(t, f.db.Create(&p).Error)
	return &p
}

func (f *fixture) count(t *testing.T, m interface{}, query string, args ...interface{}) int64 {
	var n int64
	require.NoError(t, f.db.Model(m).Where(query, args...).Count(&n).Error)
	return n
}

func intPtr(n int) *int { return &n }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
