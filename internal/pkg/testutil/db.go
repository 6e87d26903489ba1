// Package testutil 为服务层测试提供内存数据库。
package testutil

import (
	"fmt"
	licenseModel "keyshop/internal/domain/license/model"
	notificationModel "keyshop/internal/domain/notification/model"
	orderModel "keyshop/internal/domain/order/model"
	productModel "keyshop/internal/domain/product/model"
	promoModel "keyshop/internal/domain/promo/model"
	userModel "keyshop/internal/domain/user/model"
	walletModel "keyshop/internal/domain/wallet/model"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq int64

// NewTestDB 每个测试一个独立的内存 SQLite，单连接，事务串行执行
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:keyshop_%d?mode=memory&cache=shared&_pragma=busy_timeout(5000)", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

// Models 测试库需要建表的全部模型
func Models() []interface{} {
	return []interface{}{
		&userModel.User{},
		&productModel.Product{},
		&promoModel.PromoCode{},
		&promoModel.PromoCodeUsage{},
		&orderModel.Order{},
		&orderModel.OrderItem{},
		&licenseModel.License{},
		&walletModel.Transaction{},
		&notificationModel.Notification{},
		&notificationModel.OutboxEvent{},
	}
}

// SeedUser 创建测试用户
func SeedUser(t *testing.T, db *gorm.DB, balance decimal.Decimal) *userModel.User {
	t.Helper()
	u := &userModel.User{
		Username: "user_" + uuid.NewString()[:8],
		Email:    uuid.NewString()[:8] + "@example.com",
		Role:     userModel.RoleUser,
		Balance:  balance,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// SeedProduct 创建测试商品，stock = -1 表示不限库存
func SeedProduct(t *testing.T, db *gorm.DB, name string, price decimal.Decimal, stock int, rewardPoints int64) *productModel.Product {
	t.Helper()
	p := &productModel.Product{
		Name:         name,
		Price:        price,
		Stock:        stock,
		RewardPoints: rewardPoints,
		FileKey:      "files/" + name + ".zip",
		Active:       true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
