//go:build integration

package testutil

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// EnvPostgresDSN 集成测试使用的 PostgreSQL 连接串，key=value 形式，例如
// "host=localhost user=postgres password=postgres dbname=keyshop_test sslmode=disable"
const EnvPostgresDSN = "KEYSHOP_TEST_POSTGRES_DSN"

// NewPostgresTestDB 在真实 PostgreSQL 上为每个测试建独立 schema，连接池不限单连接，
// 并发事务真正交错执行。未设置 KEYSHOP_TEST_POSTGRES_DSN 时跳过。
func NewPostgresTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv(EnvPostgresDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvPostgresDSN)
	}

	admin, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	schema := fmt.Sprintf("keyshop_it_%d_%d", time.Now().UnixNano(), atomic.AddInt64(&dbSeq, 1))
	require.NoError(t, admin.Exec("CREATE SCHEMA "+schema).Error)

	db, err := gorm.Open(postgres.Open(dsn+" search_path="+schema), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(20)

	t.Cleanup(func() {
		_ = sqlDB.Close()
		_ = admin.Exec("DROP SCHEMA " + schema + " CASCADE").Error
		if adminDB, err := admin.DB(); err == nil {
			_ = adminDB.Close()
		}
	})

	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}
