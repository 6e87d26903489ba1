package database

import (
	"context"
	"database/sql"
	"keyshop/pkg/logger"
	"keyshop/pkg/metrics"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PoolMonitor 定期把连接池状态写入 Prometheus，等待连接明显增多时告警
type PoolMonitor struct {
	db             *gorm.DB
	interval       time.Duration
	alertThreshold int64
	lastWaitCount  int64
}

// NewPoolMonitor alertThreshold 为单个周期内允许的等待次数
func NewPoolMonitor(db *gorm.DB, interval time.Duration, alertThreshold int64) *PoolMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &PoolMonitor{db: db, interval: interval, alertThreshold: alertThreshold}
}

// Run 阻塞直到 ctx 取消
func (pm *PoolMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sqlDB, err := pm.db.DB()
			if err != nil {
				logger.Log.Warn("get sql.DB failed", zap.Error(err))
				continue
			}
			pm.Collect(sqlDB.Stats())
		}
	}
}

// Collect 记录一次快照，返回本周期新增的等待次数
func (pm *PoolMonitor) Collect(stats sql.DBStats) int64 {
	metrics.DBPoolConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
	metrics.DBPoolConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	metrics.DBPoolConnections.WithLabelValues("idle").Set(float64(stats.Idle))

	waits := stats.WaitCount - pm.lastWaitCount
	pm.lastWaitCount = stats.WaitCount
	if waits <= 0 {
		return 0
	}
	metrics.DBPoolWaits.Add(float64(waits))

	if pm.alertThreshold > 0 && waits > pm.alertThreshold {
		logger.Log.Warn("database pool saturated",
			zap.Int64("waits", waits),
			zap.Int("in_use", stats.InUse),
			zap.Int("max_open", stats.MaxOpenConnections),
			zap.Duration("wait_duration", stats.WaitDuration),
		)
	}
	return waits
}
