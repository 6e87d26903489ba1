package service

import (
	"context"
	"keyshop/internal/domain/notification/model"
	"keyshop/internal/domain/notification/repository"
	"keyshop/pkg/logger"
	"time"

	"go.uber.org/zap"
)

// Relay 定期把滞留的事件重新入队：提交后入队失败、进程重启、SENDING 中途退出
type Relay struct {
	repo       repository.OutboxRepository
	enqueuer   Enqueuer
	interval   time.Duration
	staleAfter time.Duration
	batch      int
}

func NewRelay(repo repository.OutboxRepository, enqueuer Enqueuer, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Relay{
		repo:       repo,
		enqueuer:   enqueuer,
		interval:   interval,
		staleAfter: interval,
		batch:      200,
	}
}

// Run 阻塞直到 ctx 取消
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.RunOnce(ctx, time.Now()); err != nil {
				logger.Log.Error("outbox relay failed", zap.Error(err))
			} else if n > 0 {
				logger.Log.Info("outbox relay requeued events", zap.Int("count", n))
			}
		}
	}
}

// RunOnce 返回重新入队的数量
func (r *Relay) RunOnce(ctx context.Context, now time.Time) (int, error) {
	before := now.Add(-r.staleAfter)
	stale, err := r.repo.FindStale(ctx, before, r.batch)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, ev := range stale {
		if ev.Status == model.OutboxSending {
			ok, err := r.repo.ResetStale(ctx, ev.ID, before)
			if err != nil {
				return n, err
			}
			if !ok {
				continue
			}
		}
		if r.enqueuer.Enqueue(ev.ID) {
			n++
		}
	}
	return n, nil
}
