package service

import (
	"context"
	"encoding/json"
	"fmt"
	"keyshop/internal/domain/notification/model"
	"keyshop/internal/domain/notification/repository"
	"keyshop/internal/domain/notification/sink"
	"keyshop/internal/pkg/worker"
	"keyshop/pkg/logger"
	"keyshop/pkg/metrics"
	"time"

	"go.uber.org/zap"
)

// Dispatcher 从 outbox 认领事件并调用下游渠道。
// 认领是 PENDING -> SENDING 的条件更新，重复入队的同一事件只会被投递一次。
type Dispatcher struct {
	repo        repository.OutboxRepository
	sink        sink.Sink
	pool        *worker.WorkerPool
	maxAttempts int
	timeout     time.Duration
}

func NewDispatcher(repo repository.OutboxRepository, s sink.Sink, workers, buffer, maxAttempts int) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	d := &Dispatcher{
		repo:        repo,
		sink:        s,
		maxAttempts: maxAttempts,
		timeout:     10 * time.Second,
	}
	d.pool = worker.NewWorkerPool(d.handle, workers, buffer)
	d.pool.MaxRetry = maxAttempts
	d.pool.OnDeadLetter(func(task worker.Task, err error) {
		// 行仍是 PENDING，Relay 会重新入队
		logger.Log.Warn("outbox event left for relay", zap.String("event_id", task.ID), zap.Error(err))
	})
	return d
}

func (d *Dispatcher) Start() { d.pool.Start() }

func (d *Dispatcher) Stop() { d.pool.Stop() }

// Enqueue 非阻塞
func (d *Dispatcher) Enqueue(id string) bool {
	return d.pool.AddTask(worker.Task{ID: id})
}

func (d *Dispatcher) handle(ctx context.Context, task worker.Task) error {
	return d.Dispatch(ctx, task.ID)
}

// Dispatch 投递单个事件。返回错误表示需要稍后重试
func (d *Dispatcher) Dispatch(ctx context.Context, id string) error {
	claimed, err := d.repo.Claim(ctx, id)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	ev, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	deliverErr := d.deliver(sendCtx, ev)
	cancel()

	if deliverErr == nil {
		if _, err := d.repo.MarkDispatched(ctx, id, time.Now()); err != nil {
			return err
		}
		metrics.OutboxDispatches.WithLabelValues(ev.Type, "dispatched").Inc()
		return nil
	}

	if ev.Attempts >= d.maxAttempts {
		metrics.OutboxDispatches.WithLabelValues(ev.Type, "failed").Inc()
		logger.Log.Error("outbox event failed permanently",
			zap.String("event_id", id),
			zap.String("type", ev.Type),
			zap.Int("attempts", ev.Attempts),
			zap.Error(deliverErr),
		)
		_, err := d.repo.MarkFailed(ctx, id, deliverErr.Error())
		return err
	}

	metrics.OutboxDispatches.WithLabelValues(ev.Type, "retry").Inc()
	if _, err := d.repo.Release(ctx, id, deliverErr.Error()); err != nil {
		return err
	}
	return deliverErr
}

func (d *Dispatcher) deliver(ctx context.Context, ev *model.OutboxEvent) error {
	switch ev.Type {
	case model.TypeOrderConfirmed:
		var payload sink.OrderConfirmed
		if err := json.Unmarshal([]byte(ev.Payload), &payload); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return d.sink.NotifyOrderConfirmed(ctx, payload)
	case model.TypeLicenseIssued:
		var payload sink.LicenseIssued
		if err := json.Unmarshal([]byte(ev.Payload), &payload); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return d.sink.NotifyLicenseIssued(ctx, payload)
	default:
		return fmt.Errorf("unknown outbox event type %q", ev.Type)
	}
}
