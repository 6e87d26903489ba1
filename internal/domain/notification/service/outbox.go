package service

import (
	"context"
	"encoding/json"
	"fmt"
	"keyshop/internal/domain/notification/model"
	"keyshop/internal/domain/notification/repository"
	"keyshop/internal/domain/notification/sink"
	"keyshop/internal/pkg/txn"
)

// Enqueuer 接收已提交的 outbox 事件 ID
type Enqueuer interface {
	Enqueue(id string) bool
}

// Outbox 与业务写入同事务落库，提交后交给派发器
type Outbox struct {
	repo     repository.OutboxRepository
	tm       *txn.Manager
	enqueuer Enqueuer
}

// NewOutbox enqueuer 为 nil 时事件只落库，由 Relay 捡起
func NewOutbox(repo repository.OutboxRepository, tm *txn.Manager, enqueuer Enqueuer) *Outbox {
	return &Outbox{repo: repo, tm: tm, enqueuer: enqueuer}
}

// Stage 写入事件并注册提交后回调，回滚时事件随事务一起消失
func (o *Outbox) Stage(ctx context.Context, sess *txn.Session, eventType, aggregateID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}

	return o.tm.Do(ctx, sess, func(sess *txn.Session) error {
		ev := &model.OutboxEvent{
			Type:        eventType,
			AggregateID: aggregateID,
			Payload:     string(raw),
			Status:      model.OutboxPending,
		}
		if err := o.repo.WithTx(sess.DB()).Create(ctx, ev); err != nil {
			return err
		}
		if o.enqueuer != nil {
			sess.AfterCommit(func() { o.enqueuer.Enqueue(ev.ID) })
		}
		return nil
	})
}

// StageOrderConfirmed 订单完成事件
func (o *Outbox) StageOrderConfirmed(ctx context.Context, sess *txn.Session, ev sink.OrderConfirmed) error {
	return o.Stage(ctx, sess, model.TypeOrderConfirmed, ev.OrderID, ev)
}

// StageLicenseIssued 授权码签发事件
func (o *Outbox) StageLicenseIssued(ctx context.Context, sess *txn.Session, ev sink.LicenseIssued) error {
	return o.Stage(ctx, sess, model.TypeLicenseIssued, ev.OrderID, ev)
}
