package repository

import (
	"context"
	"keyshop/internal/domain/notification/model"
	"time"

	"gorm.io/gorm"
)

// OutboxRepository 派发状态同样通过条件更新迁移，多个 worker 抢同一行时只有一个成功
type OutboxRepository interface {
	WithTx(tx *gorm.DB) OutboxRepository
	Create(ctx context.Context, ev *model.OutboxEvent) error
	GetByID(ctx context.Context, id string) (*model.OutboxEvent, error)
	Claim(ctx context.Context, id string) (bool, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) (bool, error)
	Release(ctx context.Context, id string, lastErr string) (bool, error)
	MarkFailed(ctx context.Context, id string, lastErr string) (bool, error)
	ResetStale(ctx context.Context, id string, before time.Time) (bool, error)
	FindStale(ctx context.Context, before time.Time, limit int) ([]model.OutboxEvent, error)
}

type outboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) WithTx(tx *gorm.DB) OutboxRepository {
	return &outboxRepository{db: tx}
}

func (r *outboxRepository) Create(ctx context.Context, ev *model.OutboxEvent) error {
	return r.db.WithContext(ctx).Create(ev).Error
}

func (r *outboxRepository) GetByID(ctx context.Context, id string) (*model.OutboxEvent, error) {
	var ev model.OutboxEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ev).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

// Claim PENDING -> SENDING
func (r *outboxRepository) Claim(ctx context.Context, id string) (bool, error) {
	return r.move(ctx, id, model.OutboxPending, map[string]interface{}{
		"status":   model.OutboxSending,
		"attempts": gorm.Expr("attempts + 1"),
	})
}

// MarkDispatched SENDING -> DISPATCHED
func (r *outboxRepository) MarkDispatched(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.move(ctx, id, model.OutboxSending, map[string]interface{}{
		"status":        model.OutboxDispatched,
		"dispatched_at": at,
		"last_error":    "",
	})
}

// Release SENDING -> PENDING，等待下一次派发
func (r *outboxRepository) Release(ctx context.Context, id string, lastErr string) (bool, error) {
	return r.move(ctx, id, model.OutboxSending, map[string]interface{}{
		"status":     model.OutboxPending,
		"last_error": lastErr,
	})
}

// MarkFailed SENDING -> FAILED
func (r *outboxRepository) MarkFailed(ctx context.Context, id string, lastErr string) (bool, error) {
	return r.move(ctx, id, model.OutboxSending, map[string]interface{}{
		"status":     model.OutboxFailed,
		"last_error": lastErr,
	})
}

// ResetStale 卡在 SENDING 超时的事件退回 PENDING
func (r *outboxRepository) ResetStale(ctx context.Context, id string, before time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ? AND status = ? AND updated_at < ?", id, model.OutboxSending, before).
		Update("status", model.OutboxPending)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *outboxRepository) move(ctx context.Context, id string, from model.OutboxStatus, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindStale 长时间停留在 PENDING/SENDING 的事件，进程重启或入队失败后由 Relay 捡回
func (r *outboxRepository) FindStale(ctx context.Context, before time.Time, limit int) ([]model.OutboxEvent, error) {
	var list []model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []model.OutboxStatus{model.OutboxPending, model.OutboxSending}, before).
		Order("created_at asc").
		Limit(limit).
		Find(&list).Error
	return list, err
}
