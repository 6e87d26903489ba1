package repository

import (
	"context"
	"keyshop/internal/domain/wallet/model"

	"gorm.io/gorm"
)

type TransactionRepository interface {
	WithTx(tx *gorm.DB) TransactionRepository
	Append(ctx context.Context, t *model.Transaction) error
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Transaction, int64, error)
	CountByOrder(ctx context.Context, orderID string, typ model.TransactionType) (int64, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) WithTx(tx *gorm.DB) TransactionRepository {
	return &transactionRepository{db: tx}
}

// Append 追加一条流水
func (r *transactionRepository) Append(ctx context.Context, t *model.Transaction) error {
	if t.Status == "" {
		t.Status = model.StatusCompleted
	}
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Transaction, int64, error) {
	var list []model.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Transaction{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *transactionRepository) CountByOrder(ctx context.Context, orderID string, typ model.TransactionType) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("order_id = ? AND type = ?", orderID, typ).
		Count(&count).Error
	return count, err
}
