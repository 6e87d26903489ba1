package service

import (
	"context"
	"keyshop/internal/domain/notification/model"
	"keyshop/internal/domain/notification/repository"
	"keyshop/internal/pkg/apperr"
	"keyshop/internal/pkg/txn"
)

// NotificationService 站内通知
type NotificationService interface {
	Create(ctx context.Context, sess *txn.Session, n *model.Notification) error
	List(ctx context.Context, userID string, offset, limit int) ([]model.Notification, int64, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type notificationService struct {
	repo repository.NotificationRepository
	tm   *txn.Manager
}

func NewNotificationService(repo repository.NotificationRepository, tm *txn.Manager) NotificationService {
	return &notificationService{repo: repo, tm: tm}
}

// Create 在调用方的事务中写入
func (s *notificationService) Create(ctx context.Context, sess *txn.Session, n *model.Notification) error {
	return s.tm.Do(ctx, sess, func(sess *txn.Session) error {
		return s.repo.WithTx(sess.DB()).Create(ctx, n)
	})
}

func (s *notificationService) List(ctx context.Context, userID string, offset, limit int) ([]model.Notification, int64, error) {
	return s.repo.ListByUser(ctx, userID, offset, limit)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id string) error {
	ok, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("notification not found")
	}
	return nil
}
