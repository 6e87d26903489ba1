package service

import (
	"context"
	"fmt"
	"keyshop/internal/domain/license/model"
	"keyshop/internal/domain/license/repository"
	"keyshop/internal/pkg/txn"
	"keyshop/pkg/database"
	"keyshop/pkg/logger"
	"keyshop/pkg/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultKeyAttempts = 3

// Issuer 授权码签发
type Issuer interface {
	Issue(ctx context.Context, sess *txn.Session, userID, productID, orderID string) (*model.License, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.License, int64, error)
	ListByOrder(ctx context.Context, orderID string) ([]model.License, error)
}

type issuer struct {
	repo     repository.LicenseRepository
	tm       *txn.Manager
	generate KeyGenerator
	attempts int
}

// NewIssuer attempts 为唯一冲突时的最大尝试次数
func NewIssuer(repo repository.LicenseRepository, tm *txn.Manager, attempts int) Issuer {
	return NewIssuerWithGenerator(repo, tm, attempts, GenerateKey)
}

func NewIssuerWithGenerator(repo repository.LicenseRepository, tm *txn.Manager, attempts int, gen KeyGenerator) Issuer {
	if attempts < 1 {
		attempts = defaultKeyAttempts
	}
	return &issuer{repo: repo, tm: tm, generate: gen, attempts: attempts}
}

// Issue 每次尝试放在独立的 savepoint 中，冲突回滚到 savepoint 后换新 key 重试，外层事务不受影响
func (s *issuer) Issue(ctx context.Context, sess *txn.Session, userID, productID, orderID string) (*model.License, error) {
	var issued *model.License
	err := s.tm.Do(ctx, sess, func(sess *txn.Session) error {
		for attempt := 1; attempt <= s.attempts; attempt++ {
			key, err := s.generate()
			if err != nil {
				return fmt.Errorf("generate license key: %w", err)
			}

			license := &model.License{
				UserID:      userID,
				ProductID:   productID,
				OrderID:     orderID,
				Key:         key,
				Status:      model.StatusActive,
				IPWhitelist: model.StringList{},
			}
			err = sess.DB().Transaction(func(tx *gorm.DB) error {
				return s.repo.WithTx(tx).Create(ctx, license)
			})
			if err == nil {
				issued = license
				metrics.LicensesIssued.Inc()
				return nil
			}
			if !database.IsDuplicateKey(err) {
				return err
			}

			metrics.LicenseKeyCollisions.Inc()
			logger.Log.Warn("license key collision, retrying",
				zap.String("order_id", orderID),
				zap.Int("attempt", attempt),
			)
		}
		return fmt.Errorf("license key collision after %d attempts", s.attempts)
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

func (s *issuer) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.License, int64, error) {
	return s.repo.ListByUser(ctx, userID, offset, limit)
}

func (s *issuer) ListByOrder(ctx context.Context, orderID string) ([]model.License, error) {
	return s.repo.ListByOrder(ctx, orderID)
}
