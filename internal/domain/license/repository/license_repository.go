package repository

import (
	"context"
	"keyshop/internal/domain/license/model"

	"gorm.io/gorm"
)

type LicenseRepository interface {
	WithTx(tx *gorm.DB) LicenseRepository
	Create(ctx context.Context, license *model.License) error
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.License, int64, error)
	ListByOrder(ctx context.Context, orderID string) ([]model.License, error)
	CountByOrder(ctx context.Context, orderID string) (int64, error)
}

type licenseRepository struct {
	db *gorm.DB
}

func NewLicenseRepository(db *gorm.DB) LicenseRepository {
	return &licenseRepository{db: db}
}

func (r *licenseRepository) WithTx(tx *gorm.DB) LicenseRepository {
	return &licenseRepository{db: tx}
}

func (r *licenseRepository) Create(ctx context.Context, license *model.License) error {
	return r.db.WithContext(ctx).Create(license).Error
}

func (r *licenseRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.License, int64, error) {
	var licenses []model.License
	var total int64

	query := r.db.WithContext(ctx).Model(&model.License{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&licenses).Error; err != nil {
		return nil, 0, err
	}
	return licenses, total, nil
}

func (r *licenseRepository) ListByOrder(ctx context.Context, orderID string) ([]model.License, error) {
	var licenses []model.License
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at asc").Find(&licenses).Error
	return licenses, err
}

func (r *licenseRepository) CountByOrder(ctx context.Context, orderID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.License{}).Where("order_id = ?", orderID).Count(&count).Error
	return count, err
}
