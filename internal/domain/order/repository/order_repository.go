package repository

import (
	"context"
	"keyshop/internal/domain/order/model"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository 订单状态只能通过带前置状态条件的更新迁移
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Order, int64, error)
	Transition(ctx context.Context, id string, from []model.Status, updates map[string]interface{}) (bool, error)
	TransitionForUser(ctx context.Context, id, userID string, from []model.Status, updates map[string]interface{}) (bool, error)
	AttachPayment(ctx context.Context, id, channel, ref string) (bool, error)
	SumCompletedSpend(ctx context.Context, userID string) (decimal.Decimal, error)
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Order, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) WithTx(tx *gorm.DB) OrderRepository {
	return &orderRepository{db: tx}
}

// Create 写入订单和明细，不级联写商品
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		if err := db.Omit(clause.Associations).Create(&order.Items[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Order{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Preload("Items").
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("created_at desc").Offset(offset).Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// Transition 条件迁移：只有当前状态属于 from 时才更新，返回是否命中
func (r *orderRepository) Transition(ctx context.Context, id string, from []model.Status, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TransitionForUser 同 Transition，额外要求订单属于该用户
func (r *orderRepository) TransitionForUser(ctx context.Context, id, userID string, from []model.Status, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND user_id = ? AND status IN ?", id, userID, from).
		Updates(updates)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AttachPayment 只给仍在待支付的订单记录网关流水
func (r *orderRepository) AttachPayment(ctx context.Context, id, channel, ref string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"payment_method":  model.PaymentExternal,
			"payment_channel": channel,
			"payment_ref":     ref,
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SumCompletedSpend 用户已完成订单的累计实付金额
func (r *orderRepository) SumCompletedSpend(ctx context.Context, userID string) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	row := r.db.WithContext(ctx).Model(&model.Order{}).
		Select("SUM(total)").
		Where("user_id = ? AND status = ?", userID, model.StatusCompleted).
		Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// FindExpiredPending 超时未支付的订单
func (r *orderRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", model.StatusPending, now).
		Order("expires_at asc").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
