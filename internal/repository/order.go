package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"satellite-pos/internal/model"
)

type OrderRepository interface {
	FetchAll(ctx context.Context) ([]model.Order, error)
	FindByOrderID(ctx context.Context, orderID string) (*model.Order, error)
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	// InsertNew writes merge-produced orders; rows whose orderId already
	// exists are left untouched so an interrupted batch is safe to re-run.
	InsertNew(ctx context.Context, tx *gorm.DB, orders []model.Order) error
	MarkApproved(ctx context.Context, tx *gorm.DB, orderID string, pointsEarned, multiplierApplied int) error
	MarkRejected(ctx context.Context, tx *gorm.DB, orderID string) error
	MarkDelivered(ctx context.Context, tx *gorm.DB, orderID string) error
	PurgeBefore(ctx context.Context, tx *gorm.DB, cutoffMs int64) (int64, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) FetchAll(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Order("timestamp_ms").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) FindByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	for i := range order.Items {
		order.Items[i].OrderID = order.OrderID
		order.Items[i].Position = i
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) InsertNew(ctx context.Context, tx *gorm.DB, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	var items []model.OrderItem
	for i := range orders {
		for j := range orders[i].Items {
			item := orders[i].Items[j]
			item.ID = 0
			item.OrderID = orders[i].OrderID
			item.Position = j
			items = append(items, item)
		}
	}

	err := tx.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoNothing: true,
		}).
		Create(&orders).Error
	if err != nil {
		return err
	}

	if len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "position"}},
			DoNothing: true,
		}).
		Create(&items).Error
}

func (r *orderRepoImpl) MarkApproved(ctx context.Context, tx *gorm.DB, orderID string, pointsEarned, multiplierApplied int) error {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where(`
			order_id = ?
			AND status = ?
			AND points_earned = 0
		`,
			orderID,
			model.StatusPending,
		).
		Updates(map[string]interface{}{
			"status":             model.StatusApproved,
			"points_earned":      pointsEarned,
			"multiplier_applied": multiplierApplied,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *orderRepoImpl) MarkRejected(ctx context.Context, tx *gorm.DB, orderID string) error {
	return r.transition(ctx, tx, orderID, []model.OrderStatus{model.StatusPending}, model.StatusRejected)
}

func (r *orderRepoImpl) MarkDelivered(ctx context.Context, tx *gorm.DB, orderID string) error {
	return r.transition(ctx, tx, orderID, []model.OrderStatus{model.StatusApproved}, model.StatusDelivered)
}

func (r *orderRepoImpl) transition(ctx context.Context, tx *gorm.DB, orderID string, from []model.OrderStatus, to model.OrderStatus) error {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where(`
			order_id = ?
			AND status IN ?
		`,
			orderID,
			from,
		).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// PurgeBefore removes order rows older than the cutoff. It deliberately
// leaves every customer counter alone: purge is storage hygiene, not a
// ledger reversal.
func (r *orderRepoImpl) PurgeBefore(ctx context.Context, tx *gorm.DB, cutoffMs int64) (int64, error) {
	var ids []string
	err := tx.WithContext(ctx).Model(&model.Order{}).
		Where("timestamp_ms < ?", cutoffMs).
		Pluck("order_id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := tx.WithContext(ctx).Where("order_id IN ?", ids).Delete(&model.OrderItem{}).Error; err != nil {
		return 0, err
	}

	result := tx.WithContext(ctx).Where("order_id IN ?", ids).Delete(&model.Order{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
