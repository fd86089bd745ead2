// Package shift is the per-terminal accumulation of orders created while
// disconnected. The buffer lives in the terminal's local sqlite DB so an
// unplugged or crashed terminal loses nothing; it is cleared only after the
// remote store has confirmed a merge.
package shift

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"satellite-pos/internal/model"
	"satellite-pos/internal/repository"
)

type Buffer struct {
	db     *gorm.DB
	orders repository.OrderRepository
}

func NewBuffer(db *gorm.DB) *Buffer {
	return &Buffer{
		db:     db,
		orders: repository.NewOrderRepository(db),
	}
}

// Append adds one order to the unsynced set.
func (b *Buffer) Append(ctx context.Context, order *model.Order) error {
	return b.orders.Create(ctx, b.db, order)
}

// Snapshot returns every unsynced order, oldest first.
func (b *Buffer) Snapshot(ctx context.Context) ([]model.Order, error) {
	return b.orders.FetchAll(ctx)
}

// Len reports how many orders are waiting to sync.
func (b *Buffer) Len(ctx context.Context) (int64, error) {
	var count int64
	err := b.db.WithContext(ctx).Model(&model.Order{}).Count(&count).Error
	return count, err
}

// Clear drops the buffered orders. Callers invoke this only after the remote
// store confirmed the merge batch.
func (b *Buffer) Clear(ctx context.Context) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&model.Order{}).Error
	})
}

// Mode reads the persisted terminal mode; a fresh DB defaults to master.
func (b *Buffer) Mode(ctx context.Context) (model.TerminalMode, error) {
	var state model.TerminalState
	err := b.db.WithContext(ctx).First(&state, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ModeMaster, nil
	}
	if err != nil {
		return "", err
	}
	return state.Mode, nil
}

// SetMode persists the terminal mode.
func (b *Buffer) SetMode(ctx context.Context, mode model.TerminalMode) error {
	return b.db.WithContext(ctx).Save(&model.TerminalState{
		ID:        1,
		Mode:      mode,
		UpdatedAt: time.Now(),
	}).Error
}
