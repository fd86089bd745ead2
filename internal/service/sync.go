package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"satellite-pos/internal/codec"
	"satellite-pos/internal/ledger"
	"satellite-pos/internal/reconcile"
	"satellite-pos/internal/repository"
	"satellite-pos/internal/shift"
)

type SyncService interface {
	// SyncShift merges the local shift buffer into the canonical store and
	// clears the buffer on confirmed success.
	SyncShift(ctx context.Context) (*reconcile.Counts, error)
	// ExportShift serializes the buffer for out-of-band delivery. The buffer
	// is not cleared; only a confirmed merge clears it.
	ExportShift(ctx context.Context) (string, error)
	// ImportBundle applies an exported bundle to the canonical store under
	// the same rules as SyncShift.
	ImportBundle(ctx context.Context, payload string) (*reconcile.Counts, error)
	PurgeOrdersBefore(ctx context.Context, cutoffMs int64) (int64, error)
	// RefreshWorkingCopy overwrites the local customer working copy from the
	// canonical store.
	RefreshWorkingCopy(ctx context.Context) (int, error)
}

type syncServiceImpl struct {
	remoteDB        *gorm.DB
	remoteOrders    repository.OrderRepository
	remoteCustomers repository.CustomerRepository
	buffer          *shift.Buffer
	localCustomers  repository.CustomerRepository
	pol             ledger.Policy
	timeout         time.Duration
}

func NewSyncService(
	remoteDB *gorm.DB,
	remoteOrders repository.OrderRepository,
	remoteCustomers repository.CustomerRepository,
	buffer *shift.Buffer,
	localCustomers repository.CustomerRepository,
	pol ledger.Policy,
	timeout time.Duration,
) SyncService {
	return &syncServiceImpl{
		remoteDB:        remoteDB,
		remoteOrders:    remoteOrders,
		remoteCustomers: remoteCustomers,
		buffer:          buffer,
		localCustomers:  localCustomers,
		pol:             pol,
		timeout:         timeout,
	}
}

func (s *syncServiceImpl) SyncShift(ctx context.Context) (*reconcile.Counts, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	localOrders, err := s.buffer.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("read shift buffer: %w", err)
	}
	localCustomers, err := s.localCustomers.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read local customers: %w", err)
	}

	counts, err := s.merge(ctx, reconcile.Input{
		Customers: localCustomers,
		Orders:    localOrders,
	})
	if err != nil {
		return nil, err
	}

	// only a confirmed merge clears the buffer; any failure above leaves it
	// intact for a manual retry
	if err := s.buffer.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear shift buffer: %w", err)
	}

	return counts, nil
}

func (s *syncServiceImpl) ExportShift(ctx context.Context) (string, error) {
	orders, err := s.buffer.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("read shift buffer: %w", err)
	}
	return codec.Encode(orders, time.Now())
}

func (s *syncServiceImpl) ImportBundle(ctx context.Context, payload string) (*reconcile.Counts, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	bundle, err := codec.Decode(payload)
	if err != nil {
		return nil, err
	}

	// a bundle is a shift buffer delivered through a side channel, so it
	// goes through the exact same merge as a direct sync
	return s.merge(ctx, reconcile.Input{Orders: bundle.Orders})
}

// merge fetches a fresh remote snapshot, reconciles, and applies the patch
// as one transaction: customer patches first, then new orders.
func (s *syncServiceImpl) merge(ctx context.Context, in reconcile.Input) (*reconcile.Counts, error) {
	remoteCustomers, err := s.remoteCustomers.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch remote customers: %w", err)
	}
	remoteOrders, err := s.remoteOrders.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch remote orders: %w", err)
	}

	res, err := reconcile.Reconcile(in, reconcile.Snapshot{
		Customers: remoteCustomers,
		Orders:    remoteOrders,
	}, s.pol)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	err = s.remoteDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.remoteCustomers.UpsertMany(ctx, tx, res.CustomerUpserts); err != nil {
			return fmt.Errorf("apply customer patches: %w", err)
		}
		if err := s.remoteOrders.InsertNew(ctx, tx, res.NewOrders); err != nil {
			return fmt.Errorf("apply new orders: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &res.Counts, nil
}

func (s *syncServiceImpl) PurgeOrdersBefore(ctx context.Context, cutoffMs int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var purged int64
	err := s.remoteDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		purged, err = s.remoteOrders.PurgeBefore(ctx, tx, cutoffMs)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("purge orders: %w", err)
	}

	return purged, nil
}

func (s *syncServiceImpl) RefreshWorkingCopy(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	customers, err := s.remoteCustomers.FetchAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch remote customers: %w", err)
	}
	if err := s.localCustomers.ReplaceAll(ctx, customers); err != nil {
		return 0, fmt.Errorf("replace working copy: %w", err)
	}

	return len(customers), nil
}
