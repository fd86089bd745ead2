package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"satellite-pos/internal/codec"
	"satellite-pos/internal/dto"
	"satellite-pos/internal/ledger"
	"satellite-pos/internal/model"
	"satellite-pos/internal/phone"
	"satellite-pos/internal/repository"
)

type OrderService interface {
	Create(ctx context.Context, req *dto.CreateOrderRequest, operator string) (*model.Order, error)
	Get(ctx context.Context, orderID string) (*model.Order, error)
	Approve(ctx context.Context, orderID string) error
	Reject(ctx context.Context, orderID string) error
	MarkDelivered(ctx context.Context, orderID string) error
}

// orderServiceImpl operates on the terminal's authoritative store: the local
// DB (shift buffer + working copy) in satellite mode, the canonical store in
// master mode. The logic is identical either way; only the wiring differs.
type orderServiceImpl struct {
	db           *gorm.DB
	orderRepo    repository.OrderRepository
	customerRepo repository.CustomerRepository
	pol          ledger.Policy
}

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	customerRepo repository.CustomerRepository,
	pol ledger.Policy,
) OrderService {
	return &orderServiceImpl{
		db:           db,
		orderRepo:    orderRepo,
		customerRepo: customerRepo,
		pol:          pol,
	}
}

func (s *orderServiceImpl) Create(ctx context.Context, req *dto.CreateOrderRequest, operator string) (*model.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("order has no items")
	}

	subtotal := decimal.Zero
	items := make([]model.OrderItem, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item quantity must be positive")
		}
		subtotal = subtotal.Add(item.UnitPriceUsd.Mul(decimal.NewFromInt(int64(item.Quantity))))
		items[i] = model.OrderItem{
			Position:        i,
			Name:            item.Name,
			Quantity:        item.Quantity,
			UnitPriceUsd:    item.UnitPriceUsd,
			SelectedOptions: item.SelectedOptions,
		}
	}
	if req.BalanceUsedUsd.GreaterThan(subtotal) {
		return nil, fmt.Errorf("balance_used_usd exceeds order subtotal")
	}

	order := &model.Order{
		OrderID:        uuid.NewString(),
		CustomerPhone:  phone.Normalize(req.CustomerPhone),
		Status:         model.StatusPending,
		TimestampMs:    time.Now().UnixMilli(),
		TotalUsd:       subtotal.Add(req.DeliveryFeeUsd),
		DeliveryMethod: model.DeliveryMethod(req.DeliveryMethod),
		DeliveryFeeUsd: req.DeliveryFeeUsd,
		BalanceUsedUsd: req.BalanceUsedUsd,
		ProcessedBy:    operator,
		Items:          items,
	}
	// same shape gate the bundle import uses
	if err := codec.ValidateOrder(order); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order: %w", err)
		}
		if req.PreApproved {
			// goods already handed over against payment
			if err := s.approveInTx(ctx, tx, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.orderRepo.FindByOrderID(ctx, order.OrderID)
}

func (s *orderServiceImpl) Get(ctx context.Context, orderID string) (*model.Order, error) {
	return s.orderRepo.FindByOrderID(ctx, orderID)
}

// Approve moves a pending order to approved and applies its ledger effects.
// This is the single counter-mutating transition; everything happens in one
// transaction or not at all.
func (s *orderServiceImpl) Approve(ctx context.Context, orderID string) error {
	order, err := s.orderRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.approveInTx(ctx, tx, order)
	})
}

func (s *orderServiceImpl) approveInTx(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	switch order.Status {
	case model.StatusPending:
	case model.StatusApproved, model.StatusDelivered:
		return ErrAlreadyProcessed
	default:
		return ErrInvalidTransition
	}
	if order.PointsEarned > 0 {
		return ErrAlreadyProcessed
	}

	var customer *model.Customer
	if !order.IsGuest() {
		found, err := s.customerRepo.FindByPhone(ctx, order.CustomerPhone)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("look up customer: %w", err)
		}
		customer = found // nil when the registration never reached this store
	}

	effects := ledger.ComputeOrderEffects(s.pol, customer, order)

	multiplierApplied := 0
	if effects.MultiplierConsumed {
		multiplierApplied = customer.NextPurchaseMultiplier
	}

	// the guarded update is the idempotency backstop: a concurrent approval
	// loses the race here and reports as already processed
	if err := s.orderRepo.MarkApproved(ctx, tx, order.OrderID, effects.PointsDelta, multiplierApplied); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAlreadyProcessed
		}
		return fmt.Errorf("mark order approved: %w", err)
	}
	order.Status = model.StatusApproved
	order.PointsEarned = effects.PointsDelta
	order.MultiplierApplied = multiplierApplied

	if customer == nil {
		return nil
	}

	if order.BalanceUsedUsd.IsPositive() {
		newBalance := customer.WalletBalanceUsd.Sub(order.BalanceUsedUsd)
		if newBalance.IsNegative() {
			return ErrInsufficientBalance
		}
		customer.WalletBalanceUsd = newBalance
	}

	ledger.Apply(customer, effects)
	if err := s.customerRepo.Save(ctx, tx, customer); err != nil {
		return fmt.Errorf("store customer ledger: %w", err)
	}

	if customer.ReferredByCode != "" && effects.ReferrerCashbackUsd.IsPositive() {
		referrer, err := s.customerRepo.FindByReferralCode(ctx, customer.ReferredByCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil // referrer never reached this store; sync settles it
			}
			return fmt.Errorf("look up referrer: %w", err)
		}
		referrer.WalletBalanceUsd = referrer.WalletBalanceUsd.Add(effects.ReferrerCashbackUsd)
		if err := s.customerRepo.Save(ctx, tx, referrer); err != nil {
			return fmt.Errorf("store referrer cashback: %w", err)
		}
	}

	return nil
}

func (s *orderServiceImpl) Reject(ctx context.Context, orderID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.orderRepo.MarkRejected(ctx, tx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.transitionConflict(ctx, orderID)
		}
		return err
	})
}

func (s *orderServiceImpl) MarkDelivered(ctx context.Context, orderID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.orderRepo.MarkDelivered(ctx, tx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.transitionConflict(ctx, orderID)
		}
		return err
	})
}

// transitionConflict distinguishes "no such order" from "order exists but
// the transition is closed".
func (s *orderServiceImpl) transitionConflict(ctx context.Context, orderID string) error {
	if _, err := s.orderRepo.FindByOrderID(ctx, orderID); err != nil {
		return err
	}
	return ErrInvalidTransition
}
