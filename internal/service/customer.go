package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"satellite-pos/internal/dto"
	"satellite-pos/internal/ledger"
	"satellite-pos/internal/model"
	"satellite-pos/internal/phone"
	"satellite-pos/internal/repository"
)

type CustomerService interface {
	Register(ctx context.Context, req *dto.RegisterCustomerRequest) (*model.Customer, error)
	GetByPhone(ctx context.Context, rawPhone string) (*model.Customer, error)
	SetNextPurchaseMultiplier(ctx context.Context, rawPhone string, multiplier int) error
}

// customerServiceImpl writes to whichever store this terminal is
// authoritative for: the local working copy in satellite mode, the canonical
// store in master mode. Wiring happens in main.
type customerServiceImpl struct {
	db           *gorm.DB
	customerRepo repository.CustomerRepository
	pol          ledger.Policy
}

func NewCustomerService(db *gorm.DB, customerRepo repository.CustomerRepository, pol ledger.Policy) CustomerService {
	return &customerServiceImpl{
		db:           db,
		customerRepo: customerRepo,
		pol:          pol,
	}
}

func (s *customerServiceImpl) Register(ctx context.Context, req *dto.RegisterCustomerRequest) (*model.Customer, error) {
	canonical := phone.Normalize(req.Phone)
	if canonical == "" {
		return nil, fmt.Errorf("phone is required")
	}

	if _, err := s.customerRepo.FindByPhone(ctx, canonical); err == nil {
		return nil, ErrCustomerExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("look up customer: %w", err)
	}

	if req.ReferredByCode != "" {
		if _, err := s.customerRepo.FindByReferralCode(ctx, req.ReferredByCode); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUnknownReferral
			}
			return nil, fmt.Errorf("look up referral code: %w", err)
		}
	}

	customer := &model.Customer{
		ID:                  uuid.NewString(),
		Phone:               canonical,
		Name:                req.Name,
		Email:               req.Email,
		Role:                model.RoleCustomer,
		Points:              s.pol.WelcomeBonusPoints,
		WalletBalanceUsd:    decimal.Zero,
		LifetimeSpendingUsd: decimal.Zero,
		LoyaltyTier:         model.TierBronze,
		ReferralCode:        uuid.NewString(),
		ReferredByCode:      req.ReferredByCode,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.customerRepo.Create(ctx, tx, customer)
	})
	if err != nil {
		return nil, fmt.Errorf("store customer: %w", err)
	}

	return customer, nil
}

func (s *customerServiceImpl) GetByPhone(ctx context.Context, rawPhone string) (*model.Customer, error) {
	return s.customerRepo.FindByPhone(ctx, phone.Normalize(rawPhone))
}

// SetNextPurchaseMultiplier arms the one-shot promo multiplier. The ledger
// engine consumes and clears it with the next approval in a single delta.
func (s *customerServiceImpl) SetNextPurchaseMultiplier(ctx context.Context, rawPhone string, multiplier int) error {
	if multiplier < 1 {
		return fmt.Errorf("multiplier must be >= 1")
	}

	customer, err := s.customerRepo.FindByPhone(ctx, phone.Normalize(rawPhone))
	if err != nil {
		return err
	}

	customer.NextPurchaseMultiplier = multiplier
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.customerRepo.Save(ctx, tx, customer)
	})
}
