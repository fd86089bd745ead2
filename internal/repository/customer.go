package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"satellite-pos/internal/model"
)

type CustomerRepository interface {
	FetchAll(ctx context.Context) ([]model.Customer, error)
	FindByPhone(ctx context.Context, canonicalPhone string) (*model.Customer, error)
	FindByReferralCode(ctx context.Context, code string) (*model.Customer, error)
	Create(ctx context.Context, tx *gorm.DB, customer *model.Customer) error
	Save(ctx context.Context, tx *gorm.DB, customer *model.Customer) error
	// UpsertMany applies a merge patch; conflict key is the canonical phone.
	UpsertMany(ctx context.Context, tx *gorm.DB, customers []model.Customer) error
	// ReplaceAll swaps the whole collection; used to refresh a satellite's
	// working copy from the canonical store.
	ReplaceAll(ctx context.Context, customers []model.Customer) error
}

type customerRepoImpl struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepoImpl{
		db: db,
	}
}

func (r *customerRepoImpl) FetchAll(ctx context.Context) ([]model.Customer, error) {
	var customers []model.Customer
	err := r.db.WithContext(ctx).
		Order("created_at").
		Find(&customers).Error
	if err != nil {
		return nil, err
	}

	return customers, nil
}

func (r *customerRepoImpl) FindByPhone(ctx context.Context, canonicalPhone string) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).
		Where("phone = ?", canonicalPhone).
		First(&customer).Error
	if err != nil {
		return nil, err
	}

	return &customer, nil
}

func (r *customerRepoImpl) FindByReferralCode(ctx context.Context, code string) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).
		Where("referral_code = ?", code).
		First(&customer).Error
	if err != nil {
		return nil, err
	}

	return &customer, nil
}

func (r *customerRepoImpl) Create(ctx context.Context, tx *gorm.DB, customer *model.Customer) error {
	return tx.WithContext(ctx).Create(customer).Error
}

func (r *customerRepoImpl) Save(ctx context.Context, tx *gorm.DB, customer *model.Customer) error {
	return tx.WithContext(ctx).Save(customer).Error
}

func (r *customerRepoImpl) UpsertMany(ctx context.Context, tx *gorm.DB, customers []model.Customer) error {
	if len(customers) == 0 {
		return nil
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "phone"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"points":                   gorm.Expr("excluded.points"),
				"wallet_balance_usd":       gorm.Expr("excluded.wallet_balance_usd"),
				"lifetime_spending_usd":    gorm.Expr("excluded.lifetime_spending_usd"),
				"loyalty_tier":             gorm.Expr("excluded.loyalty_tier"),
				"next_purchase_multiplier": gorm.Expr("excluded.next_purchase_multiplier"),
				"updated_at":               time.Now(),
			}),
		}).
		Create(&customers).Error
}

func (r *customerRepoImpl) ReplaceAll(ctx context.Context, customers []model.Customer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.Customer{}).Error; err != nil {
			return err
		}
		if len(customers) == 0 {
			return nil
		}
		return tx.Create(&customers).Error
	})
}
