package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

type Tier string

const (
	TierBronze  Tier = "bronze"
	TierSilver  Tier = "silver"
	TierGold    Tier = "gold"
	TierDiamond Tier = "diamond"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusApproved  OrderStatus = "approved"
	StatusRejected  OrderStatus = "rejected"
	StatusDelivered OrderStatus = "delivered"
)

type DeliveryMethod string

const (
	DeliveryPickup   DeliveryMethod = "pickup"
	DeliveryDelivery DeliveryMethod = "delivery"
)

type TerminalMode string

const (
	ModeMaster    TerminalMode = "master"
	ModeSatellite TerminalMode = "satellite"
)

type Customer struct {
	ID    string `gorm:"primaryKey;size:64;not null" json:"id"`
	Phone string `gorm:"size:32;uniqueIndex;not null" json:"phone"` // canonical form, see internal/phone
	Name  string `gorm:"size:128" json:"name"`
	Email string `gorm:"size:128" json:"email,omitempty"`
	Role  Role   `gorm:"size:16;index;not null" json:"role"`

	Points              int             `gorm:"not null" json:"points"`
	WalletBalanceUsd    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"wallet_balance_usd"`
	LifetimeSpendingUsd decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"lifetime_spending_usd"`
	LoyaltyTier         Tier            `gorm:"size:16;not null" json:"loyalty_tier"`

	ReferralCode   string `gorm:"size:64;uniqueIndex" json:"referral_code"`
	ReferredByCode string `gorm:"size:64;index" json:"referred_by_code,omitempty"` // set once at creation, immutable

	// one-shot points multiplier, consumed on the next approved order; <=1 means none
	NextPurchaseMultiplier int `gorm:"not null" json:"next_purchase_multiplier,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

type Order struct {
	// caller-generated, globally unique; the idempotency key for every merge path
	OrderID       string      `gorm:"primaryKey;size:64;not null" json:"order_id"`
	CustomerPhone string      `gorm:"size:32;index" json:"customer_phone,omitempty"` // empty for guest orders
	Status        OrderStatus `gorm:"size:16;index;not null" json:"status"`
	TimestampMs   int64       `gorm:"index;not null" json:"timestamp_ms"`

	TotalUsd       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_usd"`
	DeliveryMethod DeliveryMethod  `gorm:"size:16;not null" json:"delivery_method"`
	DeliveryFeeUsd decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"delivery_fee_usd"`
	BalanceUsedUsd decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_used_usd"`

	PointsEarned int `gorm:"not null" json:"points_earned"` // stays 0 until approved
	// multiplier consumed at approval time, so a later merge can clear the
	// customer's one-shot flag without guessing; 0 when none was in play
	MultiplierApplied int    `gorm:"not null" json:"multiplier_applied,omitempty"`
	ProcessedBy       string `gorm:"size:64" json:"processed_by"`

	Items []OrderItem `gorm:"foreignKey:OrderID;references:OrderID" json:"items"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

type OrderItem struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	OrderID  string `gorm:"size:64;not null;uniqueIndex:idx_order_line" json:"-"`
	Position int    `gorm:"not null;uniqueIndex:idx_order_line" json:"-"`

	Name            string          `gorm:"size:128;not null" json:"name"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	UnitPriceUsd    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price_usd"`
	SelectedOptions []string        `gorm:"serializer:json" json:"selected_options,omitempty"`
}

// TerminalState is a single-row table in the local terminal DB recording the
// mode the terminal last ran in.
type TerminalState struct {
	ID        uint         `gorm:"primaryKey"`
	Mode      TerminalMode `gorm:"size:16;not null"`
	UpdatedAt time.Time
}

// IsGuest reports whether the order belongs to no customer record.
func (o *Order) IsGuest() bool {
	return o.CustomerPhone == ""
}

// Approvable reports whether the approval transition is still open for the
// order. An order that already carries earned points has been processed even
// if its status row was written by another terminal.
func (o *Order) Approvable() bool {
	return o.Status == StatusPending && o.PointsEarned == 0
}
