// Package reconcile merges a satellite terminal's unsynced shift into the
// canonical remote state. It is pure: callers fetch the remote snapshot
// (fresh, never cached) and apply the returned patch; this package only
// computes it. The bundle import path and the direct sync path both go
// through Reconcile, so their idempotency rules cannot diverge.
package reconcile

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"satellite-pos/internal/ledger"
	"satellite-pos/internal/model"
	"satellite-pos/internal/phone"
)

// ErrWalletOverdraw is returned when merging an order would drive a remote
// customer's wallet balance negative. The sync is aborted so the discrepancy
// gets investigated instead of silently clamped.
var ErrWalletOverdraw = errors.New("wallet balance would go negative")

// Input is the local side of a merge: the terminal's registered customers
// (working copy plus offline registrations) and its unsynced orders. Bundle
// imports carry orders only.
type Input struct {
	Customers []model.Customer
	Orders    []model.Order
}

// Snapshot is a fresh read of the remote canonical state.
type Snapshot struct {
	Customers []model.Customer
	Orders    []model.Order
}

// Counts is the operator-facing outcome summary of one merge.
type Counts struct {
	OrdersImported   int `json:"orders_imported"`
	OrdersSkipped    int `json:"orders_skipped"`
	CustomersCreated int `json:"customers_created"`
	CustomersUpdated int `json:"customers_updated"`
}

// Result is the patch to apply to the remote store as one logical batch.
type Result struct {
	CustomerUpserts []model.Customer
	NewOrders       []model.Order
	Counts          Counts
}

// OrderSet is the single is-this-order-known predicate shared by every merge
// path. The orderId is the idempotency key; membership here is the only
// dedup rule.
type OrderSet map[string]struct{}

// NewOrderSet builds the known-order set from a remote order snapshot.
func NewOrderSet(orders []model.Order) OrderSet {
	s := make(OrderSet, len(orders))
	for i := range orders {
		s.Add(orders[i].OrderID)
	}
	return s
}

func (s OrderSet) Known(id string) bool {
	_, ok := s[id]
	return ok
}

func (s OrderSet) Add(id string) {
	s[id] = struct{}{}
}

type merger struct {
	pol     ledger.Policy
	known   OrderSet
	byPhone map[string]*model.Customer
	byCode  map[string]string // referral code -> canonical phone

	// customers staged from the terminal's own registrations; their counters
	// already include the effects of the orders riding in the same shift, so
	// merging those orders must not apply the effects a second time
	fromLocal map[string]bool

	// customers synthesized from orphan orders; their wallet starts at zero
	// because the real balance was lost with the registration, so wallet
	// deductions cannot be replayed against them
	recovered map[string]bool

	created map[string]bool
	updated map[string]bool
	touched []string // phones in first-touch order, for stable output
}

// Reconcile computes the conflict-free union of a local shift and the remote
// state. Orders already known remotely are skipped outright (remote wins, no
// field merge). Genuinely new approved orders carry their ledger effects
// with them: their already-computed pointsEarned is trusted, not recomputed;
// only the referrer cashback, which was never recorded on the order, is
// derived from policy.
func Reconcile(in Input, remote Snapshot, pol ledger.Policy) (*Result, error) {
	m := &merger{
		pol:       pol,
		known:     NewOrderSet(remote.Orders),
		byPhone:   make(map[string]*model.Customer, len(remote.Customers)),
		byCode:    make(map[string]string, len(remote.Customers)),
		fromLocal: make(map[string]bool),
		recovered: make(map[string]bool),
		created:   make(map[string]bool),
		updated:   make(map[string]bool),
	}

	for i := range remote.Customers {
		c := remote.Customers[i]
		c.Phone = phone.Normalize(c.Phone)
		m.index(&c)
	}

	for i := range in.Customers {
		m.stageLocalCustomer(in.Customers[i])
	}

	res := &Result{}
	for i := range in.Orders {
		o := in.Orders[i]
		o.CustomerPhone = phone.Normalize(o.CustomerPhone)

		if m.known.Known(o.OrderID) {
			res.Counts.OrdersSkipped++
			continue
		}
		m.known.Add(o.OrderID)

		if !o.IsGuest() {
			if err := m.mergeCustomerOrder(&o); err != nil {
				return nil, err
			}
		}

		res.NewOrders = append(res.NewOrders, o)
		res.Counts.OrdersImported++
	}

	for _, ph := range m.touched {
		res.CustomerUpserts = append(res.CustomerUpserts, *m.byPhone[ph])
	}
	res.Counts.CustomersCreated = len(m.created)
	res.Counts.CustomersUpdated = len(m.updated)

	return res, nil
}

func (m *merger) index(c *model.Customer) {
	m.byPhone[c.Phone] = c
	if c.ReferralCode != "" {
		m.byCode[c.ReferralCode] = c.Phone
	}
}

// stageLocalCustomer handles the registration-while-offline case. A local
// customer already present remotely is dropped: the remote record is
// authoritative and only its order set may grow.
func (m *merger) stageLocalCustomer(c model.Customer) {
	c.Phone = phone.Normalize(c.Phone)
	if c.Phone == "" {
		return
	}
	if _, ok := m.byPhone[c.Phone]; ok {
		return
	}
	// tier is derived state; never trust the copy that rode in
	c.LoyaltyTier = ledger.MaxTier(c.LoyaltyTier, m.pol.TierFor(c.LifetimeSpendingUsd))
	m.index(&c)
	m.fromLocal[c.Phone] = true
	m.markCreated(c.Phone)
}

// mergeCustomerOrder folds one genuinely-new customer order into the staged
// remote state.
func (m *merger) mergeCustomerOrder(o *model.Order) error {
	c, ok := m.byPhone[o.CustomerPhone]
	if !ok {
		// order outran its customer registration: synthesize the record with
		// the recovery bonus so repeated recovery syncs cannot farm the full
		// welcome grant
		c = m.synthesizeCustomer(o.CustomerPhone)
	}

	if o.Status != model.StatusApproved && o.Status != model.StatusDelivered {
		return nil
	}

	if !m.fromLocal[c.Phone] {
		// trust-on-sync: the approving terminal already ran the ledger
		// engine, so the remote record absorbs the recorded effects instead
		// of recomputing them
		c.Points += o.PointsEarned
		c.LifetimeSpendingUsd = c.LifetimeSpendingUsd.Add(o.TotalUsd)
		c.LoyaltyTier = ledger.MaxTier(c.LoyaltyTier, m.pol.TierFor(c.LifetimeSpendingUsd))
		if o.MultiplierApplied > 1 && c.NextPurchaseMultiplier == o.MultiplierApplied {
			c.NextPurchaseMultiplier = 0
		}

		if o.BalanceUsedUsd.IsPositive() && !m.recovered[c.Phone] {
			newBalance := c.WalletBalanceUsd.Sub(o.BalanceUsedUsd)
			if newBalance.IsNegative() {
				return fmt.Errorf("order %s, customer %s: %w", o.OrderID, c.Phone, ErrWalletOverdraw)
			}
			c.WalletBalanceUsd = newBalance
		}
		m.markUpdated(c.Phone)
	}

	if c.ReferredByCode != "" {
		if refPhone, ok := m.byCode[c.ReferredByCode]; ok && refPhone != c.Phone && !m.fromLocal[refPhone] {
			ref := m.byPhone[refPhone]
			ref.WalletBalanceUsd = ref.WalletBalanceUsd.Add(ledger.ReferralCashback(m.pol, o.TotalUsd))
			m.markUpdated(refPhone)
		}
	}

	return nil
}

func (m *merger) synthesizeCustomer(canonicalPhone string) *model.Customer {
	c := &model.Customer{
		ID:                  uuid.NewString(),
		Phone:               canonicalPhone,
		Role:                model.RoleCustomer,
		Points:              m.pol.RecoveredWelcomeBonusPoints,
		WalletBalanceUsd:    decimal.Zero,
		LifetimeSpendingUsd: decimal.Zero,
		LoyaltyTier:         model.TierBronze,
		ReferralCode:        uuid.NewString(),
	}
	m.index(c)
	m.recovered[canonicalPhone] = true
	m.markCreated(canonicalPhone)
	return c
}

func (m *merger) markCreated(ph string) {
	if !m.created[ph] {
		m.created[ph] = true
		m.touch(ph)
	}
}

func (m *merger) markUpdated(ph string) {
	if m.created[ph] {
		return // creation already covers it
	}
	if !m.updated[ph] {
		m.updated[ph] = true
	}
	m.touch(ph)
}

func (m *merger) touch(ph string) {
	for _, t := range m.touched {
		if t == ph {
			return
		}
	}
	m.touched = append(m.touched, ph)
}
