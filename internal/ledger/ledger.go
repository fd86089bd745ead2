// Package ledger is the pure loyalty computation engine. It takes customer
// snapshots and orders and returns deltas; it performs no I/O and holds no
// state. Every path that moves an order into the approved state must call
// ComputeOrderEffects exactly once for that order.
package ledger

import (
	"github.com/shopspring/decimal"

	"satellite-pos/internal/model"
)

// Effects is the full ledger outcome of approving one order for one
// customer snapshot.
type Effects struct {
	PointsDelta            int
	NewLifetimeSpendingUsd decimal.Decimal
	NewTier                model.Tier
	// wallet credit owed to the customer named by ReferredByCode; zero when
	// the customer was not referred
	ReferrerCashbackUsd decimal.Decimal
	MultiplierConsumed  bool
}

// ComputeOrderEffects computes the ledger deltas for transitioning the given
// order into the approved state against the given customer snapshot. A nil
// customer (guest order) produces zero effects.
func ComputeOrderEffects(pol Policy, c *model.Customer, o *model.Order) Effects {
	if c == nil {
		return Effects{ReferrerCashbackUsd: decimal.Zero}
	}

	points := int(o.TotalUsd.IntPart())
	if points < 0 {
		points = 0
	}
	if c.Role == model.RoleStaff || c.Role == model.RoleAdmin {
		// no self-dealing: staff purchases earn nothing
		points = 0
	}

	consumed := false
	if c.NextPurchaseMultiplier > 1 {
		points *= c.NextPurchaseMultiplier
		consumed = true
	}

	newSpend := c.LifetimeSpendingUsd.Add(o.TotalUsd)

	cashback := decimal.Zero
	if c.ReferredByCode != "" {
		cashback = ReferralCashback(pol, o.TotalUsd)
	}

	return Effects{
		PointsDelta:            points,
		NewLifetimeSpendingUsd: newSpend,
		NewTier:                MaxTier(c.LoyaltyTier, pol.TierFor(newSpend)),
		ReferrerCashbackUsd:    cashback,
		MultiplierConsumed:     consumed,
	}
}

// ReferralCashback computes the wallet credit owed to a referrer for one
// approved order total. Defined once so the approval path and the sync merge
// path cannot drift apart.
func ReferralCashback(pol Policy, totalUsd decimal.Decimal) decimal.Decimal {
	return totalUsd.Mul(pol.ReferralRate).Round(2)
}

// Apply folds the effects into the customer snapshot: points, lifetime
// spend, tier, and the one-shot multiplier clear happen as one step. The
// referrer cashback is not applied here; it belongs to a different customer
// and the caller must credit it separately.
func Apply(c *model.Customer, e Effects) {
	c.Points += e.PointsDelta
	c.LifetimeSpendingUsd = e.NewLifetimeSpendingUsd
	c.LoyaltyTier = e.NewTier
	if e.MultiplierConsumed {
		c.NextPurchaseMultiplier = 0
	}
}
