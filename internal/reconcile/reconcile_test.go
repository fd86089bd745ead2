package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satellite-pos/internal/ledger"
	"satellite-pos/internal/model"
)

func usd(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func customer(phone string) model.Customer {
	return model.Customer{
		ID:                  "id-" + phone,
		Phone:               phone,
		Role:                model.RoleCustomer,
		WalletBalanceUsd:    decimal.Zero,
		LifetimeSpendingUsd: decimal.Zero,
		LoyaltyTier:         model.TierBronze,
		ReferralCode:        "code-" + phone,
	}
}

func approvedOrder(id, phone, total string, points int) model.Order {
	return model.Order{
		OrderID:        id,
		CustomerPhone:  phone,
		Status:         model.StatusApproved,
		TimestampMs:    1000,
		TotalUsd:       usd(total),
		DeliveryMethod: model.DeliveryPickup,
		DeliveryFeeUsd: decimal.Zero,
		BalanceUsedUsd: decimal.Zero,
		PointsEarned:   points,
	}
}

// applyResult simulates the remote store accepting a merge batch, so a
// second reconcile can run against the post-merge state.
func applyResult(remote Snapshot, res *Result) Snapshot {
	next := Snapshot{Orders: append([]model.Order{}, remote.Orders...)}
	next.Orders = append(next.Orders, res.NewOrders...)

	patched := map[string]model.Customer{}
	for _, c := range remote.Customers {
		patched[c.Phone] = c
	}
	for _, c := range res.CustomerUpserts {
		patched[c.Phone] = c
	}
	for _, c := range patched {
		next.Customers = append(next.Customers, c)
	}
	return next
}

func TestMergeNewOrderIntoExistingCustomer(t *testing.T) {
	remote := Snapshot{Customers: []model.Customer{customer("5551234567")}}
	in := Input{
		Customers: []model.Customer{customer("5551234567")},
		Orders:    []model.Order{approvedOrder("o1", "5551234567", "12.50", 12)},
	}

	res, err := Reconcile(in, remote, ledger.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, Counts{OrdersImported: 1, CustomersUpdated: 1}, res.Counts)
	require.Len(t, res.CustomerUpserts, 1)
	c := res.CustomerUpserts[0]
	assert.Equal(t, 12, c.Points, "trusted pointsEarned, not recomputed")
	assert.True(t, c.LifetimeSpendingUsd.Equal(usd("12.50")))
}

func TestSecondSyncAttemptSkipsEverything(t *testing.T) {
	// first attempt crashed after writing but before clearing the buffer
	remote := Snapshot{Customers: []model.Customer{customer("5551234567")}}
	in := Input{
		Customers: []model.Customer{customer("5551234567")},
		Orders:    []model.Order{approvedOrder("POS-123", "5551234567", "10", 10)},
	}
	pol := ledger.DefaultPolicy()

	first, err := Reconcile(in, remote, pol)
	require.NoError(t, err)
	require.Equal(t, 1, first.Counts.OrdersImported)

	afterFirst := applyResult(remote, first)
	second, err := Reconcile(in, afterFirst, pol)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Counts.OrdersImported)
	assert.Equal(t, 1, second.Counts.OrdersSkipped)
	assert.Empty(t, second.CustomerUpserts, "no points may move twice")

	afterSecond := applyResult(afterFirst, second)
	assert.ElementsMatch(t, afterFirst.Orders, afterSecond.Orders)
	assert.ElementsMatch(t, afterFirst.Customers, afterSecond.Customers)
}

func TestDuplicateOrderIDWithinOneBatch(t *testing.T) {
	remote := Snapshot{Customers: []model.Customer{customer("5551234567")}}
	o := approvedOrder("o1", "5551234567", "10", 10)
	in := Input{
		Customers: []model.Customer{customer("5551234567")},
		Orders:    []model.Order{o, o},
	}

	res, err := Reconcile(in, remote, ledger.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Counts.OrdersImported)
	assert.Equal(t, 1, res.Counts.OrdersSkipped)
	assert.Equal(t, 10, res.CustomerUpserts[0].Points)
}

func TestLocallyRegisteredCustomerIsCreated(t *testing.T) {
	local := customer("5559990000")
	local.Points = 20 // welcome bonus granted at registration

	res, err := Reconcile(Input{Customers: []model.Customer{local}}, Snapshot{}, ledger.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, Counts{CustomersCreated: 1}, res.Counts)
	require.Len(t, res.CustomerUpserts, 1)
	assert.Equal(t, 20, res.CustomerUpserts[0].Points)
}

func TestOfflineRegistrationWithItsOwnOrdersDoesNotDoubleApply(t *testing.T) {
	// registered at the satellite while offline: 20 welcome points, then a
	// pre-approved order whose effects the terminal already folded in
	local := customer("5559990000")
	local.Points = 20 + 15
	local.LifetimeSpendingUsd = usd("15")

	o := approvedOrder("o1", "5559990000", "15", 15)

	res, err := Reconcile(
		Input{Customers: []model.Customer{local}, Orders: []model.Order{o}},
		Snapshot{},
		ledger.DefaultPolicy(),
	)
	require.NoError(t, err)

	assert.Equal(t, Counts{OrdersImported: 1, CustomersCreated: 1}, res.Counts)
	require.Len(t, res.CustomerUpserts, 1)
	c := res.CustomerUpserts[0]
	assert.Equal(t, 35, c.Points, "the registration snapshot already carries the order's points")
	assert.True(t, c.LifetimeSpendingUsd.Equal(usd("15")))
}

func TestOfflineRegistrationStillPaysRemoteReferrer(t *testing.T) {
	referrer := customer("5550000001")

	local := customer("5559990000")
	local.ReferredByCode = referrer.ReferralCode
	local.Points = 20 + 15
	local.LifetimeSpendingUsd = usd("15")

	res, err := Reconcile(
		Input{Customers: []model.Customer{local}, Orders: []model.Order{approvedOrder("o1", "5559990000", "15", 15)}},
		Snapshot{Customers: []model.Customer{referrer}},
		ledger.DefaultPolicy(),
	)
	require.NoError(t, err)

	var got *model.Customer
	for i := range res.CustomerUpserts {
		if res.CustomerUpserts[i].Phone == referrer.Phone {
			got = &res.CustomerUpserts[i]
		}
	}
	require.NotNil(t, got, "the remote referrer never saw this purchase and must be credited now")
	assert.True(t, got.WalletBalanceUsd.Equal(usd("0.75")))
}

func TestLocalCopyOfRemoteCustomerIsDiscarded(t *testing.T) {
	remoteC := customer("5551234567")
	remoteC.Points = 100

	staleLocal := customer("5551234567")
	staleLocal.Points = 7 // stale working copy must never win

	res, err := Reconcile(
		Input{Customers: []model.Customer{staleLocal}},
		Snapshot{Customers: []model.Customer{remoteC}},
		ledger.DefaultPolicy(),
	)
	require.NoError(t, err)

	assert.Equal(t, Counts{}, res.Counts)
	assert.Empty(t, res.CustomerUpserts)
}

func TestOrphanOrderSynthesizesCustomerWithRecoveryBonus(t *testing.T) {
	pol := ledger.DefaultPolicy()
	pol.RecoveredWelcomeBonusPoints = 2

	res, err := Reconcile(
		Input{Orders: []model.Order{approvedOrder("o1", "5550001111", "30", 30)}},
		Snapshot{},
		pol,
	)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Counts.CustomersCreated)
	require.Len(t, res.CustomerUpserts, 1)
	c := res.CustomerUpserts[0]
	assert.Equal(t, "5550001111", c.Phone)
	assert.Equal(t, 2+30, c.Points, "recovery bonus plus the order's own points")
	assert.NotEmpty(t, c.ID)
	assert.NotEmpty(t, c.ReferralCode)
}

func TestOrphanWalletPaidOrderDoesNotOverdrawSynthesizedCustomer(t *testing.T) {
	// the registration that held the real balance was lost; the deduction
	// already happened on the vanished terminal and cannot be replayed
	o := approvedOrder("o1", "5550001111", "20", 20)
	o.BalanceUsedUsd = usd("5.00")

	res, err := Reconcile(Input{Orders: []model.Order{o}}, Snapshot{}, ledger.DefaultPolicy())
	require.NoError(t, err)

	require.Len(t, res.CustomerUpserts, 1)
	assert.True(t, res.CustomerUpserts[0].WalletBalanceUsd.IsZero())
	assert.Equal(t, 20, res.CustomerUpserts[0].Points)
}

func TestGuestOrdersDedupByOrderIDOnly(t *testing.T) {
	guest := approvedOrder("g1", "", "15", 0)
	remote := Snapshot{Orders: []model.Order{guest}}

	res, err := Reconcile(
		Input{Orders: []model.Order{guest, approvedOrder("g2", "", "8", 0)}},
		remote,
		ledger.DefaultPolicy(),
	)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Counts.OrdersImported)
	assert.Equal(t, 1, res.Counts.OrdersSkipped)
	assert.Empty(t, res.CustomerUpserts, "guest orders touch no ledger")
}

func TestPendingOrdersSyncWithoutLedgerEffects(t *testing.T) {
	o := approvedOrder("o1", "5551234567", "25", 0)
	o.Status = model.StatusPending

	res, err := Reconcile(
		Input{Orders: []model.Order{o}},
		Snapshot{Customers: []model.Customer{customer("5551234567")}},
		ledger.DefaultPolicy(),
	)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Counts.OrdersImported)
	assert.Empty(t, res.CustomerUpserts)
}

func TestReferralIsolation(t *testing.T) {
	referrer := customer("5550000001")
	unrelated := customer("5550000002")
	buyer := customer("5551234567") // no referredByCode

	res, err := Reconcile(
		Input{Orders: []model.Order{approvedOrder("o1", "5551234567", "100", 100)}},
		Snapshot{Customers: []model.Customer{referrer, unrelated, buyer}},
		ledger.DefaultPolicy(),
	)
	require.NoError(t, err)

	for _, c := range res.CustomerUpserts {
		if c.Phone != buyer.Phone {
			t.Fatalf("customer %s was touched by an unreferred purchase", c.Phone)
		}
	}
}

func TestReferralCashbackCreditedOnSync(t *testing.T) {
	referrer := customer("5550000001")
	buyer := customer("5551234567")
	buyer.ReferredByCode = referrer.ReferralCode

	res, err := Reconcile(
		Input{Orders: []model.Order{approvedOrder("o1", "5551234567", "40", 40)}},
		Snapshot{Customers: []model.Customer{referrer, buyer}},
		ledger.DefaultPolicy(),
	)
	require.NoError(t, err)

	var got *model.Customer
	for i := range res.CustomerUpserts {
		if res.CustomerUpserts[i].Phone == referrer.Phone {
			got = &res.CustomerUpserts[i]
		}
	}
	require.NotNil(t, got, "referrer must be patched")
	assert.True(t, got.WalletBalanceUsd.Equal(usd("2.00")))
	assert.Equal(t, 2, res.Counts.CustomersUpdated)
}

func TestWalletDeductionAndOverdraw(t *testing.T) {
	c := customer("5551234567")
	c.WalletBalanceUsd = usd("5.00")

	paid := approvedOrder("o1", "5551234567", "20", 20)
	paid.BalanceUsedUsd = usd("5.00")

	res, err := Reconcile(
		Input{Orders: []model.Order{paid}},
		Snapshot{Customers: []model.Customer{c}},
		ledger.DefaultPolicy(),
	)
	require.NoError(t, err)
	assert.True(t, res.CustomerUpserts[0].WalletBalanceUsd.IsZero())

	over := approvedOrder("o2", "5551234567", "20", 20)
	over.BalanceUsedUsd = usd("6.00")
	_, err = Reconcile(
		Input{Orders: []model.Order{over}},
		Snapshot{Customers: []model.Customer{c}},
		ledger.DefaultPolicy(),
	)
	assert.ErrorIs(t, err, ErrWalletOverdraw)
}

func TestConsumedMultiplierClearsRemoteFlag(t *testing.T) {
	c := customer("5551234567")
	c.NextPurchaseMultiplier = 3

	o := approvedOrder("o1", "5551234567", "10", 30)
	o.MultiplierApplied = 3

	res, err := Reconcile(
		Input{Orders: []model.Order{o}},
		Snapshot{Customers: []model.Customer{c}},
		ledger.DefaultPolicy(),
	)
	require.NoError(t, err)

	assert.Equal(t, 0, res.CustomerUpserts[0].NextPurchaseMultiplier)
	assert.Equal(t, 30, res.CustomerUpserts[0].Points)
}

func TestTierRecomputedForwardOnlyDuringMerge(t *testing.T) {
	c := customer("5551234567")
	c.LifetimeSpendingUsd = usd("95")

	res, err := Reconcile(
		Input{Orders: []model.Order{approvedOrder("o1", "5551234567", "10", 10)}},
		Snapshot{Customers: []model.Customer{c}},
		ledger.DefaultPolicy(),
	)
	require.NoError(t, err)

	assert.Equal(t, model.TierSilver, res.CustomerUpserts[0].LoyaltyTier)
}

func TestPhoneNormalizationAppliesOnBothSides(t *testing.T) {
	remoteC := customer("5551234567")

	o := approvedOrder("o1", "+1 (555) 123-4567", "10", 10)
	res, err := Reconcile(
		Input{Orders: []model.Order{o}},
		Snapshot{Customers: []model.Customer{remoteC}},
		ledger.DefaultPolicy(),
	)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Counts.CustomersCreated, "formatted phone must match the canonical record")
	assert.Equal(t, 1, res.Counts.CustomersUpdated)
	require.Len(t, res.NewOrders, 1)
	assert.Equal(t, "5551234567", res.NewOrders[0].CustomerPhone)
}
