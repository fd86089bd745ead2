package service

import "errors"

var (
	// ErrAlreadyProcessed marks a second approval attempt on an order whose
	// ledger effects were already applied. The state is left untouched and
	// the caller is told, never silently clamped.
	ErrAlreadyProcessed = errors.New("order already processed")

	// ErrInvalidTransition marks a transition the state machine forbids,
	// e.g. approving a rejected order.
	ErrInvalidTransition = errors.New("invalid order state transition")

	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrUnknownReferral     = errors.New("unknown referral code")
	ErrCustomerExists      = errors.New("customer already registered")
)
