package dto

import "github.com/shopspring/decimal"

type RegisterCustomerRequest struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	ReferredByCode string `json:"referred_by_code"`
}

type CreateOrderItem struct {
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	UnitPriceUsd    decimal.Decimal `json:"unit_price_usd"`
	SelectedOptions []string        `json:"selected_options"`
}

type CreateOrderRequest struct {
	CustomerPhone  string            `json:"customer_phone"`
	Items          []CreateOrderItem `json:"items"`
	DeliveryMethod string            `json:"delivery_method"`
	DeliveryFeeUsd decimal.Decimal   `json:"delivery_fee_usd"`
	BalanceUsedUsd decimal.Decimal   `json:"balance_used_usd"`
	// POS orders handed over against immediate payment skip the pending state
	PreApproved bool `json:"pre_approved"`
}

type MultiplierRequest struct {
	Multiplier int `json:"multiplier"`
}

type ExportResponse struct {
	Bundle string `json:"bundle"`
}

type ImportRequest struct {
	Bundle string `json:"bundle"`
}

type PurgeRequest struct {
	BeforeMs int64 `json:"before_ms"`
}

type PurgeResponse struct {
	Purged int64 `json:"purged"`
}

type RefreshResponse struct {
	Customers int `json:"customers"`
}
