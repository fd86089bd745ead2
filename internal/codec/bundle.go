// Package codec serializes a shift buffer into a transport-safe text bundle
// and parses it back. A bundle is a shift delivered through a side channel
// (pasted into a message, carried on a stick), so decoding is strict: a
// bundle either parses completely or is rejected before anything is applied.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"satellite-pos/internal/model"
)

// Version identifies the bundle envelope layout.
const Version = "1"

// ErrMalformedBundle wraps every decode-side failure so the operator surface
// can treat them uniformly.
var ErrMalformedBundle = errors.New("malformed shift bundle")

// Bundle is the export envelope.
type Bundle struct {
	Version   string        `json:"version"`
	Timestamp int64         `json:"timestamp"`
	Orders    []model.Order `json:"orders"`
}

// Encode serializes the given shift orders into an opaque transportable
// string.
func Encode(orders []model.Order, now time.Time) (string, error) {
	b := Bundle{
		Version:   Version,
		Timestamp: now.UnixMilli(),
		Orders:    orders,
	}
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode shift bundle: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode parses an exported bundle. Unknown fields, unknown versions, and
// invalid orders all fail the whole bundle.
func Decode(payload string) (*Bundle, error) {
	raw, err := base64.URLEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBundle, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var b Bundle
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBundle, err)
	}
	if b.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedBundle, b.Version)
	}

	for i := range b.Orders {
		if err := ValidateOrder(&b.Orders[i]); err != nil {
			return nil, fmt.Errorf("%w: order %d: %v", ErrMalformedBundle, i, err)
		}
	}

	return &b, nil
}

// ValidateOrder checks the required-field and sign invariants of one order
// record. It is the shape gate for everything entering through a bundle;
// nothing past this point deals with partial orders.
func ValidateOrder(o *model.Order) error {
	if o.OrderID == "" {
		return errors.New("missing order_id")
	}
	if o.TimestampMs <= 0 {
		return errors.New("missing timestamp_ms")
	}
	switch o.Status {
	case model.StatusPending, model.StatusApproved, model.StatusRejected, model.StatusDelivered:
	default:
		return fmt.Errorf("unknown status %q", o.Status)
	}
	switch o.DeliveryMethod {
	case model.DeliveryPickup, model.DeliveryDelivery:
	default:
		return fmt.Errorf("unknown delivery method %q", o.DeliveryMethod)
	}
	if o.TotalUsd.IsNegative() {
		return errors.New("negative total_usd")
	}
	if o.DeliveryFeeUsd.IsNegative() {
		return errors.New("negative delivery_fee_usd")
	}
	if o.BalanceUsedUsd.IsNegative() {
		return errors.New("negative balance_used_usd")
	}
	if o.PointsEarned < 0 {
		return errors.New("negative points_earned")
	}
	if o.PointsEarned > 0 && o.Status == model.StatusPending {
		return errors.New("pending order with earned points")
	}
	subtotal := decimal.Zero
	for i := range o.Items {
		item := &o.Items[i]
		if item.Name == "" {
			return fmt.Errorf("item %d: missing name", i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive", i)
		}
		if item.UnitPriceUsd.IsNegative() {
			return fmt.Errorf("item %d: negative unit price", i)
		}
		subtotal = subtotal.Add(item.UnitPriceUsd.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	// wallet payment covers goods only, never the delivery fee
	if o.BalanceUsedUsd.GreaterThan(subtotal) {
		return errors.New("balance_used_usd exceeds item subtotal")
	}
	return nil
}
