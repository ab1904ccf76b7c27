// Package models provides the record types and validation for Binance
// account-history data. This package contains the three exported record kinds
// (fiat withdrawals, convert trades, crypto deposits) together with the
// structured validation errors raised when a provider record is malformed.
package models

import (
	"fmt"
	"time"
)

// FiatWithdrawal represents one fiat withdrawal order as reported by the
// provider's fiat order history. Monetary fields arrive on the wire as decimal
// strings and are parsed to float64 before a FiatWithdrawal is built; the
// timestamps are millisecond epochs and pass through unchanged.
type FiatWithdrawal struct {
	OrderNo         string  `json:"orderNo" db:"order_no"`
	FiatCurrency    string  `json:"fiatCurrency" db:"fiat_currency"`
	IndicatedAmount float64 `json:"indicatedAmount" db:"indicated_amount"`
	Amount          float64 `json:"amount" db:"amount"`
	TotalFee        float64 `json:"totalFee" db:"total_fee"`
	Method          string  `json:"method" db:"method"`
	Status          string  `json:"status" db:"status"`
	CreateTime      int64   `json:"createTime" db:"create_time"`
	UpdateTime      int64   `json:"updateTime" db:"update_time"`
}

// ValidationError represents a record validation error with specific field
// context. It provides structured error information including the field name
// that failed validation and a descriptive error message.
type ValidationError struct {
	Field   string // Field is the name of the field that failed validation
	Message string // Message is a descriptive error message explaining the validation failure
}

// Error implements the error interface for ValidationError.
// It returns a formatted string containing the field name and validation message.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Key returns the natural identity of the withdrawal, used as the
// insert-or-replace key by the storage layer.
func (w *FiatWithdrawal) Key() string {
	return w.OrderNo
}

// Validate checks that the withdrawal carries its identity key, a creation
// time, a currency code, and no negative monetary amounts.
// Returns a ValidationError describing the first failure found.
func (w *FiatWithdrawal) Validate() error {
	if w.OrderNo == "" {
		return &ValidationError{Field: "orderNo", Message: "order number cannot be empty"}
	}
	if w.FiatCurrency == "" {
		return &ValidationError{Field: "fiatCurrency", Message: "fiat currency cannot be empty"}
	}
	if w.IndicatedAmount < 0 {
		return &ValidationError{Field: "indicatedAmount", Message: "indicated amount cannot be negative"}
	}
	if w.Amount < 0 {
		return &ValidationError{Field: "amount", Message: "amount cannot be negative"}
	}
	if w.TotalFee < 0 {
		return &ValidationError{Field: "totalFee", Message: "total fee cannot be negative"}
	}
	if w.CreateTime <= 0 {
		return &ValidationError{Field: "createTime", Message: "create time must be a positive millisecond epoch"}
	}
	return nil
}

// CreatedAt returns the order creation time as a time.Time in UTC.
func (w *FiatWithdrawal) CreatedAt() time.Time {
	return time.UnixMilli(w.CreateTime).UTC()
}

// String returns a human-readable representation of the withdrawal.
// This method implements the fmt.Stringer interface.
func (w *FiatWithdrawal) String() string {
	return fmt.Sprintf("FiatWithdrawal{OrderNo: %s, Currency: %s, Amount: %.2f, Fee: %.2f, Status: %s, CreatedAt: %s}",
		w.OrderNo, w.FiatCurrency, w.Amount, w.TotalFee, w.Status, w.CreatedAt().Format(time.RFC3339))
}
