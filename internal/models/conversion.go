package models

import (
	"fmt"
	"time"
)

// ConvertTrade represents one completed currency conversion from the
// provider's convert trade flow. Amounts and ratios arrive on the wire as
// decimal strings and are parsed to float64 before a ConvertTrade is built.
type ConvertTrade struct {
	QuoteID      string  `json:"quoteId" db:"quote_id"`
	OrderID      int64   `json:"orderId" db:"order_id"`
	OrderStatus  string  `json:"orderStatus" db:"order_status"`
	FromAsset    string  `json:"fromAsset" db:"from_asset"`
	FromAmount   float64 `json:"fromAmount" db:"from_amount"`
	ToAsset      string  `json:"toAsset" db:"to_asset"`
	ToAmount     float64 `json:"toAmount" db:"to_amount"`
	Ratio        float64 `json:"ratio" db:"ratio"`
	InverseRatio float64 `json:"inverseRatio" db:"inverse_ratio"`
	CreateTime   int64   `json:"createTime" db:"create_time"`
	OrderType    string  `json:"orderType" db:"order_type"`
	Side         string  `json:"side" db:"side"`
}

// Key returns the natural identity of the trade, used as the
// insert-or-replace key by the storage layer.
func (t *ConvertTrade) Key() string {
	return t.QuoteID
}

// Validate checks that the trade carries its identity key, both asset codes,
// a creation time, and no negative amounts or ratios.
// Returns a ValidationError describing the first failure found.
func (t *ConvertTrade) Validate() error {
	if t.QuoteID == "" {
		return &ValidationError{Field: "quoteId", Message: "quote id cannot be empty"}
	}
	if t.FromAsset == "" {
		return &ValidationError{Field: "fromAsset", Message: "from asset cannot be empty"}
	}
	if t.ToAsset == "" {
		return &ValidationError{Field: "toAsset", Message: "to asset cannot be empty"}
	}
	if t.FromAmount < 0 {
		return &ValidationError{Field: "fromAmount", Message: "from amount cannot be negative"}
	}
	if t.ToAmount < 0 {
		return &ValidationError{Field: "toAmount", Message: "to amount cannot be negative"}
	}
	if t.Ratio < 0 {
		return &ValidationError{Field: "ratio", Message: "ratio cannot be negative"}
	}
	if t.InverseRatio < 0 {
		return &ValidationError{Field: "inverseRatio", Message: "inverse ratio cannot be negative"}
	}
	if t.CreateTime <= 0 {
		return &ValidationError{Field: "createTime", Message: "create time must be a positive millisecond epoch"}
	}
	return nil
}

// CreatedAt returns the trade creation time as a time.Time in UTC.
func (t *ConvertTrade) CreatedAt() time.Time {
	return time.UnixMilli(t.CreateTime).UTC()
}

// String returns a human-readable representation of the trade.
// This method implements the fmt.Stringer interface.
func (t *ConvertTrade) String() string {
	return fmt.Sprintf("ConvertTrade{QuoteID: %s, %s %.8f -> %s %.8f, Status: %s, CreatedAt: %s}",
		t.QuoteID, t.FromAsset, t.FromAmount, t.ToAsset, t.ToAmount, t.OrderStatus, t.CreatedAt().Format(time.RFC3339))
}
