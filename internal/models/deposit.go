package models

import (
	"fmt"
	"time"
)

// Deposit represents one crypto deposit from the provider's deposit history.
// The amount arrives on the wire as a decimal string and is parsed to float64
// before a Deposit is built; status and wallet fields are small provider
// enums kept as integers.
type Deposit struct {
	ID            string  `json:"id" db:"id"`
	Amount        float64 `json:"amount" db:"amount"`
	Coin          string  `json:"coin" db:"coin"`
	Network       string  `json:"network" db:"network"`
	Status        int64   `json:"status" db:"status"`
	Address       string  `json:"address" db:"address"`
	AddressTag    string  `json:"addressTag" db:"address_tag"`
	TxID          string  `json:"txId" db:"tx_id"`
	InsertTime    int64   `json:"insertTime" db:"insert_time"`
	TransferType  int64   `json:"transferType" db:"transfer_type"`
	ConfirmTimes  string  `json:"confirmTimes" db:"confirm_times"`
	UnlockConfirm int64   `json:"unlockConfirm" db:"unlock_confirm"`
	WalletType    int64   `json:"walletType" db:"wallet_type"`
}

// Key returns the natural identity of the deposit, used as the
// insert-or-replace key by the storage layer.
func (d *Deposit) Key() string {
	return d.ID
}

// Validate checks that the deposit carries its identity key, a coin code, an
// insert time, and a non-negative amount.
// Returns a ValidationError describing the first failure found.
func (d *Deposit) Validate() error {
	if d.ID == "" {
		return &ValidationError{Field: "id", Message: "deposit id cannot be empty"}
	}
	if d.Coin == "" {
		return &ValidationError{Field: "coin", Message: "coin cannot be empty"}
	}
	if d.Amount < 0 {
		return &ValidationError{Field: "amount", Message: "amount cannot be negative"}
	}
	if d.InsertTime <= 0 {
		return &ValidationError{Field: "insertTime", Message: "insert time must be a positive millisecond epoch"}
	}
	return nil
}

// CreditedAt returns the time the deposit was credited as a time.Time in UTC.
func (d *Deposit) CreditedAt() time.Time {
	return time.UnixMilli(d.InsertTime).UTC()
}

// String returns a human-readable representation of the deposit.
// This method implements the fmt.Stringer interface.
func (d *Deposit) String() string {
	return fmt.Sprintf("Deposit{ID: %s, Coin: %s, Amount: %.8f, Network: %s, Status: %d, CreditedAt: %s}",
		d.ID, d.Coin, d.Amount, d.Network, d.Status, d.CreditedAt().Format(time.RFC3339))
}
