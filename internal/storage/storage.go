// Package storage defines the storage layer interfaces for account-history
// persistence. These interfaces provide abstractions over different storage
// backends (DuckDB, PostgreSQL, in-memory) while maintaining contract
// compatibility and enabling dependency injection.
package storage

import (
	"context"
	"fmt"

	"github.com/mlukasik/go-binance-export/internal/models"
)

// LedgerWriter handles record persistence for the three history tables.
// All writes are insert-or-replace on the record's natural key, so replaying
// a window that was already exported updates rows in place instead of
// duplicating them.
type LedgerWriter interface {
	// UpsertFiatWithdrawals persists fiat withdrawal orders keyed by order number.
	// A record whose order number already exists replaces the stored row.
	// All records are validated before any row is written.
	UpsertFiatWithdrawals(ctx context.Context, withdrawals []models.FiatWithdrawal) error

	// UpsertConvertTrades persists convert trades keyed by quote id.
	// A record whose quote id already exists replaces the stored row.
	// All records are validated before any row is written.
	UpsertConvertTrades(ctx context.Context, trades []models.ConvertTrade) error

	// UpsertDeposits persists crypto deposits keyed by deposit id.
	// A record whose id already exists replaces the stored row.
	// All records are validated before any row is written.
	UpsertDeposits(ctx context.Context, deposits []models.Deposit) error
}

// LedgerReader handles retrieval of stored history data.
type LedgerReader interface {
	// Counts returns the current number of rows in each history table.
	// Used for the end-of-run summary printed to the operator.
	Counts(ctx context.Context) (TableCounts, error)
}

// StorageManager handles storage lifecycle and operational concerns.
type StorageManager interface {
	// Initialize prepares the storage backend for operation.
	// This includes creating tables and indexes as required.
	// Should be idempotent and safe to call multiple times.
	Initialize(ctx context.Context) error

	// Close gracefully shuts down the storage backend.
	// After Close() is called, the storage instance should not be used.
	Close() error

	// HealthChecker embedded interface for health monitoring
	HealthChecker
}

// HealthChecker provides health monitoring capabilities for storage backends.
type HealthChecker interface {
	// HealthCheck verifies that the storage backend is operational.
	// This should perform a lightweight operation to verify connectivity
	// without impacting performance.
	HealthCheck(ctx context.Context) error
}

// LedgerStore combines all storage capabilities into a single interface.
// This is the primary interface that storage implementations should implement
// to provide complete account-history persistence functionality.
type LedgerStore interface {
	LedgerWriter
	LedgerReader
	StorageManager
}

// TableCounts holds the row count of each history table.
type TableCounts struct {
	// FiatWithdrawals is the number of rows in the fiat_withdrawals table
	FiatWithdrawals int64

	// ConvertTrades is the number of rows in the convert_trades table
	ConvertTrades int64

	// Deposits is the number of rows in the deposits table
	Deposits int64
}

// Total returns the combined row count across all history tables.
func (c TableCounts) Total() int64 {
	return c.FiatWithdrawals + c.ConvertTrades + c.Deposits
}

// Error types for storage operations

// StorageError represents errors that occur during storage operations.
// Provides structured error information for better error handling and debugging.
type StorageError struct {
	// Operation is the storage operation that failed (e.g., "upsert", "count")
	Operation string

	// Table is the database table involved in the operation
	Table string

	// Query is the SQL query or operation details (may be empty)
	Query string

	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for StorageError.
// Returns a formatted error message with operation context.
func (e *StorageError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("storage operation %s on table %s failed: %v", e.Operation, e.Table, e.Err)
	}
	return fmt.Sprintf("storage operation %s failed: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for error chain support.
// This enables errors.Is() and errors.As() functionality.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Common error constructors for storage operations

// NewStorageError creates a new StorageError with the provided details.
func NewStorageError(operation, table, query string, err error) *StorageError {
	return &StorageError{
		Operation: operation,
		Table:     table,
		Query:     query,
		Err:       err,
	}
}

// NewUpsertError creates a StorageError specifically for upsert operations.
func NewUpsertError(table string, err error) *StorageError {
	return &StorageError{
		Operation: "upsert",
		Table:     table,
		Err:       err,
	}
}

// NewQueryError creates a StorageError specifically for query operations.
func NewQueryError(table, query string, err error) *StorageError {
	return &StorageError{
		Operation: "query",
		Table:     table,
		Query:     query,
		Err:       err,
	}
}
