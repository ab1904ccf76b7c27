// Package storage provides an in-memory implementation of the storage
// interfaces for account-history persistence. This implementation uses
// thread-safe data structures and is intended for tests and dry runs where no
// database file should be written.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mlukasik/go-binance-export/internal/models"
)

// MemoryStore provides an in-memory implementation of the LedgerStore
// interface. It uses thread-safe maps keyed by each record's natural identity,
// so upserts overwrite rather than duplicate.
type MemoryStore struct {
	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Record storage keyed by natural identity
	withdrawals map[string]*models.FiatWithdrawal
	trades      map[string]*models.ConvertTrade
	deposits    map[string]*models.Deposit

	// Lifecycle state
	initialized bool
	closed      bool
}

// NewMemoryStore creates a new in-memory storage instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		withdrawals: make(map[string]*models.FiatWithdrawal),
		trades:      make(map[string]*models.ConvertTrade),
		deposits:    make(map[string]*models.Deposit),
	}
}

// LedgerWriter interface implementation

// UpsertFiatWithdrawals stores fiat withdrawals keyed by order number.
// Validates each record before any write and handles duplicates by overwriting.
func (m *MemoryStore) UpsertFiatWithdrawals(ctx context.Context, withdrawals []models.FiatWithdrawal) error {
	if ctx.Err() != nil {
		return NewStorageError("upsert", "fiat_withdrawals", "", ctx.Err())
	}

	if len(withdrawals) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NewStorageError("upsert", "fiat_withdrawals", "", errors.New("storage is closed"))
	}

	// Validate all records first so a bad record mutates nothing
	for i := range withdrawals {
		if err := withdrawals[i].Validate(); err != nil {
			return NewUpsertError("fiat_withdrawals", fmt.Errorf("invalid withdrawal at index %d: %w", i, err))
		}
	}

	for _, w := range withdrawals {
		withdrawalCopy := w
		m.withdrawals[w.Key()] = &withdrawalCopy
	}

	return nil
}

// UpsertConvertTrades stores convert trades keyed by quote id.
// Validates each record before any write and handles duplicates by overwriting.
func (m *MemoryStore) UpsertConvertTrades(ctx context.Context, trades []models.ConvertTrade) error {
	if ctx.Err() != nil {
		return NewStorageError("upsert", "convert_trades", "", ctx.Err())
	}

	if len(trades) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NewStorageError("upsert", "convert_trades", "", errors.New("storage is closed"))
	}

	for i := range trades {
		if err := trades[i].Validate(); err != nil {
			return NewUpsertError("convert_trades", fmt.Errorf("invalid trade at index %d: %w", i, err))
		}
	}

	for _, t := range trades {
		tradeCopy := t
		m.trades[t.Key()] = &tradeCopy
	}

	return nil
}

// UpsertDeposits stores crypto deposits keyed by deposit id.
// Validates each record before any write and handles duplicates by overwriting.
func (m *MemoryStore) UpsertDeposits(ctx context.Context, deposits []models.Deposit) error {
	if ctx.Err() != nil {
		return NewStorageError("upsert", "deposits", "", ctx.Err())
	}

	if len(deposits) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NewStorageError("upsert", "deposits", "", errors.New("storage is closed"))
	}

	for i := range deposits {
		if err := deposits[i].Validate(); err != nil {
			return NewUpsertError("deposits", fmt.Errorf("invalid deposit at index %d: %w", i, err))
		}
	}

	for _, d := range deposits {
		depositCopy := d
		m.deposits[d.Key()] = &depositCopy
	}

	return nil
}

// LedgerReader interface implementation

// Counts returns the number of stored records per table.
func (m *MemoryStore) Counts(ctx context.Context) (TableCounts, error) {
	if ctx.Err() != nil {
		return TableCounts{}, NewStorageError("count", "", "", ctx.Err())
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return TableCounts{}, NewStorageError("count", "", "", errors.New("storage is closed"))
	}

	return TableCounts{
		FiatWithdrawals: int64(len(m.withdrawals)),
		ConvertTrades:   int64(len(m.trades)),
		Deposits:        int64(len(m.deposits)),
	}, nil
}

// Read-back accessors used by tests and diagnostics

// GetFiatWithdrawal retrieves a stored withdrawal by order number.
// Returns nil if no withdrawal with that order number exists.
func (m *MemoryStore) GetFiatWithdrawal(ctx context.Context, orderNo string) (*models.FiatWithdrawal, error) {
	if ctx.Err() != nil {
		return nil, NewStorageError("get", "fiat_withdrawals", "", ctx.Err())
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, NewStorageError("get", "fiat_withdrawals", "", errors.New("storage is closed"))
	}

	w, ok := m.withdrawals[orderNo]
	if !ok {
		return nil, nil
	}

	// Return a copy to avoid external mutations
	withdrawalCopy := *w
	return &withdrawalCopy, nil
}

// GetConvertTrade retrieves a stored trade by quote id.
// Returns nil if no trade with that quote id exists.
func (m *MemoryStore) GetConvertTrade(ctx context.Context, quoteID string) (*models.ConvertTrade, error) {
	if ctx.Err() != nil {
		return nil, NewStorageError("get", "convert_trades", "", ctx.Err())
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, NewStorageError("get", "convert_trades", "", errors.New("storage is closed"))
	}

	t, ok := m.trades[quoteID]
	if !ok {
		return nil, nil
	}

	tradeCopy := *t
	return &tradeCopy, nil
}

// GetDeposit retrieves a stored deposit by id.
// Returns nil if no deposit with that id exists.
func (m *MemoryStore) GetDeposit(ctx context.Context, id string) (*models.Deposit, error) {
	if ctx.Err() != nil {
		return nil, NewStorageError("get", "deposits", "", ctx.Err())
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, NewStorageError("get", "deposits", "", errors.New("storage is closed"))
	}

	d, ok := m.deposits[id]
	if !ok {
		return nil, nil
	}

	depositCopy := *d
	return &depositCopy, nil
}

// StorageManager interface implementation

// Initialize prepares the memory storage for operation.
func (m *MemoryStore) Initialize(ctx context.Context) error {
	if ctx.Err() != nil {
		return NewStorageError("initialize", "", "", ctx.Err())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NewStorageError("initialize", "", "", errors.New("storage is closed"))
	}

	m.initialized = true
	return nil
}

// Close gracefully shuts down the memory storage.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil // Already closed, no error
	}

	m.closed = true
	return nil
}

// HealthCheck verifies that the memory storage is operational.
func (m *MemoryStore) HealthCheck(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return errors.New("storage is closed")
	}

	if !m.initialized {
		return errors.New("storage is not initialized")
	}

	return nil
}

// Compile-time interface compliance check
var (
	_ LedgerStore    = (*MemoryStore)(nil)
	_ LedgerWriter   = (*MemoryStore)(nil)
	_ LedgerReader   = (*MemoryStore)(nil)
	_ StorageManager = (*MemoryStore)(nil)
	_ HealthChecker  = (*MemoryStore)(nil)
)
