// Package storage provides a DuckDB-backed implementation of the LedgerStore
// interface. DuckDB runs embedded in the process, so the default export setup
// needs nothing beyond a writable database file.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/mlukasik/go-binance-export/internal/models"
)

// DuckDBStore implements the LedgerStore interface using DuckDB as the backend.
// Writes use INSERT OR REPLACE keyed on each record's natural identity, so
// re-exporting an already covered period rewrites rows instead of duplicating
// them.
type DuckDBStore struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewDuckDBStore creates a new DuckDB storage instance.
// The dbPath can be ":memory:" for an in-memory database or a file path for
// persistent storage.
func NewDuckDBStore(dbPath string, logger *slog.Logger) (*DuckDBStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, NewStorageError("open", "", "", fmt.Errorf("failed to open DuckDB database: %w", err))
	}

	// Configure connection pool for single writer pattern as recommended for DuckDB
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &DuckDBStore{
		db:     db,
		dbPath: dbPath,
		logger: logger,
	}, nil
}

// Initialize implements StorageManager.Initialize
// Creates the three history tables and their indexes if they do not exist yet.
func (d *DuckDBStore) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.Info("initializing DuckDB storage", "db_path", d.dbPath)

	if err := d.createFiatWithdrawalsTable(ctx); err != nil {
		return NewStorageError("initialize", "fiat_withdrawals", "", fmt.Errorf("failed to create fiat_withdrawals table: %w", err))
	}

	if err := d.createConvertTradesTable(ctx); err != nil {
		return NewStorageError("initialize", "convert_trades", "", fmt.Errorf("failed to create convert_trades table: %w", err))
	}

	if err := d.createDepositsTable(ctx); err != nil {
		return NewStorageError("initialize", "deposits", "", fmt.Errorf("failed to create deposits table: %w", err))
	}

	if err := d.createIndexes(ctx); err != nil {
		return NewStorageError("initialize", "", "", fmt.Errorf("failed to create indexes: %w", err))
	}

	d.logger.Info("DuckDB storage initialized successfully")
	return nil
}

// createFiatWithdrawalsTable creates the fiat withdrawal orders table keyed by order number
func (d *DuckDBStore) createFiatWithdrawalsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS fiat_withdrawals (
		order_no VARCHAR NOT NULL,
		fiat_currency VARCHAR NOT NULL,
		indicated_amount DOUBLE NOT NULL,
		amount DOUBLE NOT NULL,
		total_fee DOUBLE NOT NULL,
		method VARCHAR,
		status VARCHAR,
		create_time BIGINT NOT NULL,
		update_time BIGINT,
		CONSTRAINT fiat_withdrawals_pk PRIMARY KEY (order_no),
		CONSTRAINT fiat_withdrawals_amounts_non_negative CHECK (indicated_amount >= 0 AND amount >= 0 AND total_fee >= 0)
	)`

	_, err := d.db.ExecContext(ctx, query)
	return err
}

// createConvertTradesTable creates the convert trades table keyed by quote id
func (d *DuckDBStore) createConvertTradesTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS convert_trades (
		quote_id VARCHAR NOT NULL,
		order_id BIGINT,
		order_status VARCHAR,
		from_asset VARCHAR NOT NULL,
		from_amount DOUBLE NOT NULL,
		to_asset VARCHAR NOT NULL,
		to_amount DOUBLE NOT NULL,
		ratio DOUBLE NOT NULL,
		inverse_ratio DOUBLE,
		create_time BIGINT NOT NULL,
		order_type VARCHAR,
		side VARCHAR,
		CONSTRAINT convert_trades_pk PRIMARY KEY (quote_id),
		CONSTRAINT convert_trades_amounts_non_negative CHECK (from_amount >= 0 AND to_amount >= 0)
	)`

	_, err := d.db.ExecContext(ctx, query)
	return err
}

// createDepositsTable creates the crypto deposits table keyed by deposit id
func (d *DuckDBStore) createDepositsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS deposits (
		id VARCHAR NOT NULL,
		amount DOUBLE NOT NULL,
		coin VARCHAR NOT NULL,
		network VARCHAR,
		status BIGINT NOT NULL,
		address VARCHAR,
		address_tag VARCHAR,
		tx_id VARCHAR,
		insert_time BIGINT NOT NULL,
		transfer_type BIGINT,
		confirm_times VARCHAR,
		unlock_confirm BIGINT,
		wallet_type BIGINT,
		CONSTRAINT deposits_pk PRIMARY KEY (id),
		CONSTRAINT deposits_amount_non_negative CHECK (amount >= 0)
	)`

	_, err := d.db.ExecContext(ctx, query)
	return err
}

// createIndexes creates indexes for the common time-ordered and per-asset queries
func (d *DuckDBStore) createIndexes(ctx context.Context) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_fiat_withdrawals_create_time ON fiat_withdrawals (create_time)",
		"CREATE INDEX IF NOT EXISTS idx_fiat_withdrawals_currency ON fiat_withdrawals (fiat_currency)",
		"CREATE INDEX IF NOT EXISTS idx_convert_trades_create_time ON convert_trades (create_time)",
		"CREATE INDEX IF NOT EXISTS idx_convert_trades_assets ON convert_trades (from_asset, to_asset)",
		"CREATE INDEX IF NOT EXISTS idx_deposits_insert_time ON deposits (insert_time)",
		"CREATE INDEX IF NOT EXISTS idx_deposits_coin ON deposits (coin)",
	}

	for _, indexQuery := range indexes {
		if _, err := d.db.ExecContext(ctx, indexQuery); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// UpsertFiatWithdrawals implements LedgerWriter.UpsertFiatWithdrawals
func (d *DuckDBStore) UpsertFiatWithdrawals(ctx context.Context, withdrawals []models.FiatWithdrawal) error {
	if len(withdrawals) == 0 {
		return nil
	}

	for i := range withdrawals {
		if err := withdrawals[i].Validate(); err != nil {
			return NewUpsertError("fiat_withdrawals", fmt.Errorf("invalid withdrawal at index %d: %w", i, err))
		}
	}

	start := time.Now()

	query := `
		INSERT OR REPLACE INTO fiat_withdrawals (order_no, fiat_currency, indicated_amount,
		                                         amount, total_fee, method, status,
		                                         create_time, update_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	err := d.execBatch(ctx, "fiat_withdrawals", query, len(withdrawals), func(stmt *sql.Stmt, i int) error {
		w := withdrawals[i]
		_, err := stmt.ExecContext(ctx,
			w.OrderNo,
			w.FiatCurrency,
			w.IndicatedAmount,
			w.Amount,
			w.TotalFee,
			w.Method,
			w.Status,
			w.CreateTime,
			w.UpdateTime,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert withdrawal %s: %w", w.OrderNo, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	d.logger.Debug("upserted fiat withdrawals", "count", len(withdrawals), "duration", time.Since(start))
	return nil
}

// UpsertConvertTrades implements LedgerWriter.UpsertConvertTrades
func (d *DuckDBStore) UpsertConvertTrades(ctx context.Context, trades []models.ConvertTrade) error {
	if len(trades) == 0 {
		return nil
	}

	for i := range trades {
		if err := trades[i].Validate(); err != nil {
			return NewUpsertError("convert_trades", fmt.Errorf("invalid trade at index %d: %w", i, err))
		}
	}

	start := time.Now()

	query := `
		INSERT OR REPLACE INTO convert_trades (quote_id, order_id, order_status,
		                                       from_asset, from_amount, to_asset, to_amount,
		                                       ratio, inverse_ratio, create_time, order_type, side)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	err := d.execBatch(ctx, "convert_trades", query, len(trades), func(stmt *sql.Stmt, i int) error {
		t := trades[i]
		_, err := stmt.ExecContext(ctx,
			t.QuoteID,
			t.OrderID,
			t.OrderStatus,
			t.FromAsset,
			t.FromAmount,
			t.ToAsset,
			t.ToAmount,
			t.Ratio,
			t.InverseRatio,
			t.CreateTime,
			t.OrderType,
			t.Side,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert trade %s: %w", t.QuoteID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	d.logger.Debug("upserted convert trades", "count", len(trades), "duration", time.Since(start))
	return nil
}

// UpsertDeposits implements LedgerWriter.UpsertDeposits
func (d *DuckDBStore) UpsertDeposits(ctx context.Context, deposits []models.Deposit) error {
	if len(deposits) == 0 {
		return nil
	}

	for i := range deposits {
		if err := deposits[i].Validate(); err != nil {
			return NewUpsertError("deposits", fmt.Errorf("invalid deposit at index %d: %w", i, err))
		}
	}

	start := time.Now()

	query := `
		INSERT OR REPLACE INTO deposits (id, amount, coin, network, status,
		                                 address, address_tag, tx_id, insert_time,
		                                 transfer_type, confirm_times, unlock_confirm, wallet_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	err := d.execBatch(ctx, "deposits", query, len(deposits), func(stmt *sql.Stmt, i int) error {
		dep := deposits[i]
		_, err := stmt.ExecContext(ctx,
			dep.ID,
			dep.Amount,
			dep.Coin,
			dep.Network,
			dep.Status,
			dep.Address,
			dep.AddressTag,
			dep.TxID,
			dep.InsertTime,
			dep.TransferType,
			dep.ConfirmTimes,
			dep.UnlockConfirm,
			dep.WalletType,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert deposit %s: %w", dep.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	d.logger.Debug("upserted deposits", "count", len(deposits), "duration", time.Since(start))
	return nil
}

// execBatch runs a prepared statement once per record inside a single
// transaction. The whole batch commits or rolls back together, so a failure
// midway leaves the table untouched.
func (d *DuckDBStore) execBatch(ctx context.Context, table, query string, n int, exec func(stmt *sql.Stmt, i int) error) error {
	d.mu.RLock()
	db := d.db
	d.mu.RUnlock()

	if db == nil {
		return NewUpsertError(table, fmt.Errorf("database connection is closed"))
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return NewUpsertError(table, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return NewUpsertError(table, fmt.Errorf("failed to prepare statement: %w", err))
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return NewUpsertError(table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewUpsertError(table, fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// Counts implements LedgerReader.Counts
func (d *DuckDBStore) Counts(ctx context.Context) (TableCounts, error) {
	d.mu.RLock()
	db := d.db
	d.mu.RUnlock()

	if db == nil {
		return TableCounts{}, NewQueryError("", "", fmt.Errorf("database connection is closed"))
	}

	var counts TableCounts

	queries := []struct {
		table string
		dest  *int64
	}{
		{"fiat_withdrawals", &counts.FiatWithdrawals},
		{"convert_trades", &counts.ConvertTrades},
		{"deposits", &counts.Deposits},
	}

	for _, q := range queries {
		query := "SELECT COUNT(*) FROM " + q.table
		if err := db.QueryRowContext(ctx, query).Scan(q.dest); err != nil {
			return TableCounts{}, NewQueryError(q.table, query, fmt.Errorf("failed to count rows: %w", err))
		}
	}

	return counts, nil
}

// Close implements StorageManager.Close
func (d *DuckDBStore) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		d.logger.Info("closing DuckDB storage")
		if err := d.db.Close(); err != nil {
			return NewStorageError("close", "", "", fmt.Errorf("failed to close database: %w", err))
		}
		d.db = nil
	}

	return nil
}

// HealthCheck implements HealthChecker.HealthCheck
func (d *DuckDBStore) HealthCheck(ctx context.Context) error {
	d.mu.RLock()
	db := d.db
	d.mu.RUnlock()

	if db == nil {
		return NewStorageError("health_check", "", "", fmt.Errorf("database health check failed: database connection is closed"))
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return NewStorageError("health_check", "", "SELECT 1", fmt.Errorf("database health check failed: %w", err))
	}

	if result != 1 {
		return NewStorageError("health_check", "", "SELECT 1", fmt.Errorf("unexpected health check result: %d", result))
	}

	return nil
}

// Compile-time interface compliance check
var (
	_ LedgerStore    = (*DuckDBStore)(nil)
	_ LedgerWriter   = (*DuckDBStore)(nil)
	_ LedgerReader   = (*DuckDBStore)(nil)
	_ StorageManager = (*DuckDBStore)(nil)
	_ HealthChecker  = (*DuckDBStore)(nil)
)
