package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlukasik/go-binance-export/internal/models"
)

// postgresTestDSN returns the connection string for integration tests, or
// skips the test when no database is available.
func postgresTestDSN(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("BINANCE_EXPORT_POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("BINANCE_EXPORT_POSTGRES_TEST_DSN not set, skipping PostgreSQL integration test")
	}
	return dsn
}

func createTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	ctx := context.Background()
	store, err := NewPostgresStore(ctx, postgresTestDSN(t), createTestLogger())
	require.NoError(t, err, "failed to connect to test PostgreSQL database")

	require.NoError(t, store.Initialize(ctx))

	// Start from empty tables so counts are deterministic
	for _, table := range []string{"fiat_withdrawals", "convert_trades", "deposits"} {
		_, err := store.pool.Exec(ctx, "TRUNCATE TABLE "+table)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func TestPostgresStore_UpsertAndCounts(t *testing.T) {
	store := createTestPostgresStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertFiatWithdrawals(ctx, []models.FiatWithdrawal{
		testWithdrawal("W1"),
		testWithdrawal("W2"),
	}))
	require.NoError(t, store.UpsertConvertTrades(ctx, []models.ConvertTrade{testTrade("quote-1")}))
	require.NoError(t, store.UpsertDeposits(ctx, []models.Deposit{testDeposit("dep-1")}))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.FiatWithdrawals)
	assert.Equal(t, int64(1), counts.ConvertTrades)
	assert.Equal(t, int64(1), counts.Deposits)
}

func TestPostgresStore_UpsertReplacesOnKey(t *testing.T) {
	store := createTestPostgresStore(t)
	ctx := context.Background()

	first := testWithdrawal("W1")
	require.NoError(t, store.UpsertFiatWithdrawals(ctx, []models.FiatWithdrawal{first}))

	second := testWithdrawal("W1")
	second.Amount = 75.25
	second.Status = "Refunded"
	require.NoError(t, store.UpsertFiatWithdrawals(ctx, []models.FiatWithdrawal{second}))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.FiatWithdrawals, "duplicate key must not create a second row")

	var amount float64
	var status string
	err = store.pool.QueryRow(ctx,
		"SELECT amount, status FROM fiat_withdrawals WHERE order_no = $1", "W1").
		Scan(&amount, &status)
	require.NoError(t, err)
	assert.Equal(t, 75.25, amount, "latest values must win")
	assert.Equal(t, "Refunded", status)
}

func TestPostgresStore_HealthCheck(t *testing.T) {
	store := createTestPostgresStore(t)
	ctx := context.Background()

	assert.NoError(t, store.HealthCheck(ctx))

	require.NoError(t, store.Close())
	assert.Error(t, store.HealthCheck(ctx))
}
