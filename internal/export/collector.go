package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mlukasik/go-binance-export/internal/models"
	"github.com/mlukasik/go-binance-export/internal/storage"
)

// HistorySource is the provider surface the runner collects from.
// *binance.Client satisfies it.
type HistorySource interface {
	ClockSource
	FiatWithdrawals(ctx context.Context, startTime, endTime int64) ([]models.FiatWithdrawal, error)
	ConvertTrades(ctx context.Context, startTime, endTime int64) ([]models.ConvertTrade, error)
	Deposits(ctx context.Context, startTime, endTime int64) ([]models.Deposit, error)
}

// Config holds the runner's planning and pacing settings.
type Config struct {
	// MonthInterval is the planner's step in months.
	MonthInterval int

	// Fetcher carries the pacing knobs of the per-window fetcher.
	Fetcher FetcherConfig
}

// DefaultConfig returns the runner defaults: one-month windows, standard
// resync pacing, no inter-call delay.
func DefaultConfig() Config {
	return Config{
		MonthInterval: 1,
		Fetcher:       DefaultFetcherConfig(),
	}
}

// Summary reports what one export run planned, fetched and stored.
type Summary struct {
	RunID           string
	Windows         int
	FiatWithdrawals int
	ConvertTrades   int
	Deposits        int
	Recoveries      int
	Counts          storage.TableCounts
	Duration        time.Duration
}

// Runner assembles the three full histories and hands them to storage.
// Collection is strictly sequential (the resync-wait design assumes one
// in-flight request) and all three kinds are collected completely before the
// first row is written, so a failing kind aborts the run with the store
// untouched.
type Runner struct {
	source HistorySource
	store  storage.LedgerStore
	config Config
	logger *slog.Logger

	// now is the clock used for planning, replaceable in tests.
	now func() time.Time
}

// NewRunner creates a Runner over the given source and store.
func NewRunner(source HistorySource, store storage.LedgerStore, config Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		source: source,
		store:  store,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Collect fetches one kind's records across every window in order,
// concatenating pages as windows yield data. Windows without data contribute
// nothing; record order follows window order.
func Collect[T any](ctx context.Context, f *Fetcher, windows []Window, retrieve FetchFunc[T], kind string) ([]T, error) {
	var records []T

	for i, window := range windows {
		f.logger.Info("fetching history window",
			"kind", kind,
			"window", window.String(),
			"progress", fmt.Sprintf("%d/%d", i+1, len(windows)))

		page, err := fetchWindow(ctx, f, retrieve, window)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		records = append(records, page...)
	}

	return records, nil
}

// Run executes one export: plan windows from fromDate, collect the three
// histories, upsert them, and report the resulting table counts.
func (r *Runner) Run(ctx context.Context, fromDate string) (*Summary, error) {
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)
	started := r.now()

	windows, err := Plan(fromDate, started.UTC(), r.config.MonthInterval)
	if err != nil {
		return nil, err
	}

	summary := &Summary{RunID: runID, Windows: len(windows)}

	if len(windows) == 0 {
		logger.Warn("from-date is in a future month, nothing to export", "from_date", fromDate)
		counts, err := r.store.Counts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read table counts: %w", err)
		}
		summary.Counts = counts
		summary.Duration = r.now().Sub(started)
		return summary, nil
	}

	logger.Info("starting export",
		"from_date", fromDate,
		"windows", len(windows),
		"month_interval", r.config.MonthInterval)

	fetcher := NewFetcher(r.source, r.config.Fetcher, logger)

	withdrawals, err := Collect(ctx, fetcher, windows, r.source.FiatWithdrawals, "fiat withdrawals")
	if err != nil {
		return nil, err
	}

	trades, err := Collect(ctx, fetcher, windows, r.source.ConvertTrades, "convert trades")
	if err != nil {
		return nil, err
	}

	deposits, err := Collect(ctx, fetcher, windows, r.source.Deposits, "deposits")
	if err != nil {
		return nil, err
	}

	summary.FiatWithdrawals = len(withdrawals)
	summary.ConvertTrades = len(trades)
	summary.Deposits = len(deposits)
	summary.Recoveries = fetcher.Recoveries()

	logger.Info("collection complete, writing to store",
		"fiat_withdrawals", len(withdrawals),
		"convert_trades", len(trades),
		"deposits", len(deposits),
		"recoveries", summary.Recoveries)

	if err := r.store.UpsertFiatWithdrawals(ctx, withdrawals); err != nil {
		return nil, err
	}
	if err := r.store.UpsertConvertTrades(ctx, trades); err != nil {
		return nil, err
	}
	if err := r.store.UpsertDeposits(ctx, deposits); err != nil {
		return nil, err
	}

	counts, err := r.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read table counts: %w", err)
	}
	summary.Counts = counts
	summary.Duration = r.now().Sub(started)

	logger.Info("export complete",
		"fiat_withdrawals", counts.FiatWithdrawals,
		"convert_trades", counts.ConvertTrades,
		"deposits", counts.Deposits,
		"duration", summary.Duration)

	return summary, nil
}
