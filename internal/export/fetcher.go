package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mlukasik/go-binance-export/internal/binance"
)

const (
	// defaultPauseInterval is the fixed wait after a provider failure before
	// the clock-resync polling starts, long enough for the violation to be
	// registered on the provider side.
	defaultPauseInterval = 5 * time.Second

	// defaultPollInterval separates consecutive clock-resync pings.
	defaultPollInterval = 5 * time.Second
)

// ClockSource reports the provider's clock, read from a lightweight
// always-available call. *binance.Client satisfies it with Ping.
type ClockSource interface {
	Ping(ctx context.Context) (time.Time, error)
}

// FetchFunc retrieves one kind's records for a window, with both bounds in
// millisecond epoch.
type FetchFunc[T any] func(ctx context.Context, startTime, endTime int64) ([]T, error)

// FetcherConfig holds the pacing knobs of the resilient fetcher.
type FetcherConfig struct {
	// PauseInterval is the fixed wait between a provider failure and the
	// first resync ping.
	PauseInterval time.Duration

	// PollInterval separates consecutive resync pings.
	PollInterval time.Duration

	// RequestDelay, when positive, throttles the pipeline by sleeping after
	// every successful fetch.
	RequestDelay time.Duration
}

// DefaultFetcherConfig returns the pacing the provider's per-minute rate
// accounting is known to tolerate.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		PauseInterval: defaultPauseInterval,
		PollInterval:  defaultPollInterval,
		RequestDelay:  0,
	}
}

// Fetcher performs window fetches with at most one clock-resync retry per
// window. The retry is gated on the provider's clock minute advancing past
// the failed call's minute, which lands the retry in a fresh rate-limit
// accounting window.
type Fetcher struct {
	clock      ClockSource
	config     FetcherConfig
	logger     *slog.Logger
	recoveries int

	// sleep is replaceable in tests so pacing can be observed without
	// real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a Fetcher that polls the given clock source during
// resync waits.
func NewFetcher(clock ClockSource, config FetcherConfig, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		clock:  clock,
		config: config,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Recoveries returns how many windows needed a successful resync retry.
func (f *Fetcher) Recoveries() int {
	return f.recoveries
}

// fetchWindow retrieves one window's records. On a provider error it pauses,
// waits for the provider's clock minute to advance past the failed
// response's minute, and retries exactly once; a second failure propagates
// to the caller. Errors that are not provider errors never retry.
func fetchWindow[T any](ctx context.Context, f *Fetcher, retrieve FetchFunc[T], window Window) ([]T, error) {
	records, err := retrieve(ctx, window.StartMillis(), window.EndMillis())
	if err == nil {
		if err := f.throttle(ctx); err != nil {
			return nil, err
		}
		return records, nil
	}

	var apiErr *binance.APIError
	if !errors.As(err, &apiErr) {
		return nil, err
	}

	if apiErr.RateLimited() {
		f.logger.Warn("hit provider rate limit, waiting for a fresh minute",
			"window", window.String(),
			"status", apiErr.StatusCode,
			"code", apiErr.Code)
	} else {
		f.logger.Warn("provider error, retrying after clock resync",
			"window", window.String(),
			"status", apiErr.StatusCode,
			"code", apiErr.Code)
	}

	if err := f.sleep(ctx, f.config.PauseInterval); err != nil {
		return nil, err
	}
	if err := f.awaitMinuteRollover(ctx, apiErr.ServerTime); err != nil {
		return nil, err
	}

	records, err = retrieve(ctx, window.StartMillis(), window.EndMillis())
	if err != nil {
		return nil, fmt.Errorf("retry for window %s failed: %w", window, err)
	}

	f.recoveries++
	f.logger.Info("recovered after clock resync", "window", window.String())

	if err := f.throttle(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

// throttle applies the optional inter-call delay after a successful fetch.
func (f *Fetcher) throttle(ctx context.Context) error {
	if f.config.RequestDelay <= 0 {
		return nil
	}
	return f.sleep(ctx, f.config.RequestDelay)
}

// awaitMinuteRollover blocks until the provider reports a clock minute
// different from the failed call's. When the failed response carried no Date
// header, the first ping establishes the baseline instead. The wait has no
// overall timeout; it ends when the minute advances, the context is
// cancelled, or a resync ping itself fails.
func (f *Fetcher) awaitMinuteRollover(ctx context.Context, failedAt time.Time) error {
	baseline := failedAt
	haveBaseline := !failedAt.IsZero()

	operation := func() error {
		serverTime, err := f.clock.Ping(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("resync ping failed: %w", err))
		}

		if !haveBaseline {
			baseline = serverTime
			haveBaseline = true
			return fmt.Errorf("establishing baseline at minute %02d", baseline.Minute())
		}

		if serverTime.Minute() == baseline.Minute() {
			f.logger.Info("waiting for provider minute to advance",
				"server_minute", serverTime.Minute())
			return fmt.Errorf("provider still in minute %02d", serverTime.Minute())
		}

		return nil
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(f.config.PollInterval), ctx)
	return backoff.Retry(operation, policy)
}

// sleepContext blocks for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
