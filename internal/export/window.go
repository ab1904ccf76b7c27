// Package export implements the history export pipeline: month-granular
// window planning, the rate-limit-aware window fetcher, and the runner that
// assembles full histories and hands them to storage.
package export

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDateFormat reports a from-date that does not parse as "YYYY-MM".
var ErrInvalidDateFormat = errors.New("invalid date format, expected YYYY-MM")

// Window is a half-open UTC time interval [Start, End) bounding one history
// query.
type Window struct {
	Start time.Time
	End   time.Time
}

// StartMillis returns the window start as a millisecond epoch, the form the
// provider's range parameters take.
func (w Window) StartMillis() int64 {
	return w.Start.UnixMilli()
}

// EndMillis returns the window end as a millisecond epoch.
func (w Window) EndMillis() int64 {
	return w.End.UnixMilli()
}

// String returns the window in a compact date form for logs.
// This method implements the fmt.Stringer interface.
func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

// ParseFromDate parses a "YYYY-MM" month into the first instant of that month
// in UTC. Failures wrap ErrInvalidDateFormat.
func ParseFromDate(fromDate string) (time.Time, error) {
	start, err := time.Parse("2006-01", fromDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, fromDate)
	}
	return start, nil
}

// Plan partitions [fromDate, now+1 month) into ordered, contiguous,
// non-overlapping windows.
//
// Boundaries step monthInterval months from the first day of fromDate's
// month for as long as they do not pass now's month, inclusive; one final
// boundary at now plus one month then covers the current partial month. The
// stepping compares whole year-months, so plans that cross a year boundary
// stay correct. A fromDate in a future month yields an empty plan and no
// error.
func Plan(fromDate string, now time.Time, monthInterval int) ([]Window, error) {
	start, err := ParseFromDate(fromDate)
	if err != nil {
		return nil, err
	}
	if monthInterval < 1 {
		return nil, fmt.Errorf("month interval must be positive, got %d", monthInterval)
	}

	now = now.UTC()
	currentMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var boundaries []time.Time
	for b := start; !b.After(currentMonth); b = b.AddDate(0, monthInterval, 0) {
		boundaries = append(boundaries, b)
	}
	boundaries = append(boundaries, now.AddDate(0, 1, 0))

	if len(boundaries) < 2 {
		return nil, nil
	}

	windows := make([]Window, 0, len(boundaries)-1)
	for i := 0; i < len(boundaries)-1; i++ {
		windows = append(windows, Window{Start: boundaries[i], End: boundaries[i+1]})
	}

	return windows, nil
}
