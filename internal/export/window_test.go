package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestParseFromDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
		wantErr  bool
	}{
		{
			name:     "first month of year",
			input:    "2024-01",
			expected: date(2024, time.January, 1),
		},
		{
			name:     "last month of year",
			input:    "2023-12",
			expected: date(2023, time.December, 1),
		},
		{
			name:    "year only",
			input:   "2024",
			wantErr: true,
		},
		{
			name:    "month out of range",
			input:   "2024-13",
			wantErr: true,
		},
		{
			name:    "month first",
			input:   "01-2024",
			wantErr: true,
		},
		{
			name:    "single digit month",
			input:   "2024-1",
			wantErr: true,
		},
		{
			name:    "full date",
			input:   "2024-01-15",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFromDate(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidDateFormat)
				return
			}

			require.NoError(t, err)
			assert.True(t, got.Equal(tt.expected), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestPlan_MonthlyWindows(t *testing.T) {
	now := date(2024, time.March, 15)

	windows, err := Plan("2024-01", now, 1)
	require.NoError(t, err)
	require.Len(t, windows, 3)

	expected := []Window{
		{Start: date(2024, time.January, 1), End: date(2024, time.February, 1)},
		{Start: date(2024, time.February, 1), End: date(2024, time.March, 1)},
		{Start: date(2024, time.March, 1), End: date(2024, time.April, 15)},
	}

	for i, want := range expected {
		assert.True(t, windows[i].Start.Equal(want.Start), "window %d start: expected %s, got %s", i, want.Start, windows[i].Start)
		assert.True(t, windows[i].End.Equal(want.End), "window %d end: expected %s, got %s", i, want.End, windows[i].End)
	}
}

func TestPlan_MultiMonthInterval(t *testing.T) {
	now := date(2024, time.May, 10)

	windows, err := Plan("2024-01", now, 2)
	require.NoError(t, err)
	require.Len(t, windows, 3)

	expected := []Window{
		{Start: date(2024, time.January, 1), End: date(2024, time.March, 1)},
		{Start: date(2024, time.March, 1), End: date(2024, time.May, 1)},
		{Start: date(2024, time.May, 1), End: date(2024, time.June, 10)},
	}

	for i, want := range expected {
		assert.True(t, windows[i].Start.Equal(want.Start), "window %d start: expected %s, got %s", i, want.Start, windows[i].Start)
		assert.True(t, windows[i].End.Equal(want.End), "window %d end: expected %s, got %s", i, want.End, windows[i].End)
	}
}

func TestPlan_CurrentMonth(t *testing.T) {
	now := date(2024, time.March, 15)

	// Export starting in the month that is still in progress
	windows, err := Plan("2024-03", now, 1)
	require.NoError(t, err)
	require.Len(t, windows, 1)

	assert.True(t, windows[0].Start.Equal(date(2024, time.March, 1)))
	assert.True(t, windows[0].End.Equal(date(2024, time.April, 15)))
}

func TestPlan_FutureMonth(t *testing.T) {
	now := date(2024, time.March, 15)

	// A start month after now yields nothing to export, not an error
	windows, err := Plan("2024-06", now, 1)
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestPlan_YearBoundary(t *testing.T) {
	now := date(2024, time.January, 20)

	windows, err := Plan("2023-11", now, 1)
	require.NoError(t, err)
	require.Len(t, windows, 3)

	expected := []Window{
		{Start: date(2023, time.November, 1), End: date(2023, time.December, 1)},
		{Start: date(2023, time.December, 1), End: date(2024, time.January, 1)},
		{Start: date(2024, time.January, 1), End: date(2024, time.February, 20)},
	}

	for i, want := range expected {
		assert.True(t, windows[i].Start.Equal(want.Start), "window %d start: expected %s, got %s", i, want.Start, windows[i].Start)
		assert.True(t, windows[i].End.Equal(want.End), "window %d end: expected %s, got %s", i, want.End, windows[i].End)
	}
}

func TestPlan_InvalidInputs(t *testing.T) {
	now := date(2024, time.March, 15)

	_, err := Plan("2024", now, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDateFormat)

	_, err = Plan("2024-01", now, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "month interval")

	_, err = Plan("2024-01", now, -3)
	require.Error(t, err)
}

func TestPlan_WindowsAreContiguousAndCover(t *testing.T) {
	cases := []struct {
		fromDate string
		now      time.Time
		interval int
	}{
		{"2024-01", date(2024, time.March, 15), 1},
		{"2023-06", date(2024, time.February, 29), 1},
		{"2022-01", date(2024, time.March, 15), 3},
		{"2024-03", date(2024, time.March, 1), 1},
		{"2019-12", time.Date(2024, time.August, 31, 23, 59, 59, 0, time.UTC), 6},
	}

	for _, tc := range cases {
		windows, err := Plan(tc.fromDate, tc.now, tc.interval)
		require.NoError(t, err)
		require.NotEmpty(t, windows, "case %s", tc.fromDate)

		start, err := ParseFromDate(tc.fromDate)
		require.NoError(t, err)

		// Union covers [fromDate, now+1 month)
		assert.True(t, windows[0].Start.Equal(start),
			"first window must start at the requested month (case %s)", tc.fromDate)
		last := windows[len(windows)-1]
		assert.True(t, last.End.Equal(tc.now.UTC().AddDate(0, 1, 0)),
			"last window must end one month past now (case %s)", tc.fromDate)
		assert.True(t, last.End.After(tc.now.UTC()),
			"coverage must extend past now (case %s)", tc.fromDate)

		for i, w := range windows {
			assert.True(t, w.Start.Before(w.End),
				"window %d must be non-empty (case %s)", i, tc.fromDate)
			if i > 0 {
				assert.True(t, windows[i-1].End.Equal(w.Start),
					"window %d must begin where window %d ends (case %s)", i, i-1, tc.fromDate)
			}
		}
	}
}

func TestWindow_Millis(t *testing.T) {
	w := Window{
		Start: date(2024, time.January, 1),
		End:   date(2024, time.February, 1),
	}

	assert.Equal(t, int64(1704067200000), w.StartMillis())
	assert.Equal(t, int64(1706745600000), w.EndMillis())
}

func TestWindow_String(t *testing.T) {
	w := Window{
		Start: date(2024, time.January, 1),
		End:   date(2024, time.February, 1),
	}

	assert.Equal(t, "[2024-01-01, 2024-02-01)", w.String())
}
