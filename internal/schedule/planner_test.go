package schedule

import (
	"testing"
	"time"

	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts.UTC()
}

// S6
func TestNextDueDate_Daily(t *testing.T) {
	start := mustParse(t, "2023-08-29T07:00:00Z")
	now := mustParse(t, "2023-08-29T07:00:01Z")

	next, err := NextDueDate(start, models.FrequencyDaily, now)

	require.NoError(t, err)
	assert.Equal(t, mustParse(t, "2023-08-30T07:00:00Z"), next)
}

// S7 — monthly recurrence counted from the original start, not the previous
// result, so a day-31 start clamps through February and snaps back to 31 in
// March without skipping a month.
func TestNextDueDate_MonthlyDriftFree(t *testing.T) {
	start := mustParse(t, "2024-01-31T07:00:00Z")
	now := mustParse(t, "2024-03-10T00:00:00Z")

	next, err := NextDueDate(start, models.FrequencyMonthly, now)

	require.NoError(t, err)
	assert.Equal(t, mustParse(t, "2024-03-31T07:00:00Z"), next)
}

func TestNextDueDate_MonthlyNeverSkipsAMonth(t *testing.T) {
	start := mustParse(t, "2024-01-31T07:00:00Z")
	for m := 0; m < 24; m++ {
		now := start.AddDate(0, m, 0)
		next, err := NextDueDate(start, models.FrequencyMonthly, now)
		require.NoError(t, err)
		// the due month must never be more than one calendar month after now's month
		monthsApart := (next.Year()-now.Year())*12 + int(next.Month()) - int(now.Month())
		assert.LessOrEqual(t, monthsApart, 1)
		assert.GreaterOrEqual(t, monthsApart, 0)
	}
}

func TestNextDueDate_StartInFuture(t *testing.T) {
	start := mustParse(t, "2024-06-01T00:00:00Z")
	now := mustParse(t, "2024-01-01T00:00:00Z")

	next, err := NextDueDate(start, models.FrequencyDaily, now)

	require.NoError(t, err)
	assert.Equal(t, start, next)
}

func TestNextDueDate_Weekly(t *testing.T) {
	start := mustParse(t, "2024-01-01T00:00:00Z")
	now := mustParse(t, "2024-01-10T00:00:00Z")

	next, err := NextDueDate(start, models.FrequencyWeekly, now)

	require.NoError(t, err)
	assert.Equal(t, mustParse(t, "2024-01-15T00:00:00Z"), next)
}

func TestNextDueDate_InvalidFrequency(t *testing.T) {
	start := mustParse(t, "2024-01-01T00:00:00Z")
	now := mustParse(t, "2024-01-10T00:00:00Z")

	_, err := NextDueDate(start, "yearly", now)

	require.Error(t, err)
}

func TestIsDue(t *testing.T) {
	now := mustParse(t, "2024-01-10T00:00:00Z")
	past := mustParse(t, "2024-01-01T00:00:00Z")
	future := mustParse(t, "2024-02-01T00:00:00Z")

	assert.True(t, IsDue(&past, now))
	assert.True(t, IsDue(&now, now))
	assert.False(t, IsDue(&future, now))
	assert.False(t, IsDue(nil, now))
}
