// Package schedule implements the scheduled-notification planner (spec
// §4.G): pure frequency arithmetic for daily/weekly/monthly recurrence,
// always counted forward from the original start instant to avoid drift.
package schedule

import (
	"time"

	"github.com/meetsmatch/notifyengine/internal/apperr"
	"github.com/meetsmatch/notifyengine/internal/models"
)

// NextDueDate implements spec §4.G. daily/weekly advance in fixed
// increments from startUTC; monthly adds whole calendar months to the
// *original* startUTC (never to the previous result) so day-of-month drift
// never accumulates, clamping to the last day of short months.
func NextDueDate(startUTC time.Time, frequency models.ScheduleFrequency, nowUTC time.Time) (time.Time, error) {
	if startUTC.After(nowUTC) || startUTC.Equal(nowUTC) {
		return startUTC, nil
	}

	switch frequency {
	case models.FrequencyDaily:
		return advanceBy(startUTC, nowUTC, 24*time.Hour), nil
	case models.FrequencyWeekly:
		return advanceBy(startUTC, nowUTC, 7*24*time.Hour), nil
	case models.FrequencyMonthly:
		return advanceMonthly(startUTC, nowUTC), nil
	default:
		return time.Time{}, apperr.NewValidationError("invalid next-due frequency: "+string(frequency), nil)
	}
}

// advanceBy adds fixed-size increments of startUTC until the result is >=
// nowUTC. Used for daily/weekly, where no calendar-clamping is needed.
func advanceBy(startUTC, nowUTC time.Time, step time.Duration) time.Time {
	if step <= 0 {
		return startUTC
	}
	elapsed := nowUTC.Sub(startUTC)
	steps := int64(elapsed / step)
	candidate := startUTC.Add(time.Duration(steps) * step)
	for candidate.Before(nowUTC) {
		candidate = candidate.Add(step)
	}
	return candidate
}

// advanceMonthly adds N calendar months to the original startUTC, where N
// starts at 0 and increments until the result reaches nowUTC. Each candidate month is computed independently
// from startUTC (never iteratively from the previous candidate), matching
// spec §4.G / §9's drift-avoidance rule and testable property 4.
func advanceMonthly(startUTC, nowUTC time.Time) time.Time {
	n := 0
	for {
		candidate := addCalendarMonths(startUTC, n)
		if !candidate.Before(nowUTC) {
			return candidate
		}
		n++
	}
}

// addCalendarMonths adds n calendar months to t, clamping the day-of-month
// to the last valid day of the resulting month (end-of-month semantics,
// leap-year aware) rather than letting time.AddDate overflow into the
// following month.
func addCalendarMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	targetMonthIndex := int(month) - 1 + n
	targetYear := year + targetMonthIndex/12
	targetMonth := time.Month(targetMonthIndex%12 + 1)
	if targetMonthIndex%12 < 0 {
		targetMonth += 12
		targetYear--
	}

	lastDay := daysInMonth(targetYear, targetMonth)
	if day > lastDay {
		day = lastDay
	}

	return time.Date(targetYear, targetMonth, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	lastOfThis := firstOfNext.Add(-24 * time.Hour)
	return lastOfThis.Day()
}

// IsDue implements spec §4.G's is_due: true iff prevNextDue is present and
// not after nowUTC.
func IsDue(prevNextDue *time.Time, nowUTC time.Time) bool {
	if prevNextDue == nil {
		return false
	}
	return !prevNextDue.After(nowUTC)
}
