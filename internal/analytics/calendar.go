// Package analytics reshapes a ledger snapshot into the read-side projections:
// daily category roll-ups, reconstructed daily wallet balances, monthly
// financial summaries and net-worth compositions.
//
// Every function here is pure. Given the same snapshot and location the
// output is identical, which is what makes re-materialization idempotent.
package analytics

import (
	"fmt"
	"time"
)

const (
	dateKeyLayout  = "2006-01-02"
	monthKeyLayout = "2006-01"
)

// calendarDay truncates t to local midnight in loc
func calendarDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// isoWeek returns the ISO-8601 week number of day
func isoWeek(day time.Time) int {
	_, week := day.ISOWeek()
	return week
}

func isMonthStart(day time.Time) bool {
	return day.Day() == 1
}

func isWeekStart(day time.Time) bool {
	return day.Weekday() == time.Monday
}

// monthKey formats the YYYY-MM bucket key of t in loc
func monthKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(monthKeyLayout)
}

// monthBounds parses a YYYY-MM key and returns the first and last day of that month
func monthBounds(key string, loc *time.Location) (start, end time.Time, err error) {
	parsed, err := time.ParseInLocation(monthKeyLayout, key, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month key %q: %w", key, err)
	}
	start = time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, loc)
	end = start.AddDate(0, 1, -1)
	return start, end, nil
}

// daysInMonth returns the number of days of the month starting at start
func daysInMonth(start time.Time) int {
	return start.AddDate(0, 1, -1).Day()
}
