// Package calendar holds the date arithmetic shared by the repositories and
// the aggregator.  Every value it returns is a midnight in the location of
// its input, so two days compare equal exactly when they name the same
// calendar date in that location.
package calendar

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Layout is the canonical date format used in cache keys and logs.
const Layout = "2006-01-02"

// Day truncates t to midnight in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Today returns the current calendar date in loc according to clk.
func Today(clk clockwork.Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Day(clk.Now().In(loc))
}

// Next returns the calendar date after d.  AddDate keeps DST transitions
// from shifting the result off midnight.
func Next(d time.Time) time.Time { return Day(d).AddDate(0, 0, 1) }

// Days lists every date in [start, end], ascending.  It returns nil when
// start is after end.
func Days(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if start.After(end) {
		return nil
	}
	out := make([]time.Time, 0, Span(start, end))
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Span is the number of dates in [start, end], or 0 when start is after end.
func Span(start, end time.Time) int {
	start, end = Day(start), Day(end)
	if start.After(end) {
		return 0
	}
	n := 1
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

// Window returns the first date of the n-day window ending at end.
func Window(end time.Time, n int) time.Time {
	if n < 1 {
		n = 1
	}
	return Day(end).AddDate(0, 0, -(n - 1))
}

// Format renders d with Layout.
func Format(d time.Time) string { return d.Format(Layout) }

// Parse reads a Layout date in loc.
func Parse(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(Layout, s, loc)
}
