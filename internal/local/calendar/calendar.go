// Package calendar provides local-calendar day arithmetic used by the store
// and the derived state calculators.
//
// All computations are done in an explicit *time.Location. Weeks start on
// Sunday at 00:00 local time and are found by day-of-week subtraction, never
// by a rolling 7-day window.
package calendar

import (
	"fmt"
	"time"
)

// Layout is the canonical text form of a Day: YYYY-MM-DD.
const Layout = "2006-01-02"

// Day is a calendar date without a time component.
// The zero value is not a valid day.
type Day struct {
	Year  int
	Month time.Month
	Dom   int
}

// Of returns the calendar day of t in loc.
func Of(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return Day{Year: y, Month: m, Dom: d}
}

// Parse parses a YYYY-MM-DD string.
func Parse(s string) (Day, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Dom: d}, nil
}

// String returns the YYYY-MM-DD form.
func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Dom)
}

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Dom == 0
}

// Start returns 00:00 of d in loc.
func (d Day) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Dom, 0, 0, 0, 0, loc)
}

// AddDays returns the day n days after d (n may be negative).
// Normalization goes through UTC so DST transitions never skip or repeat a day.
func (d Day) AddDays(n int) Day {
	t := time.Date(d.Year, d.Month, d.Dom+n, 0, 0, 0, 0, time.UTC)
	y, m, dd := t.Date()
	return Day{Year: y, Month: m, Dom: dd}
}

// Weekday returns the day of the week of d.
func (d Day) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Dom, 0, 0, 0, 0, time.UTC).Weekday()
}

// Before reports whether d is strictly before other.
func (d Day) Before(other Day) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Dom < other.Dom
}

// WeekStart returns the Sunday that starts the week containing d.
func (d Day) WeekStart() Day {
	return d.AddDays(-int(d.Weekday()))
}

// SameWeek reports whether a and b fall in the same Sunday-based week.
func SameWeek(a, b Day) bool {
	return a.WeekStart() == b.WeekStart()
}
