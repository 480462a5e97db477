// Package streak computes consecutive-day practice streaks from an activity
// calendar of civil dates.
package streak

import (
	"fmt"
	"time"
)

// Day is a calendar date with no time-of-day or zone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the civil date of t in loc. A nil loc means UTC.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Day{Year: y, Month: m, Day: d}
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return DayOf(t, time.UTC), nil
}

// AddDays returns the date n days after d. n may be negative.
func (d Day) AddDays(n int) Day {
	return DayOf(d.midnight().AddDate(0, 0, n), time.UTC)
}

// Before reports whether d is earlier than o.
func (d Day) Before(o Day) bool {
	return d.midnight().Before(o.midnight())
}

// IsZero reports whether d is the zero date.
func (d Day) IsZero() bool {
	return d == Day{}
}

func (d Day) String() string {
	return d.midnight().Format(time.DateOnly)
}

// MarshalText encodes the date as YYYY-MM-DD.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a YYYY-MM-DD date.
func (d *Day) UnmarshalText(b []byte) error {
	p, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = p
	return nil
}

func (d Day) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}
