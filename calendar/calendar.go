// Package calendar provides day-granular dates and business-day arithmetic.
//
// The simulation engine addresses every per-day series as a fixed array
// indexed by business-day offset from the range start, so this package is
// the single source of truth for what counts as a business day (weekday,
// holiday calendars are not modeled) and how dates map to offsets.
package calendar

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateFormat is the canonical string representation of a Date.
const DateFormat = "2006-01-02"

// Date represents a date with no lower than day granularity.
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns a normalized Date for the given year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	d := Date{year, month, day}
	d.y, d.m, d.d = d.Time().Date()
	return d
}

// DateOf returns the Date holding the given instant, in its location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{y, m, d}
}

// Time returns the canonical time.Time for the date (midnight UTC).
func (d Date) Time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// Year returns the year of the date.
func (d Date) Year() int { return d.y }

// Month returns the month of the date.
func (d Date) Month() time.Month { return d.m }

// Day returns the day of the month.
func (d Date) Day() int { return d.d }

// Weekday returns the day of the week for the date.
func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }

// Before reports whether d is before x.
func (d Date) Before(x Date) bool { return d.Time().Before(x.Time()) }

// After reports whether d is after x.
func (d Date) After(x Date) bool { return d.Time().After(x.Time()) }

// Equal reports whether d and x are the same day.
func (d Date) Equal(x Date) bool { return d == x }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// AddDays returns the date i calendar days after d (i may be negative).
func (d Date) AddDays(i int) Date { return NewDate(d.y, d.m, d.d+i) }

func (d Date) String() string { return d.Time().Format(DateFormat) }

// ParseDate parses a Date in the canonical "2006-01-02" format.
func ParseDate(str string) (Date, error) {
	t, err := time.Parse(DateFormat, str)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q want format %q: %w", str, DateFormat, err)
	}
	return NewDate(t.Date()), nil
}

// MustParseDate is like ParseDate but panics on error.
func MustParseDate(str string) Date {
	d, err := ParseDate(str)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// IsBusinessDay reports whether d falls on a weekday.
func (d Date) IsBusinessDay() bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// NextBusinessDay returns the first business day strictly after d.
func (d Date) NextBusinessDay() Date {
	next := d.AddDays(1)
	for !next.IsBusinessDay() {
		next = next.AddDays(1)
	}
	return next
}

// PrevBusinessDay returns the last business day strictly before d.
func (d Date) PrevBusinessDay() Date {
	prev := d.AddDays(-1)
	for !prev.IsBusinessDay() {
		prev = prev.AddDays(-1)
	}
	return prev
}

// AddBusinessDays returns the date n business days after d. If d itself
// falls on a weekend the count starts from the next business day.
func (d Date) AddBusinessDays(n int) Date {
	cur := d
	if !cur.IsBusinessDay() {
		cur = cur.NextBusinessDay()
		n--
	}
	for n > 0 {
		cur = cur.NextBusinessDay()
		n--
	}
	return cur
}

// BusinessDays counts the business days in [start, end], inclusive.
// It returns 0 when end is before start.
func BusinessDays(start, end Date) int {
	if end.Before(start) {
		return 0
	}
	n := 0
	for d := start; !d.After(end); d = d.AddDays(1) {
		if d.IsBusinessDay() {
			n++
		}
	}
	return n
}

// Range returns every business day in [start, end], ascending.
func Range(start, end Date) []Date {
	out := make([]Date, 0, BusinessDays(start, end))
	for d := start; !d.After(end); d = d.AddDays(1) {
		if d.IsBusinessDay() {
			out = append(out, d)
		}
	}
	return out
}

// Index returns the business-day offset of d from start, or -1 when d is
// before start or not a business day. The offset addresses the per-day
// arenas used by the simulation.
func Index(start, d Date) int {
	if d.Before(start) || !d.IsBusinessDay() {
		return -1
	}
	// Offset 0 is the first business day at or after start.
	n := 0
	for cur := start; cur.Before(d); cur = cur.AddDays(1) {
		if cur.IsBusinessDay() {
			n++
		}
	}
	return n
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseDate(str)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var _ json.Marshaler = (*Date)(nil)
var _ json.Unmarshaler = (*Date)(nil)
