package leave

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar date without a time component
// =============================================================================

const DateLayout = "2006-01-02"

// Date is a calendar day. Dates compare as days, never as instants.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar day in the instant's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrInvalidArgument, s)
	}
	return Date{t: t}, nil
}

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Time() time.Time { return d.t }
func (d Date) IsZero() bool    { return d.t.IsZero() }
func (d Date) String() string  { return d.t.Format(DateLayout) }

const secondsPerDay = 24 * 60 * 60

// DaysInclusive returns end - start + 1. Dates are UTC midnights, so the Unix
// difference is an exact multiple of a day and does not overflow time.Duration.
func DaysInclusive(start, end Date) int {
	return int((end.t.Unix()-start.t.Unix())/secondsPerDay) + 1
}

// =============================================================================
// CLOCK - Injected "today"
// =============================================================================

// Clock supplies the current time. The engine never reads ambient time directly.
type Clock interface {
	Now() time.Time
	Today() Date
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
func (SystemClock) Today() Date    { return DateOf(time.Now().UTC()) }

// FixedClock always reports the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
func (c FixedClock) Today() Date    { return DateOf(c.At) }
