package avail

import (
	"fmt"
	"time"

	"service-availability-backend/internal/parse"
)

// Date is a calendar day with no time zone. It keys the slot buckets.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := parse.ParseDate(s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// MustDate is ParseDate for literals; it panics on malformed input.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// At combines the date with a wall-clock time. The result lives in time.UTC only as
// a carrier; it is a naive local time and must never be converted between zones.
func (d Date) At(c Clock) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, time.UTC)
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is an hour:minute wall-clock value, the granularity of slot edits.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock accepts "HH:MM" or "HH:MM:SS"; seconds are discarded.
func ParseClock(s string) (Clock, error) {
	c, err := parse.ParseClock(s)
	if err != nil {
		return Clock{}, err
	}
	return Clock{Hour: c.Hour, Minute: c.Minute}, nil
}

// ClockOf returns the hour and minute of t.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// LockPastAndToday returns a lock predicate that refuses authoring on today and any
// earlier date. "Today" is evaluated on every call, in loc (time.Local when nil).
func LockPastAndToday(now func() time.Time, loc *time.Location) func(Date) bool {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return func(d Date) bool {
		today := DateOf(now().In(loc))
		return !today.Before(d)
	}
}
