package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date layout used on the wire ("YYYY-MM-DD").
const DateLayout = "2006-01-02"

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2})(?:\.\d+)?)?$`)

// Layouts with an offset keep the parsed zone so the written fields survive as-is.
var wallClockLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Clock is a time of day as written on the wire.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock parses "HH:MM" or "HH:MM:SS". Fractional seconds are dropped.
func ParseClock(raw string) (Clock, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Clock{}, fmt.Errorf("unable to parse clock: %q", raw)
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	second := 0
	if m[3] != "" {
		second, _ = strconv.Atoi(m[3])
	}

	if hour > 23 || minute > 59 || second > 59 {
		return Clock{}, fmt.Errorf("clock out of range: %q", raw)
	}
	return Clock{Hour: hour, Minute: minute, Second: second}, nil
}

// ParseDate parses a "YYYY-MM-DD" calendar date. The result is midnight UTC and
// carries no zone meaning.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date %q: %w", raw, err)
	}
	return t, nil
}

// ParseWallClock parses an ISO-8601 timestamp and returns its wall-clock fields
// exactly as written, in a UTC carrier. Any offset is discarded rather than applied,
// so "2025-10-05T14:30:00+02:00" and "2025-10-05T14:30:00Z" both read as 14:30.
func ParseWallClock(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range wallClockLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", raw)
}
