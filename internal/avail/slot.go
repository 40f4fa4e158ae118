package avail

import (
	"errors"
	"fmt"
	"time"
)

// RepairOffset is how far the untouched endpoint moves when an edit inverts a slot.
const RepairOffset = time.Hour

// DefaultWindow is the 10:00–11:00 window given to newly added slots.
var DefaultWindow = Window{Start: Clock{Hour: 10}, Duration: time.Hour}

var (
	ErrDateLocked   = errors.New("date is locked for editing")
	ErrUnknownField = errors.New("unknown slot field")
)

// TimeSlot is one bookable interval on one calendar date.
type TimeSlot struct {
	ID    string
	Date  Date
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (s TimeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Field names the endpoint of a slot being edited.
type Field string

const (
	FieldStart Field = "start"
	FieldEnd   Field = "end"
)

// ParseField validates a field name coming from a caller.
func ParseField(s string) (Field, error) {
	switch f := Field(s); f {
	case FieldStart, FieldEnd:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Window describes where a new slot starts and how long it lasts.
type Window struct {
	Start    Clock
	Duration time.Duration
}

func (w Window) on(d Date) (time.Time, time.Time) {
	start := d.At(w.Start)
	return start, start.Add(w.Duration)
}
