package avail

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnparseableTime  = errors.New("unparseable time")
	ErrInvertedInterval = errors.New("start must be before end")
	ErrTooShort         = errors.New("slot is shorter than the minimum duration")
	ErrNoAvailability   = errors.New("no availability: add at least one time slot")
)

// Validator decides whether slots are fit for submission.
type Validator struct {
	// MinDuration rejects slots shorter than this. Zero disables the check.
	MinDuration time.Duration
}

// Validate checks, in order: both endpoints are real instants, start < end, and the
// optional minimum duration. It returns nil for an acceptable slot.
func (v Validator) Validate(slot TimeSlot) error {
	if slot.Start.IsZero() || slot.End.IsZero() {
		return ErrUnparseableTime
	}
	if !slot.Start.Before(slot.End) {
		return fmt.Errorf("%w: %s-%s on %s", ErrInvertedInterval,
			ClockOf(slot.Start), ClockOf(slot.End), slot.Date)
	}
	if v.MinDuration > 0 && slot.Duration() < v.MinDuration {
		return fmt.Errorf("%w (%s < %s)", ErrTooShort, slot.Duration(), v.MinDuration)
	}
	return nil
}

// Valid is the filter form of Validate.
func (v Validator) Valid(slot TimeSlot) bool {
	return v.Validate(slot) == nil
}

// ValidateSubmission rejects a store with no valid slot on any date.
func (v Validator) ValidateSubmission(s *SlotStore) error {
	for _, slot := range s.All() {
		if v.Valid(slot) {
			return nil
		}
	}
	return ErrNoAvailability
}
