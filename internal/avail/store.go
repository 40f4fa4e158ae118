package avail

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// SlotStore holds the time slots of one edit session, bucketed by date.
//
// Buckets remember the order in which dates were first seen and slots keep their
// insertion order; sorting by start time only happens in SlotsFor. Overlapping slots
// are allowed. A SlotStore is not safe for concurrent use.
type SlotStore struct {
	buckets map[Date][]TimeSlot
	order   []Date
	locked  func(Date) bool
	newID   func() string
}

// Option configures a SlotStore.
type Option func(*SlotStore)

// WithLockPredicate makes mutations on dates for which fn returns true fail with
// ErrDateLocked.
func WithLockPredicate(fn func(Date) bool) Option {
	return func(s *SlotStore) { s.locked = fn }
}

// WithIDGenerator replaces the random token generator used for new slots.
func WithIDGenerator(fn func() string) Option {
	return func(s *SlotStore) { s.newID = fn }
}

// NewSlotStore creates an empty store.
func NewSlotStore(opts ...Option) *SlotStore {
	s := &SlotStore{
		buckets: make(map[Date][]TimeSlot),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetLockPredicate swaps the lock predicate; nil disables locking.
func (s *SlotStore) SetLockPredicate(fn func(Date) bool) {
	s.locked = fn
}

// IsLocked reports whether authoring on d is refused.
func (s *SlotStore) IsLocked(d Date) bool {
	return s.locked != nil && s.locked(d)
}

// AddSlot appends a slot covering w on date and returns it so the caller can start
// editing it right away.
func (s *SlotStore) AddSlot(date Date, w Window) (TimeSlot, error) {
	if s.IsLocked(date) {
		return TimeSlot{}, fmt.Errorf("add slot on %s: %w", date, ErrDateLocked)
	}
	start, end := w.on(date)
	slot := TimeSlot{ID: s.uniqueID(date, ""), Date: date, Start: start, End: end}
	s.append(slot)
	return slot, nil
}

// RemoveSlot deletes the slot with id from date. Unknown ids are ignored.
func (s *SlotStore) RemoveSlot(date Date, id string) error {
	if s.IsLocked(date) {
		return fmt.Errorf("remove slot on %s: %w", date, ErrDateLocked)
	}
	bucket, ok := s.buckets[date]
	if !ok {
		return nil
	}
	kept := bucket[:0]
	for _, slot := range bucket {
		if slot.ID != id {
			kept = append(kept, slot)
		}
	}
	s.buckets[date] = kept
	return nil
}

// UpdateSlot moves one endpoint of a slot to value on the slot's date. If the edit
// leaves start >= end, the other endpoint is pushed by RepairOffset so the interval
// stays valid: a late start drags the end to start+1h, an early end drags the start
// to end-1h. Unknown ids are ignored.
func (s *SlotStore) UpdateSlot(date Date, id string, field Field, value Clock) error {
	if field != FieldStart && field != FieldEnd {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if s.IsLocked(date) {
		return fmt.Errorf("update slot on %s: %w", date, ErrDateLocked)
	}

	bucket := s.buckets[date]
	for i := range bucket {
		if bucket[i].ID != id {
			continue
		}
		slot := bucket[i]
		at := slot.Date.At(value)
		if field == FieldStart {
			slot.Start = at
			if !slot.Start.Before(slot.End) {
				slot.End = slot.Start.Add(RepairOffset)
			}
		} else {
			slot.End = at
			if !slot.Start.Before(slot.End) {
				slot.Start = slot.End.Add(-RepairOffset)
			}
		}
		bucket[i] = slot
		return nil
	}
	return nil
}

// SlotsFor returns a copy of date's slots ordered by start time.
func (s *SlotStore) SlotsFor(date Date) []TimeSlot {
	bucket := s.buckets[date]
	out := make([]TimeSlot, len(bucket))
	copy(out, bucket)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Slot looks a slot up by id.
func (s *SlotStore) Slot(date Date, id string) (TimeSlot, bool) {
	for _, slot := range s.buckets[date] {
		if slot.ID == id {
			return slot, true
		}
	}
	return TimeSlot{}, false
}

// MarkedDates returns every date owning at least one slot plus selected, ascending.
func (s *SlotStore) MarkedDates(selected Date) []Date {
	marks := []Date{selected}
	for _, d := range s.order {
		if d != selected && len(s.buckets[d]) > 0 {
			marks = append(marks, d)
		}
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].Before(marks[j]) })
	return marks
}

// Dates returns the dates with at least one slot, in first-seen order.
func (s *SlotStore) Dates() []Date {
	var out []Date
	for _, d := range s.order {
		if len(s.buckets[d]) > 0 {
			out = append(out, d)
		}
	}
	return out
}

// All returns every slot in date first-seen order, then bucket order.
func (s *SlotStore) All() []TimeSlot {
	var out []TimeSlot
	for _, d := range s.order {
		out = append(out, s.buckets[d]...)
	}
	return out
}

// Len counts slots across all dates.
func (s *SlotStore) Len() int {
	n := 0
	for _, bucket := range s.buckets {
		n += len(bucket)
	}
	return n
}

// Clone returns a deep copy sharing the lock predicate and id generator.
func (s *SlotStore) Clone() *SlotStore {
	c := NewSlotStore(WithLockPredicate(s.locked), WithIDGenerator(s.newID))
	for _, d := range s.order {
		c.order = append(c.order, d)
		c.buckets[d] = append([]TimeSlot(nil), s.buckets[d]...)
	}
	return c
}

// put stores a slot coming from the wire or a snapshot, bypassing the lock. A
// missing or duplicate id is replaced with a fresh one.
func (s *SlotStore) put(slot TimeSlot) TimeSlot {
	slot.ID = s.uniqueID(slot.Date, slot.ID)
	s.append(slot)
	return slot
}

func (s *SlotStore) append(slot TimeSlot) {
	if _, ok := s.buckets[slot.Date]; !ok {
		s.order = append(s.order, slot.Date)
	}
	s.buckets[slot.Date] = append(s.buckets[slot.Date], slot)
}

func (s *SlotStore) uniqueID(date Date, want string) string {
	id := want
	for id == "" || s.hasID(date, id) {
		id = s.newID()
	}
	return id
}

func (s *SlotStore) hasID(date Date, id string) bool {
	_, ok := s.Slot(date, id)
	return ok
}
