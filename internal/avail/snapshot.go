package avail

import (
	"fmt"

	"service-availability-backend/internal/parse"
)

// Snapshot is a lossless, JSON-friendly copy of a SlotStore, ids included. Edit
// sessions are persisted through it.
type Snapshot struct {
	Dates []string       `json:"dates"`
	Slots []SnapshotSlot `json:"slots"`
}

// SnapshotSlot stores endpoints as naive ISO timestamps.
type SnapshotSlot struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Snapshot captures the store, including the first-seen order of dates.
func (s *SlotStore) Snapshot() Snapshot {
	snap := Snapshot{Dates: make([]string, 0, len(s.order)), Slots: make([]SnapshotSlot, 0, s.Len())}
	for _, d := range s.order {
		snap.Dates = append(snap.Dates, d.String())
	}
	for _, slot := range s.All() {
		snap.Slots = append(snap.Slots, SnapshotSlot{
			ID:    slot.ID,
			Date:  slot.Date.String(),
			Start: slot.Start.Format(wireISOLayout),
			End:   slot.End.Format(wireISOLayout),
		})
	}
	return snap
}

// Restore rebuilds a store from a snapshot. Unlike the wire decoders it fails on any
// bad entry, since snapshots are only ever written by Snapshot.
func Restore(snap Snapshot, opts ...Option) (*SlotStore, error) {
	s := NewSlotStore(opts...)
	for _, raw := range snap.Dates {
		d, err := ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("restore snapshot: %w", err)
		}
		if _, ok := s.buckets[d]; !ok {
			s.order = append(s.order, d)
			s.buckets[d] = nil
		}
	}
	for i, ss := range snap.Slots {
		d, err := ParseDate(ss.Date)
		if err != nil {
			return nil, fmt.Errorf("restore snapshot slot %d: %w", i, err)
		}
		start, err := parse.ParseWallClock(ss.Start)
		if err != nil {
			return nil, fmt.Errorf("restore snapshot slot %d: %w", i, err)
		}
		end, err := parse.ParseWallClock(ss.End)
		if err != nil {
			return nil, fmt.Errorf("restore snapshot slot %d: %w", i, err)
		}
		s.put(TimeSlot{ID: ss.ID, Date: d, Start: start, End: end})
	}
	return s, nil
}
