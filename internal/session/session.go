// Package session holds provider edit sessions: one SlotStore plus listing details
// and images, driven one operation at a time and saved to the marketplace.
package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"service-availability-backend/internal/avail"
)

// Mode separates new listings from edits of existing ones.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Details are the non-availability listing fields.
type Details struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Type        string `json:"type"`
}

// EditSession is the working copy of one listing.
type EditSession struct {
	ID               string
	Mode             Mode
	ServiceID        string
	Details          Details
	Selected         avail.Date
	Slots            *avail.SlotStore
	Images           []avail.ImageAsset
	OriginalImageIDs []string
	OriginalSlotIDs  []string
	Version          int
	// SavingSince is set while a save holds the session's lease.
	SavingSince      time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type record struct {
	ID               string             `json:"id"`
	Mode             Mode               `json:"mode"`
	ServiceID        string             `json:"service_id,omitempty"`
	Details          Details            `json:"details"`
	Selected         avail.Date         `json:"selected"`
	Slots            avail.Snapshot     `json:"slots"`
	Images           []avail.ImageAsset `json:"images"`
	OriginalImageIDs []string           `json:"original_image_ids"`
	OriginalSlotIDs  []string           `json:"original_slot_ids"`
	Version          int                `json:"version"`
	SavingSince      time.Time          `json:"saving_since"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func encode(s *EditSession) ([]byte, error) {
	data, err := json.Marshal(record{
		ID:               s.ID,
		Mode:             s.Mode,
		ServiceID:        s.ServiceID,
		Details:          s.Details,
		Selected:         s.Selected,
		Slots:            s.Slots.Snapshot(),
		Images:           s.Images,
		OriginalImageIDs: s.OriginalImageIDs,
		OriginalSlotIDs:  s.OriginalSlotIDs,
		Version:          s.Version,
		SavingSince:      s.SavingSince,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return data, nil
}

func decode(data []byte) (*EditSession, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	slots, err := avail.Restore(rec.Slots)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", rec.ID, err)
	}
	return &EditSession{
		ID:               rec.ID,
		Mode:             rec.Mode,
		ServiceID:        rec.ServiceID,
		Details:          rec.Details,
		Selected:         rec.Selected,
		Slots:            slots,
		Images:           rec.Images,
		OriginalImageIDs: rec.OriginalImageIDs,
		OriginalSlotIDs:  rec.OriginalSlotIDs,
		Version:          rec.Version,
		SavingSince:      rec.SavingSince,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}, nil
}

// SlotView is a slot as screens render it.
type SlotView struct {
	ID    string      `json:"id"`
	Start avail.Clock `json:"start"`
	End   avail.Clock `json:"end"`
	Valid bool        `json:"valid"`
}

// View is a read-only rendering of a session.
type View struct {
	ID             string                `json:"id"`
	Mode           Mode                  `json:"mode"`
	ServiceID      string                `json:"service_id,omitempty"`
	Details        Details               `json:"details"`
	SelectedDate   avail.Date            `json:"selected_date"`
	SelectedLocked bool                  `json:"selected_locked"`
	Slots          []SlotView            `json:"slots"`
	MarkedDates    []avail.Date          `json:"marked_dates"`
	Availability   map[string][]SlotView `json:"availability"`
	Images         []avail.ImageAsset    `json:"images"`
	Version        int                   `json:"version"`
	Saving         bool                  `json:"saving"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func newView(s *EditSession, v avail.Validator) *View {
	view := &View{
		ID:             s.ID,
		Mode:           s.Mode,
		ServiceID:      s.ServiceID,
		Details:        s.Details,
		SelectedDate:   s.Selected,
		SelectedLocked: s.Slots.IsLocked(s.Selected),
		Slots:          slotViews(s.Slots.SlotsFor(s.Selected), v),
		MarkedDates:    s.Slots.MarkedDates(s.Selected),
		Availability:   make(map[string][]SlotView),
		Images:         append([]avail.ImageAsset{}, s.Images...),
		Version:        s.Version,
		Saving:         !s.SavingSince.IsZero(),
		UpdatedAt:      s.UpdatedAt,
	}
	dates := s.Slots.Dates()
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	for _, d := range dates {
		view.Availability[d.String()] = slotViews(s.Slots.SlotsFor(d), v)
	}
	return view
}

func slotViews(slots []avail.TimeSlot, v avail.Validator) []SlotView {
	out := make([]SlotView, 0, len(slots))
	for _, slot := range slots {
		out = append(out, SlotView{
			ID:    slot.ID,
			Start: avail.ClockOf(slot.Start),
			End:   avail.ClockOf(slot.End),
			Valid: v.Valid(slot),
		})
	}
	return out
}
