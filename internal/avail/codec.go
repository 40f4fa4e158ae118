package avail

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"service-availability-backend/internal/parse"
)

const wireISOLayout = "2006-01-02T15:04:05"

// ErrMalformedDocument is returned when a wire document is not the container its
// shape promises (not a list, not an object). Bad entries inside are skipped instead.
var ErrMalformedDocument = errors.New("malformed availability document")

// Shape selects one of the two availability wire formats.
type Shape string

const (
	// ShapeFlat is [{"date","start_time","end_time"}] with "HH:MM:SS" clocks.
	ShapeFlat Shape = "flat"
	// ShapeISOMap is {"YYYY-MM-DD": [{"start","end"}]} with ISO-8601 timestamps.
	ShapeISOMap Shape = "iso"
)

// ParseShape maps a caller-supplied name onto a Shape.
func ParseShape(s string) (Shape, error) {
	switch Shape(s) {
	case ShapeFlat, "list":
		return ShapeFlat, nil
	case ShapeISOMap, "iso_map", "map":
		return ShapeISOMap, nil
	}
	return "", fmt.Errorf("unknown availability shape %q", s)
}

// FlatSlot is one entry of the flat wire list.
type FlatSlot struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ISOSlot is one interval of the ISO map.
type ISOSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ISOMap keys ISO intervals by "YYYY-MM-DD".
type ISOMap map[string][]ISOSlot

// Payload is an encoded availability document in exactly one shape.
type Payload struct {
	Shape Shape
	Flat  []FlatSlot
	ISO   ISOMap
}

// MarshalJSON emits the document for the payload's shape only.
func (p Payload) MarshalJSON() ([]byte, error) {
	switch p.Shape {
	case ShapeFlat:
		if p.Flat == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(p.Flat)
	case ShapeISOMap:
		if p.ISO == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(p.ISO)
	}
	return nil, fmt.Errorf("unknown availability shape %q", p.Shape)
}

// Len counts the intervals in the payload.
func (p Payload) Len() int {
	if p.Shape == ShapeFlat {
		return len(p.Flat)
	}
	n := 0
	for _, slots := range p.ISO {
		n += len(slots)
	}
	return n
}

// EncodeFlat flattens the store into the flat list, formatting endpoints as
// zero-padded "HH:MM:00" wall clock. Nothing is filtered out. An endpoint that a
// repair pushed onto a neighbouring day is cut at the slot date's boundary.
func EncodeFlat(s *SlotStore) []FlatSlot {
	out := make([]FlatSlot, 0, s.Len())
	for _, slot := range s.All() {
		start, end := wireClock(slot.Start), wireClock(slot.End)
		if DateOf(slot.Start) != slot.Date {
			start = dayStartClock
		}
		if DateOf(slot.End) != slot.Date {
			end = dayEndClock
		}
		out = append(out, FlatSlot{
			Date:      slot.Date.String(),
			StartTime: start,
			EndTime:   end,
		})
	}
	return out
}

// EncodeISOMap builds the date-keyed ISO document. Slots that fail v are dropped and
// dates left without slots are omitted.
func EncodeISOMap(s *SlotStore, v Validator) ISOMap {
	out := make(ISOMap)
	for _, d := range s.Dates() {
		var slots []ISOSlot
		for _, slot := range s.buckets[d] {
			if !v.Valid(slot) {
				continue
			}
			slots = append(slots, ISOSlot{
				Start: slot.Start.Format(wireISOLayout),
				End:   slot.End.Format(wireISOLayout),
			})
		}
		if len(slots) > 0 {
			out[d.String()] = slots
		}
	}
	return out
}

// Encode produces the payload in the shape the target endpoint expects.
func Encode(s *SlotStore, shape Shape, v Validator) (Payload, error) {
	switch shape {
	case ShapeFlat:
		return Payload{Shape: ShapeFlat, Flat: EncodeFlat(s)}, nil
	case ShapeISOMap:
		return Payload{Shape: ShapeISOMap, ISO: EncodeISOMap(s, v)}, nil
	}
	return Payload{}, fmt.Errorf("unknown availability shape %q", shape)
}

// DecodeStats reports how a decode went. Skipped entries are not errors.
type DecodeStats struct {
	Decoded int
	Skipped int
}

// wireID accepts server ids written as strings or numbers.
type wireID string

func (w *wireID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*w = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*w = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*w = wireID(n.String())
	return nil
}

// wireEntry carries both key conventions seen on the wire.
type wireEntry struct {
	ID        wireID `json:"id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Start     string `json:"start"`
	EndTime   string `json:"end_time"`
	End       string `json:"end"`
}

func (e wireEntry) start() string {
	if e.StartTime != "" {
		return e.StartTime
	}
	return e.Start
}

func (e wireEntry) end() string {
	if e.EndTime != "" {
		return e.EndTime
	}
	return e.End
}

// DecodeFlatList reads the flat list into a new store. Entries that are not objects,
// miss their date or an endpoint, or do not parse are skipped. Each endpoint may be
// "HH:MM[:SS]" (combined with the entry's date) or a full ISO timestamp, whose
// time of day is combined with the entry's date.
func DecodeFlatList(raw []byte, opts ...Option) (*SlotStore, DecodeStats, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, DecodeStats{}, fmt.Errorf("%w: expected a list: %v", ErrMalformedDocument, err)
	}

	s := NewSlotStore(opts...)
	var stats DecodeStats
	for _, item := range items {
		var e wireEntry
		if err := json.Unmarshal(item, &e); err != nil {
			stats.Skipped++
			continue
		}
		if e.Date == "" || e.start() == "" || e.end() == "" {
			stats.Skipped++
			continue
		}
		date, err := ParseDate(e.Date)
		if err != nil {
			stats.Skipped++
			continue
		}
		start, errStart := onDate(date, e.start())
		end, errEnd := onDate(date, e.end())
		if errStart != nil || errEnd != nil {
			stats.Skipped++
			continue
		}
		s.put(TimeSlot{ID: string(e.ID), Date: date, Start: start, End: end})
		stats.Decoded++
	}
	return s, stats, nil
}

// DecodeISOMap reads the date-keyed ISO document into a new store. Unparseable keys
// and entries are skipped. Timestamps keep their written wall-clock fields; offsets
// are ignored. Bare "HH:MM[:SS]" values are combined with the key date.
func DecodeISOMap(raw []byte, opts ...Option) (*SlotStore, DecodeStats, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, DecodeStats{}, fmt.Errorf("%w: expected an object: %v", ErrMalformedDocument, err)
	}

	s := NewSlotStore(opts...)
	var stats DecodeStats
	for _, key := range sortedKeys(doc) {
		var items []json.RawMessage
		if err := json.Unmarshal(doc[key], &items); err != nil {
			stats.Skipped++
			continue
		}
		date, err := ParseDate(key)
		if err != nil {
			stats.Skipped += len(items)
			continue
		}
		for _, item := range items {
			var e wireEntry
			if err := json.Unmarshal(item, &e); err != nil || e.start() == "" || e.end() == "" {
				stats.Skipped++
				continue
			}
			start, errStart := isoOrClock(date, e.start())
			end, errEnd := isoOrClock(date, e.end())
			if errStart != nil || errEnd != nil {
				stats.Skipped++
				continue
			}
			s.put(TimeSlot{ID: string(e.ID), Date: date, Start: start, End: end})
			stats.Decoded++
		}
	}
	return s, stats, nil
}

// Decode dispatches on an explicitly chosen shape; it never sniffs the document.
func Decode(shape Shape, raw []byte, opts ...Option) (*SlotStore, DecodeStats, error) {
	switch shape {
	case ShapeFlat:
		return DecodeFlatList(raw, opts...)
	case ShapeISOMap:
		return DecodeISOMap(raw, opts...)
	}
	return nil, DecodeStats{}, fmt.Errorf("unknown availability shape %q", shape)
}

// onDate anchors a clock or the time of day of a timestamp on date.
func onDate(date Date, value string) (time.Time, error) {
	if c, err := parse.ParseClock(value); err == nil {
		return withClock(date, c), nil
	}
	t, err := parse.ParseWallClock(value)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year, date.Month, date.Day, t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
}

// isoOrClock keeps a full timestamp as written and anchors bare clocks on date.
func isoOrClock(date Date, value string) (time.Time, error) {
	if c, err := parse.ParseClock(value); err == nil {
		return withClock(date, c), nil
	}
	return parse.ParseWallClock(value)
}

func withClock(date Date, c parse.Clock) time.Time {
	return time.Date(date.Year, date.Month, date.Day, c.Hour, c.Minute, c.Second, 0, time.UTC)
}

// wireClock formats the hour and minute of t as "HH:MM:00"; seconds are always zero.
const (
	dayStartClock = "00:00:00"
	dayEndClock   = "23:59:00"
)

func wireClock(t time.Time) string {
	return fmt.Sprintf("%02d:%02d:00", t.Hour(), t.Minute())
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
