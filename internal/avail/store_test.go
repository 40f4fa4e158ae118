package avail

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("slot-%d", n)
	}
}

func at(date string, hour, minute int) time.Time {
	return MustDate(date).At(Clock{Hour: hour, Minute: minute})
}

func TestAddSlotUsesWindow(t *testing.T) {
	s := NewSlotStore(WithIDGenerator(seqIDs()))
	d := MustDate("2025-10-05")

	slot, err := s.AddSlot(d, DefaultWindow)
	require.NoError(t, err)
	assert.Equal(t, "slot-1", slot.ID)
	assert.Equal(t, at("2025-10-05", 10, 0), slot.Start)
	assert.Equal(t, at("2025-10-05", 11, 0), slot.End)

	custom, err := s.AddSlot(d, Window{Start: Clock{Hour: 8, Minute: 30}, Duration: 45 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, at("2025-10-05", 8, 30), custom.Start)
	assert.Equal(t, at("2025-10-05", 9, 15), custom.End)
	assert.Equal(t, 2, s.Len())
}

func TestUpdateSlotRepair(t *testing.T) {
	testCases := []struct {
		name          string
		field         Field
		value         Clock
		expectedStart time.Time
		expectedEnd   time.Time
	}{
		{
			name:          "Start past end drags end",
			field:         FieldStart,
			value:         Clock{Hour: 14, Minute: 30},
			expectedStart: at("2025-10-05", 14, 30),
			expectedEnd:   at("2025-10-05", 15, 30),
		},
		{
			name:          "Start equal to end drags end",
			field:         FieldStart,
			value:         Clock{Hour: 11},
			expectedStart: at("2025-10-05", 11, 0),
			expectedEnd:   at("2025-10-05", 12, 0),
		},
		{
			name:          "Start inside interval keeps end",
			field:         FieldStart,
			value:         Clock{Hour: 10, Minute: 30},
			expectedStart: at("2025-10-05", 10, 30),
			expectedEnd:   at("2025-10-05", 11, 0),
		},
		{
			name:          "End before start drags start",
			field:         FieldEnd,
			value:         Clock{Hour: 9},
			expectedStart: at("2025-10-05", 8, 0),
			expectedEnd:   at("2025-10-05", 9, 0),
		},
		{
			name:          "End equal to start drags start",
			field:         FieldEnd,
			value:         Clock{Hour: 10},
			expectedStart: at("2025-10-05", 9, 0),
			expectedEnd:   at("2025-10-05", 10, 0),
		},
		{
			name:          "End later keeps start",
			field:         FieldEnd,
			value:         Clock{Hour: 12, Minute: 15},
			expectedStart: at("2025-10-05", 10, 0),
			expectedEnd:   at("2025-10-05", 12, 15),
		},
		{
			name:          "Late start crosses midnight",
			field:         FieldStart,
			value:         Clock{Hour: 23, Minute: 30},
			expectedStart: at("2025-10-05", 23, 30),
			expectedEnd:   at("2025-10-06", 0, 30),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSlotStore()
			d := MustDate("2025-10-05")
			slot, err := s.AddSlot(d, DefaultWindow)
			require.NoError(t, err)

			require.NoError(t, s.UpdateSlot(d, slot.ID, tc.field, tc.value))

			got, ok := s.Slot(d, slot.ID)
			require.True(t, ok)
			assert.Equal(t, tc.expectedStart, got.Start)
			assert.Equal(t, tc.expectedEnd, got.End)
		})
	}
}

func TestUpdateSlotKeepsIntervalValid(t *testing.T) {
	d := MustDate("2025-10-05")
	for _, field := range []Field{FieldStart, FieldEnd} {
		for minutes := 0; minutes < 24*60; minutes += 15 {
			s := NewSlotStore()
			slot, err := s.AddSlot(d, DefaultWindow)
			require.NoError(t, err)

			value := Clock{Hour: minutes / 60, Minute: minutes % 60}
			require.NoError(t, s.UpdateSlot(d, slot.ID, field, value))

			got, _ := s.Slot(d, slot.ID)
			assert.Truef(t, got.Start.Before(got.End), "%s=%s left %s-%s", field, value, got.Start, got.End)
		}
	}
}

func TestUpdateSlotUnknownField(t *testing.T) {
	s := NewSlotStore()
	d := MustDate("2025-10-05")
	slot, err := s.AddSlot(d, DefaultWindow)
	require.NoError(t, err)

	err = s.UpdateSlot(d, slot.ID, Field("middle"), Clock{Hour: 12})
	assert.ErrorIs(t, err, ErrUnknownField)

	got, _ := s.Slot(d, slot.ID)
	assert.Equal(t, slot, got)
}

func TestUnknownSlotIsIgnored(t *testing.T) {
	s := NewSlotStore()
	d := MustDate("2025-10-05")
	_, err := s.AddSlot(d, DefaultWindow)
	require.NoError(t, err)
	before := s.All()

	assert.NoError(t, s.UpdateSlot(d, "missing", FieldStart, Clock{Hour: 12}))
	assert.NoError(t, s.RemoveSlot(d, "missing"))
	assert.NoError(t, s.RemoveSlot(MustDate("2025-10-09"), "missing"))
	assert.Equal(t, before, s.All())
}

func TestLockedDateRejectsMutations(t *testing.T) {
	locked := false
	s := NewSlotStore(WithLockPredicate(func(Date) bool { return locked }))
	d := MustDate("2025-10-05")
	slot, err := s.AddSlot(d, DefaultWindow)
	require.NoError(t, err)

	locked = true
	before := s.All()

	_, err = s.AddSlot(d, DefaultWindow)
	assert.ErrorIs(t, err, ErrDateLocked)
	err = s.UpdateSlot(d, slot.ID, FieldStart, Clock{Hour: 14})
	assert.ErrorIs(t, err, ErrDateLocked)
	err = s.RemoveSlot(d, slot.ID)
	assert.ErrorIs(t, err, ErrDateLocked)

	assert.Equal(t, before, s.All())
	assert.True(t, s.IsLocked(d))

	s.SetLockPredicate(nil)
	assert.False(t, s.IsLocked(d))
	assert.NoError(t, s.RemoveSlot(d, slot.ID))
	assert.Equal(t, 0, s.Len())
}

func TestRemoveSlot(t *testing.T) {
	s := NewSlotStore(WithIDGenerator(seqIDs()))
	d := MustDate("2025-10-05")
	first, _ := s.AddSlot(d, DefaultWindow)
	second, _ := s.AddSlot(d, Window{Start: Clock{Hour: 13}, Duration: time.Hour})

	require.NoError(t, s.RemoveSlot(d, first.ID))

	slots := s.SlotsFor(d)
	require.Len(t, slots, 1)
	assert.Equal(t, second.ID, slots[0].ID)
}

func TestSlotsForSortsOnRead(t *testing.T) {
	s := NewSlotStore(WithIDGenerator(seqIDs()))
	d := MustDate("2025-10-05")
	for _, hour := range []int{15, 9, 12} {
		_, err := s.AddSlot(d, Window{Start: Clock{Hour: hour}, Duration: time.Hour})
		require.NoError(t, err)
	}

	var sorted []int
	for _, slot := range s.SlotsFor(d) {
		sorted = append(sorted, slot.Start.Hour())
	}
	assert.Equal(t, []int{9, 12, 15}, sorted)

	var stored []string
	for _, slot := range s.All() {
		stored = append(stored, slot.ID)
	}
	assert.Equal(t, []string{"slot-1", "slot-2", "slot-3"}, stored)
}

func TestMarkedDates(t *testing.T) {
	s := NewSlotStore()
	oct7 := MustDate("2025-10-07")
	oct5 := MustDate("2025-10-05")
	slot, _ := s.AddSlot(oct7, DefaultWindow)
	_, _ = s.AddSlot(oct5, DefaultWindow)

	assert.Equal(t, []Date{oct5, MustDate("2025-10-06"), oct7}, s.MarkedDates(MustDate("2025-10-06")))
	assert.Equal(t, []Date{oct5, oct7}, s.MarkedDates(oct5))

	require.NoError(t, s.RemoveSlot(oct7, slot.ID))
	assert.Equal(t, []Date{oct5}, s.MarkedDates(oct5))
	assert.Equal(t, []Date{oct5}, s.Dates())
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewSlotStore()
	d := MustDate("2025-10-05")
	slot, _ := s.AddSlot(d, DefaultWindow)

	c := s.Clone()
	require.NoError(t, c.UpdateSlot(d, slot.ID, FieldStart, Clock{Hour: 16}))
	_, _ = c.AddSlot(MustDate("2025-10-08"), DefaultWindow)

	got, _ := s.Slot(d, slot.ID)
	assert.Equal(t, slot, got)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, c.Len())
}

func TestLockPastAndToday(t *testing.T) {
	now := func() time.Time { return time.Date(2025, 10, 5, 23, 30, 0, 0, time.UTC) }

	testCases := []struct {
		name     string
		loc      *time.Location
		date     string
		expected bool
	}{
		{name: "Yesterday", loc: time.UTC, date: "2025-10-04", expected: true},
		{name: "Today", loc: time.UTC, date: "2025-10-05", expected: true},
		{name: "Tomorrow", loc: time.UTC, date: "2025-10-06", expected: false},
		{name: "Tomorrow is today further east", loc: time.FixedZone("UTC+2", 2*3600), date: "2025-10-06", expected: true},
		{name: "Next year", loc: time.UTC, date: "2026-01-01", expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			locked := LockPastAndToday(now, tc.loc)
			assert.Equal(t, tc.expected, locked(MustDate(tc.date)))
		})
	}
}

func TestParseField(t *testing.T) {
	f, err := ParseField("end")
	assert.NoError(t, err)
	assert.Equal(t, FieldEnd, f)

	_, err = ParseField("start_time")
	assert.ErrorIs(t, err, ErrUnknownField)
}
