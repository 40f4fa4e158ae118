package avail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	d := MustDate("2025-10-05")
	testCases := []struct {
		name      string
		validator Validator
		slot      TimeSlot
		expected  error
	}{
		{
			name: "Valid slot",
			slot: TimeSlot{Date: d, Start: at("2025-10-05", 10, 0), End: at("2025-10-05", 11, 0)},
		},
		{
			name:     "Missing start",
			slot:     TimeSlot{Date: d, End: at("2025-10-05", 11, 0)},
			expected: ErrUnparseableTime,
		},
		{
			name:     "Missing start beats inversion",
			slot:     TimeSlot{Date: d, Start: at("2025-10-05", 12, 0)},
			expected: ErrUnparseableTime,
		},
		{
			name:     "Inverted",
			slot:     TimeSlot{Date: d, Start: at("2025-10-05", 12, 0), End: at("2025-10-05", 11, 0)},
			expected: ErrInvertedInterval,
		},
		{
			name:     "Empty interval",
			slot:     TimeSlot{Date: d, Start: at("2025-10-05", 12, 0), End: at("2025-10-05", 12, 0)},
			expected: ErrInvertedInterval,
		},
		{
			name:      "Too short",
			validator: Validator{MinDuration: 30 * time.Minute},
			slot:      TimeSlot{Date: d, Start: at("2025-10-05", 12, 0), End: at("2025-10-05", 12, 15)},
			expected:  ErrTooShort,
		},
		{
			name:      "Exactly the minimum",
			validator: Validator{MinDuration: 30 * time.Minute},
			slot:      TimeSlot{Date: d, Start: at("2025-10-05", 12, 0), End: at("2025-10-05", 12, 30)},
		},
		{
			name:      "Inversion reported before duration",
			validator: Validator{MinDuration: 30 * time.Minute},
			slot:      TimeSlot{Date: d, Start: at("2025-10-05", 12, 0), End: at("2025-10-05", 11, 59)},
			expected:  ErrInvertedInterval,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.validator.Validate(tc.slot)
			if tc.expected == nil {
				assert.NoError(t, err)
				assert.True(t, tc.validator.Valid(tc.slot))
				return
			}
			assert.ErrorIs(t, err, tc.expected)
			assert.False(t, tc.validator.Valid(tc.slot))
		})
	}
}

func TestValidateSubmission(t *testing.T) {
	v := Validator{}

	empty := NewSlotStore()
	err := v.ValidateSubmission(empty)
	assert.ErrorIs(t, err, ErrNoAvailability)
	assert.Contains(t, err.Error(), "no availability")

	onlyInverted, _, _ := DecodeFlatList([]byte(`[{"date":"2025-10-05","start_time":"12:00","end_time":"11:00"}]`))
	assert.ErrorIs(t, v.ValidateSubmission(onlyInverted), ErrNoAvailability)

	s := NewSlotStore()
	_, _ = s.AddSlot(MustDate("2025-10-05"), DefaultWindow)
	assert.NoError(t, v.ValidateSubmission(s))
}
