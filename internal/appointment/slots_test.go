package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
}

func at(d time.Time, hour, min int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, 0, 0, d.Location())
}

func TestComputeAvailableSlots_FullDay(t *testing.T) {
	d := day(t)

	slots, err := ComputeAvailableSlots(d, 30, DefaultWorkingHours(), nil)
	require.NoError(t, err)

	// 09:00-17:00 in 30-minute steps.
	require.Len(t, slots, 16)
	assert.Equal(t, at(d, 9, 0), slots[0].StartAt)
	assert.Equal(t, at(d, 9, 30), slots[0].EndAt)
	assert.Equal(t, at(d, 16, 30), slots[15].StartAt)
	assert.Equal(t, at(d, 17, 0), slots[15].EndAt)
}

func TestComputeAvailableSlots_ExcludesOverlapping(t *testing.T) {
	d := day(t)
	booked := []TimeSlot{
		{StartAt: at(d, 10, 0), EndAt: at(d, 10, 30)},
		{StartAt: at(d, 14, 15), EndAt: at(d, 14, 45)}, // off-grid, blocks two slots
	}

	slots, err := ComputeAvailableSlots(d, 30, DefaultWorkingHours(), booked)
	require.NoError(t, err)

	require.Len(t, slots, 13)
	for _, s := range slots {
		for _, b := range booked {
			assert.False(t, s.Overlaps(b), "slot %v overlaps booked %v", s, b)
		}
	}
}

func TestComputeAvailableSlots_AdjacentIsNotConflict(t *testing.T) {
	d := day(t)
	// Booked 09:30-10:00: the 09:00-09:30 and 10:00-10:30 neighbours stay open.
	booked := []TimeSlot{{StartAt: at(d, 9, 30), EndAt: at(d, 10, 0)}}

	slots, err := ComputeAvailableSlots(d, 30, DefaultWorkingHours(), booked)
	require.NoError(t, err)

	require.Len(t, slots, 15)
	assert.Equal(t, at(d, 9, 0), slots[0].StartAt)
	assert.Equal(t, at(d, 10, 0), slots[1].StartAt)
}

func TestComputeAvailableSlots_SlotMustFitWindow(t *testing.T) {
	d := day(t)
	// 09:00-10:15 window with 30-minute slots: the 10:00-10:30 candidate
	// spills past the close and is not generated.
	hours := WorkingHours{StartMinute: 9 * 60, EndMinute: 10*60 + 15}

	slots, err := ComputeAvailableSlots(d, 30, hours, nil)
	require.NoError(t, err)

	require.Len(t, slots, 2)
	assert.Equal(t, at(d, 10, 0), slots[1].EndAt)
}

func TestComputeAvailableSlots_FullyBookedDayIsEmptyNotError(t *testing.T) {
	d := day(t)
	booked := []TimeSlot{{StartAt: at(d, 0, 0), EndAt: at(d, 23, 59)}}

	slots, err := ComputeAvailableSlots(d, 30, DefaultWorkingHours(), booked)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestComputeAvailableSlots_InvalidInput(t *testing.T) {
	d := day(t)

	_, err := ComputeAvailableSlots(d, 0, DefaultWorkingHours(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ComputeAvailableSlots(d, -15, DefaultWorkingHours(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ComputeAvailableSlots(d, 30, WorkingHours{StartMinute: 600, EndMinute: 540}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ComputeAvailableSlots(d, 30, WorkingHours{StartMinute: -10, EndMinute: 540}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTimeSlotOverlaps_HalfOpen(t *testing.T) {
	d := day(t)
	a := TimeSlot{StartAt: at(d, 9, 0), EndAt: at(d, 9, 30)}

	tests := []struct {
		name  string
		other TimeSlot
		want  bool
	}{
		{"identical", TimeSlot{StartAt: at(d, 9, 0), EndAt: at(d, 9, 30)}, true},
		{"contained", TimeSlot{StartAt: at(d, 9, 10), EndAt: at(d, 9, 20)}, true},
		{"straddles start", TimeSlot{StartAt: at(d, 8, 45), EndAt: at(d, 9, 15)}, true},
		{"straddles end", TimeSlot{StartAt: at(d, 9, 15), EndAt: at(d, 9, 45)}, true},
		{"touches end", TimeSlot{StartAt: at(d, 9, 30), EndAt: at(d, 10, 0)}, false},
		{"touches start", TimeSlot{StartAt: at(d, 8, 30), EndAt: at(d, 9, 0)}, false},
		{"disjoint", TimeSlot{StartAt: at(d, 11, 0), EndAt: at(d, 11, 30)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(a))
		})
	}
}
