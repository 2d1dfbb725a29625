package appointment

import (
	"fmt"
	"time"
)

// TimeSlot is a candidate bookable window. Pure value type, never persisted.
type TimeSlot struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// Overlaps uses half-open interval semantics: a slot ending exactly when
// another begins is not a conflict.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.StartAt.Before(other.EndAt) && s.EndAt.After(other.StartAt)
}

// WorkingHours is a daily booking window expressed in minutes from midnight.
type WorkingHours struct {
	StartMinute int
	EndMinute   int
}

// DefaultWorkingHours is the 09:00-17:00 window applied when an organization
// does not configure its own.
func DefaultWorkingHours() WorkingHours {
	return WorkingHours{StartMinute: 9 * 60, EndMinute: 17 * 60}
}

func (w WorkingHours) validate() error {
	if w.StartMinute < 0 || w.EndMinute > 24*60 || w.StartMinute >= w.EndMinute {
		return fmt.Errorf("%w: working hours window [%d,%d) is invalid", ErrInvalidInput, w.StartMinute, w.EndMinute)
	}
	return nil
}

// ComputeAvailableSlots generates every candidate slot of slotMinutes inside
// the working-hours window of day, then discards those overlapping a booked
// window. The result is ordered ascending by start; an empty result means the
// day is fully booked, which is not an error. The function is read-only and
// safe for concurrent use.
func ComputeAvailableSlots(day time.Time, slotMinutes int, hours WorkingHours, booked []TimeSlot) ([]TimeSlot, error) {
	if slotMinutes <= 0 {
		return nil, fmt.Errorf("%w: slot duration must be positive, got %d", ErrInvalidInput, slotMinutes)
	}
	if err := hours.validate(); err != nil {
		return nil, err
	}

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	windowStart := midnight.Add(time.Duration(hours.StartMinute) * time.Minute)
	windowEnd := midnight.Add(time.Duration(hours.EndMinute) * time.Minute)
	step := time.Duration(slotMinutes) * time.Minute

	var slots []TimeSlot
	for start := windowStart; !start.Add(step).After(windowEnd); start = start.Add(step) {
		slot := TimeSlot{StartAt: start, EndAt: start.Add(step)}
		if conflicts(slot, booked) {
			continue
		}
		slots = append(slots, slot)
	}

	return slots, nil
}

func conflicts(slot TimeSlot, booked []TimeSlot) bool {
	for _, b := range booked {
		if slot.Overlaps(b) {
			return true
		}
	}
	return false
}
