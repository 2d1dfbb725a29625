package appointment

import "errors"

var (
	// ErrInvalidInput rejects malformed input before any mutation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSlotConflict means the requested window overlaps an existing
	// non-cancelled booking.
	ErrSlotConflict = errors.New("requested window conflicts with an existing booking")

	// ErrInvalidTransition means the operation is not permitted from the
	// appointment's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConcurrencyConflict means a competing writer won the race; the caller
	// should retry the whole check-then-write sequence.
	ErrConcurrencyConflict = errors.New("concurrent update detected, retry")

	// ErrDuplicateParticipant rejects inviting the same attendee twice.
	ErrDuplicateParticipant = errors.New("participant already invited")

	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrOrganizationNotFound = errors.New("organization not found")
)
