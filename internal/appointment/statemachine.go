package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Transition table. A rescheduled appointment behaves like a scheduled one so
// the rebooked visit can still be confirmed, completed or cancelled.
var allowedFrom = map[ActionType]map[Status]bool{
	ActionConfirm: {
		StatusPending:     true,
		StatusRescheduled: true,
	},
	ActionCancel: {
		StatusPending:     true,
		StatusScheduled:   true,
		StatusConfirmed:   true,
		StatusRescheduled: true,
	},
	ActionReschedule: {
		StatusPending:     true,
		StatusScheduled:   true,
		StatusConfirmed:   true,
		StatusRescheduled: true,
	},
	ActionComplete: {
		StatusScheduled:   true,
		StatusConfirmed:   true,
		StatusRescheduled: true,
	},
	ActionMiss: {
		StatusScheduled:   true,
		StatusConfirmed:   true,
		StatusRescheduled: true,
	},
}

var resultOf = map[ActionType]Status{
	ActionConfirm:    StatusConfirmed,
	ActionCancel:     StatusCancelled,
	ActionReschedule: StatusRescheduled,
	ActionComplete:   StatusCompleted,
	ActionMiss:       StatusMissed,
}

// NextStatus validates op against the current status and returns the status it
// leads to. An invalid transition produces no mutation anywhere: callers only
// persist after this check passes.
func NextStatus(current Status, op ActionType) (Status, error) {
	to, ok := resultOf[op]
	if !ok {
		return "", fmt.Errorf("%w: unknown operation %q", ErrInvalidInput, op)
	}
	if !allowedFrom[op][current] {
		return "", fmt.Errorf("%w: cannot %s an appointment in status %s", ErrInvalidTransition, op, current)
	}
	return to, nil
}

// NewAction builds the audit entry recorded alongside a transition.
func NewAction(appointmentID, authorID uuid.UUID, op ActionType, reason *string, now time.Time) Action {
	return Action{
		AppointmentID: appointmentID,
		AuthorID:      authorID,
		Type:          op,
		Reason:        reason,
		CreatedAt:     now,
	}
}

// Apply performs an in-memory transition: status change plus exactly one
// appended action. Persistence-backed callers go through NextStatus and let
// the repository commit both atomically; Apply serves in-memory state and
// tests.
func Apply(a *Appointment, authorID uuid.UUID, op ActionType, reason *string, now time.Time) error {
	to, err := NextStatus(a.Status, op)
	if err != nil {
		return err
	}
	a.Status = to
	a.UpdatedAt = now
	a.Actions = append(a.Actions, NewAction(a.ID, authorID, op, reason, now))
	return nil
}
