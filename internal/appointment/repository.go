package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows appointment queries. Nil pointer fields are ignored.
type ListFilter struct {
	OrganizationID *uuid.UUID
	ServiceID      *uuid.UUID
	ProfileID      *uuid.UUID
	RequestID      *uuid.UUID
	Statuses       []Status
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}

// TimePatch carries the new window applied by a reschedule.
type TimePatch struct {
	StartTime time.Time
	EndTime   time.Time
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetOrganizationByID(ctx context.Context, id uuid.UUID) (*Organization, error)

	// GetAppointmentByID returns the appointment hydrated with participants
	// and the full action log.
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error)

	// BookedWindows returns the [start,end) windows of every non-cancelled
	// appointment for the organization within [dayStart, dayEnd). exclude
	// omits one appointment (a reschedule never conflicts with itself);
	// uuid.Nil excludes nothing.
	BookedWindows(ctx context.Context, orgID uuid.UUID, dayStart, dayEnd time.Time, exclude uuid.UUID) ([]TimeSlot, error)

	// CreateAppointment inserts the appointment and its seeded participants in
	// one transaction.
	CreateAppointment(ctx context.Context, a *Appointment) error

	// TransitionStatus performs a compare-and-swap status update and appends
	// the action in one transaction. patch, when non-nil, also moves the
	// booked window (reschedule). Returns ErrConcurrencyConflict when the
	// appointment exists but its status no longer matches from.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, action Action, patch *TimePatch) (*Appointment, error)

	AddParticipant(ctx context.Context, p Participant) error
	// UpdateParticipantStatus reports whether a participant matched.
	UpdateParticipantStatus(ctx context.Context, appointmentID, participantID uuid.UUID, status ParticipantStatus) (bool, error)

	// FindOverdue returns confirmed, scheduled or rescheduled appointments
	// whose end time passed before cutoff.
	FindOverdue(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	// DeleteAppointment is the administrative hard delete; it bypasses the
	// state machine and removes participants and actions with the row.
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
}
