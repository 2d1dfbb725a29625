package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
	StatusCompleted   Status = "completed"
	StatusMissed      Status = "missed"
)

var allStatuses = map[Status]bool{
	StatusPending:     true,
	StatusScheduled:   true,
	StatusConfirmed:   true,
	StatusCancelled:   true,
	StatusRescheduled: true,
	StatusCompleted:   true,
	StatusMissed:      true,
}

// ParseStatus rejects anything outside the closed status vocabulary.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !allStatuses[s] {
		return "", fmt.Errorf("%w: unknown appointment status %q", ErrInvalidInput, raw)
	}
	return s, nil
}

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusMissed
}

type ParticipantStatus string

const (
	ParticipantTentative ParticipantStatus = "tentative"
	ParticipantAccepted  ParticipantStatus = "accepted"
	ParticipantDeclined  ParticipantStatus = "declined"
)

func ParseParticipantStatus(raw string) (ParticipantStatus, error) {
	switch s := ParticipantStatus(raw); s {
	case ParticipantTentative, ParticipantAccepted, ParticipantDeclined:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown participant status %q", ErrInvalidInput, raw)
	}
}

// Participant is an attendee attached to one appointment. Position preserves
// invite order.
type Participant struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Status        ParticipantStatus
	Position      int
}

type ActionType string

const (
	ActionConfirm    ActionType = "confirm"
	ActionCancel     ActionType = "cancel"
	ActionReschedule ActionType = "reschedule"
	ActionComplete   ActionType = "complete"
	ActionMiss       ActionType = "miss"
)

// Action is one entry of the append-only audit trail. Rows are inserted on
// every state-changing operation and never edited or removed.
type Action struct {
	ID            int64
	AppointmentID uuid.UUID
	AuthorID      uuid.UUID
	Type          ActionType
	Reason        *string
	CreatedAt     time.Time
}

type Appointment struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	ServiceID      uuid.UUID
	RequestID      *uuid.UUID
	ProfileID      uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	Timezone       string
	Status         Status
	Location       *string
	Notes          *string
	Participants   []Participant
	Actions        []Action
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Window returns the booked interval as a half-open slot.
func (a *Appointment) Window() TimeSlot {
	return TimeSlot{StartAt: a.StartTime, EndAt: a.EndTime}
}

// Organization is the consular post owning a calendar of appointments.
type Organization struct {
	ID          uuid.UUID
	Name        string
	Timezone    string
	OpenMinute  int // working-hours start, minutes from midnight
	CloseMinute int // working-hours end, minutes from midnight
	SlotMinutes int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WorkingHours returns the organization's booking window.
func (o *Organization) WorkingHours() WorkingHours {
	return WorkingHours{StartMinute: o.OpenMinute, EndMinute: o.CloseMinute}
}
