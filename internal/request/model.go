package request

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft                Status = "draft"
	StatusPending              Status = "pending"
	StatusSubmitted            Status = "submitted"
	StatusUnderReview          Status = "under_review"
	StatusPendingCompletion    Status = "pending_completion"
	StatusAppointmentScheduled Status = "appointment_scheduled"
	StatusInProduction         Status = "in_production"
	StatusValidated            Status = "validated"
	StatusReadyForPickup       Status = "ready_for_pickup"
	StatusCompleted            Status = "completed"
	StatusRejected             Status = "rejected"
	StatusCancelled            Status = "cancelled"
)

// rank is the canonical progress ordering used for display and for the
// forward-only transition rule. Rejected and cancelled sit out of band.
var rank = map[Status]int{
	StatusCancelled:            -2,
	StatusRejected:             -1,
	StatusDraft:                0,
	StatusPending:              1,
	StatusSubmitted:            2,
	StatusUnderReview:          3,
	StatusPendingCompletion:    3,
	StatusAppointmentScheduled: 3,
	StatusInProduction:         4,
	StatusValidated:            5,
	StatusReadyForPickup:       6,
	StatusCompleted:            7,
}

// ParseStatus rejects anything outside the closed status vocabulary.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := rank[s]; !ok {
		return "", fmt.Errorf("%w: unknown request status %q", ErrInvalidInput, raw)
	}
	return s, nil
}

// Rank returns the progress position of the status.
func (s Status) Rank() int {
	return rank[s]
}

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

type NoteKind string

const (
	NoteInternal NoteKind = "internal"
	NotePublic   NoteKind = "public"
)

func ParseNoteKind(raw string) (NoteKind, error) {
	switch k := NoteKind(raw); k {
	case NoteInternal, NotePublic:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown note kind %q", ErrInvalidInput, raw)
	}
}

// Note is one entry of the ordered case-note list attached to a request.
type Note struct {
	ID        int64
	RequestID uuid.UUID
	Kind      NoteKind
	Content   string
	AuthorID  uuid.UUID
	CreatedAt time.Time
}

type DocumentStatus string

const (
	DocumentUploaded  DocumentStatus = "uploaded"
	DocumentValidated DocumentStatus = "validated"
	DocumentRejected  DocumentStatus = "rejected"
)

// Document is a reference to a file held by the portal's storage collaborator.
// The engine tracks only identity, display name and review status.
type Document struct {
	ID        uuid.UUID
	RequestID uuid.UUID
	Name      string
	Status    DocumentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Activity types recorded on the append-only timeline.
const (
	ActivityRequestCreated       = "request_created"
	ActivityRequestSubmitted     = "request_submitted"
	ActivityRequestAssigned      = "request_assigned"
	ActivityStatusChanged        = "status_changed"
	ActivityDocumentUploaded     = "document_uploaded"
	ActivityDocumentValidated    = "document_validated"
	ActivityDocumentRejected     = "document_rejected"
	ActivityAppointmentScheduled = "appointment_scheduled"
	ActivityRequestCompleted     = "request_completed"
	ActivityRequestCancelled     = "request_cancelled"
)

// Activity is one row of a request's timeline. Rows are inserted once and
// never edited; Payload carries type-specific detail as JSON.
type Activity struct {
	ID        int64
	RequestID uuid.UUID
	Type      string
	ActorID   uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

// ServiceRequest is the consular procedure being tracked (passport renewal,
// visa, civil registry and the like).
type ServiceRequest struct {
	ID         uuid.UUID
	Type       string
	Status     Status
	ProfileID  uuid.UUID
	ServiceID  uuid.UUID
	Assignee   *string
	Documents  []Document
	Notes      []Note
	Activities []Activity
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
