package request

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows request queries. Nil pointer fields are ignored.
type ListFilter struct {
	ProfileID *uuid.UUID
	ServiceID *uuid.UUID
	Type      *string
	Assignee  *string
	Statuses  []Status
	Limit     int
	Offset    int
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// GetRequestByID returns the request hydrated with documents, notes and
	// the full activity timeline.
	GetRequestByID(ctx context.Context, id uuid.UUID) (*ServiceRequest, error)
	ListRequests(ctx context.Context, filter ListFilter) ([]ServiceRequest, error)

	// CreateRequest inserts the request and its creation activity in one
	// transaction.
	CreateRequest(ctx context.Context, r *ServiceRequest, created Activity) error

	// TransitionStatus performs a compare-and-swap status update and appends
	// the activities in one transaction. Returns ErrConcurrencyConflict when
	// the request exists but its status no longer matches from.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, activities []Activity) (*ServiceRequest, error)

	// SetAssignee stores the handling agent and appends the activity.
	SetAssignee(ctx context.Context, id uuid.UUID, assignee string, activity Activity) error

	AddNote(ctx context.Context, n Note) (*Note, error)

	AddDocument(ctx context.Context, d Document, activity Activity) error
	// UpdateDocumentStatus moves a document through its review states and
	// appends the matching activity.
	UpdateDocumentStatus(ctx context.Context, requestID, documentID uuid.UUID, status DocumentStatus, activity Activity) error

	AppendActivity(ctx context.Context, a Activity) error
}
