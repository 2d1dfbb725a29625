package request

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/consulardesk/scheduling/internal/identity"
	"github.com/consulardesk/scheduling/internal/notify"
)

const (
	NotifyRequestStatusChanged = "request_status_changed"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Service struct {
	repo     Repository
	notifier notify.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, notifier notify.Notifier, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	Type      string
	ProfileID uuid.UUID
	ServiceID uuid.UUID
}

// CreateRequest opens a new procedure in draft.
func (s *Service) CreateRequest(ctx context.Context, actor identity.Actor, in CreateInput) (*ServiceRequest, error) {
	if strings.TrimSpace(in.Type) == "" {
		return nil, fmt.Errorf("%w: request type is required", ErrInvalidInput)
	}
	if in.ProfileID == uuid.Nil {
		return nil, fmt.Errorf("%w: profile id is required", ErrInvalidInput)
	}
	if in.ServiceID == uuid.Nil {
		return nil, fmt.Errorf("%w: service id is required", ErrInvalidInput)
	}

	now := s.now()
	req := &ServiceRequest{
		ID:        uuid.New(),
		Type:      in.Type,
		Status:    StatusDraft,
		ProfileID: in.ProfileID,
		ServiceID: in.ServiceID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created := s.activity(req.ID, actor, ActivityRequestCreated, map[string]any{
		"request_type": in.Type,
	})
	if err := s.repo.CreateRequest(ctx, req, created); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return req, nil
}

// GetRequest retrieves a fully hydrated request by ID.
func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*ServiceRequest, error) {
	req, err := s.repo.GetRequestByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

// ListRequests returns filtered requests, most recent first.
func (s *Service) ListRequests(ctx context.Context, filter ListFilter) ([]ServiceRequest, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	reqs, err := s.repo.ListRequests(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return reqs, nil
}

// Submit hands the citizen's draft to the consulate.
func (s *Service) Submit(ctx context.Context, actor identity.Actor, id uuid.UUID) (*ServiceRequest, error) {
	return s.updateStatus(ctx, actor, id, StatusSubmitted, nil)
}

// UpdateStatus moves a request through the enforced transition graph and
// records the change on the timeline.
func (s *Service) UpdateStatus(ctx context.Context, actor identity.Actor, id uuid.UUID, target Status) (*ServiceRequest, error) {
	return s.updateStatus(ctx, actor, id, target, nil)
}

func (s *Service) updateStatus(ctx context.Context, actor identity.Actor, id uuid.UUID, target Status, extra []Activity) (*ServiceRequest, error) {
	current, err := s.repo.GetRequestByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := current.Status
	to, err := NextStatus(from, target)
	if err != nil {
		return nil, err
	}

	activities := []Activity{
		s.activity(id, actor, ActivityStatusChanged, map[string]any{
			"from": string(from),
			"to":   string(to),
		}),
	}
	switch to {
	case StatusSubmitted:
		activities = append(activities, s.activity(id, actor, ActivityRequestSubmitted, nil))
	case StatusCompleted:
		activities = append(activities, s.activity(id, actor, ActivityRequestCompleted, nil))
	case StatusCancelled:
		activities = append(activities, s.activity(id, actor, ActivityRequestCancelled, nil))
	}
	activities = append(activities, extra...)

	updated, err := s.repo.TransitionStatus(ctx, id, from, to, activities)
	if err != nil {
		return nil, err
	}

	s.notifyRequest(ctx, updated, NotifyRequestStatusChanged, "Request updated",
		fmt.Sprintf("Your %s request is now %s.", updated.Type, updated.Status))

	return updated, nil
}

// Assign records the handling agent.
func (s *Service) Assign(ctx context.Context, actor identity.Actor, id uuid.UUID, assignee string) error {
	if strings.TrimSpace(assignee) == "" {
		return fmt.Errorf("%w: assignee name is required", ErrInvalidInput)
	}

	activity := s.activity(id, actor, ActivityRequestAssigned, map[string]any{
		"assignee_name": assignee,
	})
	return s.repo.SetAssignee(ctx, id, assignee, activity)
}

// AddNote appends a case note; internal notes are never shown to citizens.
func (s *Service) AddNote(ctx context.Context, actor identity.Actor, id uuid.UUID, kind NoteKind, content string) (*Note, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: note content is required", ErrInvalidInput)
	}
	if _, err := s.repo.GetRequestByID(ctx, id); err != nil {
		return nil, err
	}

	n := Note{
		RequestID: id,
		Kind:      kind,
		Content:   content,
		AuthorID:  actor.ID,
		CreatedAt: s.now(),
	}
	return s.repo.AddNote(ctx, n)
}

// AttachDocument registers an uploaded file reference on the request.
func (s *Service) AttachDocument(ctx context.Context, actor identity.Actor, requestID uuid.UUID, documentID uuid.UUID, name string) (*Document, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: document name is required", ErrInvalidInput)
	}
	if documentID == uuid.Nil {
		documentID = uuid.New()
	}
	if _, err := s.repo.GetRequestByID(ctx, requestID); err != nil {
		return nil, err
	}

	now := s.now()
	d := Document{
		ID:        documentID,
		RequestID: requestID,
		Name:      name,
		Status:    DocumentUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	activity := s.activity(requestID, actor, ActivityDocumentUploaded, map[string]any{
		"document_name": name,
	})
	if err := s.repo.AddDocument(ctx, d, activity); err != nil {
		return nil, err
	}
	return &d, nil
}

// ValidateDocument marks a document approved by an agent.
func (s *Service) ValidateDocument(ctx context.Context, actor identity.Actor, requestID, documentID uuid.UUID) error {
	return s.reviewDocument(ctx, actor, requestID, documentID, DocumentValidated, ActivityDocumentValidated, nil)
}

// RejectDocument marks a document refused; the reason lands on the timeline.
func (s *Service) RejectDocument(ctx context.Context, actor identity.Actor, requestID, documentID uuid.UUID, reason *string) error {
	return s.reviewDocument(ctx, actor, requestID, documentID, DocumentRejected, ActivityDocumentRejected, reason)
}

func (s *Service) reviewDocument(ctx context.Context, actor identity.Actor, requestID, documentID uuid.UUID, status DocumentStatus, activityType string, reason *string) error {
	req, err := s.repo.GetRequestByID(ctx, requestID)
	if err != nil {
		return err
	}

	var name string
	for _, d := range req.Documents {
		if d.ID == documentID {
			name = d.Name
			break
		}
	}
	if name == "" {
		return ErrDocumentNotFound
	}

	payload := map[string]any{"document_name": name}
	if reason != nil {
		payload["reason"] = *reason
	}
	activity := s.activity(requestID, actor, activityType, payload)

	return s.repo.UpdateDocumentStatus(ctx, requestID, documentID, status, activity)
}

// MarkAppointmentScheduled links a booked appointment to the request. When the
// request has not yet progressed past the in-flight stage its status moves to
// appointment_scheduled; otherwise only the timeline entry is recorded.
func (s *Service) MarkAppointmentScheduled(ctx context.Context, actor identity.Actor, requestID, appointmentID uuid.UUID) error {
	current, err := s.repo.GetRequestByID(ctx, requestID)
	if err != nil {
		return err
	}

	scheduled := s.activity(requestID, actor, ActivityAppointmentScheduled, map[string]any{
		"appointment_id": appointmentID.String(),
	})

	if CanTransition(current.Status, StatusAppointmentScheduled) {
		_, err = s.updateStatus(ctx, actor, requestID, StatusAppointmentScheduled, []Activity{scheduled})
		return err
	}

	return s.repo.AppendActivity(ctx, scheduled)
}

func (s *Service) activity(requestID uuid.UUID, actor identity.Actor, activityType string, payload map[string]any) Activity {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			s.log.Error().Err(err).Str("activity_type", activityType).Msg("failed to marshal activity payload")
			data = nil
		}
	}

	return Activity{
		RequestID: requestID,
		Type:      activityType,
		ActorID:   actor.ID,
		Payload:   data,
		CreatedAt: s.now(),
	}
}

func (s *Service) notifyRequest(ctx context.Context, req *ServiceRequest, kind, title, message string) {
	reqID := req.ID
	n := notify.Notification{
		RecipientID: req.ProfileID,
		Type:        kind,
		Title:       title,
		Message:     message,
		RequestID:   &reqID,
	}
	if err := s.notifier.Send(ctx, n); err != nil {
		s.log.Warn().Err(err).
			Str("request_id", req.ID.String()).
			Str("type", kind).
			Msg("notification dispatch failed")
	}
}
