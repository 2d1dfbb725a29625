package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/consulardesk/scheduling/internal/appointment"
	"github.com/consulardesk/scheduling/internal/request"
)

type CreateAppointmentRequest struct {
	OrganizationID string    `json:"organization_id"`
	ServiceID      string    `json:"service_id"`
	RequestID      string    `json:"request_id,omitempty"`
	ProfileID      string    `json:"profile_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Timezone       string    `json:"timezone,omitempty"`
	Location       *string   `json:"location,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
	ParticipantIDs []string  `json:"participant_ids,omitempty"`
}

type RescheduleRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    *string   `json:"reason,omitempty"`
}

type CancelRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type AddParticipantRequest struct {
	ParticipantID string `json:"participant_id"`
}

type UpdateParticipantStatusRequest struct {
	Status string `json:"status"`
}

type ParticipantResponse struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

type ActionResponse struct {
	AuthorID uuid.UUID `json:"author_id"`
	Type     string    `json:"type"`
	Reason   *string   `json:"reason,omitempty"`
	Date     time.Time `json:"date"`
}

type AppointmentResponse struct {
	ID             uuid.UUID             `json:"id"`
	OrganizationID uuid.UUID             `json:"organization_id"`
	ServiceID      uuid.UUID             `json:"service_id"`
	RequestID      *uuid.UUID            `json:"request_id,omitempty"`
	ProfileID      uuid.UUID             `json:"profile_id"`
	StartTime      time.Time             `json:"start_time"`
	EndTime        time.Time             `json:"end_time"`
	Timezone       string                `json:"timezone"`
	Status         string                `json:"status"`
	Location       *string               `json:"location,omitempty"`
	Notes          *string               `json:"notes,omitempty"`
	Participants   []ParticipantResponse `json:"participants,omitempty"`
	Actions        []ActionResponse      `json:"actions,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:             a.ID,
		OrganizationID: a.OrganizationID,
		ServiceID:      a.ServiceID,
		RequestID:      a.RequestID,
		ProfileID:      a.ProfileID,
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		Timezone:       a.Timezone,
		Status:         string(a.Status),
		Location:       a.Location,
		Notes:          a.Notes,
	}
	for _, p := range a.Participants {
		resp.Participants = append(resp.Participants, ParticipantResponse{ID: p.ID, Status: string(p.Status)})
	}
	for _, ac := range a.Actions {
		resp.Actions = append(resp.Actions, ActionResponse{
			AuthorID: ac.AuthorID,
			Type:     string(ac.Type),
			Reason:   ac.Reason,
			Date:     ac.CreatedAt,
		})
	}
	return resp
}

type CreateServiceRequest struct {
	Type      string `json:"type"`
	ProfileID string `json:"profile_id"`
	ServiceID string `json:"service_id"`
}

type UpdateRequestStatusRequest struct {
	Status string `json:"status"`
}

type AssignRequest struct {
	Assignee string `json:"assignee"`
}

type AddNoteRequest struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

type AttachDocumentRequest struct {
	DocumentID string `json:"document_id,omitempty"`
	Name       string `json:"name"`
}

type RejectDocumentRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type DocumentResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Status string    `json:"status"`
}

type NoteResponse struct {
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ActivityResponse struct {
	Type      string          `json:"type"`
	ActorID   uuid.UUID       `json:"actor_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type ServiceRequestResponse struct {
	ID         uuid.UUID          `json:"id"`
	Type       string             `json:"type"`
	Status     string             `json:"status"`
	Rank       int                `json:"rank"`
	ProfileID  uuid.UUID          `json:"profile_id"`
	ServiceID  uuid.UUID          `json:"service_id"`
	Assignee   *string            `json:"assignee,omitempty"`
	Documents  []DocumentResponse `json:"documents,omitempty"`
	Notes      []NoteResponse     `json:"notes,omitempty"`
	Activities []ActivityResponse `json:"activities,omitempty"`
}

func toServiceRequestResponse(r *request.ServiceRequest) ServiceRequestResponse {
	resp := ServiceRequestResponse{
		ID:        r.ID,
		Type:      r.Type,
		Status:    string(r.Status),
		Rank:      r.Status.Rank(),
		ProfileID: r.ProfileID,
		ServiceID: r.ServiceID,
		Assignee:  r.Assignee,
	}
	for _, d := range r.Documents {
		resp.Documents = append(resp.Documents, DocumentResponse{ID: d.ID, Name: d.Name, Status: string(d.Status)})
	}
	for _, n := range r.Notes {
		resp.Notes = append(resp.Notes, NoteResponse{Kind: string(n.Kind), Content: n.Content, CreatedAt: n.CreatedAt})
	}
	for _, a := range r.Activities {
		resp.Activities = append(resp.Activities, ActivityResponse{
			Type:      a.Type,
			ActorID:   a.ActorID,
			Payload:   a.Payload,
			CreatedAt: a.CreatedAt,
		})
	}
	return resp
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
