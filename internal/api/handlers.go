package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/consulardesk/scheduling/internal/appointment"
	"github.com/consulardesk/scheduling/internal/identity"
)

func requireActor(w http.ResponseWriter, r *http.Request) (identity.Actor, bool) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "actor_required", "X-Actor-ID header is required for this operation")
		return identity.Actor{}, false
	}
	return actor, true
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func availableSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := parseUUIDParam(w, r, "orgID")
		if !ok {
			return
		}

		dateStr := r.URL.Query().Get("date")
		day, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slotMinutes := 0
		if v := r.URL.Query().Get("duration"); v != "" {
			n, err := parsePositiveInt(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive integer of minutes")
				return
			}
			slotMinutes = n
		}

		slots, err := svc.AvailableSlots(r.Context(), orgID, day, slotMinutes, nil)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		if slots == nil {
			slots = []appointment.TimeSlot{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
	}
}

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		in, err := toCreateInput(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), actor, in)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func toCreateInput(req CreateAppointmentRequest) (appointment.CreateInput, error) {
	var in appointment.CreateInput
	var err error

	if in.OrganizationID, err = uuid.Parse(req.OrganizationID); err != nil {
		return in, errors.New("organization_id must be a valid UUID")
	}
	if in.ServiceID, err = uuid.Parse(req.ServiceID); err != nil {
		return in, errors.New("service_id must be a valid UUID")
	}
	if in.ProfileID, err = uuid.Parse(req.ProfileID); err != nil {
		return in, errors.New("profile_id must be a valid UUID")
	}
	if req.RequestID != "" {
		id, err := uuid.Parse(req.RequestID)
		if err != nil {
			return in, errors.New("request_id must be a valid UUID")
		}
		in.RequestID = &id
	}
	for _, raw := range req.ParticipantIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return in, errors.New("participant_ids must be valid UUIDs")
		}
		in.ParticipantIDs = append(in.ParticipantIDs, id)
	}

	in.StartTime = req.StartTime
	in.EndTime = req.EndTime
	in.Timezone = req.Timezone
	in.Location = req.Location
	in.Notes = req.Notes
	return in, nil
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service, upcoming bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseListFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}

		var appts []appointment.Appointment
		if upcoming {
			appts, err = svc.ListUpcoming(r.Context(), filter)
		} else {
			appts, err = svc.ListAppointments(r.Context(), filter)
		}
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{"appointments": resp})
	}
}

func parseListFilter(r *http.Request) (appointment.ListFilter, error) {
	var filter appointment.ListFilter
	q := r.URL.Query()

	parseID := func(name string, dst **uuid.UUID) error {
		if v := q.Get(name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return errors.New(name + " must be a valid UUID")
			}
			*dst = &id
		}
		return nil
	}

	if err := parseID("organization_id", &filter.OrganizationID); err != nil {
		return filter, err
	}
	if err := parseID("service_id", &filter.ServiceID); err != nil {
		return filter, err
	}
	if err := parseID("profile_id", &filter.ProfileID); err != nil {
		return filter, err
	}
	if err := parseID("request_id", &filter.RequestID); err != nil {
		return filter, err
	}

	for _, raw := range q["status"] {
		s, err := appointment.ParseStatus(raw)
		if err != nil {
			return filter, errors.New("unknown status " + raw)
		}
		filter.Statuses = append(filter.Statuses, s)
	}

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("from must be RFC3339")
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("to must be RFC3339")
		}
		filter.To = &t
	}

	if v := q.Get("limit"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return filter, errors.New("offset must be a positive integer")
		}
		filter.Offset = n
	}

	return filter, nil
}

func confirmAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(svc, func(r *http.Request, actor identity.Actor, svc *appointment.Service, id uuid.UUID) (*appointment.Appointment, error) {
		return svc.Confirm(r.Context(), actor, id)
	})
}

func completeAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(svc, func(r *http.Request, actor identity.Actor, svc *appointment.Service, id uuid.UUID) (*appointment.Appointment, error) {
		return svc.Complete(r.Context(), actor, id)
	})
}

func missAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(svc, func(r *http.Request, actor identity.Actor, svc *appointment.Service, id uuid.UUID) (*appointment.Appointment, error) {
		return svc.Miss(r.Context(), actor, id)
	})
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(svc, func(r *http.Request, actor identity.Actor, svc *appointment.Service, id uuid.UUID) (*appointment.Appointment, error) {
		var req CancelRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, errors.New("could not parse JSON")
			}
		}
		return svc.Cancel(r.Context(), actor, id, req.Reason)
	})
}

func rescheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(svc, func(r *http.Request, actor identity.Actor, svc *appointment.Service, id uuid.UUID) (*appointment.Appointment, error) {
		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.New("could not parse JSON")
		}
		return svc.Reschedule(r.Context(), actor, id, req.StartTime, req.EndTime, req.Reason)
	})
}

func transitionHandler(svc *appointment.Service, fn func(*http.Request, identity.Actor, *appointment.Service, uuid.UUID) (*appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := fn(r, actor, svc, id)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func addParticipantHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireActor(w, r); !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		var req AddParticipantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		participantID, err := uuid.Parse(req.ParticipantID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_participant_id", "participant_id must be a valid UUID")
			return
		}

		p, err := svc.AddParticipant(r.Context(), id, participantID)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, ParticipantResponse{ID: p.ID, Status: string(p.Status)})
	}
}

func updateParticipantStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireActor(w, r); !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		participantID, ok := parseUUIDParam(w, r, "participantID")
		if !ok {
			return
		}

		var req UpdateParticipantStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		status, err := appointment.ParseParticipantStatus(req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}

		if err := svc.UpdateParticipantStatus(r.Context(), id, participantID, status); err != nil {
			handleAppointmentError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.DeleteAppointment(r.Context(), actor, id); err != nil {
			handleAppointmentError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func handleAppointmentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, appointment.ErrOrganizationNotFound):
		writeError(w, http.StatusNotFound, "organization_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrDuplicateParticipant):
		writeError(w, http.StatusConflict, "duplicate_participant", err.Error())
	case errors.Is(err, appointment.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "concurrency_conflict", "a competing booking is in progress, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parsePositiveInt(v string) (int, error) {
	if v == "" {
		return 0, errors.New("empty")
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return 0, errors.New("not a positive integer")
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
