package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/consulardesk/scheduling/internal/request"
)

func createRequestHandler(svc *request.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req CreateServiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		profileID, err := uuid.Parse(req.ProfileID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_profile_id", "profile_id must be a valid UUID")
			return
		}
		serviceID, err := uuid.Parse(req.ServiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}

		created, err := svc.CreateRequest(r.Context(), actor, request.CreateInput{
			Type:      req.Type,
			ProfileID: profileID,
			ServiceID: serviceID,
		})
		if err != nil {
			handleRequestError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toServiceRequestResponse(created))
	}
}

func getRequestHandler(svc *request.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		req, err := svc.GetRequest(r.Context(), id)
		if err != nil {
			handleRequestError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toServiceRequestResponse(req))
	}
}

func listRequestsHandler(svc *request.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseRequestListFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}

		reqs, err := svc.ListRequests(r.Context(), filter)
		if err != nil {
			handleRequestError(w, err)
			return
		}

		resp := make([]ServiceRequestResponse, 0, len(reqs))
		for i := range reqs {
			resp = append(resp, toServiceRequestResponse(&reqs[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{"requests": resp})
	}
}

func parseRequestListFilter(r *http.Request) (request.ListFilter, error) {
	var filter request.ListFilter
	q := r.URL.Query()

	if v := q.Get("profile_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, errors.New("profile_id must be a valid UUID")
		}
		filter.ProfileID = &id
	}
	if v := q.Get("service_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, errors.New("service_id must be a valid UUID")
		}
		filter.ServiceID = &id
	}
	if v := q.Get("type"); v != "" {
		filter.Type = &v
	}
	if v := q.Get("assignee"); v != "" {
		filter.Assignee = &v
	}
	for _, raw := range q["status"] {
		s, err := request.ParseStatus(raw)
		if err != nil {
			return filter, errors.New("unknown status " + raw)
		}
		filter.Statuses = append(filter.Statuses, s)
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

func submitRequestHandler(svc *request.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		req, err := svc.Submit(r.Context(), actor, id)
		if err != nil {
			handleRequestError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toServiceRequestResponse(req))
	}
}

func updateRequestStatusHandler(svc *request.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		var body UpdateRequestStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		target, err := request.ParseStatus(body.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}

		req, err := svc.UpdateStatus(r.Context(), actor, id, target)
		if err != nil {
			handleRequestError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toServiceRequestResponse(req))
	}
}

func assignRequestHandler(svc *request.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		var body AssignRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := svc.Assign(r.Context(), actor, id, body.Assignee); err != nil {
			handleRequestError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func addNoteHandler(svc *request.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		var body AddNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		kind, err := request.ParseNoteKind(body.Kind)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_kind", err.Error())
			return
		}

		note, err := svc.AddNote(r.Context(), actor, id, kind, body.Content)
		if err != nil {
			handleRequestError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, NoteResponse{Kind: string(note.Kind), Content: note.Content, CreatedAt: note.CreatedAt})
	}
}

func attachDocumentHandler(svc *request.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		var body AttachDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		var documentID uuid.UUID
		if body.DocumentID != "" {
			parsed, err := uuid.Parse(body.DocumentID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_document_id", "document_id must be a valid UUID")
				return
			}
			documentID = parsed
		}

		doc, err := svc.AttachDocument(r.Context(), actor, id, documentID, body.Name)
		if err != nil {
			handleRequestError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, DocumentResponse{ID: doc.ID, Name: doc.Name, Status: string(doc.Status)})
	}
}

func validateDocumentHandler(svc *request.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		documentID, ok := parseUUIDParam(w, r, "documentID")
		if !ok {
			return
		}

		if err := svc.ValidateDocument(r.Context(), actor, id, documentID); err != nil {
			handleRequestError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func rejectDocumentHandler(svc *request.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}
		documentID, ok := parseUUIDParam(w, r, "documentID")
		if !ok {
			return
		}

		var body RejectDocumentRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		if err := svc.RejectDocument(r.Context(), actor, id, documentID, body.Reason); err != nil {
			handleRequestError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRequestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, request.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, request.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "request_not_found", err.Error())
	case errors.Is(err, request.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "document_not_found", err.Error())
	case errors.Is(err, request.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, request.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "concurrency_conflict", "the request was modified concurrently, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
