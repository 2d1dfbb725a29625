package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/consulardesk/scheduling/internal/appointment"
	"github.com/consulardesk/scheduling/internal/request"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Requests     *request.Service
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(ActorMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/organizations/{orgID}", func(r chi.Router) {
		r.Get("/slots", availableSlotsHandler(cfg.Appointments))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Appointments))
		r.Get("/", listAppointmentsHandler(cfg.Appointments, false))
		r.Get("/upcoming", listAppointmentsHandler(cfg.Appointments, true))
		r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
		r.Delete("/{id}", deleteAppointmentHandler(cfg.Appointments))
		r.Post("/{id}/confirm", confirmAppointmentHandler(cfg.Appointments))
		r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))
		r.Post("/{id}/reschedule", rescheduleAppointmentHandler(cfg.Appointments))
		r.Post("/{id}/complete", completeAppointmentHandler(cfg.Appointments))
		r.Post("/{id}/miss", missAppointmentHandler(cfg.Appointments))
		r.Post("/{id}/participants", addParticipantHandler(cfg.Appointments))
		r.Put("/{id}/participants/{participantID}", updateParticipantStatusHandler(cfg.Appointments))
	})

	r.Route("/requests", func(r chi.Router) {
		r.Post("/", createRequestHandler(cfg.Requests))
		r.Get("/", listRequestsHandler(cfg.Requests))
		r.Get("/{id}", getRequestHandler(cfg.Requests))
		r.Post("/{id}/submit", submitRequestHandler(cfg.Requests))
		r.Put("/{id}/status", updateRequestStatusHandler(cfg.Requests))
		r.Put("/{id}/assignee", assignRequestHandler(cfg.Requests))
		r.Post("/{id}/notes", addNoteHandler(cfg.Requests))
		r.Post("/{id}/documents", attachDocumentHandler(cfg.Requests))
		r.Post("/{id}/documents/{documentID}/validate", validateDocumentHandler(cfg.Requests))
		r.Post("/{id}/documents/{documentID}/reject", rejectDocumentHandler(cfg.Requests))
	})

	return r
}
