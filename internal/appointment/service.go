package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/consulardesk/scheduling/internal/config"
	"github.com/consulardesk/scheduling/internal/identity"
	"github.com/consulardesk/scheduling/internal/notify"
	redisclient "github.com/consulardesk/scheduling/internal/redis"
)

const (
	NotifyAppointmentCreated     = "appointment_created"
	NotifyAppointmentConfirmed   = "appointment_confirmed"
	NotifyAppointmentCancelled   = "appointment_cancelled"
	NotifyAppointmentRescheduled = "appointment_rescheduled"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// RequestTracker links a created appointment back to the service request it
// serves. Implemented by the request service; optional.
type RequestTracker interface {
	MarkAppointmentScheduled(ctx context.Context, actor identity.Actor, requestID, appointmentID uuid.UUID) error
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier notify.Notifier
	requests RequestTracker
	cfg      config.Config
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, notifier notify.Notifier, requests RequestTracker, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		requests: requests,
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	OrganizationID uuid.UUID
	ServiceID      uuid.UUID
	RequestID      *uuid.UUID
	ProfileID      uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	Timezone       string
	Location       *string
	Notes          *string
	ParticipantIDs []uuid.UUID
}

func (in *CreateInput) validate() error {
	if in.OrganizationID == uuid.Nil {
		return fmt.Errorf("%w: organization id is required", ErrInvalidInput)
	}
	if in.ServiceID == uuid.Nil {
		return fmt.Errorf("%w: service id is required", ErrInvalidInput)
	}
	if in.ProfileID == uuid.Nil {
		return fmt.Errorf("%w: profile id is required", ErrInvalidInput)
	}
	if err := validateWindow(in.StartTime, in.EndTime); err != nil {
		return err
	}
	if in.Timezone != "" {
		if _, err := time.LoadLocation(in.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, in.Timezone)
		}
	}
	return nil
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end times are required", ErrInvalidInput)
	}
	if !end.After(start) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidInput)
	}
	d := end.Sub(start)
	if d%time.Minute != 0 {
		return fmt.Errorf("%w: appointment duration must be whole minutes", ErrInvalidInput)
	}
	return nil
}

// AvailableSlots computes the open slots for an organization on a calendar
// day. slotMinutes and hours fall back to the organization's configuration,
// then to the engine defaults. Read-only and idempotent.
func (s *Service) AvailableSlots(ctx context.Context, orgID uuid.UUID, day time.Time, slotMinutes int, hours *WorkingHours) ([]TimeSlot, error) {
	org, err := s.repo.GetOrganizationByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load organization: %w", err)
	}

	if slotMinutes <= 0 {
		slotMinutes = org.SlotMinutes
	}
	if slotMinutes <= 0 {
		slotMinutes = s.cfg.SlotMinutes
	}
	window := org.WorkingHours()
	if hours != nil {
		window = *hours
	}

	loc, err := time.LoadLocation(org.Timezone)
	if err != nil {
		loc = time.UTC
	}
	localDay := day.In(loc)
	dayStart := time.Date(localDay.Year(), localDay.Month(), localDay.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	booked, err := s.repo.BookedWindows(ctx, orgID, dayStart, dayEnd, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("load booked windows: %w", err)
	}

	return ComputeAvailableSlots(dayStart, slotMinutes, window, booked)
}

// CreateAppointment books the requested window if it is among the derived
// available slots for the organization and day. The check-then-insert sequence
// runs inside the per-(organization, day) calendar lock so two concurrent
// callers can never both commit overlapping appointments.
func (s *Service) CreateAppointment(ctx context.Context, actor identity.Actor, in CreateInput) (*Appointment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	org, err := s.repo.GetOrganizationByID(ctx, in.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("load organization: %w", err)
	}

	tz := in.Timezone
	if tz == "" {
		tz = org.Timezone
	}
	if tz == "" {
		tz = s.cfg.DefaultTimezone
	}

	now := s.now()
	appt := &Appointment{
		ID:             uuid.New(),
		OrganizationID: in.OrganizationID,
		ServiceID:      in.ServiceID,
		RequestID:      in.RequestID,
		ProfileID:      in.ProfileID,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		Timezone:       tz,
		Status:         StatusPending,
		Location:       in.Location,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, pid := range in.ParticipantIDs {
		if _, err := AddParticipant(appt, pid); err != nil {
			return nil, err
		}
	}

	day := dayOf(in.StartTime, org)
	err = s.locker.WithCalendarLock(ctx, in.OrganizationID, day, func(lockCtx context.Context) error {
		if err := s.ensureWindowAvailable(lockCtx, org, in.StartTime, in.EndTime, uuid.Nil); err != nil {
			return err
		}
		if err := s.repo.CreateAppointment(lockCtx, appt); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrConcurrencyConflict
		}
		return nil, err
	}

	if appt.RequestID != nil && s.requests != nil {
		if err := s.requests.MarkAppointmentScheduled(ctx, actor, *appt.RequestID, appt.ID); err != nil {
			s.log.Warn().Err(err).
				Str("appointment_id", appt.ID.String()).
				Str("request_id", appt.RequestID.String()).
				Msg("could not mark request appointment_scheduled")
		}
	}

	s.notifyAppointment(ctx, appt, NotifyAppointmentCreated, "Appointment booked",
		fmt.Sprintf("Your appointment at %s is booked for %s.", org.Name, appt.StartTime.Format(time.RFC1123)))

	return appt, nil
}

// ensureWindowAvailable re-derives the day's open slots and rejects the window
// unless it matches one of them exactly. Must run inside the calendar lock.
func (s *Service) ensureWindowAvailable(ctx context.Context, org *Organization, start, end time.Time, exclude uuid.UUID) error {
	loc, err := time.LoadLocation(org.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := start.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	booked, err := s.repo.BookedWindows(ctx, org.ID, dayStart, dayEnd, exclude)
	if err != nil {
		return fmt.Errorf("load booked windows: %w", err)
	}

	slotMinutes := int(end.Sub(start) / time.Minute)
	slots, err := ComputeAvailableSlots(dayStart, slotMinutes, org.WorkingHours(), booked)
	if err != nil {
		return err
	}

	for _, slot := range slots {
		if slot.StartAt.Equal(start) && slot.EndAt.Equal(end) {
			return nil
		}
	}
	return ErrSlotConflict
}

func dayOf(t time.Time, org *Organization) time.Time {
	loc, err := time.LoadLocation(org.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// GetAppointment retrieves a fully hydrated appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

// Confirm moves a pending or rescheduled appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.transition(ctx, actor, id, ActionConfirm, nil)
	if err != nil {
		return nil, err
	}
	s.notifyAppointment(ctx, a, NotifyAppointmentConfirmed, "Appointment confirmed",
		"Your appointment has been confirmed.")
	return a, nil
}

// Cancel cancels an appointment; the optional reason lands in the action log.
func (s *Service) Cancel(ctx context.Context, actor identity.Actor, id uuid.UUID, reason *string) (*Appointment, error) {
	a, err := s.transition(ctx, actor, id, ActionCancel, reason)
	if err != nil {
		return nil, err
	}
	s.notifyAppointment(ctx, a, NotifyAppointmentCancelled, "Appointment cancelled",
		"Your appointment has been cancelled.")
	return a, nil
}

// Complete marks an attended appointment done.
func (s *Service) Complete(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, actor, id, ActionComplete, nil)
}

// Miss records a no-show.
func (s *Service) Miss(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, actor, id, ActionMiss, nil)
}

// Reschedule moves the appointment to a new window. Availability is
// re-validated exactly as at creation time, excluding the appointment itself,
// inside the calendar lock of the target day.
func (s *Service) Reschedule(ctx context.Context, actor identity.Actor, id uuid.UUID, newStart, newEnd time.Time, reason *string) (*Appointment, error) {
	if err := validateWindow(newStart, newEnd); err != nil {
		return nil, err
	}

	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := current.Status
	if _, err := NextStatus(from, ActionReschedule); err != nil {
		return nil, err
	}

	org, err := s.repo.GetOrganizationByID(ctx, current.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("load organization: %w", err)
	}

	var updated *Appointment
	day := dayOf(newStart, org)
	err = s.locker.WithCalendarLock(ctx, org.ID, day, func(lockCtx context.Context) error {
		if err := s.ensureWindowAvailable(lockCtx, org, newStart, newEnd, id); err != nil {
			return err
		}
		action := NewAction(id, actor.ID, ActionReschedule, reason, s.now())
		patch := &TimePatch{StartTime: newStart, EndTime: newEnd}
		a, err := s.repo.TransitionStatus(lockCtx, id, from, StatusRescheduled, action, patch)
		if err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrConcurrencyConflict
		}
		return nil, err
	}

	s.notifyAppointment(ctx, updated, NotifyAppointmentRescheduled, "Appointment rescheduled",
		fmt.Sprintf("Your appointment was moved to %s.", newStart.Format(time.RFC1123)))

	return updated, nil
}

func (s *Service) transition(ctx context.Context, actor identity.Actor, id uuid.UUID, op ActionType, reason *string) (*Appointment, error) {
	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	to, err := NextStatus(current.Status, op)
	if err != nil {
		return nil, err
	}

	action := NewAction(id, actor.ID, op, reason, s.now())
	return s.repo.TransitionStatus(ctx, id, current.Status, to, action, nil)
}

// AddParticipant invites an attendee; the invite starts tentative.
func (s *Service) AddParticipant(ctx context.Context, appointmentID, participantID uuid.UUID) (*Participant, error) {
	a, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	p, err := AddParticipant(a, participantID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AddParticipant(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateParticipantStatus replaces the attendee's response. An unknown
// participant is silently ignored.
func (s *Service) UpdateParticipantStatus(ctx context.Context, appointmentID, participantID uuid.UUID, status ParticipantStatus) error {
	matched, err := s.repo.UpdateParticipantStatus(ctx, appointmentID, participantID, status)
	if err != nil {
		return err
	}
	if !matched {
		s.log.Debug().
			Str("appointment_id", appointmentID.String()).
			Str("participant_id", participantID.String()).
			Msg("participant status update matched nothing")
	}
	return nil
}

// ListAppointments returns filtered appointments ordered ascending by start
// time.
func (s *Service) ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	clampFilter(&filter)
	appts, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// ListUpcoming narrows the listing to future appointments still on the
// calendar.
func (s *Service) ListUpcoming(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	now := s.now()
	filter.From = &now
	filter.Statuses = []Status{StatusPending, StatusScheduled, StatusConfirmed}
	return s.ListAppointments(ctx, filter)
}

// DeleteAppointment is the administrative hard delete: unconditional,
// irreversible, bypasses the state machine. Callers gate it behind elevated
// authorization.
func (s *Service) DeleteAppointment(ctx context.Context, actor identity.Actor, id uuid.UUID) error {
	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		return err
	}
	s.log.Warn().
		Str("appointment_id", id.String()).
		Str("actor_id", actor.ID.String()).
		Msg("appointment hard-deleted")
	return nil
}

// MarkOverdueMissed flags appointments whose window ended without completion.
// Called periodically by the overdue worker.
func (s *Service) MarkOverdueMissed(ctx context.Context) error {
	overdue, err := s.repo.FindOverdue(ctx, s.now())
	if err != nil {
		return fmt.Errorf("find overdue appointments: %w", err)
	}

	for _, a := range overdue {
		action := NewAction(a.ID, identity.System.ID, ActionMiss, nil, s.now())
		if _, err := s.repo.TransitionStatus(ctx, a.ID, a.Status, StatusMissed, action, nil); err != nil {
			// A competing transition is fine; everything else is logged and
			// retried on the next run.
			if errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.log.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("failed to mark appointment missed")
		}
	}

	return nil
}

func (s *Service) notifyAppointment(ctx context.Context, a *Appointment, kind, title, message string) {
	apptID := a.ID
	n := notify.Notification{
		RecipientID:   a.ProfileID,
		Type:          kind,
		Title:         title,
		Message:       message,
		AppointmentID: &apptID,
		RequestID:     a.RequestID,
	}
	if err := s.notifier.Send(ctx, n); err != nil {
		s.log.Warn().Err(err).
			Str("appointment_id", a.ID.String()).
			Str("type", kind).
			Msg("notification dispatch failed")
	}
}

func clampFilter(f *ListFilter) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
