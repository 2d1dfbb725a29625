package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consulardesk/scheduling/internal/config"
	"github.com/consulardesk/scheduling/internal/identity"
	"github.com/consulardesk/scheduling/internal/notify"
	redisclient "github.com/consulardesk/scheduling/internal/redis"
)

// mockRepo is an in-memory Repository with the same compare-and-swap
// semantics as the Postgres implementation.
type mockRepo struct {
	mu           sync.Mutex
	orgs         map[uuid.UUID]*Organization
	appointments map[uuid.UUID]*Appointment
	lastFilter   ListFilter
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		orgs:         make(map[uuid.UUID]*Organization),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (m *mockRepo) GetOrganizationByID(_ context.Context, id uuid.UUID) (*Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[id]
	if !ok {
		return nil, ErrOrganizationNotFound
	}
	cp := *org
	return &cp, nil
}

func (m *mockRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) ListAppointments(_ context.Context, filter ListFilter) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter

	var result []Appointment
	for _, a := range m.appointments {
		if filter.ProfileID != nil && a.ProfileID != *filter.ProfileID {
			continue
		}
		if filter.From != nil && a.StartTime.Before(*filter.From) {
			continue
		}
		if len(filter.Statuses) > 0 {
			ok := false
			for _, s := range filter.Statuses {
				if a.Status == s {
					ok = true
					break
				}
			}
			if !ok {
				continue
			}
		}
		result = append(result, *a)
	}
	return result, nil
}

func (m *mockRepo) BookedWindows(_ context.Context, orgID uuid.UUID, dayStart, dayEnd time.Time, exclude uuid.UUID) ([]TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var windows []TimeSlot
	for _, a := range m.appointments {
		if a.OrganizationID != orgID || a.ID == exclude || a.Status == StatusCancelled {
			continue
		}
		if a.StartTime.Before(dayEnd) && a.EndTime.After(dayStart) {
			windows = append(windows, a.Window())
		}
	}
	return windows, nil
}

func (m *mockRepo) CreateAppointment(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *mockRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to Status, action Action, patch *TimePatch) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, ErrConcurrencyConflict
	}

	a.Status = to
	if patch != nil {
		a.StartTime = patch.StartTime
		a.EndTime = patch.EndTime
	}
	a.Actions = append(a.Actions, action)
	a.UpdatedAt = action.CreatedAt

	cp := *a
	return &cp, nil
}

func (m *mockRepo) AddParticipant(_ context.Context, p Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[p.AppointmentID]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.Participants = append(a.Participants, p)
	return nil
}

func (m *mockRepo) UpdateParticipantStatus(_ context.Context, appointmentID, participantID uuid.UUID, status ParticipantStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[appointmentID]
	if !ok {
		return false, nil
	}
	return SetParticipantStatus(a, participantID, status), nil
}

func (m *mockRepo) FindOverdue(_ context.Context, cutoff time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appointments {
		switch a.Status {
		case StatusScheduled, StatusConfirmed, StatusRescheduled:
			if a.EndTime.Before(cutoff) {
				result = append(result, *a)
			}
		}
	}
	return result, nil
}

func (m *mockRepo) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.appointments, id)
	return nil
}

// serialLocker serializes critical sections with a plain mutex, standing in
// for the Redis lock.
type serialLocker struct {
	mu sync.Mutex
}

func (l *serialLocker) WithCalendarLock(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

// busyLocker simulates a held lock.
type busyLocker struct{}

func (busyLocker) WithCalendarLock(context.Context, uuid.UUID, time.Time, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	fail bool
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("delivery down")
	}
	n.sent = append(n.sent, msg)
	return nil
}

type recordingTracker struct {
	mu    sync.Mutex
	calls []uuid.UUID
	fail  bool
}

func (t *recordingTracker) MarkAppointmentScheduled(_ context.Context, _ identity.Actor, requestID, _ uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail {
		return errors.New("request service down")
	}
	t.calls = append(t.calls, requestID)
	return nil
}

type fixture struct {
	svc      *Service
	repo     *mockRepo
	notifier *recordingNotifier
	tracker  *recordingTracker
	org      *Organization
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newMockRepo()
	notifier := &recordingNotifier{}
	tracker := &recordingTracker{}

	org := &Organization{
		ID:          uuid.New(),
		Name:        "Consulate General in Paris",
		Timezone:    "UTC",
		OpenMinute:  9 * 60,
		CloseMinute: 17 * 60,
		SlotMinutes: 30,
	}
	repo.orgs[org.ID] = org

	cfg := config.Config{DefaultTimezone: "UTC", SlotMinutes: 30, WorkdayStart: 9 * 60, WorkdayEnd: 17 * 60}
	svc := NewService(repo, &serialLocker{}, notifier, tracker, cfg, zerolog.Nop())

	now := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &fixture{svc: svc, repo: repo, notifier: notifier, tracker: tracker, org: org, now: now}
}

func (f *fixture) createInput(start time.Time) CreateInput {
	return CreateInput{
		OrganizationID: f.org.ID,
		ServiceID:      uuid.New(),
		ProfileID:      uuid.New(),
		StartTime:      start,
		EndTime:        start.Add(30 * time.Minute),
	}
}

func testActor() identity.Actor {
	return identity.Actor{ID: uuid.New(), Name: "Agent Silva"}
}

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	in := f.createInput(start)
	participant := uuid.New()
	in.ParticipantIDs = []uuid.UUID{participant}

	appt, err := f.svc.CreateAppointment(context.Background(), testActor(), in)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, "UTC", appt.Timezone)
	require.Len(t, appt.Participants, 1)
	assert.Equal(t, participant, appt.Participants[0].ID)
	assert.Equal(t, ParticipantTentative, appt.Participants[0].Status)

	stored, err := f.repo.GetAppointmentByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, start, stored.StartTime)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, NotifyAppointmentCreated, f.notifier.sent[0].Type)
}

func TestCreateAppointment_LinksServiceRequest(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	requestID := uuid.New()
	in := f.createInput(start)
	in.RequestID = &requestID

	_, err := f.svc.CreateAppointment(context.Background(), testActor(), in)
	require.NoError(t, err)

	require.Len(t, f.tracker.calls, 1)
	assert.Equal(t, requestID, f.tracker.calls[0])
}

func TestCreateAppointment_TrackerFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	f.tracker.fail = true
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	requestID := uuid.New()
	in := f.createInput(start)
	in.RequestID = &requestID

	appt, err := f.svc.CreateAppointment(context.Background(), testActor(), in)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
}

func TestCreateAppointment_SlotConflict(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	_, err := f.svc.CreateAppointment(context.Background(), testActor(), f.createInput(start))
	require.NoError(t, err)

	// Same window again.
	_, err = f.svc.CreateAppointment(context.Background(), testActor(), f.createInput(start))
	assert.ErrorIs(t, err, ErrSlotConflict)

	// Overlapping off-grid window.
	in := f.createInput(start.Add(15 * time.Minute))
	_, err = f.svc.CreateAppointment(context.Background(), testActor(), in)
	assert.ErrorIs(t, err, ErrSlotConflict)

	// Adjacent slot is fine.
	_, err = f.svc.CreateAppointment(context.Background(), testActor(), f.createInput(start.Add(30*time.Minute)))
	assert.NoError(t, err)
}

func TestCreateAppointment_OutsideWorkingHours(t *testing.T) {
	f := newFixture(t)

	// 08:00 is before the 09:00 opening: no generated slot matches.
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	_, err := f.svc.CreateAppointment(context.Background(), testActor(), f.createInput(start))
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestCreateAppointment_Validation(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	in := f.createInput(start)
	in.OrganizationID = uuid.Nil
	_, err := f.svc.CreateAppointment(context.Background(), testActor(), in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in = f.createInput(start)
	in.EndTime = in.StartTime
	_, err = f.svc.CreateAppointment(context.Background(), testActor(), in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in = f.createInput(start)
	in.EndTime = in.StartTime.Add(-30 * time.Minute)
	_, err = f.svc.CreateAppointment(context.Background(), testActor(), in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in = f.createInput(start)
	in.Timezone = "Mars/Olympus"
	_, err = f.svc.CreateAppointment(context.Background(), testActor(), in)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateAppointment_UnknownOrganization(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	in := f.createInput(start)
	in.OrganizationID = uuid.New()
	_, err := f.svc.CreateAppointment(context.Background(), testActor(), in)
	assert.ErrorIs(t, err, ErrOrganizationNotFound)
}

func TestCreateAppointment_ConcurrentSameSlotOneWins(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)

	const attempts = 8
	errs := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateAppointment(context.Background(), testActor(), f.createInput(start))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	won, lost := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSlotConflict):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, lost)
}

func TestCreateAppointment_LockContention(t *testing.T) {
	f := newFixture(t)
	cfg := config.Config{DefaultTimezone: "UTC", SlotMinutes: 30}
	svc := NewService(f.repo, busyLocker{}, f.notifier, nil, cfg, zerolog.Nop())

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	_, err := svc.CreateAppointment(context.Background(), testActor(), f.createInput(start))
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
}

func TestCancelFreesTheSlot(t *testing.T) {
	f := newFixture(t)
	actor := testActor()
	start := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	appt, err := f.svc.CreateAppointment(context.Background(), actor, f.createInput(start))
	require.NoError(t, err)

	_, err = f.svc.CreateAppointment(context.Background(), actor, f.createInput(start))
	require.ErrorIs(t, err, ErrSlotConflict)

	_, err = f.svc.Cancel(context.Background(), actor, appt.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.CreateAppointment(context.Background(), actor, f.createInput(start))
	assert.NoError(t, err)
}

func TestConfirmThenComplete(t *testing.T) {
	f := newFixture(t)
	actor := testActor()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	appt, err := f.svc.CreateAppointment(context.Background(), actor, f.createInput(start))
	require.NoError(t, err)

	confirmed, err := f.svc.Confirm(context.Background(), actor, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	require.Len(t, confirmed.Actions, 1)
	assert.Equal(t, ActionConfirm, confirmed.Actions[0].Type)

	done, err := f.svc.Complete(context.Background(), actor, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	require.Len(t, done.Actions, 2)

	// Terminal: nothing else is allowed.
	_, err = f.svc.Cancel(context.Background(), actor, appt.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	actor := testActor()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	newStart := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	appt, err := f.svc.CreateAppointment(context.Background(), actor, f.createInput(start))
	require.NoError(t, err)

	reason := "citizen asked to move"
	moved, err := f.svc.Reschedule(context.Background(), actor, appt.ID, newStart, newStart.Add(30*time.Minute), &reason)
	require.NoError(t, err)

	assert.Equal(t, StatusRescheduled, moved.Status)
	assert.Equal(t, newStart, moved.StartTime)
	require.Len(t, moved.Actions, 1)
	assert.Equal(t, ActionReschedule, moved.Actions[0].Type)
	require.NotNil(t, moved.Actions[0].Reason)

	// The old window is free again.
	_, err = f.svc.CreateAppointment(context.Background(), actor, f.createInput(start))
	assert.NoError(t, err)

	// A rescheduled appointment can still be confirmed.
	confirmed, err := f.svc.Confirm(context.Background(), actor, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
}

func TestReschedule_ConflictLeavesAppointmentUnchanged(t *testing.T) {
	f := newFixture(t)
	actor := testActor()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	otherStart := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	appt, err := f.svc.CreateAppointment(context.Background(), actor, f.createInput(start))
	require.NoError(t, err)
	_, err = f.svc.CreateAppointment(context.Background(), actor, f.createInput(otherStart))
	require.NoError(t, err)

	_, err = f.svc.Reschedule(context.Background(), actor, appt.ID, otherStart, otherStart.Add(30*time.Minute), nil)
	require.ErrorIs(t, err, ErrSlotConflict)

	current, err := f.svc.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, current.Status)
	assert.Equal(t, start, current.StartTime)
	assert.Empty(t, current.Actions)
}

func TestReschedule_SameWindowExcludesItself(t *testing.T) {
	f := newFixture(t)
	actor := testActor()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	appt, err := f.svc.CreateAppointment(context.Background(), actor, f.createInput(start))
	require.NoError(t, err)

	// Re-booking its own window never conflicts with itself.
	moved, err := f.svc.Reschedule(context.Background(), actor, appt.ID, start, start.Add(30*time.Minute), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusRescheduled, moved.Status)
}

func TestReschedule_TerminalRejected(t *testing.T) {
	f := newFixture(t)
	actor := testActor()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	newStart := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	appt, err := f.svc.CreateAppointment(context.Background(), actor, f.createInput(start))
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), actor, appt.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Reschedule(context.Background(), actor, appt.ID, newStart, newStart.Add(30*time.Minute), nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAvailableSlots_ReflectBookings(t *testing.T) {
	f := newFixture(t)
	actor := testActor()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	slots, err := f.svc.AvailableSlots(context.Background(), f.org.ID, day, 0, nil)
	require.NoError(t, err)
	require.Len(t, slots, 16)

	_, err = f.svc.CreateAppointment(context.Background(), actor, f.createInput(start))
	require.NoError(t, err)

	slots, err = f.svc.AvailableSlots(context.Background(), f.org.ID, day, 0, nil)
	require.NoError(t, err)
	require.Len(t, slots, 15)
	assert.Equal(t, start.Add(30*time.Minute), slots[0].StartAt)
}

func TestListUpcoming_ForcesFilter(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListUpcoming(context.Background(), ListFilter{})
	require.NoError(t, err)

	require.NotNil(t, f.repo.lastFilter.From)
	assert.Equal(t, f.now, *f.repo.lastFilter.From)
	assert.ElementsMatch(t,
		[]Status{StatusPending, StatusScheduled, StatusConfirmed},
		f.repo.lastFilter.Statuses)
	assert.Equal(t, defaultListLimit, f.repo.lastFilter.Limit)
}

func TestNotifierFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = true
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	appt, err := f.svc.CreateAppointment(context.Background(), testActor(), f.createInput(start))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
}

func TestUpdateParticipantStatus_UnknownIgnored(t *testing.T) {
	f := newFixture(t)
	actor := testActor()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	in := f.createInput(start)
	in.ParticipantIDs = []uuid.UUID{uuid.New()}
	appt, err := f.svc.CreateAppointment(context.Background(), actor, in)
	require.NoError(t, err)

	// Unknown participant: no error, no change.
	err = f.svc.UpdateParticipantStatus(context.Background(), appt.ID, uuid.New(), ParticipantAccepted)
	require.NoError(t, err)

	current, err := f.svc.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, ParticipantTentative, current.Participants[0].Status)
}

func TestAddParticipant_ServiceRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	actor := testActor()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	participant := uuid.New()

	in := f.createInput(start)
	in.ParticipantIDs = []uuid.UUID{participant}
	appt, err := f.svc.CreateAppointment(context.Background(), actor, in)
	require.NoError(t, err)

	_, err = f.svc.AddParticipant(context.Background(), appt.ID, participant)
	assert.ErrorIs(t, err, ErrDuplicateParticipant)

	p, err := f.svc.AddParticipant(context.Background(), appt.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, p.Position)
}

func TestMarkOverdueMissed(t *testing.T) {
	f := newFixture(t)
	actor := testActor()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	appt, err := f.svc.CreateAppointment(context.Background(), actor, f.createInput(start))
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), actor, appt.ID)
	require.NoError(t, err)

	// Move the clock past the end of the window.
	f.svc.now = func() time.Time { return start.Add(2 * time.Hour) }

	require.NoError(t, f.svc.MarkOverdueMissed(context.Background()))

	current, err := f.svc.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusMissed, current.Status)

	last := current.Actions[len(current.Actions)-1]
	assert.Equal(t, ActionMiss, last.Type)
	assert.Equal(t, identity.System.ID, last.AuthorID)
}

func TestDeleteAppointment(t *testing.T) {
	f := newFixture(t)
	actor := testActor()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	appt, err := f.svc.CreateAppointment(context.Background(), actor, f.createInput(start))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteAppointment(context.Background(), actor, appt.ID))

	_, err = f.svc.GetAppointment(context.Background(), appt.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	err = f.svc.DeleteAppointment(context.Background(), actor, appt.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}
