package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, organization_id, service_id, request_id, profile_id,
	start_time, end_time, timezone, status, location, notes, created_at, updated_at`

// Helpers

func scanOrganization(row pgx.Row) (*Organization, error) {
	var o Organization

	err := row.Scan(
		&o.ID,
		&o.Name,
		&o.Timezone,
		&o.OpenMinute,
		&o.CloseMinute,
		&o.SlotMinutes,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrganizationNotFound
		}
		return nil, err
	}

	return &o, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var requestID *uuid.UUID
	var location, notes *string

	err := row.Scan(
		&a.ID,
		&a.OrganizationID,
		&a.ServiceID,
		&requestID,
		&a.ProfileID,
		&a.StartTime,
		&a.EndTime,
		&a.Timezone,
		&a.Status,
		&location,
		&notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.RequestID = requestID
	a.Location = location
	a.Notes = notes
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetOrganizationByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, timezone, open_minute, close_minute, slot_minutes, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`, id)
	return scanOrganization(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)

	a, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if err := r.loadParticipants(ctx, a); err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	if err := r.loadActions(ctx, a); err != nil {
		return nil, fmt.Errorf("load actions: %w", err)
	}

	return a, nil
}

func (r *PgRepository) loadParticipants(ctx context.Context, a *Appointment) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, status, position
		FROM appointment_participants
		WHERE appointment_id = $1
		ORDER BY position
	`, a.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ID, &p.AppointmentID, &p.Status, &p.Position); err != nil {
			return err
		}
		a.Participants = append(a.Participants, p)
	}
	return rows.Err()
}

func (r *PgRepository) loadActions(ctx context.Context, a *Appointment) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, author_id, action_type, reason, created_at
		FROM appointment_actions
		WHERE appointment_id = $1
		ORDER BY id
	`, a.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ac Action
		if err := rows.Scan(&ac.ID, &ac.AppointmentID, &ac.AuthorID, &ac.Type, &ac.Reason, &ac.CreatedAt); err != nil {
			return err
		}
		a.Actions = append(a.Actions, ac)
	}
	return rows.Err()
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	var where []string
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.OrganizationID != nil {
		add("organization_id = $%d", *filter.OrganizationID)
	}
	if filter.ServiceID != nil {
		add("service_id = $%d", *filter.ServiceID)
	}
	if filter.ProfileID != nil {
		add("profile_id = $%d", *filter.ProfileID)
	}
	if filter.RequestID != nil {
		add("request_id = $%d", *filter.RequestID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		add("status = ANY($%d)", statuses)
	}
	if filter.From != nil {
		add("start_time >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("start_time < $%d", *filter.To)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_time"

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) BookedWindows(ctx context.Context, orgID uuid.UUID, dayStart, dayEnd time.Time, exclude uuid.UUID) ([]TimeSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE organization_id = $1
		  AND id <> $4
		  AND status <> 'cancelled'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, orgID, dayStart, dayEnd, exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []TimeSlot
	for rows.Next() {
		var w TimeSlot
		if err := rows.Scan(&w.StartAt, &w.EndAt); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return windows, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (id, organization_id, service_id, request_id, profile_id,
			start_time, end_time, timezone, status, location, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`, a.ID, a.OrganizationID, a.ServiceID, a.RequestID, a.ProfileID,
		a.StartTime, a.EndTime, a.Timezone, a.Status, a.Location, a.Notes, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	for _, p := range a.Participants {
		_, err = tx.Exec(ctx, `
			INSERT INTO appointment_participants (id, appointment_id, status, position)
			VALUES ($1, $2, $3, $4)
		`, p.ID, a.ID, p.Status, p.Position)
		if err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, action Action, patch *TimePatch) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var row pgx.Row
	if patch != nil {
		row = tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $2,
			    start_time = $4,
			    end_time = $5,
			    updated_at = now()
			WHERE id = $1
			  AND status = $3
			RETURNING `+appointmentColumns+`
		`, id, to, from, patch.StartTime, patch.EndTime)
	} else {
		row = tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $2,
			    updated_at = now()
			WHERE id = $1
			  AND status = $3
			RETURNING `+appointmentColumns+`
		`, id, to, from)
	}

	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Distinguish a missing row from one whose status moved under us.
			var exists bool
			if chkErr := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); chkErr != nil {
				return nil, chkErr
			}
			if exists {
				return nil, ErrConcurrencyConflict
			}
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointment_actions (appointment_id, author_id, action_type, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, a.ID, action.AuthorID, action.Type, action.Reason, action.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert action: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return a, nil
}

func (r *PgRepository) AddParticipant(ctx context.Context, p Participant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_participants (id, appointment_id, status, position)
		VALUES ($1, $2, $3, $4)
	`, p.ID, p.AppointmentID, p.Status, p.Position)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateParticipantStatus(ctx context.Context, appointmentID, participantID uuid.UUID, status ParticipantStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointment_participants
		SET status = $3
		WHERE appointment_id = $1
		  AND id = $2
	`, appointmentID, participantID, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRepository) FindOverdue(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('scheduled', 'confirmed', 'rescheduled')
		  AND end_time < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	// Participants and actions go with the row (ON DELETE CASCADE).
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}
