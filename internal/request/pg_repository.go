package request

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const requestColumns = `id, request_type, status, profile_id, service_id, assignee, created_at, updated_at`

// Helpers

func scanRequest(row pgx.Row) (*ServiceRequest, error) {
	var r ServiceRequest
	var assignee *string

	err := row.Scan(
		&r.ID,
		&r.Type,
		&r.Status,
		&r.ProfileID,
		&r.ServiceID,
		&assignee,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	r.Assignee = assignee
	return &r, nil
}

func insertActivity(ctx context.Context, tx pgx.Tx, a Activity) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO request_activities (request_id, activity_type, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, a.RequestID, a.Type, a.ActorID, a.Payload, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// Interface methods

func (r *PgRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (*ServiceRequest, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM service_requests
		WHERE id = $1
	`, id)

	req, err := scanRequest(row)
	if err != nil {
		return nil, err
	}

	if err := r.loadDocuments(ctx, req); err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	if err := r.loadNotes(ctx, req); err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}
	if err := r.loadActivities(ctx, req); err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}

	return req, nil
}

func (r *PgRepository) loadDocuments(ctx context.Context, req *ServiceRequest) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, name, status, created_at, updated_at
		FROM request_documents
		WHERE request_id = $1
		ORDER BY created_at
	`, req.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.RequestID, &d.Name, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return err
		}
		req.Documents = append(req.Documents, d)
	}
	return rows.Err()
}

func (r *PgRepository) loadNotes(ctx context.Context, req *ServiceRequest) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, kind, content, author_id, created_at
		FROM request_notes
		WHERE request_id = $1
		ORDER BY id
	`, req.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.RequestID, &n.Kind, &n.Content, &n.AuthorID, &n.CreatedAt); err != nil {
			return err
		}
		req.Notes = append(req.Notes, n)
	}
	return rows.Err()
}

func (r *PgRepository) loadActivities(ctx context.Context, req *ServiceRequest) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, activity_type, actor_id, payload, created_at
		FROM request_activities
		WHERE request_id = $1
		ORDER BY id
	`, req.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.RequestID, &a.Type, &a.ActorID, &a.Payload, &a.CreatedAt); err != nil {
			return err
		}
		req.Activities = append(req.Activities, a)
	}
	return rows.Err()
}

func (r *PgRepository) ListRequests(ctx context.Context, filter ListFilter) ([]ServiceRequest, error) {
	var where []string
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.ProfileID != nil {
		add("profile_id = $%d", *filter.ProfileID)
	}
	if filter.ServiceID != nil {
		add("service_id = $%d", *filter.ServiceID)
	}
	if filter.Type != nil {
		add("request_type = $%d", *filter.Type)
	}
	if filter.Assignee != nil {
		add("assignee = $%d", *filter.Assignee)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		add("status = ANY($%d)", statuses)
	}

	query := `SELECT ` + requestColumns + ` FROM service_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ServiceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateRequest(ctx context.Context, req *ServiceRequest, created Activity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO service_requests (id, request_type, status, profile_id, service_id, assignee, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, req.ID, req.Type, req.Status, req.ProfileID, req.ServiceID, req.Assignee, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}

	if err := insertActivity(ctx, tx, created); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, activities []Activity) (*ServiceRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE service_requests
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+requestColumns+`
	`, id, to, from)

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			var exists bool
			if chkErr := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM service_requests WHERE id = $1)`, id).Scan(&exists); chkErr != nil {
				return nil, chkErr
			}
			if exists {
				return nil, ErrConcurrencyConflict
			}
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	for _, a := range activities {
		if err := insertActivity(ctx, tx, a); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return req, nil
}

func (r *PgRepository) SetAssignee(ctx context.Context, id uuid.UUID, assignee string, activity Activity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE service_requests
		SET assignee = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, assignee)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}

	if err := insertActivity(ctx, tx, activity); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) AddNote(ctx context.Context, n Note) (*Note, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO request_notes (request_id, kind, content, author_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, n.RequestID, n.Kind, n.Content, n.AuthorID, n.CreatedAt)

	if err := row.Scan(&n.ID); err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return &n, nil
}

func (r *PgRepository) AddDocument(ctx context.Context, d Document, activity Activity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO request_documents (id, request_id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, d.ID, d.RequestID, d.Name, d.Status, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	if err := insertActivity(ctx, tx, activity); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) UpdateDocumentStatus(ctx context.Context, requestID, documentID uuid.UUID, status DocumentStatus, activity Activity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE request_documents
		SET status = $3,
		    updated_at = now()
		WHERE request_id = $1
		  AND id = $2
	`, requestID, documentID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}

	if err := insertActivity(ctx, tx, activity); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) AppendActivity(ctx context.Context, a Activity) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO request_activities (request_id, activity_type, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, a.RequestID, a.Type, a.ActorID, a.Payload, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}
