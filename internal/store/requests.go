package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/rollbook/internal/record"
)

const requestSelect = `
	SELECT id, student_id, field, new_value, message, status, created_at,
	       handled_by, handled_at, handled_reason
	FROM edit_requests`

// requestOrder lists newest first; id breaks ties between equal timestamps.
const requestOrder = `ORDER BY created_at DESC, id DESC`

// InsertEditRequest stores a new edit request and returns it with its assigned id.
// The caller is responsible for validating and normalizing the field.
func (s *Store) InsertEditRequest(ctx context.Context, r record.EditRequest) (record.EditRequest, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO edit_requests (student_id, field, new_value, message, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.StudentID, r.Field, r.NewValue, nullText(r.Message), string(r.Status), formatTime(r.CreatedAt))
	if err != nil {
		return record.EditRequest{}, fmt.Errorf("insert edit request: %w", err)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return record.EditRequest{}, fmt.Errorf("insert edit request: last insert id: %w", err)
	}
	return r, nil
}

// GetEditRequest returns the edit request with the given id, in any state.
// Returns ErrCodeNotFound if there is none.
func (s *Store) GetEditRequest(ctx context.Context, id int64) (record.EditRequest, error) {
	r, err := scanEditRequest(s.db.QueryRowContext(ctx, requestSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return record.EditRequest{}, record.Errorf(record.ErrCodeNotFound, "edit request %d not found", id)
	}
	if err != nil {
		return record.EditRequest{}, fmt.Errorf("get edit request: %w", err)
	}
	return r, nil
}

// ListEditRequests returns every edit request, newest first, regardless of status.
func (s *Store) ListEditRequests(ctx context.Context) ([]record.EditRequest, error) {
	return s.queryEditRequests(ctx, requestSelect+" "+requestOrder)
}

// ListEditRequestsByStudent returns the edit requests targeting one student, newest first.
func (s *Store) ListEditRequestsByStudent(ctx context.Context, studentID string) ([]record.EditRequest, error) {
	return s.queryEditRequests(ctx, requestSelect+` WHERE student_id = ? `+requestOrder, studentID)
}

// HandleEditRequest moves an OPEN request to a terminal status and stamps
// who handled it, when and why.
//
// The update is conditional on status = 'OPEN': zero rows affected means the
// request does not exist or was already handled, reported as ErrCodeConflict.
func (s *Store) HandleEditRequest(ctx context.Context, id int64, status record.Status, handledBy string, at time.Time, reason string) error {
	return handleEditRequest(ctx, s.db, id, status, handledBy, at, reason)
}

func handleEditRequest(ctx context.Context, q querier, id int64, status record.Status, handledBy string, at time.Time, reason string) error {
	if !status.Terminal() {
		return record.Errorf(record.ErrCodeValidation, "status %q is not a terminal status", status)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE edit_requests
		SET status = ?, handled_by = ?, handled_at = ?, handled_reason = ?
		WHERE id = ? AND status = 'OPEN'
	`, string(status), handledBy, formatTime(at), nullText(reason), id)
	if err != nil {
		return fmt.Errorf("handle edit request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("handle edit request: rows affected: %w", err)
	}
	if n == 0 {
		return notOpen(id)
	}
	return nil
}

func notOpen(id int64) error {
	return record.Errorf(record.ErrCodeConflict, "edit request %d not found or not open", id)
}

func (s *Store) queryEditRequests(ctx context.Context, query string, args ...any) ([]record.EditRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edit requests: %w", err)
	}
	defer rows.Close()

	requests := []record.EditRequest{}
	for rows.Next() {
		r, err := scanEditRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edit request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edit requests: %w", err)
	}
	return requests, nil
}

func scanEditRequest(row rowScanner) (record.EditRequest, error) {
	var (
		r                                record.EditRequest
		status, createdAt                string
		newValue, message                sql.NullString
		handledBy, handledAt, handledWhy sql.NullString
	)
	err := row.Scan(&r.ID, &r.StudentID, &r.Field, &newValue, &message, &status, &createdAt,
		&handledBy, &handledAt, &handledWhy)
	if err != nil {
		return record.EditRequest{}, err
	}

	r.NewValue = newValue.String
	r.Message = message.String
	r.Status = record.Status(status)
	r.HandledBy = handledBy.String
	r.HandledReason = handledWhy.String

	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return record.EditRequest{}, err
	}
	if handledAt.Valid && handledAt.String != "" {
		t, err := parseTime(handledAt.String)
		if err != nil {
			return record.EditRequest{}, err
		}
		r.HandledAt = &t
	}
	return r, nil
}
