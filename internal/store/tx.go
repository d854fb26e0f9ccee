package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/rollbook/internal/record"
)

// textFieldUpdates holds one fixed statement per free-text edit field.
// Column names cannot be bound as parameters, so the field selects a
// statement here and is never interpolated into SQL.
var textFieldUpdates = map[string]string{
	record.FieldName:       `UPDATE students SET name = ? WHERE id = ?`,
	record.FieldFatherName: `UPDATE students SET father_name = ? WHERE id = ?`,
	record.FieldGender:     `UPDATE students SET gender = ? WHERE id = ?`,
	record.FieldEmail:      `UPDATE students SET email = ? WHERE id = ?`,
	record.FieldPhone:      `UPDATE students SET phone = ? WHERE id = ?`,
	record.FieldAddress:    `UPDATE students SET address = ? WHERE id = ?`,
	record.FieldCourse:     `UPDATE students SET course = ? WHERE id = ?`,
	record.FieldSemester:   `UPDATE students SET semester = ? WHERE id = ?`,
}

// Tx is a transaction scoped to one connection.
// Obtain one from Store.InTx; it must not outlive the callback.
type Tx struct {
	tx *sql.Tx
}

// InTx runs fn inside a single transaction.
//
// The transaction commits only if fn returns nil; any error from fn, or from
// the commit itself, rolls everything back.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// OpenEditRequest reads an edit request only if its status is OPEN.
// Returns ErrCodeConflict if the request does not exist or is not open.
func (t *Tx) OpenEditRequest(ctx context.Context, id int64) (record.EditRequest, error) {
	r, err := scanEditRequest(t.tx.QueryRowContext(ctx, requestSelect+` WHERE id = ? AND status = 'OPEN'`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return record.EditRequest{}, notOpen(id)
	}
	if err != nil {
		return record.EditRequest{}, fmt.Errorf("read open edit request: %w", err)
	}
	return r, nil
}

// SetStudentText writes value verbatim to one free-text column.
//
// field must be a canonical edit field other than dob and age, which have
// their own setters. Returns ErrCodeNotFound if the student does not exist.
func (t *Tx) SetStudentText(ctx context.Context, studentID, field, value string) error {
	stmt, ok := textFieldUpdates[field]
	if !ok {
		return record.Errorf(record.ErrCodeValidation, "field %q is not an editable text field", field)
	}
	res, err := t.tx.ExecContext(ctx, stmt, nullText(value), studentID)
	if err != nil {
		return fmt.Errorf("set student %s: %w", field, err)
	}
	return requireRow(res, "student %q", studentID)
}

// SetStudentAge writes the age column directly.
func (t *Tx) SetStudentAge(ctx context.Context, studentID string, age int) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE students SET age = ? WHERE id = ?`, age, studentID)
	if err != nil {
		return fmt.Errorf("set student age: %w", err)
	}
	return requireRow(res, "student %q", studentID)
}

// SetStudentDOB writes the date of birth together with the age derived from it.
func (t *Tx) SetStudentDOB(ctx context.Context, studentID, dob string, age *int) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE students SET dob = ?, age = ? WHERE id = ?`,
		nullText(dob), nullInt(age), studentID)
	if err != nil {
		return fmt.Errorf("set student dob: %w", err)
	}
	return requireRow(res, "student %q", studentID)
}

// HandleEditRequest is Store.HandleEditRequest inside the transaction.
func (t *Tx) HandleEditRequest(ctx context.Context, id int64, status record.Status, handledBy string, at time.Time, reason string) error {
	return handleEditRequest(ctx, t.tx, id, status, handledBy, at, reason)
}
