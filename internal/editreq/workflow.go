package editreq

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/rollbook/internal/record"
	"github.com/roach88/rollbook/internal/store"
)

// Workflow creates and handles edit requests against a Store.
type Workflow struct {
	store *store.Store
	clock record.Clock
}

// New creates a Workflow. Timestamps and derived ages use clock;
// a nil clock selects the store's clock.
func New(s *store.Store, clock record.Clock) *Workflow {
	if clock == nil {
		clock = s.Clock()
	}
	return &Workflow{store: s, clock: clock}
}

// Create files an OPEN request to change one field of a student.
//
// field is matched case-insensitively against record.EditableFields and
// "father" is accepted for father_name. The target student is not checked
// here; approval fails if it no longer exists.
func (w *Workflow) Create(ctx context.Context, studentID, field, newValue, message string) (record.EditRequest, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return record.EditRequest{}, record.Errorf(record.ErrCodeValidation, "student id is required")
	}
	canonical, ok := record.NormalizeField(field)
	if !ok {
		return record.EditRequest{}, invalidField(field)
	}

	r, err := w.store.InsertEditRequest(ctx, record.EditRequest{
		StudentID: studentID,
		Field:     canonical,
		NewValue:  newValue,
		Message:   message,
		Status:    record.StatusOpen,
		CreatedAt: w.clock.Now(),
	})
	if err != nil {
		return record.EditRequest{}, fmt.Errorf("create edit request: %w", err)
	}
	return r, nil
}

// List returns every request, newest first.
func (w *Workflow) List(ctx context.Context) ([]record.EditRequest, error) {
	return w.store.ListEditRequests(ctx)
}

// ListForStudent returns the requests filed for one student, newest first.
func (w *Workflow) ListForStudent(ctx context.Context, studentID string) ([]record.EditRequest, error) {
	return w.store.ListEditRequestsByStudent(ctx, strings.TrimSpace(studentID))
}

// Get returns one request in any state.
func (w *Workflow) Get(ctx context.Context, id int64) (record.EditRequest, error) {
	return w.store.GetEditRequest(ctx, id)
}

// Approve applies an OPEN request to its student and marks it APPROVED.
//
// Returns ErrCodeConflict if the request is missing or already handled,
// ErrCodeValidation for a bad field or age value, and ErrCodeNotFound if the
// student is gone. On any error nothing is written and the request stays OPEN.
func (w *Workflow) Approve(ctx context.Context, id int64, admin string) (record.EditRequest, error) {
	if strings.TrimSpace(admin) == "" {
		return record.EditRequest{}, record.Errorf(record.ErrCodeValidation, "admin name is required")
	}
	now := w.clock.Now()

	var approved record.EditRequest
	err := w.store.InTx(ctx, func(tx *store.Tx) error {
		r, err := tx.OpenEditRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(ctx, tx, r, now); err != nil {
			return err
		}
		if err := tx.HandleEditRequest(ctx, id, record.StatusApproved, admin, now, ""); err != nil {
			return err
		}

		r.Status = record.StatusApproved
		r.HandledBy = admin
		r.HandledAt = &now
		approved = r
		return nil
	})
	if err != nil {
		return record.EditRequest{}, fmt.Errorf("approve edit request %d: %w", id, err)
	}
	return approved, nil
}

// apply writes the request's value to the student row.
func apply(ctx context.Context, tx *store.Tx, r record.EditRequest, now time.Time) error {
	field, ok := record.NormalizeField(r.Field)
	if !ok {
		return invalidField(r.Field)
	}

	switch field {
	case record.FieldAge:
		age, err := strconv.Atoi(strings.TrimSpace(r.NewValue))
		if err != nil {
			return record.WrapError(record.ErrCodeValidation, fmt.Sprintf("age %q is not an integer", r.NewValue), err)
		}
		return tx.SetStudentAge(ctx, r.StudentID, age)
	case record.FieldDOB:
		dob := strings.TrimSpace(r.NewValue)
		return tx.SetStudentDOB(ctx, r.StudentID, dob, record.AgeAt(dob, now))
	default:
		return tx.SetStudentText(ctx, r.StudentID, field, r.NewValue)
	}
}

// Reject marks an OPEN request REJECTED without touching the student.
// Returns ErrCodeConflict if the request is missing or already handled.
func (w *Workflow) Reject(ctx context.Context, id int64, admin, reason string) error {
	if strings.TrimSpace(admin) == "" {
		return record.Errorf(record.ErrCodeValidation, "admin name is required")
	}
	if err := w.store.HandleEditRequest(ctx, id, record.StatusRejected, admin, w.clock.Now(), reason); err != nil {
		return fmt.Errorf("reject edit request %d: %w", id, err)
	}
	return nil
}

func invalidField(field string) error {
	return record.Errorf(record.ErrCodeValidation, "field %q cannot be edited (allowed: %s)",
		field, strings.Join(record.EditableFields, ", "))
}
