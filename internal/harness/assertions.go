package harness

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/rollbook/internal/record"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// evaluateAssertions checks every assertion and returns one message per failure.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion, result *Result) []string {
	var msgs []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, a, result); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion, result *Result) error {
	switch a.Type {
	case AssertStudent:
		st, err := h.store.GetStudent(ctx, a.ID)
		if err != nil {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("student %q", a.ID), Actual: err.Error()}
		}
		return matchFields(a.Type, a.Expect, studentFields(st))

	case AssertStudentAbsent:
		_, err := h.store.GetStudent(ctx, a.ID)
		if !record.IsNotFound(err) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("no student %q", a.ID), Actual: fmt.Sprintf("%v", err)}
		}
		return nil

	case AssertRequest:
		id, err := h.requestID(a.Ref)
		if err != nil {
			return err
		}
		r, err := h.store.GetEditRequest(ctx, id)
		if err != nil {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("request %s", a.Ref), Actual: err.Error()}
		}
		return matchFields(a.Type, a.Expect, requestFields(r))

	case AssertUser:
		u, err := h.store.GetUser(ctx, a.ID)
		if err != nil {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("user %q", a.ID), Actual: err.Error()}
		}
		return matchFields(a.Type, a.Expect, userFields(u))

	case AssertTraceCount:
		n := 0
		for _, ev := range result.Trace {
			if ev.Op == a.Op && (a.Outcome == "" || ev.Outcome == a.Outcome) {
				n++
			}
		}
		if n != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d %s steps with outcome %q", a.Count, a.Op, a.Outcome),
				Actual:   strconv.Itoa(n),
			}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// matchFields is a subset match: only keys in want are compared.
func matchFields(kind string, want, got map[string]string) error {
	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var diffs []string
	for _, k := range keys {
		actual, ok := got[k]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("%s: no such field", k))
			continue
		}
		if actual != want[k] {
			diffs = append(diffs, fmt.Sprintf("%s=%q", k, actual))
		}
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{Type: kind, Expected: fmt.Sprintf("%v", want), Actual: strings.Join(diffs, ", ")}
}

func requestFields(r record.EditRequest) map[string]string {
	return map[string]string{
		"student_id":     r.StudentID,
		"field":          r.Field,
		"new_value":      r.NewValue,
		"message":        r.Message,
		"status":         string(r.Status),
		"handled_by":     r.HandledBy,
		"handled_reason": r.HandledReason,
		"handled":        strconv.FormatBool(r.HandledAt != nil),
	}
}

func userFields(u record.User) map[string]string {
	return map[string]string{
		"role":                 string(u.Role),
		"student_id":           u.StudentID,
		"must_change_password": strconv.FormatBool(u.MustChangePassword),
	}
}
