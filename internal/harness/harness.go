package harness

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/rollbook/internal/auth"
	"github.com/roach88/rollbook/internal/editreq"
	"github.com/roach88/rollbook/internal/record"
	"github.com/roach88/rollbook/internal/store"
	"github.com/roach88/rollbook/internal/testutil"
)

// Harness executes one scenario.
type Harness struct {
	store    *store.Store
	auth     *auth.Service
	workflow *editreq.Workflow
	clock    *testutil.FixedClock
	requests map[string]int64 // Step.As name -> request id
}

// Run executes a scenario in a fresh in-memory database and returns the result.
//
// Mismatched step outcomes and failed assertions are reported in the
// Result. An error is returned only when the scenario cannot run at all:
// a failed setup, or a step failing with an error outside the taxonomy.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	clock := testutil.ClockOn(scenario.Today)

	st, err := store.Open(":memory:", store.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	svc, err := auth.New(st, auth.WithCost(bcrypt.MinCost))
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:    st,
		auth:     svc,
		workflow: editreq.New(st, clock),
		clock:    clock,
		requests: map[string]int64{},
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions, result) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) executeSetup(ctx context.Context, setup Setup) error {
	if setup.Bootstrap {
		if _, err := h.auth.Bootstrap(ctx); err != nil {
			return err
		}
	}
	for i, fields := range setup.Students {
		st, err := h.store.InsertStudent(ctx, studentFromArgs(fields))
		if err != nil {
			return fmt.Errorf("students[%d]: %w", i, err)
		}
		if _, err := h.auth.ProvisionStudent(ctx, st.ID); err != nil {
			return fmt.Errorf("students[%d]: %w", i, err)
		}
	}
	for i, u := range setup.Users {
		if err := h.auth.CreateUser(ctx, u.Username, u.Password, record.Role(u.Role), u.StudentID); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
	}
	return nil
}

// executeStep runs one step, traces it and checks its expectations.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	out, err := h.dispatch(ctx, step)

	outcome := OutcomeOK
	if err != nil {
		code := record.CodeOf(err)
		if code == "" {
			return err
		}
		outcome = string(code)
		out = nil
	}
	result.AddTrace(step.Op, step.Args, outcome, out)

	want := OutcomeOK
	if step.ExpectError != "" {
		want = step.ExpectError
	}
	if outcome != want {
		result.AddError(fmt.Sprintf("step %d (%s): expected %s, got %s (%v)", i, step.Op, want, outcome, err))
		return nil
	}

	if step.ExpectIDs != nil && err == nil {
		got := splitIDs(out["ids"])
		if strings.Join(got, ",") != strings.Join(step.ExpectIDs, ",") {
			result.AddError(fmt.Sprintf("step %d (%s): expected ids %v, got %v", i, step.Op, step.ExpectIDs, got))
		}
	}
	if step.ExpectOK != nil && err == nil {
		if got := out["ok"] == "true"; got != *step.ExpectOK {
			result.AddError(fmt.Sprintf("step %d (%s): expected ok=%t, got %t", i, step.Op, *step.ExpectOK, got))
		}
	}
	if step.As != "" && err == nil {
		id, _ := strconv.ParseInt(out["request_id"], 10, 64)
		h.requests[step.As] = id
	}
	return nil
}

// dispatch performs the operation and returns its traced result fields.
func (h *Harness) dispatch(ctx context.Context, step Step) (map[string]string, error) {
	a := step.Args
	switch step.Op {
	case OpInsertStudent:
		st, err := h.store.InsertStudent(ctx, studentFromArgs(a))
		if err != nil {
			return nil, err
		}
		created, err := h.auth.ProvisionStudent(ctx, st.ID)
		if err != nil {
			return nil, err
		}
		return map[string]string{"age": ageText(st.Age), "account_created": strconv.FormatBool(created)}, nil

	case OpUpdateStudent:
		st, err := h.store.UpdateStudent(ctx, studentFromArgs(a))
		if err != nil {
			return nil, err
		}
		return map[string]string{"age": ageText(st.Age)}, nil

	case OpDeleteStudent:
		return nil, h.store.DeleteStudent(ctx, a["id"])

	case OpListStudents:
		students, err := h.store.ListStudents(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"ids": joinIDs(students)}, nil

	case OpSearch:
		students, err := h.store.SearchStudents(ctx, a["q"])
		if err != nil {
			return nil, err
		}
		return map[string]string{"ids": joinIDs(students)}, nil

	case OpCreateRequest:
		r, err := h.workflow.Create(ctx, a["student_id"], a["field"], a["new_value"], a["message"])
		if err != nil {
			return nil, err
		}
		return map[string]string{"request_id": strconv.FormatInt(r.ID, 10), "field": r.Field}, nil

	case OpApprove:
		id, err := h.requestID(a["request"])
		if err != nil {
			return nil, err
		}
		r, err := h.workflow.Approve(ctx, id, a["admin"])
		if err != nil {
			return nil, err
		}
		return map[string]string{"status": string(r.Status)}, nil

	case OpReject:
		id, err := h.requestID(a["request"])
		if err != nil {
			return nil, err
		}
		return nil, h.workflow.Reject(ctx, id, a["admin"], a["reason"])

	case OpAuthenticate:
		res, err := h.auth.Authenticate(ctx, a["username"], a["password"])
		if err != nil {
			return nil, err
		}
		out := map[string]string{"ok": strconv.FormatBool(res.OK)}
		if res.OK {
			out["role"] = string(res.Role)
			out["must_change_password"] = strconv.FormatBool(res.MustChangePassword)
		}
		return out, nil

	case OpChangePassword:
		return nil, h.auth.ChangePassword(ctx, a["username"], a["old"], a["new"])

	case OpResetPassword:
		return nil, h.auth.ResetPassword(ctx, a["admin"], a["admin_password"], a["target"], a["new"])

	case OpBootstrap:
		res, err := h.auth.Bootstrap(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"created": strconv.FormatBool(res.DefaultAdminCreated)}, nil

	case OpAdvanceDays:
		days, err := strconv.Atoi(a["days"])
		if err != nil {
			return nil, record.WrapError(record.ErrCodeValidation, "days must be an integer", err)
		}
		h.clock.Advance(time.Duration(days) * 24 * time.Hour)
		return map[string]string{"today": h.clock.Now().Format(record.DateLayout)}, nil
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

// requestID resolves a request name from an earlier step, or a literal id.
func (h *Harness) requestID(ref string) (int64, error) {
	if id, ok := h.requests[ref]; ok {
		return id, nil
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown request %q", ref)
	}
	return id, nil
}

func studentFromArgs(a map[string]string) record.Student {
	return record.Student{
		ID:         a["id"],
		Name:       a["name"],
		FatherName: a["father_name"],
		DOB:        a["dob"],
		Gender:     a["gender"],
		Email:      a["email"],
		Phone:      a["phone"],
		Address:    a["address"],
		Course:     a["course"],
		Semester:   a["semester"],
	}
}

func studentFields(st record.Student) map[string]string {
	return map[string]string{
		"id":              st.ID,
		"name":            st.Name,
		"father_name":     st.FatherName,
		"dob":             st.DOB,
		"gender":          st.Gender,
		"age":             ageText(st.Age),
		"email":           st.Email,
		"phone":           st.Phone,
		"address":         st.Address,
		"course":          st.Course,
		"semester":        st.Semester,
		"course_semester": st.CourseSemester(),
	}
}

func ageText(age *int) string {
	if age == nil {
		return ""
	}
	return strconv.Itoa(*age)
}

func joinIDs(students []record.Student) string {
	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	return strings.Join(ids, ",")
}

func splitIDs(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
