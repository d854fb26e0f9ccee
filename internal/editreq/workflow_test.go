package editreq

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rollbook/internal/record"
	"github.com/roach88/rollbook/internal/store"
	"github.com/roach88/rollbook/internal/testutil"
)

func newTestWorkflow(t *testing.T) (*Workflow, *store.Store, *testutil.FixedClock) {
	t.Helper()
	clock := testutil.ClockOn("2024-06-01")
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, clock), s, clock
}

func seedStudent(t *testing.T, s *store.Store, id, dob string) record.Student {
	t.Helper()
	st, err := s.InsertStudent(t.Context(), record.Student{
		ID:       id,
		Name:     "Asha Rao",
		DOB:      dob,
		Email:    "asha@uni.in",
		Course:   "B.Tech",
		Semester: "3",
	})
	require.NoError(t, err)
	return st
}

func TestCreate_NormalizesField(t *testing.T) {
	w, _, clock := newTestWorkflow(t)
	ctx := t.Context()

	tests := []struct {
		input string
		want  string
	}{
		{"name", record.FieldName},
		{"  EMAIL ", record.FieldEmail},
		{"Father", record.FieldFatherName},
		{"FATHER_NAME", record.FieldFatherName},
		{"DoB", record.FieldDOB},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			r, err := w.Create(ctx, " S1 ", tt.input, "v", "msg")
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Field)
			assert.Equal(t, "S1", r.StudentID)
			assert.Equal(t, record.StatusOpen, r.Status)
			assert.True(t, clock.Now().Equal(r.CreatedAt))
		})
	}
}

func TestCreate_Validation(t *testing.T) {
	w, _, _ := newTestWorkflow(t)
	ctx := t.Context()

	for _, field := range []string{"id", "password", "role", "", "name; DROP TABLE students"} {
		_, err := w.Create(ctx, "S1", field, "x", "")
		assert.True(t, record.IsValidation(err), "field %q: got %v", field, err)
	}

	_, err := w.Create(ctx, "   ", "name", "x", "")
	assert.True(t, record.IsValidation(err), "got %v", err)

	all, err := w.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestApprove_DOBRecomputesAge(t *testing.T) {
	w, s, clock := newTestWorkflow(t)
	ctx := t.Context()
	seedStudent(t, s, "S1", "2000-01-01")

	r, err := w.Create(ctx, "S1", "dob", "2001-01-01", "typo in dob")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	approved, err := w.Approve(ctx, r.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, record.StatusApproved, approved.Status)
	assert.Equal(t, "admin", approved.HandledBy)

	st, err := s.GetStudent(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "2001-01-01", st.DOB)
	require.NotNil(t, st.Age)
	assert.Equal(t, 23, *st.Age)

	got, err := w.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusApproved, got.Status)
	assert.Equal(t, "admin", got.HandledBy)
	require.NotNil(t, got.HandledAt)
	assert.True(t, clock.Now().Equal(*got.HandledAt))
}

func TestApprove_UnparseableDOBClearsAge(t *testing.T) {
	w, s, _ := newTestWorkflow(t)
	ctx := t.Context()
	seedStudent(t, s, "S1", "2000-01-01")

	r, err := w.Create(ctx, "S1", "dob", "01/01/2001", "")
	require.NoError(t, err)
	_, err = w.Approve(ctx, r.ID, "admin")
	require.NoError(t, err)

	st, err := s.GetStudent(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "01/01/2001", st.DOB)
	assert.Nil(t, st.Age)
}

func TestApprove_TextField(t *testing.T) {
	w, s, _ := newTestWorkflow(t)
	ctx := t.Context()
	seedStudent(t, s, "S1", "2000-01-01")

	r, err := w.Create(ctx, "S1", "father", "  Gopal Rao ", "")
	require.NoError(t, err)
	_, err = w.Approve(ctx, r.ID, "admin")
	require.NoError(t, err)

	st, err := s.GetStudent(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "  Gopal Rao ", st.FatherName, "text values are written verbatim")
	assert.Equal(t, "Asha Rao", st.Name)
}

func TestApprove_Age(t *testing.T) {
	w, s, _ := newTestWorkflow(t)
	ctx := t.Context()
	seedStudent(t, s, "S1", "2000-01-01")

	r, err := w.Create(ctx, "S1", "age", " 30 ", "")
	require.NoError(t, err)
	_, err = w.Approve(ctx, r.ID, "admin")
	require.NoError(t, err)

	st, err := s.GetStudent(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, st.Age)
	assert.Equal(t, 30, *st.Age)
	assert.Equal(t, "2000-01-01", st.DOB)
}

func TestApprove_BadAgeRollsBack(t *testing.T) {
	w, s, _ := newTestWorkflow(t)
	ctx := t.Context()
	before := seedStudent(t, s, "S1", "2000-01-01")

	r, err := w.Create(ctx, "S1", "age", "thirty", "")
	require.NoError(t, err)

	_, err = w.Approve(ctx, r.ID, "admin")
	assert.True(t, record.IsValidation(err), "got %v", err)

	after, err := s.GetStudent(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	got, err := w.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusOpen, got.Status)
	assert.Empty(t, got.HandledBy)
}

func TestApprove_MissingStudentRollsBack(t *testing.T) {
	w, _, _ := newTestWorkflow(t)
	ctx := t.Context()

	r, err := w.Create(ctx, "GHOST", "name", "x", "")
	require.NoError(t, err)

	_, err = w.Approve(ctx, r.ID, "admin")
	assert.True(t, record.IsNotFound(err), "got %v", err)

	got, err := w.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusOpen, got.Status)
}

func TestApprove_NotOpen(t *testing.T) {
	w, s, _ := newTestWorkflow(t)
	ctx := t.Context()
	seedStudent(t, s, "S1", "2000-01-01")

	r, err := w.Create(ctx, "S1", "name", "Changed", "")
	require.NoError(t, err)
	require.NoError(t, w.Reject(ctx, r.ID, "admin", "no"))

	_, err = w.Approve(ctx, r.ID, "admin")
	assert.True(t, record.IsConflict(err), "got %v", err)

	st, err := s.GetStudent(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", st.Name)

	_, err = w.Approve(ctx, 9999, "admin")
	assert.True(t, record.IsConflict(err), "got %v", err)
}

func TestApprove_Twice(t *testing.T) {
	w, s, _ := newTestWorkflow(t)
	ctx := t.Context()
	seedStudent(t, s, "S1", "2000-01-01")

	r, err := w.Create(ctx, "S1", "email", "new@uni.in", "")
	require.NoError(t, err)

	_, err = w.Approve(ctx, r.ID, "admin")
	require.NoError(t, err)
	_, err = w.Approve(ctx, r.ID, "admin2")
	assert.True(t, record.IsConflict(err), "got %v", err)

	got, err := w.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.HandledBy)
}

func TestApprove_Concurrent(t *testing.T) {
	w, s, _ := newTestWorkflow(t)
	ctx := t.Context()
	seedStudent(t, s, "S1", "2000-01-01")

	r, err := w.Create(ctx, "S1", "phone", "555-0100", "")
	require.NoError(t, err)

	admins := []string{"alice", "bob"}
	errs := make([]error, len(admins))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, admin := range admins {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = w.Approve(ctx, r.ID, admin)
		}()
	}
	close(start)
	wg.Wait()

	var winner string
	conflicts := 0
	for i, err := range errs {
		switch {
		case err == nil:
			winner = admins[i]
		case record.IsConflict(err):
			conflicts++
		default:
			t.Fatalf("approve by %s: unexpected error %v", admins[i], err)
		}
	}
	assert.Equal(t, 1, conflicts)
	require.NotEmpty(t, winner)

	got, err := w.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusApproved, got.Status)
	assert.Equal(t, winner, got.HandledBy)

	st, err := s.GetStudent(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "555-0100", st.Phone)
}

func TestApprove_RequiresAdminName(t *testing.T) {
	w, _, _ := newTestWorkflow(t)

	_, err := w.Approve(t.Context(), 1, " ")
	assert.True(t, record.IsValidation(err), "got %v", err)
}

func TestReject(t *testing.T) {
	w, s, _ := newTestWorkflow(t)
	ctx := t.Context()
	seedStudent(t, s, "S1", "2000-01-01")

	r, err := w.Create(ctx, "S1", "name", "Changed", "")
	require.NoError(t, err)

	require.NoError(t, w.Reject(ctx, r.ID, "admin", "not verified"))

	err = w.Reject(ctx, r.ID, "admin", "again")
	assert.True(t, record.IsConflict(err), "got %v", err)

	got, err := w.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusRejected, got.Status)
	assert.Equal(t, "not verified", got.HandledReason)

	st, err := s.GetStudent(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", st.Name)
}

func TestListForStudent(t *testing.T) {
	w, _, clock := newTestWorkflow(t)
	ctx := t.Context()

	a, err := w.Create(ctx, "S1", "name", "a", "")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = w.Create(ctx, "S2", "name", "b", "")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	c, err := w.Create(ctx, "S1", "phone", "c", "")
	require.NoError(t, err)

	mine, err := w.ListForStudent(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, c.ID, mine[0].ID)
	assert.Equal(t, a.ID, mine[1].ID)

	all, err := w.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, c.ID, all[0].ID)
}
