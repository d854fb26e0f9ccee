package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rollbook/internal/record"
	"github.com/roach88/rollbook/internal/testutil"
)

// createTestStore creates a new store in a temp dir with its clock fixed at 2024-06-01.
func createTestStore(t *testing.T) (*Store, *testutil.FixedClock) {
	t.Helper()
	clock := testutil.ClockOn("2024-06-01")
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(clock))
	require.NoError(t, err, "Open() failed")
	t.Cleanup(func() { s.Close() })
	return s, clock
}

// createTestStudent creates a student with the given id, name and dob and
// filler values in the other columns.
func createTestStudent(id, name, dob string) record.Student {
	return record.Student{
		ID:         id,
		Name:       name,
		FatherName: "Father of " + name,
		DOB:        dob,
		Gender:     "Other",
		Email:      id + "@example.edu",
		Phone:      "555-0100",
		Address:    "1 College Road",
		Course:     "B.Tech",
		Semester:   "3",
	}
}
