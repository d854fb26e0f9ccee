package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
today: "2024-06-01"
setup:
  bootstrap: true
  students:
    - id: S1
      name: Asha
  users:
    - username: clerk
      password: pw
      role: admin
steps:
  - op: create_request
    as: r1
    args:
      student_id: S1
      field: name
      new_value: Asha Rao
assertions:
  - type: request
    ref: r1
    expect:
      status: OPEN
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.True(t, scenario.Setup.Bootstrap)
	assert.Equal(t, "Asha", scenario.Setup.Students[0]["name"])
	assert.Equal(t, "clerk", scenario.Setup.Users[0].Username)
	require.Len(t, scenario.Steps, 1)
	assert.Equal(t, OpCreateRequest, scenario.Steps[0].Op)
	assert.Equal(t, "Asha Rao", scenario.Steps[0].Args["new_value"])
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: d
today: "2024-06-01"
step:
  - op: list_students
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidateScenario(t *testing.T) {
	valid := func() Scenario {
		return Scenario{
			Name:        "n",
			Description: "d",
			Today:       "2024-06-01",
			Steps:       []Step{{Op: OpListStudents}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr string
	}{
		{"valid", func(*Scenario) {}, ""},
		{"no name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"no description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"bad today", func(s *Scenario) { s.Today = "June 1" }, "today must be YYYY-MM-DD"},
		{"no steps", func(s *Scenario) { s.Steps = nil }, "steps list is required"},
		{"unknown op", func(s *Scenario) { s.Steps[0].Op = "drop_table" }, `unknown op "drop_table"`},
		{"unknown code", func(s *Scenario) { s.Steps[0].ExpectError = "OOPS" }, `unknown error code "OOPS"`},
		{"as on wrong op", func(s *Scenario) { s.Steps[0].As = "x" }, "as is only valid"},
		{"setup student without id", func(s *Scenario) {
			s.Setup.Students = []map[string]string{{"name": "x"}}
		}, "id is required"},
		{"setup user bad role", func(s *Scenario) {
			s.Setup.Users = []UserFixture{{Username: "u", Password: "p", Role: "root"}}
		}, `invalid role "root"`},
		{"duplicate request names", func(s *Scenario) {
			s.Steps = []Step{{Op: OpCreateRequest, As: "a"}, {Op: OpCreateRequest, As: "a"}}
		}, `duplicate request name "a"`},
		{"assertion without id", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertStudent}}
		}, "id is required for student"},
		{"request assertion without ref", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertRequest}}
		}, "ref is required"},
		{"unknown assertion", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: "final_state"}}
		}, `unknown type "final_state"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := validateScenario(&s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDir_Sorted(t *testing.T) {
	scenarios, err := LoadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"ages", "approve-dob", "approve-rollback", "passwords", "reject-is-final", "search"}, names)
}
