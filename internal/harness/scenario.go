package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rollbook/internal/record"
)

// Scenario defines one workflow test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Today is the YYYY-MM-DD date the clock starts on (noon UTC).
	Today string `yaml:"today"`

	// Setup seeds rows before the steps run. Setup is not traced and must succeed.
	Setup Setup `yaml:"setup,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final rows.
	Assertions []Assertion `yaml:"assertions"`
}

// Setup seeds the store.
type Setup struct {
	// Bootstrap seeds the default admin (admin/admin).
	Bootstrap bool `yaml:"bootstrap,omitempty"`

	// Students are inserted, each with its provisioned account.
	// Keys are the student field names used by Assertion.Expect.
	Students []map[string]string `yaml:"students,omitempty"`

	// Users are created with the given plaintext password.
	Users []UserFixture `yaml:"users,omitempty"`
}

// UserFixture is an account created during setup.
type UserFixture struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Role      string `yaml:"role"`
	StudentID string `yaml:"student_id,omitempty"`
}

// Step invokes one operation.
type Step struct {
	// Op names the operation; see the Op* constants.
	Op string `yaml:"op"`

	// Args are the operation's named arguments.
	Args map[string]string `yaml:"args,omitempty"`

	// As names the edit request created by a create_request step so later
	// steps can refer to it by name instead of id.
	As string `yaml:"as,omitempty"`

	// ExpectError is the expected error code. Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`

	// ExpectIDs is the exact ordered id list a list or search step must return.
	ExpectIDs []string `yaml:"expect_ids,omitempty"`

	// ExpectOK is the expected outcome of an authenticate step.
	ExpectOK *bool `yaml:"expect_ok,omitempty"`
}

// Step operations.
const (
	OpInsertStudent  = "insert_student"
	OpUpdateStudent  = "update_student"
	OpDeleteStudent  = "delete_student"
	OpListStudents   = "list_students"
	OpSearch         = "search"
	OpCreateRequest  = "create_request"
	OpApprove        = "approve"
	OpReject         = "reject"
	OpAuthenticate   = "authenticate"
	OpChangePassword = "change_password"
	OpResetPassword  = "reset_password"
	OpBootstrap      = "bootstrap"
	OpAdvanceDays    = "advance_days"
)

var knownOps = []string{
	OpInsertStudent, OpUpdateStudent, OpDeleteStudent, OpListStudents, OpSearch,
	OpCreateRequest, OpApprove, OpReject,
	OpAuthenticate, OpChangePassword, OpResetPassword, OpBootstrap,
	OpAdvanceDays,
}

// Assertion validates a row after all steps ran.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// ID is the student id (student, student_absent) or username (user).
	ID string `yaml:"id,omitempty"`

	// Ref is a request name from Step.As, or a numeric request id.
	Ref string `yaml:"ref,omitempty"`

	// Expect contains expected field values. Subset match.
	Expect map[string]string `yaml:"expect,omitempty"`

	// Op, Outcome and Count are used by trace_count.
	Op      string `yaml:"op,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`
	Count   int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStudent       = "student"
	AssertStudentAbsent = "student_absent"
	AssertRequest       = "request"
	AssertUser          = "user"
	AssertTraceCount    = "trace_count"
)

var knownErrorCodes = []record.ErrorCode{
	record.ErrCodeValidation, record.ErrCodeNotFound, record.ErrCodeDuplicateKey,
	record.ErrCodeConflict, record.ErrCodeAuth, record.ErrCodeAuthorization,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos do not silently skip checks.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := time.Parse(record.DateLayout, s.Today); err != nil {
		return fmt.Errorf("today must be YYYY-MM-DD: %w", err)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, st := range s.Setup.Students {
		if st["id"] == "" {
			return fmt.Errorf("setup.students[%d]: id is required", i)
		}
	}
	for i, u := range s.Setup.Users {
		if u.Username == "" || u.Password == "" {
			return fmt.Errorf("setup.users[%d]: username and password are required", i)
		}
		if !record.Role(u.Role).Valid() {
			return fmt.Errorf("setup.users[%d]: invalid role %q", i, u.Role)
		}
	}

	names := map[string]bool{}
	for i, step := range s.Steps {
		if !slices.Contains(knownOps, step.Op) {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.ExpectError != "" && !slices.Contains(knownErrorCodes, record.ErrorCode(step.ExpectError)) {
			return fmt.Errorf("steps[%d]: unknown error code %q", i, step.ExpectError)
		}
		if step.As != "" {
			if step.Op != OpCreateRequest {
				return fmt.Errorf("steps[%d]: as is only valid on %s", i, OpCreateRequest)
			}
			if names[step.As] {
				return fmt.Errorf("steps[%d]: duplicate request name %q", i, step.As)
			}
			names[step.As] = true
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertStudent, AssertStudentAbsent, AssertUser:
			if a.ID == "" {
				return fmt.Errorf("assertions[%d]: id is required for %s", i, a.Type)
			}
		case AssertRequest:
			if a.Ref == "" {
				return fmt.Errorf("assertions[%d]: ref is required for %s", i, a.Type)
			}
		case AssertTraceCount:
			if a.Op == "" {
				return fmt.Errorf("assertions[%d]: op is required for %s", i, a.Type)
			}
		default:
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
	}
	return nil
}
