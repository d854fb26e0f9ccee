package roster

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rollbook/internal/record"
)

//go:embed roster.cue
var schemaCUE string

// textFields maps roster keys to the Student field they fill.
var textFields = []struct {
	key string
	set func(*record.Student, string)
}{
	{"name", func(s *record.Student, v string) { s.Name = v }},
	{"father_name", func(s *record.Student, v string) { s.FatherName = v }},
	{"dob", func(s *record.Student, v string) { s.DOB = v }},
	{"gender", func(s *record.Student, v string) { s.Gender = v }},
	{"email", func(s *record.Student, v string) { s.Email = v }},
	{"phone", func(s *record.Student, v string) { s.Phone = v }},
	{"address", func(s *record.Student, v string) { s.Address = v }},
	{"course", func(s *record.Student, v string) { s.Course = v }},
	{"semester", func(s *record.Student, v string) { s.Semester = v }},
}

// Load reads and validates the roster at path.
func Load(path string) ([]record.Student, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return Parse(data)
}

// Parse validates a YAML roster document and returns its students in file order.
// Any schema violation is an ErrCodeValidation error naming the offending path.
//
// Scalars are taken as the text written in the file, so dates stay
// YYYY-MM-DD and leading zeros in ids and phone numbers survive.
func Parse(data []byte) ([]record.Student, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, record.WrapError(record.ErrCodeValidation, "roster is not valid YAML", err)
	}
	raw, err := plain(&doc)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, record.Errorf(record.ErrCodeValidation, "roster is empty")
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("roster.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile roster schema: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Roster")).Unify(ctx.Encode(raw))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, schemaError(err)
	}

	iter, err := value.LookupPath(cue.ParsePath("students")).List()
	if err != nil {
		return nil, schemaError(err)
	}

	var students []record.Student
	for i := 0; iter.Next(); i++ {
		st, err := decodeEntry(iter.Value())
		if err != nil {
			return nil, record.WrapError(record.ErrCodeValidation, fmt.Sprintf("roster entry %d", i), err)
		}
		students = append(students, st)
	}
	return students, nil
}

// plain converts a YAML node tree to maps, slices and strings.
// Null values are dropped from mappings, so an empty key reads as absent.
func plain(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return plain(n.Content[0])
	case yaml.AliasNode:
		return plain(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return nil, record.Errorf(record.ErrCodeValidation, "roster line %d: mapping keys must be scalars", key.Line)
			}
			v, err := plain(val)
			if err != nil {
				return nil, err
			}
			if v != nil {
				m[key.Value] = v
			}
		}
		return m, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := plain(item)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, nil
		}
		return n.Value, nil
	}
	return nil, nil
}

func decodeEntry(v cue.Value) (record.Student, error) {
	var st record.Student

	id, err := v.LookupPath(cue.ParsePath("id")).String()
	if err != nil {
		return st, err
	}
	st.ID = strings.TrimSpace(id)

	for _, f := range textFields {
		fv := v.LookupPath(cue.ParsePath(f.key))
		if !fv.Exists() {
			continue
		}
		s, err := fv.String()
		if err != nil {
			return st, err
		}
		f.set(&st, s)
	}

	// section only fills what course and semester left empty
	if sv := v.LookupPath(cue.ParsePath("section")); sv.Exists() {
		section, err := sv.String()
		if err != nil {
			return st, err
		}
		course, semester := record.ParseSection(section)
		if st.Course == "" {
			st.Course = course
		}
		if st.Semester == "" {
			st.Semester = semester
		}
	}
	return st, nil
}

// schemaError reports the first CUE error with its path.
func schemaError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return record.WrapError(record.ErrCodeValidation, "roster does not match schema", err)
	}
	first := errs[0]
	path := strings.Join(first.Path(), ".")
	format, args := first.Msg()
	return record.Errorf(record.ErrCodeValidation, "roster %s: %s", path, fmt.Sprintf(format, args...))
}

// StudentInserter stores one student.
type StudentInserter interface {
	InsertStudent(ctx context.Context, st record.Student) (record.Student, error)
}

// Provisioner creates the login account of a new student.
type Provisioner interface {
	ProvisionStudent(ctx context.Context, studentID string) (bool, error)
}

// Summary counts what Import wrote.
type Summary struct {
	Imported        int `json:"imported"`
	AccountsCreated int `json:"accounts_created"`
}

// Import inserts students in order and provisions each one's account.
//
// It stops at the first failure. The returned Summary counts the students
// written before it; those rows are kept.
func Import(ctx context.Context, store StudentInserter, accounts Provisioner, students []record.Student) (Summary, error) {
	var sum Summary
	for _, st := range students {
		stored, err := store.InsertStudent(ctx, st)
		if err != nil {
			return sum, fmt.Errorf("import student %q: %w", st.ID, err)
		}
		sum.Imported++

		created, err := accounts.ProvisionStudent(ctx, stored.ID)
		if err != nil {
			return sum, fmt.Errorf("provision account for %q: %w", stored.ID, err)
		}
		if created {
			sum.AccountsCreated++
		}
	}
	return sum, nil
}
