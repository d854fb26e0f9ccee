package record

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Canonical edit request field names. Each is also the students column it writes.
const (
	FieldName       = "name"
	FieldFatherName = "father_name"
	FieldGender     = "gender"
	FieldDOB        = "dob"
	FieldAge        = "age"
	FieldEmail      = "email"
	FieldPhone      = "phone"
	FieldAddress    = "address"
	FieldCourse     = "course"
	FieldSemester   = "semester"
)

// EditableFields is the allow-list of fields an edit request may name.
var EditableFields = []string{
	FieldName, FieldFatherName, FieldGender, FieldDOB, FieldAge,
	FieldEmail, FieldPhone, FieldAddress, FieldCourse, FieldSemester,
}

var fieldSynonyms = map[string]string{
	"father": FieldFatherName,
}

// IsEditableField reports whether field is a canonical allow-listed name.
func IsEditableField(field string) bool {
	return slices.Contains(EditableFields, field)
}

// NormalizeField maps user input to a canonical field name.
//
// Matching ignores surrounding space and case (Unicode case folding), and
// "father" is accepted for "father_name". ok is false for anything else.
func NormalizeField(field string) (canonical string, ok bool) {
	f := cases.Fold().String(strings.TrimSpace(field))
	if syn, found := fieldSynonyms[f]; found {
		f = syn
	}
	if !IsEditableField(f) {
		return "", false
	}
	return f, true
}
