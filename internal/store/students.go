package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rollbook/internal/record"
)

const studentSelect = `
	SELECT id, name, father_name, dob, gender, age, email, phone, address, course, semester
	FROM students`

// studentOrder sorts by name ignoring case; id keeps the order total.
const studentOrder = `ORDER BY name COLLATE NOCASE ASC, id COLLATE BINARY ASC`

// searchColumns are the fields a search query is matched against.
var searchColumns = []string{"id", "name", "father_name", "course", "semester", "phone", "email", "address"}

// searchWhere ORs a folded substring test over every search column.
var searchWhere = func() string {
	parts := make([]string, len(searchColumns))
	for i, c := range searchColumns {
		parts[i] = fmt.Sprintf("instr(fold(CAST(coalesce(%s, '') AS TEXT)), ?) > 0", c)
	}
	return strings.Join(parts, " OR ")
}()

// InsertStudent inserts a new student and returns it as stored.
//
// The id is trimmed and must be non-empty. Age is derived from DOB at the
// store's current time; any Age on the input is ignored.
// Returns ErrCodeDuplicateKey if the id already exists.
func (s *Store) InsertStudent(ctx context.Context, st record.Student) (record.Student, error) {
	st.ID = strings.TrimSpace(st.ID)
	if err := record.Validate(st); err != nil {
		return record.Student{}, fmt.Errorf("insert student: %w", err)
	}
	st.Age = record.AgeAt(st.DOB, s.clock.Now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO students
		(id, name, father_name, dob, gender, age, email, phone, address, course, semester)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		st.ID,
		nullText(st.Name),
		nullText(st.FatherName),
		nullText(st.DOB),
		nullText(st.Gender),
		nullInt(st.Age),
		nullText(st.Email),
		nullText(st.Phone),
		nullText(st.Address),
		nullText(st.Course),
		nullText(st.Semester),
	)
	if err != nil {
		if isPrimaryKeyViolation(err) {
			return record.Student{}, record.Errorf(record.ErrCodeDuplicateKey, "student %q already exists", st.ID)
		}
		return record.Student{}, fmt.Errorf("insert student: %w", err)
	}
	return st, nil
}

// UpdateStudent replaces every mutable column of the student with st.ID.
//
// Age is recomputed from st.DOB on every call, changed or not.
// Returns ErrCodeNotFound if no row has that id.
func (s *Store) UpdateStudent(ctx context.Context, st record.Student) (record.Student, error) {
	st.ID = strings.TrimSpace(st.ID)
	if err := record.Validate(st); err != nil {
		return record.Student{}, fmt.Errorf("update student: %w", err)
	}
	st.Age = record.AgeAt(st.DOB, s.clock.Now())

	res, err := s.db.ExecContext(ctx, `
		UPDATE students SET
			name = ?, father_name = ?, dob = ?, gender = ?, age = ?,
			email = ?, phone = ?, address = ?, course = ?, semester = ?
		WHERE id = ?
	`,
		nullText(st.Name),
		nullText(st.FatherName),
		nullText(st.DOB),
		nullText(st.Gender),
		nullInt(st.Age),
		nullText(st.Email),
		nullText(st.Phone),
		nullText(st.Address),
		nullText(st.Course),
		nullText(st.Semester),
		st.ID,
	)
	if err != nil {
		return record.Student{}, fmt.Errorf("update student: %w", err)
	}
	if err := requireRow(res, "student %q", st.ID); err != nil {
		return record.Student{}, err
	}
	return st, nil
}

// DeleteStudent removes the student with the given id, trimmed.
// Returns ErrCodeNotFound if no row has that id.
func (s *Store) DeleteStudent(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	res, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return requireRow(res, "student %q", id)
}

// GetStudent returns the student with the given id, trimmed.
// Returns ErrCodeNotFound if no row has that id.
func (s *Store) GetStudent(ctx context.Context, id string) (record.Student, error) {
	id = strings.TrimSpace(id)
	row := s.db.QueryRowContext(ctx, studentSelect+` WHERE id = ?`, id)
	st, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Student{}, record.Errorf(record.ErrCodeNotFound, "student %q not found", id)
	}
	if err != nil {
		return record.Student{}, fmt.Errorf("get student: %w", err)
	}
	return st, nil
}

// ListStudents returns every student ordered by name, ignoring case.
//
// Returns an empty slice (not nil) if there are no students.
func (s *Store) ListStudents(ctx context.Context) ([]record.Student, error) {
	return s.queryStudents(ctx, studentSelect+" "+studentOrder)
}

// SearchStudents returns students where q is a case-insensitive substring of
// id, name, father_name, course, semester, phone, email or address.
//
// An empty q returns the same result as ListStudents.
func (s *Store) SearchStudents(ctx context.Context, q string) ([]record.Student, error) {
	if q == "" {
		return s.ListStudents(ctx)
	}
	needle := foldText(q)
	args := make([]any, len(searchColumns))
	for i := range args {
		args[i] = needle
	}
	return s.queryStudents(ctx, studentSelect+" WHERE "+searchWhere+" "+studentOrder, args...)
}

func (s *Store) queryStudents(ctx context.Context, query string, args ...any) ([]record.Student, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	students := []record.Student{}
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

func scanStudent(row rowScanner) (record.Student, error) {
	var (
		st                                      record.Student
		name, father, dob, gender, email, phone sql.NullString
		address, course, semester               sql.NullString
		age                                     sql.NullInt64
	)
	err := row.Scan(&st.ID, &name, &father, &dob, &gender, &age, &email, &phone, &address, &course, &semester)
	if err != nil {
		return record.Student{}, err
	}
	st.Name = name.String
	st.FatherName = father.String
	st.DOB = dob.String
	st.Gender = gender.String
	st.Age = intPtr(age)
	st.Email = email.String
	st.Phone = phone.String
	st.Address = address.String
	st.Course = course.String
	st.Semester = semester.String
	return st, nil
}

// requireRow turns a zero-row write into a not-found error naming the target.
func requireRow(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return record.Errorf(record.ErrCodeNotFound, format+" not found", args...)
	}
	return nil
}
