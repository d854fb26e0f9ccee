package record

import (
	"strconv"
	"time"
)

// Role is the authorization role of a user account.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// Status is the state of an edit request.
//
// OPEN is the initial state. APPROVED and REJECTED are terminal.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Student is one row of the students table.
type Student struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name"`
	FatherName string `json:"father_name"`
	DOB        string `json:"dob"`
	Gender     string `json:"gender"`
	Age        *int   `json:"age"` // derived from DOB at write time
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	Course     string `json:"course"`
	Semester   string `json:"semester"`
}

// StudentColumns names the fields of Student.Row, in order.
var StudentColumns = []string{
	"Id", "Name", "Father", "DOB", "Gender", "Phone", "Course/Sem",
	"E-mail", "Address", "Age", "Course", "Semester",
}

// CourseSemester is the combined display value of Course and Semester.
func (s Student) CourseSemester() string {
	return JoinCourseSemester(s.Course, s.Semester)
}

// Row returns the student as a fixed-order tuple matching StudentColumns.
// A nil age renders as "".
func (s Student) Row() []string {
	age := ""
	if s.Age != nil {
		age = strconv.Itoa(*s.Age)
	}
	return []string{
		s.ID, s.Name, s.FatherName, s.DOB, s.Gender, s.Phone, s.CourseSemester(),
		s.Email, s.Address, age, s.Course, s.Semester,
	}
}

// User is one row of the users table.
type User struct {
	Username           string `json:"username" validate:"required"`
	PasswordHash       string `json:"-" validate:"required"`
	Role               Role   `json:"role" validate:"required,oneof=admin student"`
	StudentID          string `json:"student_id,omitempty"`
	MustChangePassword bool   `json:"must_change_password"`
}

// EditRequest is a student-initiated proposal to change one field of their record.
type EditRequest struct {
	ID            int64      `json:"id"`
	StudentID     string     `json:"student_id"`
	Field         string     `json:"field"`
	NewValue      string     `json:"new_value"`
	Message       string     `json:"message,omitempty"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	HandledBy     string     `json:"handled_by,omitempty"`
	HandledAt     *time.Time `json:"handled_at,omitempty"`
	HandledReason string     `json:"handled_reason,omitempty"`
}
