package record

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures surfaced to callers.
type ErrorCode string

const (
	// ErrCodeValidation indicates bad input shape: an empty required field,
	// a disallowed edit field or an unparseable number.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNotFound indicates the operation targets a nonexistent id or username.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeDuplicateKey indicates an insert collided with an existing primary key.
	ErrCodeDuplicateKey ErrorCode = "DUPLICATE_KEY"

	// ErrCodeConflict indicates a state-machine guard failed (request not open).
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeAuth indicates a credential check failed.
	ErrCodeAuth ErrorCode = "AUTH"

	// ErrCodeAuthorization indicates the caller lacks the required role.
	ErrCodeAuthorization ErrorCode = "AUTHORIZATION"

	// ErrCodeStorageInit indicates the database could not be opened or migrated.
	ErrCodeStorageInit ErrorCode = "STORAGE_INIT"
)

// Error is a typed failure carrying one of the ErrorCode categories.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // underlying cause, optional
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates an Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error around an underlying cause.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first Error in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool { return CodeOf(err) == ErrCodeValidation }

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsDuplicateKey returns true if err is a duplicate-key error.
func IsDuplicateKey(err error) bool { return CodeOf(err) == ErrCodeDuplicateKey }

// IsConflict returns true if err is a state conflict error.
func IsConflict(err error) bool { return CodeOf(err) == ErrCodeConflict }

// IsAuth returns true if err is a credential error.
func IsAuth(err error) bool { return CodeOf(err) == ErrCodeAuth }

// IsAuthorization returns true if err is a role/authorization error.
func IsAuthorization(err error) bool { return CodeOf(err) == ErrCodeAuthorization }

// IsStorageInit returns true if err is a storage initialization error.
func IsStorageInit(err error) bool { return CodeOf(err) == ErrCodeStorageInit }
