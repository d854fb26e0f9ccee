package cli

import "github.com/google/uuid"

// newTraceID returns a time-ordered UUIDv7 string, falling back to a
// random v4 if the v7 clock read fails.
func newTraceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
