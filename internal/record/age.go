package record

import (
	"strings"
	"time"
)

// DateLayout is the storage and input format of dates of birth.
const DateLayout = "2006-01-02"

// AgeAt derives an age in whole years from a YYYY-MM-DD date of birth.
//
// Returns nil when dob is empty, unparseable or after the calendar date of now.
// The result counts completed birthdays: a birthday later in the year than
// now's month and day has not happened yet.
func AgeAt(dob string, now time.Time) *int {
	s := strings.TrimSpace(dob)
	if s == "" {
		return nil
	}
	born, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil
	}

	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if born.After(today) {
		return nil
	}

	years := y - born.Year()
	if m < born.Month() || (m == born.Month() && d < born.Day()) {
		years--
	}
	return &years
}
