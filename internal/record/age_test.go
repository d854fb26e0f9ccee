package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t.Add(10 * time.Hour)
}

func TestAgeAt(t *testing.T) {
	tests := []struct {
		name string
		dob  string
		now  string
		want int
	}{
		{"reference scenario", "2000-01-01", "2024-06-01", 24},
		{"dob edit scenario", "2001-01-01", "2024-06-01", 23},
		{"birthday today", "2000-06-01", "2024-06-01", 24},
		{"birthday tomorrow", "2000-06-02", "2024-06-01", 23},
		{"earlier month not reached", "2000-07-01", "2024-06-01", 23},
		{"born today", "2024-06-01", "2024-06-01", 0},
		{"leap day before feb 29 equivalent", "2000-02-29", "2001-02-28", 0},
		{"leap day after", "2000-02-29", "2001-03-01", 1},
		{"surrounding space", "  2000-01-01 ", "2024-06-01", 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AgeAt(tt.dob, day(tt.now))
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestAgeAt_Nil(t *testing.T) {
	now := day("2024-06-01")
	for _, dob := range []string{
		"",
		"   ",
		"not a date",
		"01/01/2000",
		"2000-1-1",
		"2001-02-30",
		"2024-06-02",
		"2100-01-01",
	} {
		assert.Nil(t, AgeAt(dob, now), "dob %q", dob)
	}
}

func TestAgeAt_IgnoresTimeOfDay(t *testing.T) {
	late := time.Date(2024, 6, 1, 23, 59, 59, 0, time.FixedZone("X", 5*3600))
	got := AgeAt("2024-06-01", late)
	require.NotNil(t, got)
	assert.Equal(t, 0, *got)
}
