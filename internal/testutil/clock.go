package testutil

import (
	"sync"
	"time"
)

// FixedClock is a settable wall clock for tests.
//
// Unlike record.SystemClock, FixedClock only moves when told to, so date
// rules such as age derivation produce the same answer on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock reading now.
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

// ClockOn creates a clock reading noon UTC on a YYYY-MM-DD date.
// Panics on a malformed date; it is meant for literals in tests.
func ClockOn(date string) *FixedClock {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return NewFixedClock(d.Add(12 * time.Hour))
}

// Now returns the current reading.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
