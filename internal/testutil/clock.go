// Package testutil provides deterministic time and token sources for tests.
//
// The simulator's observable behavior depends on two nondeterministic
// inputs: wall-clock time (ADC samples, telemetry timestamps) and run
// tokens. Pinning both makes traces byte-identical across runs, which the
// golden-file tests rely on.
package testutil

import (
	"sync"
	"time"
)

// Clock is a settable time source. It satisfies hal.Clock so a test can pin
// ADC reads and telemetry timestamps to known values.
//
// Thread-safety: all methods are safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock frozen at start. Time moves only via Advance or
// Set.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the pinned instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the clock to an absolute instant.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
