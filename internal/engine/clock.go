package engine

import "sync/atomic"

// Clock is the monotonic logical clock ordering everything a run records.
//
// Journal steps and errors are stamped with a strictly increasing seq from
// this clock, never with wall time: wall time makes replayed traces
// incomparable, seq keeps them byte-identical. A fresh clock starts with
// every run, so step N of a recorded run always means the Nth occurrence.
//
// Thread-safety: atomic, though in practice only the loop goroutine calls
// Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0; the first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next increments the clock and returns the new sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the latest issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
