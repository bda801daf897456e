// Package testutil provides deterministic time sources and logging helpers
// shared by tests across the module.
package testutil

import "sync"

// MillisClock is a deterministic millisecond timestamp source.
//
// Each Now() returns the current value and then advances it by the step, so
// successive events get distinct, reproducible timestamps. A step of 0
// produces tied timestamps, which the log must tolerate (ordering is append
// order, never timestamp order).
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type MillisClock struct {
	mu   sync.Mutex
	now  int64
	step int64
}

// NewMillisClock creates a clock that first returns start and advances by
// step per call.
func NewMillisClock(start, step int64) *MillisClock {
	return &MillisClock{now: start, step: step}
}

// Now returns the current timestamp and advances the clock.
// Install as the log's clock: eventlog.WithClock(c.Now).
func (c *MillisClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.now
	c.now += c.step
	return ts
}

// Advance moves the clock forward by ms without producing a timestamp.
// Used to simulate idle gaps between event bursts.
func (c *MillisClock) Advance(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += ms
}

// Peek returns the timestamp the next Now() will produce.
func (c *MillisClock) Peek() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
