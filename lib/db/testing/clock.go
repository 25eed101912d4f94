package testing

import (
	"sync"
	"time"
)

// ManualClock is a clock for tests that only moves when Advance is called
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock frozen at t
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now returns the current time of the clock. It can be passed wherever a
// func() time.Time is expected.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Unix returns the current time of the clock in unix seconds
func (c *ManualClock) Unix() uint64 {
	return uint64(c.Now().Unix())
}
