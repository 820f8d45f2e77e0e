package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manually driven time source for services and the reconciler.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock set to start, or to ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the instant the clock currently points at.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc exposes Now for injection. A nil clock falls back to time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// At sets the clock to hour:minute on the clock's current UTC date.
func (c *Clock) At(hour, minute int) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	y, m, d := c.current.UTC().Date()
	c.current = time.Date(y, m, d, hour, minute, 0, 0, time.UTC)
	return c.current
}
