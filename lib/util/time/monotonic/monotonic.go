package monotonic

import (
	"sync"
	"time"
)

// Source is anything that can tell the time.
type Source interface {
	Now() time.Time
}

// Clock is the system clock adjusted by an NTP offset.
type Clock struct {
	mu     sync.RWMutex
	offset time.Duration
}

// NewClock creates a Clock with zero offset.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current time adjusted by the NTP offset.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	offset := c.offset
	c.mu.RUnlock()
	return time.Now().Add(offset)
}

// SetOffset updates the NTP offset.
func (c *Clock) SetOffset(offset time.Duration) {
	c.mu.Lock()
	c.offset = offset
	c.mu.Unlock()
}

// Offset returns the current NTP offset.
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// ManualClock only moves when told to. Tests use it to step across
// lifetimes and build deadlines deterministically.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock starts a ManualClock at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (m *ManualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *ManualClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set jumps the clock to t.
func (m *ManualClock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// ExpiredAt reports whether something started at start with the given
// lifetime has expired at now.
func ExpiredAt(start time.Time, lifetime time.Duration, now time.Time) bool {
	return !now.Before(start.Add(lifetime))
}

// Remaining is the time left before ExpiredAt becomes true, never negative.
func Remaining(start time.Time, lifetime time.Duration, now time.Time) time.Duration {
	left := start.Add(lifetime).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
