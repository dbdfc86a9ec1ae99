// Package clock abstracts the wall clock so token expiry, named windows and
// retry schedules can be tested deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Real returns the system time.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// Fixed always returns the same instant.
type Fixed struct {
	T time.Time
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return f.T
}

// Func adapts a function to the Clock interface.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}

// Manual is a settable clock for tests that need time to move.
type Manual struct {
	mu sync.Mutex
	t  time.Time
}

// NewManual returns a Manual clock starting at t.
func NewManual(t time.Time) *Manual {
	return &Manual{t: t}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = m.t.Add(d)
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = t
}

// OrReal returns c, or Real when c is nil.
func OrReal(c Clock) Clock {
	if c == nil {
		return Real{}
	}
	return c
}
