// Package clock abstracts the wall clock so that windowed queries, cooldowns
// and expiry checks can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Clock is an interface to abstract time-related functions.
type Clock interface {
	Now() time.Time
}

// Real implements Clock using the actual time.
type Real struct{}

// Now returns the current time in UTC.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Mock implements Clock for testing purposes. It is safe for concurrent use.
type Mock struct {
	mu      sync.Mutex
	current time.Time
}

// NewMock returns a Mock clock frozen at t.
func NewMock(t time.Time) *Mock {
	return &Mock{current: t}
}

// Now returns the mocked current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Advance moves the current time forward by the specified duration.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.current = m.current.Add(d)
	m.mu.Unlock()
}

// Set moves the clock to t.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	m.current = t
	m.mu.Unlock()
}
