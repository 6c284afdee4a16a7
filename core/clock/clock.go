// Package clock supplies the logical time read by the campaign ledger.
package clock

import (
	"errors"
	"sync"
	"time"
)

// ErrBackwards is returned when a manual clock would move into the past.
var ErrBackwards = errors.New("clock: time cannot move backwards")

// Clock reports the current time as unix seconds.
type Clock interface {
	Now() int64
}

// System reads the wall clock.
type System struct{}

// Now implements Clock.
func (System) Now() int64 { return time.Now().Unix() }

// Manual is a controllable, non-decreasing clock used by tests and by dev
// nodes that expose time travel.
type Manual struct {
	mu  sync.Mutex
	now int64
}

// NewManual returns a manual clock starting at start.
func NewManual(start int64) *Manual {
	return &Manual{now: start}
}

// Now implements Clock.
func (m *Manual) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// After returns the reading d past the current time without moving the clock.
func (m *Manual) After(d time.Duration) (int64, error) {
	if d < 0 {
		return 0, ErrBackwards
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now + int64(d/time.Second), nil
}

// Set moves the clock to ts, which must not be earlier than the current time.
func (m *Manual) Set(ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts < m.now {
		return ErrBackwards
	}
	m.now = ts
	return nil
}
