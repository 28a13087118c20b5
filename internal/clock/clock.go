// Package clock abstracts wall-clock time and blocking sleeps so the
// recording loop can be driven deterministically in tests. The recorder
// consults the clock for segment rotation decisions and for the fixed
// backoff between failed connection attempts.
package clock

import (
	"sync"
	"time"
)

// Clock is a wall-clock time source with a blocking sleep primitive.
type Clock interface {
	Now() time.Time
	// Sleep blocks the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// Real is the system clock.
type Real struct{}

// Now returns the current system time.
func (Real) Now() time.Time { return time.Now() }

// Sleep blocks for at least d.
func (Real) Sleep(d time.Duration) { time.Sleep(d) }

// Simulated is a deterministic clock for tests. Sleep advances the clock
// immediately instead of blocking, so time moves only when a caller sleeps.
type Simulated struct {
	mu  sync.Mutex
	now time.Time
}

// NewSimulated returns a Simulated clock starting at the given time.
func NewSimulated(start time.Time) *Simulated {
	return &Simulated{now: start}
}

// Now returns the simulated current time.
func (s *Simulated) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Sleep advances the simulated clock by d without blocking.
func (s *Simulated) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}
