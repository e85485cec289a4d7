package clock

import (
	"sync"
	"time"

	"github.com/hospitalcare/appointments/internal/domain/providers"
)

// SystemClock reads the wall clock in a fixed location
type SystemClock struct {
	loc *time.Location
}

var _ providers.Clock = SystemClock{}

// NewSystemClock returns a clock reporting time in loc (UTC when nil)
func NewSystemClock(loc *time.Location) SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return SystemClock{loc: loc}
}

func (c SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// FixedClock is a manually advanced clock for tests and replays
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

var _ providers.Clock = (*FixedClock)(nil)

// NewFixedClock returns a clock stopped at now
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to now
func (c *FixedClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Advance moves the clock forward by d
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
