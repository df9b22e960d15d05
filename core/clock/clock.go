package clock

import (
	"sync"
	"time"
)

// Clock abstracts the current time and the zone it is reported in.
type Clock interface {
	// Now returns the current instant.
	Now() time.Time
	// Location returns the zone naive values are expressed in.
	Location() *time.Location
}

// Real returns a Clock backed by the standard time package reporting in loc.
// A nil loc means UTC.
func Real(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return realClock{loc: loc}
}

type realClock struct{ loc *time.Location }

func (realClock) Now() time.Time { return time.Now() }

func (c realClock) Location() *time.Location { return c.loc }

// Fake returns a FakeClock frozen at initial. Time moves only via Set or Advance.
func Fake(initial time.Time, loc *time.Location) *FakeClock {
	if loc == nil {
		loc = time.UTC
	}
	return &FakeClock{current: initial, loc: loc}
}

// FakeClock is a deterministic Clock for tests. Safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	loc     *time.Location
}

// Now returns the current fake instant.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Location returns the configured zone.
func (c *FakeClock) Location() *time.Location { return c.loc }

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}
