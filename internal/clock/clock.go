// Package clock abstracts time retrieval so services stay deterministic in tests.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// Real returns the current UTC time.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

// Stub returns a settable time. Safe for concurrent use.
type Stub struct {
	mu  sync.Mutex
	now time.Time
}

func NewStub(t time.Time) *Stub {
	return &Stub{now: t.UTC()}
}

func (c *Stub) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Stub) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
