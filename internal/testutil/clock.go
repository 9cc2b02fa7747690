package testutil

import (
	"fmt"
	"sync"
	"time"
)

// StubClock is a manual clock. When step is non-zero every Now call moves
// it forward by step, which gives recorded runs a measurable duration.
// Safe for concurrent use.
type StubClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStubClock creates a StubClock at start that advances step per reading.
func NewStubClock(start time.Time, step time.Duration) *StubClock {
	return &StubClock{now: start, step: step}
}

// FixedClock returns a StubClock frozen at 2026-03-01 09:00:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), 0)
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

// StubIDGenerator hands out "<prefix>-1", "<prefix>-2", ...
type StubIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewStubIDGenerator returns a generator with prefix "op".
func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{prefix: "op"}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
