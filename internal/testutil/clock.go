package testutil

import (
	"sync"
	"time"
)

// Epoch is the wall time of tick zero. Fixed so run records in golden
// output never depend on when the test ran.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock is a logical clock that hands out wall times one
// second apart, starting one second after Epoch.
//
// Pass clock.Now wherever a func() time.Time is accepted
// (transpile.WithClock).
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	ticks int64
}

// NewDeterministicClock creates a new deterministic clock at tick 0.
//
// The first call to Now() returns Epoch + 1s.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Now advances the clock one tick and returns its time.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return Epoch.Add(time.Duration(c.ticks) * time.Second)
}

// Ticks returns how many times Now has been called.
func (c *DeterministicClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock to tick 0.
//
// Used for test reuse. After Reset(), Now() returns Epoch + 1s again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
