package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs generates run IDs "<prefix>-0001", "<prefix>-0002", ...
//
// Unlike transpile.FixedGenerator, which panics once its list is used up,
// this generator never runs out. Use it where the number of runs is not
// known up front, such as a scenario repeated for its determinism check.
//
// Thread-safety: SequentialRunIDs is safe for concurrent use.
type SequentialRunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRunIDs creates a generator. An empty prefix means "test-run".
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "test-run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// Generate returns the next run ID.
//
// Implements transpile.RunIDGenerator.
func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
