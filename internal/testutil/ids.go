package testutil

import (
	"fmt"
	"sync"
)

// DeterministicIDs generates "<prefix>-0001", "<prefix>-0002", ... so
// subscription handles recorded in the journal are stable across runs.
//
// Like DeterministicClock it can be reset, and it is safe for concurrent
// use. Implements reconcile.IDGenerator.
type DeterministicIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewDeterministicIDs creates a generator. An empty prefix becomes "id".
func NewDeterministicIDs(prefix string) *DeterministicIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &DeterministicIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *DeterministicIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Issued returns how many IDs have been generated since the last Reset.
func (g *DeterministicIDs) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset restarts the sequence.
func (g *DeterministicIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
