package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator generates run ids "<prefix>-1", "<prefix>-2", ...
//
// Unlike engine.FixedGenerator it never runs out, and Reset lets the same
// scenario run again with identical ids.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequenceGenerator creates a generator starting at 1. An empty prefix
// defaults to "run".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "run"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next id. Implements engine.RunIDGenerator.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Current returns how many ids have been generated.
func (g *SequenceGenerator) Current() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence at 1.
func (g *SequenceGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
