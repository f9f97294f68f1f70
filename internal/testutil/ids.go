package testutil

import (
	"fmt"
	"sync/atomic"
)

// FixedIDGenerator generates the same statement id every time.
//
// This enables deterministic log output and golden snapshot comparison.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a new fixed id generator.
//
// If id is empty, Generate() returns "test-stmt-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-stmt-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
//
// Implements sql.IDGenerator interface.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

// SequenceIDGenerator generates "<prefix>-1", "<prefix>-2", ... so repeated
// scenario runs log identical statement ids. Safe for concurrent use.
type SequenceIDGenerator struct {
	prefix string
	seq    atomic.Int64
}

// NewSequenceIDGenerator creates a generator numbering from 1.
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	return &SequenceIDGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceIDGenerator) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.seq.Add(1))
}

// Reset restarts numbering at 1.
func (g *SequenceIDGenerator) Reset() {
	g.seq.Store(0)
}
