package testfixtures

import (
	"fmt"
	"sync/atomic"
)

// IDGenerator produces deterministic identifiers for tests.
type IDGenerator struct {
	prefix  string
	counter atomic.Uint64
}

// NewIDGenerator constructs a generator yielding "<prefix>-001", "<prefix>-002", ...
// When prefix is empty, "id" is used.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier in the sequence. Safe for concurrent use.
func (g *IDGenerator) Next() string {
	return fmt.Sprintf("%s-%03d", g.prefix, g.counter.Add(1))
}

// NextFunc exposes Next as a function suitable for dependency injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Issued reports how many identifiers have been handed out.
func (g *IDGenerator) Issued() int {
	return int(g.counter.Load())
}
