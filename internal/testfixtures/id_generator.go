package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator hands out predictable identifiers such as "booking-1".
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter uint64
}

// NewIDGenerator returns a generator for prefix, defaulting to "id".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier in the sequence.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s-%d", g.prefix, g.counter)
}

// NextFunc exposes Next for injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Reset restarts the sequence under a new prefix.
func (g *IDGenerator) Reset(prefix string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prefix != "" {
		g.prefix = prefix
	}
	g.counter = 0
}
