package testutil

import (
	"iter"
	"sync"
)

// PassCounter counts how many times a sequence has been enumerated.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type PassCounter struct {
	mu     sync.Mutex
	passes int
	yields int
}

// Passes returns the number of enumerations started so far.
func (c *PassCounter) Passes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.passes
}

// Yields returns the number of elements produced across all passes.
func (c *PassCounter) Yields() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.yields
}

// Reset zeroes both counters.
func (c *PassCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passes = 0
	c.yields = 0
}

func (c *PassCounter) startPass() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passes++
}

func (c *PassCounter) yielded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.yields++
}

// Counting wraps seq so every enumeration is recorded in c.
func Counting[T any](c *PassCounter, seq iter.Seq[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		c.startPass()
		for v := range seq {
			c.yielded()
			if !yield(v) {
				return
			}
		}
	}
}

// ShrinkingGenerator is a live generator that yields one element fewer on
// every pass: 0..n-1, then 0..n-2, and so on down to nothing. It models a
// non-idempotent source whose count cannot be known without enumerating.
type ShrinkingGenerator struct {
	PassCounter

	mu   sync.Mutex
	next int
}

// NewShrinkingGenerator creates a generator whose first pass yields n elements.
func NewShrinkingGenerator(n int) *ShrinkingGenerator {
	return &ShrinkingGenerator{next: n}
}

// Seq starts a new pass.
func (g *ShrinkingGenerator) Seq() iter.Seq[int32] {
	return func(yield func(int32) bool) {
		g.mu.Lock()
		n := g.next
		if g.next > 0 {
			g.next--
		}
		g.mu.Unlock()

		g.startPass()
		for i := range n {
			g.yielded()
			if !yield(int32(i)) {
				return
			}
		}
	}
}
