// Package deferred holds a caller's sequence until execution time and
// derives the payload and the element count from one pass over it.
package deferred

import (
	"fmt"
	"iter"
	"strings"

	"github.com/roach88/queryvals/internal/config"
)

// Policy decides whether each execution re-reads the source.
type Policy uint8

const (
	// PerExecution enumerates the source again on every Begin.
	PerExecution Policy = iota
	// Once enumerates on the first execution and reuses that snapshot.
	Once
)

func (p Policy) String() string {
	switch p {
	case PerExecution:
		return config.EnumeratePerExecution
	case Once:
		return config.EnumerateOnce
	}
	return fmt.Sprintf("policy(%d)", uint8(p))
}

// ParsePolicy maps the enumeration configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", config.EnumeratePerExecution:
		return PerExecution, nil
	case config.EnumerateOnce:
		return Once, nil
	}
	return 0, fmt.Errorf("unknown enumeration policy %q", s)
}

// Encoder serializes seq and reports how many elements it retained.
type Encoder[T any] func(seq iter.Seq[T]) (payload string, count int, err error)

type snapshot struct {
	payload string
	count   int
	err     error
}

// Handle defers enumeration of a source until an execution asks for the
// payload or the count. Creating a Handle never touches the source.
//
// A Handle may back any number of sequential executions but must not be
// used by concurrent ones.
type Handle[T any] struct {
	src    Source[T]
	encode Encoder[T]
	policy Policy

	// first is the Once policy's reused snapshot.
	first *snapshot
}

func New[T any](src Source[T], encode Encoder[T], policy Policy) *Handle[T] {
	return &Handle[T]{
		src:    src,
		encode: encode,
		policy: policy,
	}
}

func (h *Handle[T]) Policy() Policy {
	return h.policy
}

// Begin starts one physical execution.
func (h *Handle[T]) Begin() *Execution[T] {
	e := &Execution[T]{h: h}
	if h.policy == Once && h.first != nil {
		e.snap = h.first
	}
	return e
}

// Execution is the state of one physical execution. Payload and Count
// share a single pass over the source.
type Execution[T any] struct {
	h    *Handle[T]
	snap *snapshot
}

// Payload returns the encoded sequence, enumerating the source if this
// execution has not done so yet.
func (e *Execution[T]) Payload() (string, error) {
	s := e.run()
	return s.payload, s.err
}

// Count returns the number of retained elements. When the pass has not
// run yet and the source knows its length, that length is returned
// without enumerating; it counts elements, including ones the encoder
// would skip, so it never understates the payload.
func (e *Execution[T]) Count() (int, error) {
	if e.snap == nil && e.h.policy == PerExecution {
		if c, ok := e.h.src.(Counted); ok {
			return c.Len(), nil
		}
	}
	s := e.run()
	return s.count, s.err
}

// Enumerated reports whether this execution has already read the source.
func (e *Execution[T]) Enumerated() bool {
	return e.snap != nil
}

func (e *Execution[T]) run() *snapshot {
	if e.snap != nil {
		return e.snap
	}

	s := &snapshot{}
	s.payload, s.count, s.err = e.h.encode(e.h.src.All())
	e.snap = s
	if e.h.policy == Once && s.err == nil {
		e.h.first = s
	}
	return s
}
