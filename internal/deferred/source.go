package deferred

import "iter"

// Source is a caller's sequence, held by reference. All starts a fresh
// enumeration every time it is called.
type Source[T any] interface {
	All() iter.Seq[T]
}

// Counted is implemented by sources that know their length without
// enumerating.
type Counted interface {
	Len() int
}

type sliceSource[T any] struct {
	p *[]T
}

// FromSlice wraps the slice behind p. Every pass reads *p at that moment,
// so appends and replacements made between executions are observed.
func FromSlice[T any](p *[]T) Source[T] {
	return sliceSource[T]{p: p}
}

func (s sliceSource[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, v := range *s.p {
			if !yield(v) {
				return
			}
		}
	}
}

func (s sliceSource[T]) Len() int {
	return len(*s.p)
}

type seqSource[T any] struct {
	seq iter.Seq[T]
}

// FromSeq wraps an iterator. Whether a second pass sees the same elements
// is up to the iterator.
func FromSeq[T any](seq iter.Seq[T]) Source[T] {
	return seqSource[T]{seq: seq}
}

func (s seqSource[T]) All() iter.Seq[T] {
	return s.seq
}

type funcSource[T any] struct {
	f func() iter.Seq[T]
}

// FromFunc calls f once per pass to obtain a new iterator.
func FromFunc[T any](f func() iter.Seq[T]) Source[T] {
	return funcSource[T]{f: f}
}

func (s funcSource[T]) All() iter.Seq[T] {
	return s.f()
}
