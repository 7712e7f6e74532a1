// Package queryvals composes an in-memory sequence into a query that a
// relational engine executes as a table-shaped row source.
//
// The sequence is encoded into one text payload (XML markup or a JSON
// token stream) and paired with generated SQL that parses the payload
// back into typed columns. Encoding is deferred until the query runs, and
// rows are projected back onto the caller's element type.
package queryvals

import (
	"iter"

	"github.com/roach88/queryvals/internal/codec"
	"github.com/roach88/queryvals/internal/config"
	"github.com/roach88/queryvals/internal/deferred"
	"github.com/roach88/queryvals/internal/kind"
	"github.com/roach88/queryvals/internal/projection"
	"github.com/roach88/queryvals/internal/schema"
	"github.com/roach88/queryvals/internal/sink"
	"github.com/roach88/queryvals/internal/sqltext"
)

type (
	Config    = config.Config
	Sink      = sink.Sink
	Statement = sqltext.Statement
	Param     = sqltext.Param
	Row       = schema.Row
	Char      = kind.Rune
	Format    = codec.Format

	Source[T any] = deferred.Source[T]
)

var (
	ErrUnsupportedKind   = schema.ErrUnsupportedKind
	ErrSlotPoolExhausted = schema.ErrSlotPoolExhausted
	ErrInvalidScale      = config.ErrInvalidScale
	ErrMissingAccessor   = projection.ErrMissingAccessor
	ErrFormatUnsupported = sqltext.ErrFormatUnsupported
	ErrNonFiniteFloat    = codec.ErrNonFiniteFloat
	ErrInvalidDateTime   = codec.ErrInvalidDateTime
)

// Capability tells the composer whether the engine can parse the token
// stream format. It is detected by the caller.
type Capability string

const (
	// CapabilityAuto means unknown; the markup format is used.
	CapabilityAuto        Capability = config.TokenStreamAuto
	CapabilityMarkup      Capability = config.TokenStreamOff
	CapabilityTokenStream Capability = config.TokenStreamOn
)

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return config.Default()
}

// FromSlice defers a slice held by reference; executions observe changes
// made to *p between them.
func FromSlice[T any](p *[]T) Source[T] {
	return deferred.FromSlice(p)
}

// FromSeq defers an iterator.
func FromSeq[T any](seq iter.Seq[T]) Source[T] {
	return deferred.FromSeq(seq)
}

// FromFunc defers a function that starts a new iterator per execution.
func FromFunc[T any](f func() iter.Seq[T]) Source[T] {
	return deferred.FromFunc(f)
}
