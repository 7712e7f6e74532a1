// Package codec serializes a sequence into the single text payload a
// remote engine parses into rows, and decodes such payloads back the way
// the engine would.
//
// Two formats exist. Markup is an XML document, accepted by every engine
// this module targets. TokenStream is a JSON array, smaller and faster to
// parse, but only usable when the engine supports structured-token parsing.
// Choosing between them is the caller's job; see Select.
package codec

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"reflect"

	"github.com/roach88/queryvals/internal/config"
	"github.com/roach88/queryvals/internal/kind"
	"github.com/roach88/queryvals/internal/schema"
)

// Format identifies a payload encoding.
type Format uint8

const (
	Markup Format = iota
	TokenStream
)

func (f Format) String() string {
	switch f {
	case Markup:
		return "markup"
	case TokenStream:
		return "token-stream"
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// ErrNonFiniteFloat is returned by the token-stream codec for infinities
// and NaN, which the token format cannot represent.
var ErrNonFiniteFloat = errors.New("non-finite float")

// ErrInvalidDateTime is returned for dates the engine's date types cannot
// hold: years outside 1..9999 and non-zero invalid civil values.
var ErrInvalidDateTime = errors.New("invalid datetime")

// Select picks the payload format for a token_stream capability value.
// Anything but an explicit "on" falls back to Markup.
func Select(capability string) Format {
	if capability == config.TokenStreamOn {
		return TokenStream
	}
	return Markup
}

// Writer is the destination of an encoded payload.
type Writer interface {
	io.Writer
	io.StringWriter
	io.ByteWriter
}

// field is one output member of the encoding plan, resolved once per
// Encode call so the per-element loop does no kind dispatch.
type field struct {
	name   string
	index  []int
	get    kind.Getter
	scale  int
	format valueFormatter
}

type valueFormatter func(dst []byte, v any, scale int) ([]byte, error)

type plan struct {
	layout *schema.Layout
	fields []field
}

func newPlan(f Format, l *schema.Layout, cols []schema.Column) (*plan, error) {
	p := &plan{layout: l}

	byName := make(map[string]schema.Column, len(cols))
	for _, c := range cols {
		byName[c.Name] = c
	}

	if l.Simple {
		col, ok := byName[schema.ValueColumn]
		if !ok {
			return nil, fmt.Errorf("encode %s: missing %s column", f, schema.ValueColumn)
		}
		p.fields = []field{{
			name:   schema.ValueColumn,
			get:    l.Value,
			scale:  col.Scale,
			format: contentFormatterFor(f, l.Kind),
		}}
		return p, nil
	}

	for _, m := range l.Mappings {
		name := m.Slot.Name()
		col, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("encode %s: missing column %s for field %s", f, name, m.Field.Name)
		}
		p.fields = append(p.fields, field{
			name:   name,
			index:  m.Field.Index,
			get:    m.Get,
			scale:  col.Scale,
			format: formatterFor(f, m.Kind()),
		})
	}
	return p, nil
}

// Encode writes the payload for seq to w and returns the number of
// elements retained. NULL simple-path elements and nil record pointers are
// skipped, so the count can be lower than the number of elements seen.
func Encode(w Writer, f Format, l *schema.Layout, cols []schema.Column, seq iter.Seq[reflect.Value]) (int, error) {
	p, err := newPlan(f, l, cols)
	if err != nil {
		return 0, err
	}

	switch f {
	case Markup:
		return encodeMarkup(w, p, seq)
	case TokenStream:
		return encodeTokens(w, p, seq)
	}
	return 0, fmt.Errorf("encode: unknown format %s", f)
}
