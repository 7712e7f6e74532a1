package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/roach88/queryvals/internal/config"
	"github.com/roach88/queryvals/internal/kind"
)

// SlotsPerKind is the number of pre-declared columns per kind in the
// generic schema.
const SlotsPerKind = 10

const (
	// IndexColumn holds the zero-based position of a retained element.
	IndexColumn = "X"
	// ValueColumn holds the element itself on the simple path.
	ValueColumn = "V"
)

var (
	ErrUnsupportedKind   = errors.New("unsupported kind")
	ErrSlotPoolExhausted = errors.New("slot pool exhausted")
)

// Slot is one pre-declared column of the generic schema.
type Slot struct {
	Kind  kind.Kind
	Index int
}

var slotNames = func() [kind.Count][SlotsPerKind]string {
	var names [kind.Count][SlotsPerKind]string
	for _, k := range kind.All() {
		for i := range SlotsPerKind {
			names[k][i] = k.Prefix() + strconv.Itoa(i)
		}
	}
	return names
}()

// Name returns the canonical column name of s, e.g. "I3" for Int32 slot 3.
func (s Slot) Name() string {
	return slotNames[s.Kind][s.Index]
}

// Row is one decoded result row. Values is an arena indexed by kind and
// slot: nil is NULL, anything else has the canonical Go type of its kind.
// The simple path stores its value in slot 0 of its kind.
type Row struct {
	Index  int
	Values [kind.Count][SlotsPerKind]any
}

// Get returns the value stored in slot s.
func (r *Row) Get(s Slot) any {
	return r.Values[s.Kind][s.Index]
}

// Set stores v in slot s.
func (r *Row) Set(s Slot, v any) {
	r.Values[s.Kind][s.Index] = v
}

// Field describes one readable field of a record shape.
type Field struct {
	Name  string
	Index []int
	Type  reflect.Type
}

// PropertyMapping pairs a source field with the slot that carries it.
type PropertyMapping struct {
	Field Field
	Slot  Slot
	Get   kind.Getter
}

// Kind is the normalized kind of the mapped field.
func (m PropertyMapping) Kind() kind.Kind {
	return m.Slot.Kind
}

// Layout is the resolved shape of a sequence element type. It is immutable.
type Layout struct {
	Type   reflect.Type
	Simple bool

	// Kind and get are set on the simple path.
	Kind kind.Kind
	get  kind.Getter

	// Mappings is set on the record path, in field declaration order.
	Mappings []PropertyMapping

	// elemPointer is set when record elements are pointers to structs.
	elemPointer bool
}

// Slot returns the single slot used by the simple path.
func (l *Layout) Slot() Slot {
	return Slot{Kind: l.Kind}
}

// Value reads the simple-path value of element v.
func (l *Layout) Value(v reflect.Value) (any, bool) {
	return l.get(v)
}

// Record returns the struct value behind element v. It returns false for
// a nil pointer element, which is skipped like a NULL scalar.
func (l *Layout) Record(v reflect.Value) (reflect.Value, bool) {
	if l.elemPointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		return v.Elem(), true
	}
	return v, true
}

// Column describes one column of the generated result set.
type Column struct {
	Name    string
	Kind    kind.Kind
	Slot    Slot
	Field   string
	Scale   int
	Unicode bool
	Index   bool
}

// Columns resolves the output columns for l under cfg: the index column
// first, then the value column (simple path) or one column per mapped slot.
func Columns(l *Layout, cfg config.Config) ([]Column, error) {
	cols := make([]Column, 0, len(l.Mappings)+2)
	cols = append(cols, Column{Name: IndexColumn, Kind: kind.Int32, Index: true})

	if l.Simple {
		col, err := column(ValueColumn, l.Slot(), "", cfg)
		if err != nil {
			return nil, err
		}
		return append(cols, col), nil
	}

	for _, m := range l.Mappings {
		col, err := column(m.Slot.Name(), m.Slot, m.Field.Name, cfg)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func column(name string, slot Slot, field string, cfg config.Config) (Column, error) {
	col := Column{
		Name:  name,
		Kind:  slot.Kind,
		Slot:  slot,
		Field: field,
	}
	switch slot.Kind {
	case kind.Decimal:
		col.Scale = cfg.ScaleFor(field)
		if col.Scale < 0 || col.Scale > config.MaxDecimalScale {
			return Column{}, fmt.Errorf("%w: %d for field %q", config.ErrInvalidScale, col.Scale, field)
		}
	case kind.String, kind.Char:
		col.Unicode = cfg.UnicodeFor(field)
	}
	return col, nil
}
