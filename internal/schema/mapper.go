package schema

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/queryvals/internal/kind"
	"github.com/roach88/queryvals/internal/logger"
)

// Mapper resolves element types to layouts and memoizes the result per
// type for the life of the Mapper. Concurrent callers may race to build
// the same layout; the last store wins and both results are equivalent.
type Mapper struct {
	layouts sync.Map // reflect.Type -> *Layout
	logger  logger.Logger
}

type MapperOption func(*Mapper)

func WithLogger(l logger.Logger) MapperOption {
	return func(m *Mapper) {
		m.logger = l
	}
}

func NewMapper(opts ...MapperOption) *Mapper {
	m := &Mapper{logger: logger.NewNoopLogger()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Map returns the layout for element type t.
//
// A type that normalizes to a kind takes the simple path. A struct (or a
// pointer to one) takes the record path: each exported field, in
// declaration order, claims the next free slot of its kind. Fields tagged
// `qv:"-"` are ignored.
func (m *Mapper) Map(t reflect.Type) (*Layout, error) {
	if v, ok := m.layouts.Load(t); ok {
		return v.(*Layout), nil
	}

	l, err := buildLayout(t)
	if err != nil {
		return nil, err
	}

	m.layouts.Store(t, l)
	m.logger.Debug("mapped element type",
		zap.Stringer("type", t),
		zap.Bool("simple", l.Simple),
		zap.Int("fields", len(l.Mappings)))
	return l, nil
}

func buildLayout(t reflect.Type) (*Layout, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrUnsupportedKind)
	}

	if k, _, ok := kind.Of(t); ok {
		return &Layout{
			Type:   t,
			Simple: true,
			Kind:   k,
			get:    kind.GetterFor(k, t),
		}, nil
	}

	st := t
	elemPointer := false
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
		elemPointer = true
	}
	if st.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: element type %s", ErrUnsupportedKind, t)
	}

	mappings, err := mapFields(st)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", t, err)
	}

	return &Layout{
		Type:        t,
		Mappings:    mappings,
		elemPointer: elemPointer,
	}, nil
}

func mapFields(st reflect.Type) ([]PropertyMapping, error) {
	var next [kind.Count]int
	var mappings []PropertyMapping

	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		if !sf.IsExported() || sf.Tag.Get("qv") == "-" {
			continue
		}

		k, _, ok := kind.Of(sf.Type)
		if !ok {
			return nil, fmt.Errorf("%w: field %s has type %s", ErrUnsupportedKind, sf.Name, sf.Type)
		}
		if next[k] == SlotsPerKind {
			return nil, fmt.Errorf("%w: field %s is the %dth %s field (limit %d)",
				ErrSlotPoolExhausted, sf.Name, SlotsPerKind+1, k, SlotsPerKind)
		}

		mappings = append(mappings, PropertyMapping{
			Field: Field{
				Name:  sf.Name,
				Index: sf.Index,
				Type:  sf.Type,
			},
			Slot: Slot{Kind: k, Index: next[k]},
			Get:  kind.GetterFor(k, sf.Type),
		})
		next[k]++
	}
	return mappings, nil
}
