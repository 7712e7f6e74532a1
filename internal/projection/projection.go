// Package projection compiles converters from decoded rows back to the
// caller's element type.
package projection

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/queryvals/internal/logger"
	"github.com/roach88/queryvals/internal/schema"
)

// ErrMissingAccessor is returned when the target type can receive none of
// the mapped values: no field to assign and no registered constructor.
var ErrMissingAccessor = errors.New("missing accessor")

var errorType = reflect.TypeFor[error]()

// Projector converts one row into a value of the compiled target type.
type Projector func(row *schema.Row) (reflect.Value, error)

type projectorKey struct {
	target reflect.Type
	layout *schema.Layout
}

// Compiler builds projectors and caches them per target type and layout.
type Compiler struct {
	projectors   sync.Map // projectorKey -> Projector
	constructors sync.Map // reflect.Type -> reflect.Value
	logger       logger.Logger
}

type CompilerOption func(*Compiler)

func WithLogger(l logger.Logger) CompilerOption {
	return func(c *Compiler) {
		c.logger = l
	}
}

func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{logger: logger.NewNoopLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterConstructor registers fn as the way to build values of its
// result type. fn must be a function returning T or (T, error); its
// parameters receive the mapped values in mapping order.
func (c *Compiler) RegisterConstructor(fn any) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return fmt.Errorf("register constructor: %T is not a function", fn)
	}
	ft := v.Type()
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return fmt.Errorf("register constructor: %s must return T or (T, error)", ft)
	}
	if ft.IsVariadic() {
		return fmt.Errorf("register constructor: %s is variadic", ft)
	}
	c.constructors.Store(ft.Out(0), v)
	return nil
}

// Compile returns the projector from rows of layout l to values of type t.
func (c *Compiler) Compile(t reflect.Type, l *schema.Layout) (Projector, error) {
	key := projectorKey{target: t, layout: l}
	if p, ok := c.projectors.Load(key); ok {
		return p.(Projector), nil
	}

	p, strategy, err := c.build(t, l)
	if err != nil {
		return nil, fmt.Errorf("compile projector for %s: %w", t, err)
	}

	c.projectors.Store(key, p)
	c.logger.Debug("compiled projector",
		zap.Stringer("type", t),
		zap.String("strategy", strategy))
	return p, nil
}

func (c *Compiler) build(t reflect.Type, l *schema.Layout) (Projector, string, error) {
	if l.Simple {
		p, err := simpleProjector(t, l.Slot())
		return p, "simple", err
	}

	if ctor, wrap, ok := c.constructorFor(t); ok {
		p, err := constructorProjector(ctor, wrap, l.Mappings)
		return p, "constructor", err
	}

	p, err := fieldProjector(t, l.Mappings)
	return p, "fields", err
}

// constructorFor finds a constructor for t, or for *t's element type when
// the result must be wrapped in a pointer.
func (c *Compiler) constructorFor(t reflect.Type) (reflect.Value, bool, bool) {
	if v, ok := c.constructors.Load(t); ok {
		return v.(reflect.Value), false, true
	}
	if t.Kind() == reflect.Pointer {
		if v, ok := c.constructors.Load(t.Elem()); ok {
			return v.(reflect.Value), true, true
		}
	}
	return reflect.Value{}, false, false
}

func simpleProjector(t reflect.Type, slot schema.Slot) (Projector, error) {
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if !slot.Kind.GoType().ConvertibleTo(base) {
		return nil, fmt.Errorf("%w: %s values cannot be stored in %s", ErrMissingAccessor, slot.Kind, t)
	}
	return func(row *schema.Row) (reflect.Value, error) {
		return coerce(row.Get(slot), t)
	}, nil
}

func fieldProjector(t reflect.Type, mappings []schema.PropertyMapping) (Projector, error) {
	st := t
	pointer := false
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
		pointer = true
	}
	if st.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s has no fields", ErrMissingAccessor, t)
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("%w: no mapped fields", ErrMissingAccessor)
	}

	type target struct {
		slot  schema.Slot
		index []int
		typ   reflect.Type
	}
	targets := make([]target, 0, len(mappings))
	for _, m := range mappings {
		sf, ok := st.FieldByName(m.Field.Name)
		if !ok || !sf.IsExported() {
			return nil, fmt.Errorf("%w: %s has no settable field %s", ErrMissingAccessor, t, m.Field.Name)
		}
		if !m.Kind().GoType().ConvertibleTo(deref(sf.Type)) {
			return nil, fmt.Errorf("%w: field %s of type %s cannot hold %s values",
				ErrMissingAccessor, sf.Name, sf.Type, m.Kind())
		}
		targets = append(targets, target{slot: m.Slot, index: sf.Index, typ: sf.Type})
	}

	return func(row *schema.Row) (reflect.Value, error) {
		out := reflect.New(st)
		rec := out.Elem()
		for _, tg := range targets {
			v, err := coerce(row.Get(tg.slot), tg.typ)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("slot %s: %w", tg.slot.Name(), err)
			}
			rec.FieldByIndex(tg.index).Set(v)
		}
		if pointer {
			return out, nil
		}
		return rec, nil
	}, nil
}

func constructorProjector(ctor reflect.Value, wrap bool, mappings []schema.PropertyMapping) (Projector, error) {
	ft := ctor.Type()
	if ft.NumIn() != len(mappings) {
		return nil, fmt.Errorf("%w: constructor %s takes %d parameters for %d mapped fields",
			ErrMissingAccessor, ft, ft.NumIn(), len(mappings))
	}
	for i, m := range mappings {
		if !m.Kind().GoType().ConvertibleTo(deref(ft.In(i))) {
			return nil, fmt.Errorf("%w: constructor parameter %d (%s) cannot hold %s field %s",
				ErrMissingAccessor, i, ft.In(i), m.Kind(), m.Field.Name)
		}
	}

	return func(row *schema.Row) (reflect.Value, error) {
		args := make([]reflect.Value, len(mappings))
		for i, m := range mappings {
			v, err := coerce(row.Get(m.Slot), ft.In(i))
			if err != nil {
				return reflect.Value{}, fmt.Errorf("parameter %d: %w", i, err)
			}
			args[i] = v
		}

		out := ctor.Call(args)
		if len(out) == 2 && !out[1].IsNil() {
			return reflect.Value{}, out[1].Interface().(error)
		}
		if wrap {
			p := reflect.New(out[0].Type())
			p.Elem().Set(out[0])
			return p, nil
		}
		return out[0], nil
	}, nil
}

// coerce converts a row value to t. NULL becomes the zero value of t,
// which is nil for pointers.
func coerce(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}

	base := deref(t)
	rv := reflect.ValueOf(v)
	if !rv.Type().ConvertibleTo(base) {
		return reflect.Value{}, fmt.Errorf("cannot convert %s to %s", rv.Type(), t)
	}
	rv = rv.Convert(base)
	if t.Kind() != reflect.Pointer {
		return rv, nil
	}
	p := reflect.New(base)
	p.Elem().Set(rv)
	return p, nil
}

func deref(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}
