package queryvals

import (
	"fmt"
	"iter"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/queryvals/internal/codec"
	"github.com/roach88/queryvals/internal/config"
	"github.com/roach88/queryvals/internal/deferred"
	"github.com/roach88/queryvals/internal/kind"
	"github.com/roach88/queryvals/internal/logger"
	"github.com/roach88/queryvals/internal/projection"
	"github.com/roach88/queryvals/internal/schema"
	"github.com/roach88/queryvals/internal/sqltext"
)

// Composer turns sequences into queries. Its mapping, statement and
// projector caches are shared by every query it composes and are safe for
// concurrent use. The caches are scoped to the Composer, not the process:
// a program that wants one process-wide cache keeps one Composer per
// configuration, since the configuration is part of every cached statement.
type Composer struct {
	cfg    config.Config
	logger logger.Logger

	mapper     *schema.Mapper
	generator  *sqltext.Generator
	projectors *projection.Compiler
}

type Option func(*Composer)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Composer) {
		c.cfg = cfg
	}
}

// WithCapability sets the token stream capability detected for the engine.
func WithCapability(capability Capability) Option {
	return func(c *Composer) {
		c.cfg.TokenStream = string(capability)
	}
}

// WithDialect selects the SQL dialect by name ("sqlserver" or "sqlite").
func WithDialect(name string) Option {
	return func(c *Composer) {
		c.cfg.Dialect = name
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Composer) {
		c.logger = l
	}
}

// New creates a Composer. The configuration is validated by Compose, so
// that an invalid setting surfaces at the call that depends on it.
func New(opts ...Option) *Composer {
	c := &Composer{
		cfg:    config.Default(),
		logger: logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.mapper = schema.NewMapper(schema.WithLogger(c.logger))
	c.generator = sqltext.NewGenerator(
		sqltext.WithCache(sqltext.NewCache(c.cfg.StatementCacheSize)),
		sqltext.WithLogger(c.logger),
	)
	c.projectors = projection.NewCompiler(projection.WithLogger(c.logger))
	return c
}

// Config returns the composer's configuration.
func (c *Composer) Config() Config {
	return c.cfg
}

// RegisterConstructor registers fn for building result values of its
// return type, for element types without settable fields. See
// projection.Compiler.RegisterConstructor.
func (c *Composer) RegisterConstructor(fn any) error {
	return c.projectors.RegisterConstructor(fn)
}

// Close releases the statement cache.
func (c *Composer) Close() {
	c.generator.Close()
}

// Compose maps T, generates the statement and wraps src in a deferred
// handle. Nothing is enumerated. Mapping and configuration errors are
// returned here.
func Compose[T any](c *Composer, src Source[T]) (*Query[T], error) {
	return compose(c, reflect.TypeFor[T](), src,
		func(v *T) reflect.Value { return reflect.ValueOf(v).Elem() },
		func(v reflect.Value) T { return v.Interface().(T) },
	)
}

// ComposeValues composes a sequence whose element type is only known at
// run time. Every element must be a value of type t.
func ComposeValues(c *Composer, t reflect.Type, src Source[reflect.Value]) (*Query[reflect.Value], error) {
	return compose(c, t, src,
		func(v *reflect.Value) reflect.Value { return *v },
		func(v reflect.Value) reflect.Value { return v },
	)
}

func compose[T any](
	c *Composer,
	t reflect.Type,
	src Source[T],
	toValue func(*T) reflect.Value,
	fromValue func(reflect.Value) T,
) (*Query[T], error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	dialect, err := sqltext.ParseDialect(c.cfg.Dialect)
	if err != nil {
		return nil, err
	}
	policy, err := deferred.ParsePolicy(c.cfg.Enumeration)
	if err != nil {
		return nil, err
	}

	layout, err := c.mapper.Map(t)
	if err != nil {
		return nil, err
	}
	cols, err := schema.Columns(layout, c.cfg)
	if err != nil {
		return nil, err
	}
	project, err := c.projectors.Compile(t, layout)
	if err != nil {
		return nil, err
	}

	format := selectFormat(c.cfg.TokenStream, dialect)
	st, err := c.generator.Generate(sqltext.Request{
		Dialect:        dialect,
		Format:         format,
		Simple:         layout.Simple,
		Columns:        cols,
		UseCount:       c.cfg.UseRowBoundHint,
		UnicodePayload: unicodePayload(c.cfg, cols),
	})
	if err != nil {
		return nil, err
	}

	encode := func(seq iter.Seq[T]) (string, int, error) {
		values := func(yield func(reflect.Value) bool) {
			for v := range seq {
				if !yield(toValue(&v)) {
					return
				}
			}
		}
		var b strings.Builder
		n, err := codec.Encode(&b, format, layout, cols, values)
		if err != nil {
			return "", n, fmt.Errorf("encode %s payload: %w", format, err)
		}
		return b.String(), n, nil
	}

	handle := deferred.New(src, encode, policy)
	return &Query[T]{
		statement: st,
		handle:    handle,
		project:   project,
		fromValue: fromValue,
		logger: c.logger.With(
			zap.Stringer("type", t),
			zap.Stringer("format", format),
			zap.Stringer("enumeration", handle.Policy()),
		),
	}, nil
}

// selectFormat applies the capability input. SQLite always has its JSON
// functions, so an unknown capability there means the token stream.
func selectFormat(capability string, d sqltext.Dialect) codec.Format {
	if d == sqltext.SQLite && capability != config.TokenStreamOff {
		return codec.TokenStream
	}
	return codec.Select(capability)
}

// unicodePayload reports whether the payload parameter must be unicode
// text: when any text column is unicode, or by default when there are none.
func unicodePayload(cfg config.Config, cols []schema.Column) bool {
	hasText := false
	for _, col := range cols {
		if col.Kind == kind.String || col.Kind == kind.Char {
			hasText = true
			if col.Unicode {
				return true
			}
		}
	}
	if hasText {
		return false
	}
	return cfg.DefaultTextIsUnicode
}
