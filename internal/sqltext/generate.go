package sqltext

import (
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/roach88/queryvals/internal/codec"
	"github.com/roach88/queryvals/internal/config"
	"github.com/roach88/queryvals/internal/kind"
	"github.com/roach88/queryvals/internal/logger"
	"github.com/roach88/queryvals/internal/schema"
)

// Request describes the statement to generate.
type Request struct {
	Dialect Dialect
	Format  codec.Format
	Simple  bool
	Columns []schema.Column

	// UseCount asks for the row-bound hint. It is ignored by dialects that
	// cannot carry one.
	UseCount bool
	// UnicodePayload types the payload parameter as unicode text.
	UnicodePayload bool
}

func (r Request) key() string {
	var b strings.Builder
	b.WriteString(r.Dialect.String())
	b.WriteByte('|')
	b.WriteString(r.Format.String())
	if r.Simple {
		b.WriteString("|simple")
	} else {
		b.WriteString("|record")
	}
	for _, col := range r.Columns {
		b.WriteByte('|')
		b.WriteString(col.Name)
		b.WriteByte(':')
		b.WriteString(col.Kind.String())
		switch col.Kind {
		case kind.Decimal:
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(col.Scale))
		case kind.String, kind.Char:
			b.WriteByte(':')
			b.WriteString(strconv.FormatBool(col.Unicode))
		}
	}
	fmt.Fprintf(&b, "|count=%t|unicode=%t", r.UseCount, r.UnicodePayload)
	return b.String()
}

// Generator builds parse-description SQL and caches it by request shape.
type Generator struct {
	cache  Cache
	logger logger.Logger
}

type GeneratorOption func(*Generator)

func WithCache(c Cache) GeneratorOption {
	return func(g *Generator) {
		g.cache = c
	}
}

func WithLogger(l logger.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = l
	}
}

func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		cache:  NewMapCache(),
		logger: logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the statement for req, building it on a cache miss.
//
// Every statement orders its rows by the index column. Decimal scales are
// validated before any text is built.
func (g *Generator) Generate(req Request) (*Statement, error) {
	if !req.Dialect.Supports(req.Format) {
		return nil, fmt.Errorf("%w: %s cannot parse %s payloads", ErrFormatUnsupported, req.Dialect, req.Format)
	}
	if len(req.Columns) < 2 || !req.Columns[0].Index {
		return nil, fmt.Errorf("generate: columns must start with the index column")
	}
	for _, col := range req.Columns {
		if col.Kind == kind.Decimal && (col.Scale < 0 || col.Scale > config.MaxDecimalScale) {
			return nil, fmt.Errorf("%w: %d for column %s", config.ErrInvalidScale, col.Scale, col.Name)
		}
	}
	if !req.Dialect.SupportsRowBound() {
		req.UseCount = false
	}

	key := req.key()
	if st, ok := g.cache.Get(key); ok {
		return st, nil
	}

	text, err := build(req)
	if err != nil {
		return nil, fmt.Errorf("generate %s/%s: %w", req.Dialect, req.Format, err)
	}

	payloadType := ParamText
	if req.UnicodePayload {
		payloadType = ParamUnicodeText
	}
	st := &Statement{
		SQL:         text,
		Dialect:     req.Dialect,
		Format:      req.Format,
		Simple:      req.Simple,
		Columns:     req.Columns,
		UsesCount:   req.UseCount,
		PayloadType: payloadType,
	}
	g.cache.Set(key, st)

	g.logger.Debug("generated statement",
		zap.Stringer("dialect", req.Dialect),
		zap.Stringer("format", req.Format),
		zap.Int("columns", len(req.Columns)),
		zap.Bool("row_bound", req.UseCount))
	return st, nil
}

// Close releases the statement cache.
func (g *Generator) Close() {
	g.cache.Close()
}

func build(req Request) (string, error) {
	switch {
	case req.Dialect == SQLServer && req.Format == codec.Markup:
		return sqlServerMarkup(req)
	case req.Dialect == SQLServer && req.Format == codec.TokenStream:
		return sqlServerTokens(req)
	case req.Dialect == SQLite && req.Format == codec.TokenStream:
		return sqliteTokens(req)
	}
	return "", ErrFormatUnsupported
}

// sqlServerMarkup shreds the markup payload with the xml type's nodes()
// method, one value() call per column.
func sqlServerMarkup(req Request) (string, error) {
	shred := make([]string, 0, len(req.Columns))
	for _, col := range req.Columns {
		path := "@" + col.Name
		if col.Name == schema.ValueColumn {
			path = "."
		}
		shred = append(shred, fmt.Sprintf("I.value('%s', '%s') AS [%s]", path, sqlServerType(col), col.Name))
	}

	parse := sq.Select(shred...).
		From("(SELECT CAST(@p0 AS xml) AS [D]) AS P CROSS APPLY P.[D].nodes('/R/V') AS N(I)")

	q := sq.Select(bracketed(req.Columns)...).
		FromSelect(parse, "Q").
		OrderBy("[" + schema.IndexColumn + "]")
	if req.UseCount {
		q = q.Options("TOP (@p1)")
	}

	text, _, err := q.ToSql()
	return text, err
}

// sqlServerTokens reads the token payload with OPENJSON and an explicit
// schema.
func sqlServerTokens(req Request) (string, error) {
	defs := make([]string, 0, len(req.Columns))
	for _, col := range req.Columns {
		defs = append(defs, fmt.Sprintf("[%s] %s '$.%s'", col.Name, sqlServerType(col), col.Name))
	}

	q := sq.Select(bracketed(req.Columns)...).
		From("OPENJSON(@p0) WITH (" + strings.Join(defs, ", ") + ") AS J").
		OrderBy("[" + schema.IndexColumn + "]")
	if req.UseCount {
		q = q.Options("TOP (@p1)")
	}

	text, _, err := q.ToSql()
	return text, err
}

// sqliteTokens reads the token payload with json_each. The payload is
// bound as ?1.
func sqliteTokens(req Request) (string, error) {
	cols := make([]string, 0, len(req.Columns))
	for _, col := range req.Columns {
		cols = append(cols, fmt.Sprintf(`%s AS "%s"`, sqliteExpr(col), col.Name))
	}

	text, _, err := sq.Select(cols...).
		From("json_each(?1) AS j").
		OrderBy(`"` + schema.IndexColumn + `"`).
		ToSql()
	return text, err
}

func bracketed(cols []schema.Column) []string {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = "[" + col.Name + "]"
	}
	return names
}
