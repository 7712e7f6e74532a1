package sqltext

import (
	"database/sql"
	"fmt"

	"github.com/roach88/queryvals/internal/codec"
	"github.com/roach88/queryvals/internal/schema"
)

// ParamType is the declared type of a statement parameter.
type ParamType uint8

const (
	// ParamText is a large non-unicode text parameter (varchar(max)).
	ParamText ParamType = iota
	// ParamUnicodeText is a large unicode text parameter (nvarchar(max)).
	ParamUnicodeText
	// ParamInt is a 32-bit integer parameter.
	ParamInt
)

func (t ParamType) String() string {
	switch t {
	case ParamText:
		return "text"
	case ParamUnicodeText:
		return "unicode_text"
	case ParamInt:
		return "int"
	}
	return fmt.Sprintf("param(%d)", uint8(t))
}

// Param is one positional statement parameter.
type Param struct {
	// Name is the parameter name without its marker ("p0"). It is empty
	// for dialects that bind by position only.
	Name  string
	Type  ParamType
	Value any
}

// Arg returns p as a database/sql argument.
func (p Param) Arg() any {
	if p.Name == "" {
		return p.Value
	}
	return sql.Named(p.Name, p.Value)
}

// Statement is immutable generated SQL text and the description of the
// parameters it expects. Statements are shared through the cache.
type Statement struct {
	SQL     string
	Dialect Dialect
	Format  codec.Format
	Simple  bool
	Columns []schema.Column

	// UsesCount is set when the text carries the row-bound hint and so
	// expects the element count as its second parameter.
	UsesCount   bool
	PayloadType ParamType
}

// Params builds the ordered parameter list: the payload first, then the
// element count when the statement uses it.
func (s *Statement) Params(payload string, count int) []Param {
	names := paramNames(s.Dialect)
	params := []Param{{Name: names[0], Type: s.PayloadType, Value: payload}}
	if s.UsesCount {
		params = append(params, Param{Name: names[1], Type: ParamInt, Value: int32(count)})
	}
	return params
}

func paramNames(d Dialect) [2]string {
	if d == SQLServer {
		return [2]string{"p0", "p1"}
	}
	return [2]string{}
}
