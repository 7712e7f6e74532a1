package sqltext

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/queryvals/internal/codec"
	"github.com/roach88/queryvals/internal/kind"
	"github.com/roach88/queryvals/internal/schema"
)

// ErrFormatUnsupported is returned when a dialect cannot parse a payload format.
var ErrFormatUnsupported = errors.New("payload format not supported by dialect")

// Dialect selects the SQL flavor of the generated parse description.
type Dialect uint8

const (
	SQLServer Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case SQLServer:
		return "sqlserver"
	case SQLite:
		return "sqlite"
	}
	return fmt.Sprintf("dialect(%d)", uint8(d))
}

// ParseDialect maps a configuration value to a Dialect. The empty string
// is SQL Server.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlserver", "mssql":
		return SQLServer, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return 0, fmt.Errorf("unknown dialect %q: must be one of sqlserver, sqlite", s)
}

// Supports reports whether d can parse payloads of format f.
func (d Dialect) Supports(f codec.Format) bool {
	switch d {
	case SQLServer:
		return f == codec.Markup || f == codec.TokenStream
	case SQLite:
		return f == codec.TokenStream
	}
	return false
}

// SupportsRowBound reports whether d can carry the row-bound planner hint.
func (d Dialect) SupportsRowBound() bool {
	return d == SQLServer
}

// sqlServerType is the declared type of col in SQL Server.
func sqlServerType(col schema.Column) string {
	switch col.Kind {
	case kind.Bool:
		return "bit"
	case kind.Byte:
		return "tinyint"
	case kind.Int16:
		return "smallint"
	case kind.Int32:
		return "int"
	case kind.Int64:
		return "bigint"
	case kind.Decimal:
		return fmt.Sprintf("decimal(38, %d)", col.Scale)
	case kind.Single:
		return "real"
	case kind.Double:
		return "float"
	case kind.DateTime:
		return "datetime2(7)"
	case kind.DateTimeOffset:
		return "datetimeoffset(7)"
	case kind.Char:
		if col.Unicode {
			return "nchar(1)"
		}
		return "char(1)"
	case kind.String:
		if col.Unicode {
			return "nvarchar(max)"
		}
		return "varchar(max)"
	case kind.Guid:
		return "uniqueidentifier"
	}
	return "sql_variant"
}

// sqliteExpr extracts col from the json_each row j. SQLite has no
// non-unicode text; decimals are read as their JSON text so no digits are
// lost to floating point.
func sqliteExpr(col schema.Column) string {
	path := "'$." + col.Name + "'"
	switch col.Kind {
	case kind.Bool, kind.Byte, kind.Int16, kind.Int32, kind.Int64:
		return "CAST(json_extract(j.value, " + path + ") AS INTEGER)"
	case kind.Single, kind.Double:
		return "CAST(json_extract(j.value, " + path + ") AS REAL)"
	case kind.Decimal:
		return "j.value -> " + path
	}
	return "json_extract(j.value, " + path + ")"
}
