package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/queryvals/internal/kind"
	"github.com/roach88/queryvals/internal/logger"
	"github.com/roach88/queryvals/internal/schema"
	"github.com/roach88/queryvals/internal/sqltext"
	"github.com/roach88/queryvals/internal/store"
)

// SQLite executes statements generated for the SQLite dialect.
type SQLite struct {
	store  *store.Store
	logger logger.Logger
}

var _ Sink = (*SQLite)(nil)

func NewSQLite(s *store.Store, l logger.Logger) *SQLite {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	return &SQLite{store: s, logger: l}
}

func (s *SQLite) Query(ctx context.Context, st *sqltext.Statement, params []sqltext.Param) ([]schema.Row, error) {
	if st.Dialect != sqltext.SQLite {
		return nil, fmt.Errorf("sqlite sink cannot run %s statements", st.Dialect)
	}
	if _, err := checkParams(st, params); err != nil {
		return nil, err
	}

	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p.Arg()
	}

	res, err := s.store.Query(ctx, st.SQL, args...)
	if err != nil {
		return nil, err
	}
	if len(res.Columns) != len(st.Columns) {
		return nil, fmt.Errorf("statement returned %d columns, expected %d", len(res.Columns), len(st.Columns))
	}

	rows := make([]schema.Row, 0, len(res.Values))
	for i, values := range res.Values {
		row, err := typedRow(st.Columns, values)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, row)
	}

	s.logger.Debug("executed statement", zap.Int("rows", len(rows)))
	return rows, nil
}

func typedRow(cols []schema.Column, values []any) (schema.Row, error) {
	var row schema.Row
	for i, col := range cols {
		if col.Index {
			n, ok := values[i].(int64)
			if !ok {
				return row, fmt.Errorf("index column holds %T", values[i])
			}
			row.Index = int(n)
			continue
		}
		v, err := kind.Coerce(col.Kind, values[i])
		if err != nil {
			return row, fmt.Errorf("column %s: %w", col.Name, err)
		}
		row.Set(col.Slot, v)
	}
	return row, nil
}
