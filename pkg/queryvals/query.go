package queryvals

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/roach88/queryvals/internal/deferred"
	"github.com/roach88/queryvals/internal/logger"
	"github.com/roach88/queryvals/internal/projection"
)

// Query is a composed query over a deferred sequence. Each Execute is one
// physical execution: it encodes the sequence again (unless the composer
// was configured to enumerate once) and runs the cached statement.
//
// A Query may be executed repeatedly but not concurrently.
type Query[T any] struct {
	statement *Statement
	handle    *deferred.Handle[T]
	project   projection.Projector
	fromValue func(reflect.Value) T
	logger    logger.Logger
}

// Statement returns the generated statement. It is shared with every
// query of the same shape and configuration and must not be modified.
func (q *Query[T]) Statement() *Statement {
	return q.statement
}

// Prepare starts an execution and returns the statement with its ordered
// parameters: the payload, then the element count when the statement
// carries the row-bound hint.
func (q *Query[T]) Prepare() (*Statement, []Param, error) {
	e := q.handle.Begin()

	payload, err := e.Payload()
	if err != nil {
		return nil, nil, err
	}
	count := 0
	if q.statement.UsesCount {
		if count, err = e.Count(); err != nil {
			return nil, nil, err
		}
	}
	return q.statement, q.statement.Params(payload, count), nil
}

// Execute runs the query through s and projects the rows onto T, in the
// original sequence order.
func (q *Query[T]) Execute(ctx context.Context, s Sink) ([]T, error) {
	st, params, err := q.Prepare()
	if err != nil {
		return nil, err
	}

	rows, err := s.Query(ctx, st, params)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}

	out := make([]T, 0, len(rows))
	for i := range rows {
		v, err := q.project(&rows[i])
		if err != nil {
			return nil, fmt.Errorf("project row %d: %w", rows[i].Index, err)
		}
		out = append(out, q.fromValue(v))
	}

	q.logger.Debug("executed query",
		zap.Int("payload_bytes", len(params[0].Value.(string))),
		zap.Int("rows", len(out)))
	return out, nil
}
