// Package sink executes generated statements. The engine behind a sink
// parses the payload parameter with the statement's SQL and returns rows
// typed by the statement's columns.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/queryvals/internal/codec"
	"github.com/roach88/queryvals/internal/schema"
	"github.com/roach88/queryvals/internal/sqltext"
)

// Sink runs a statement with its ordered parameters.
type Sink interface {
	Query(ctx context.Context, st *sqltext.Statement, params []sqltext.Param) ([]schema.Row, error)
}

// Call records one statement execution.
type Call struct {
	SQL    string
	Params []sqltext.Param
}

// Reference executes statements in-process by decoding the payload the
// way the engine parses it. It records every call.
type Reference struct {
	mu    sync.Mutex
	calls []Call
}

var _ Sink = (*Reference)(nil)

func NewReference() *Reference {
	return &Reference{}
}

func (r *Reference) Query(ctx context.Context, st *sqltext.Statement, params []sqltext.Param) ([]schema.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := checkParams(st, params)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.calls = append(r.calls, Call{SQL: st.SQL, Params: params})
	r.mu.Unlock()

	return codec.Decode(st.Format, payload, st.Columns)
}

// Calls returns a copy of the recorded calls.
func (r *Reference) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// checkParams validates the parameter list against the statement and
// returns the payload.
func checkParams(st *sqltext.Statement, params []sqltext.Param) (string, error) {
	want := 1
	if st.UsesCount {
		want = 2
	}
	if len(params) != want {
		return "", fmt.Errorf("statement expects %d parameters, got %d", want, len(params))
	}

	payload, ok := params[0].Value.(string)
	if !ok || (params[0].Type != sqltext.ParamText && params[0].Type != sqltext.ParamUnicodeText) {
		return "", errors.New("first parameter must be the text payload")
	}
	if st.UsesCount {
		if _, ok := params[1].Value.(int32); !ok || params[1].Type != sqltext.ParamInt {
			return "", errors.New("second parameter must be the integer count")
		}
	}
	return payload, nil
}
