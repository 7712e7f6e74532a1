package cli

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/queryvals/internal/sink"
	"github.com/roach88/queryvals/internal/store"
	"github.com/roach88/queryvals/pkg/queryvals"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Database string
}

// ExecResult is the output of the exec command.
type ExecResult struct {
	SQL  string `json:"sql"`
	Rows []any  `json:"rows"`

	elem reflect.Type
}

func (r ExecResult) String() string {
	lines := make([]string, 0, len(r.Rows)+1)
	for _, row := range r.Rows {
		lines = append(lines, formatRow(r.elem, row))
	}
	lines = append(lines, fmt.Sprintf("(%d rows)", len(r.Rows)))
	return strings.Join(lines, "\n")
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <input.yaml>",
		Short: "Run a value list through SQLite and print the rows",
		Long: `Compose the values in an input file, execute the generated SQL against a
SQLite database and print the rows it returns, projected back onto the
input's fields. The dialect is always sqlite.

Example:
  queryvals exec orders.yaml
  queryvals exec orders.yaml --db ./scratch.db --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", store.MemoryPath, "path to SQLite database")

	return cmd
}

func runExec(opts *ExecOptions, path string, cmd *cobra.Command) error {
	cfg := opts.Config
	if cfg.Dialect != "sqlite" && cfg.Dialect != "sqlite3" {
		opts.Logger.Debug("exec overrides dialect", zap.String("dialect", cfg.Dialect))
		cfg.Dialect = "sqlite"
	}

	c := queryvals.New(queryvals.WithConfig(cfg), queryvals.WithLogger(opts.Logger))
	defer c.Close()

	q, elem, err := composeInput(c, path)
	if err != nil {
		return err
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			opts.Logger.Error("error closing database", zap.Error(closeErr))
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	values, err := q.Execute(ctx, sink.NewSQLite(st, opts.Logger))
	if err != nil {
		return WrapExitError(ExitFailure, "execution failed", err)
	}

	result := ExecResult{
		SQL:  q.Statement().SQL,
		Rows: make([]any, 0, len(values)),
		elem: elem,
	}
	for _, v := range values {
		result.Rows = append(result.Rows, displayRow(v))
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(result)
}
