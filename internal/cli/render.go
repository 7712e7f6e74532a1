package cli

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/queryvals/pkg/queryvals"
)

// RenderResult is the output of the render command.
type RenderResult struct {
	Dialect string        `json:"dialect"`
	Format  string        `json:"format"`
	SQL     string        `json:"sql"`
	Params  []ParamResult `json:"params"`
}

type ParamResult struct {
	Name  string `json:"name,omitempty"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

func (r RenderResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- %s, %s payload\n%s\n", r.Dialect, r.Format, r.SQL)
	for i, p := range r.Params {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("?%d", i+1)
		}
		fmt.Fprintf(&b, "-- %s (%s): %v\n", name, p.Type, p.Value)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "render <input.yaml>",
		Short: "Print the SQL and parameters for a value list",
		Long: `Compose the values in an input file and print the generated SQL together
with its parameters: the encoded payload and, with --row-bound-hint, the
element count.

Example:
  queryvals render ids.yaml
  queryvals render orders.yaml --token-stream on --row-bound-hint --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(rootOpts, args[0], cmd)
		},
	}
}

func runRender(opts *RootOptions, path string, cmd *cobra.Command) error {
	c := queryvals.New(queryvals.WithConfig(opts.Config), queryvals.WithLogger(opts.Logger))
	defer c.Close()

	q, _, err := composeInput(c, path)
	if err != nil {
		return err
	}
	st, params, err := q.Prepare()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to encode payload", err)
	}

	result := RenderResult{
		Dialect: st.Dialect.String(),
		Format:  st.Format.String(),
		SQL:     st.SQL,
		Params:  make([]ParamResult, 0, len(params)),
	}
	for _, p := range params {
		result.Params = append(result.Params, ParamResult{Name: p.Name, Type: p.Type.String(), Value: p.Value})
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(result)
}

func composeInput(c *queryvals.Composer, path string) (*queryvals.Query[reflect.Value], reflect.Type, error) {
	in, err := LoadInput(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load input", err)
	}
	q, err := queryvals.ComposeValues(c, in.Type, queryvals.FromSlice(&in.Values))
	if err != nil {
		return nil, nil, WrapExitError(ExitFailure, "failed to compose query", err)
	}
	return q, in.Type, nil
}
