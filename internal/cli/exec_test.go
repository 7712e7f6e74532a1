package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec_Text(t *testing.T) {
	input := writeFile(t, "orders.yaml", ordersInput)

	out, err := run(t, "exec", input)
	require.NoError(t, err)
	assert.Equal(t, "ID=1 Customer=Ada & Co Note=rush\nID=2 Customer=Bob Note=NULL\n(2 rows)\n", out)
}

func TestExec_JSON(t *testing.T) {
	input := writeFile(t, "amounts.yaml", `
kind: decimal
nullable: true
values: ["1.25", ~, "-3"]
`)

	out, err := run(t, "exec", input, "--format", "json", "--db", filepath.Join(t.TempDir(), "scratch.db"))
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			SQL  string `json:"sql"`
			Rows []any  `json:"rows"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Contains(t, resp.Data.SQL, "json_each(?1)")
	assert.Equal(t, []any{"1.25", "-3"}, resp.Data.Rows, "null elements are skipped")
}

func TestExec_ForcesSQLite(t *testing.T) {
	input := writeFile(t, "ids.yaml", "kind: int32\nvalues: [5]\n")

	out, err := run(t, "exec", input, "--dialect", "sqlserver")
	require.NoError(t, err)
	assert.Contains(t, out, "5\n(1 rows)")
}

func TestExec_BadDatabase(t *testing.T) {
	input := writeFile(t, "ids.yaml", "kind: int32\nvalues: [5]\n")

	_, err := run(t, "exec", input, "--db", "/nonexistent/dir/x.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
