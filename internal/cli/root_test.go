package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "queryvals", cmd.Use)
	assert.Contains(t, cmd.Long, "payload")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, cmdName := range []string{"render", "exec"} {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	for name, def := range map[string]string{
		"format":         "text",
		"config":         "",
		"dialect":        "sqlserver",
		"token-stream":   "auto",
		"row-bound-hint": "false",
		"decimal-scale":  "6",
	} {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, def, f.DefValue, name)
	}
}

func TestExecCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	execCmd, _, err := cmd.Find([]string{"exec"})
	require.NoError(t, err)

	dbFlag := execCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, ":memory:", dbFlag.DefValue)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// run executes the root command and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRoot_InvalidFormat(t *testing.T) {
	input := writeFile(t, "ids.yaml", "kind: int32\nvalues: [1]\n")
	_, err := run(t, "render", input, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRoot_ConfigFile(t *testing.T) {
	input := writeFile(t, "ids.yaml", "kind: int32\nvalues: [1, 2]\n")
	cfg := writeFile(t, "queryvals.yaml", "dialect: sqlite\nuse_row_bound_hint: true\n")

	out, err := run(t, "render", input, "--config", cfg, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   RenderResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "sqlite", resp.Data.Dialect)
	assert.Equal(t, "token-stream", resp.Data.Format)
	assert.Len(t, resp.Data.Params, 1, "sqlite never binds the count")
}

func TestRoot_FlagsOverrideConfigFile(t *testing.T) {
	input := writeFile(t, "ids.yaml", "kind: int32\nvalues: [1]\n")
	cfg := writeFile(t, "queryvals.yaml", "dialect: sqlite\n")

	out, err := run(t, "render", input, "--config", cfg, "--dialect", "sqlserver")
	require.NoError(t, err)
	assert.Contains(t, out, "-- sqlserver, markup payload")
}

func TestRoot_EnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("QUERYVALS_TOKEN_STREAM", "on")
	input := writeFile(t, "ids.yaml", "kind: int32\nvalues: [1]\n")

	out, err := run(t, "render", input)
	require.NoError(t, err)
	assert.Contains(t, out, "OPENJSON(@p0)")
}

func TestRoot_InvalidConfig(t *testing.T) {
	input := writeFile(t, "ids.yaml", "kind: int32\nvalues: [1]\n")
	_, err := run(t, "render", input, "--decimal-scale", "40")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
