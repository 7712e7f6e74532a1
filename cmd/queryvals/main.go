package main

import (
	"os"

	"github.com/roach88/queryvals/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		out := &cli.OutputFormatter{Format: formatFlag(cmd.PersistentFlags().Lookup("format").Value.String()), Writer: os.Stderr}
		_ = out.Error(err)
		os.Exit(cli.GetExitCode(err))
	}
}

func formatFlag(f string) string {
	if f == "json" {
		return f
	}
	return "text"
}
