// cmd/agon-mcp/main.go
package main

import (
	"io"
	"log"

	cmd "github.com/mwiater/agon-mcp/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// main is the entry point for the agon-mcp CLI application. Config loading
// and logging initialization happen in cmd.Execute's PersistentPreRunE, once
// per invocation, so every subcommand sees the same materialized Config.
func main() {
	log.SetOutput(io.Discard)

	cmd.SetVersionInfo(version, commit, date)
	cmd.Execute()
}
