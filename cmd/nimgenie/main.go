// Command nimgenie is the CLI front end over the same Coordinator the
// nimgenie-mcp binary dispatches to, letting a user index, search, and
// inspect a Nim workspace from a shell without an MCP client.
package main

import (
	"os"

	"github.com/nimgenie/nimgenie/internal/nimgenie/commands"
)

func main() {
	if err := commands.RootCmd().Execute(); err != nil {
		os.Exit(commands.HandleError(err))
	}
}
