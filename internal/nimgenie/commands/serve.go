package commands

import (
	"github.com/spf13/cobra"

	"github.com/nimgenie/nimgenie/internal/nimgenie/mcpserver"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the same tool set as nimgenie-mcp over MCP's Streamable HTTP transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mcpserver.Serve(coord, cfg)
		},
	}
}
