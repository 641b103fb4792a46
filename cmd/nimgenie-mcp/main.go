// Command nimgenie-mcp serves the NimGenie tool set over MCP's Streamable
// HTTP transport, replacing the upstream llm-semantic-mcp binary's stdio
// transport with the HTTP host:port the core specification requires.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/nimgenie/nimgenie/internal/nimgenie/config"
	"github.com/nimgenie/nimgenie/internal/nimgenie/coordinator"
	"github.com/nimgenie/nimgenie/internal/nimgenie/mcpserver"
)

func main() {
	configPath := flag.String("config", "", "path to a nimgenie.yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	coord := coordinator.New(cfg)
	defer coord.Close()

	if err := mcpserver.Serve(coord, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
