package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nimgenie/nimgenie/internal/nimgenie/config"
	"github.com/nimgenie/nimgenie/internal/nimgenie/coordinator"
)

const (
	serverName         = "nimgenie-mcp"
	serverVersion      = "0.1.0"
	serverInstructions = "nimgenie-mcp indexes a Nim workspace's symbols, dependencies, and semantic embeddings, and exposes lexical and semantic search plus package discovery over MCP."
)

// Serve builds the MCP server from every tool definition, binds it to
// coord via a Handler, and serves it over the Streamable HTTP transport
// at cfg's listen address until the process exits or ListenAndServe
// errors. Shared by the nimgenie-mcp binary and the nimgenie CLI's
// "serve" subcommand so both expose an identical tool set.
func Serve(coord *coordinator.Coordinator, cfg config.Config) error {
	handler := New(coord, cfg)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, &mcp.ServerOptions{
		Instructions: serverInstructions,
	})

	tools := GetToolDefinitions()
	for _, toolDef := range tools {
		td := toolDef
		server.AddTool(&mcp.Tool{
			Name:        td.Name,
			Description: td.Description,
			InputSchema: td.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args map[string]interface{}
			if req.Params.Arguments != nil {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return &mcp.CallToolResult{
						Content: []mcp.Content{&mcp.TextContent{Text: "Error parsing arguments: " + err.Error()}},
						IsError: true,
					}, nil
				}
			}

			output, err := handler.Dispatch(ctx, td.Name, args)
			if err != nil {
				return &mcp.CallToolResult{
					Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
					IsError: true,
				}, nil
			}
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: output}}}, nil
		})
	}

	httpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)

	addr := fmt.Sprintf("%s:%d", cfg.ListenHost, cfg.ListenPort)
	slog.Info("starting nimgenie-mcp", "address", addr, "tools", len(tools))
	return http.ListenAndServe(addr, httpHandler)
}
