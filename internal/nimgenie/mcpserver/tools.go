// Package mcpserver binds MCP tool names to Coordinator operations,
// mirroring the upstream mcpserver package's ToolDefinition/Handler split:
// a pure tool-schema table here, dispatch logic in handlers.go.
package mcpserver

import "encoding/json"

// ToolDefinition mirrors the upstream ToolDefinition shape used to feed
// the official MCP SDK's AddTool.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// GetToolDefinitions returns every tool the core exposes at the MCP
// boundary, per §4.7's table plus the supplemented searchPackages,
// registerDirectory and listRegisteredDirectories tools.
func GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "indexCurrentProject",
			Description: "Index (or fully re-index) the Nim project at the given path, extracting symbols, dependencies, and embeddings.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Project root directory (default: current directory)"}
				}
			}`),
		},
		{
			Name:        "indexProjectDependenciesOnly",
			Description: "Re-parse only the file dependency graph for the project at the given path, without re-indexing symbols.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Project root directory (default: current directory)"}
				}
			}`),
		},
		{
			Name:        "searchSymbols",
			Description: "Lexically search indexed symbols by substring match on name, optionally filtered by symbol type or module.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Project root directory (default: current directory)"},
					"query": {"type": "string", "description": "Substring to match against symbol names"},
					"symbolType": {"type": "string", "description": "Restrict to this symbol type (e.g. proc, type, macro)"},
					"module": {"type": "string", "description": "Restrict to this module"},
					"limit": {"type": "integer", "description": "Maximum rows to return (default 100)"}
				},
				"required": ["query"]
			}`),
		},
		{
			Name:        "getSymbolInfo",
			Description: "Look up full details (signature, documentation, location) for a symbol by exact name, optionally scoped to a module.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Project root directory (default: current directory)"},
					"name": {"type": "string", "description": "Exact symbol name"},
					"module": {"type": "string", "description": "Restrict to this module"}
				},
				"required": ["name"]
			}`),
		},
		{
			Name:        "semanticSearchSymbols",
			Description: "Search indexed symbols by meaning: embeds the query and ranks symbols by cosine similarity of their combined embedding.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Project root directory (default: current directory)"},
					"query": {"type": "string", "description": "Natural-language description of the symbol being sought"},
					"limit": {"type": "integer", "description": "Maximum rows to return (default 10)"}
				},
				"required": ["query"]
			}`),
		},
		{
			Name:        "findSimilarSymbols",
			Description: "Find symbols whose combined embedding is closest to a named symbol's, excluding that symbol itself.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Project root directory (default: current directory)"},
					"name": {"type": "string", "description": "Exact symbol name to find neighbors of"},
					"module": {"type": "string", "description": "Restrict the lookup to this module"},
					"limit": {"type": "integer", "description": "Maximum rows to return (default 10)"}
				},
				"required": ["name"]
			}`),
		},
		{
			Name:        "searchByExample",
			Description: "Find symbols similar to an arbitrary code snippet by embedding it and ranking by combined-embedding distance.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Project root directory (default: current directory)"},
					"snippet": {"type": "string", "description": "Example code snippet"},
					"limit": {"type": "integer", "description": "Maximum rows to return (default 10)"}
				},
				"required": ["snippet"]
			}`),
		},
		{
			Name:        "generateEmbeddings",
			Description: "Recompute and store embedding vectors for symbols matching the given type/module filters (or all symbols if omitted).",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Project root directory (default: current directory)"},
					"types": {"type": "array", "items": {"type": "string"}, "description": "Restrict to these symbol types"},
					"modules": {"type": "array", "items": {"type": "string"}, "description": "Restrict to these modules"}
				}
			}`),
		},
		{
			Name:        "getProjectStats",
			Description: "Report symbol, module, dependency, and tracked-file counts for the indexed project.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Project root directory (default: current directory)"}
				}
			}`),
		},
		{
			Name:        "getEmbeddingStats",
			Description: "Report how many indexed symbols have a combined embedding and the resulting coverage percentage.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Project root directory (default: current directory)"}
				}
			}`),
		},
		{
			Name:        "checkSyntax",
			Description: "Run the compiler's semantic check against a file (or the project's main file) and report diagnostics.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Project root directory (default: current directory)"},
					"file": {"type": "string", "description": "File to check (default: the project's detected main file)"}
				}
			}`),
		},
		{
			Name:        "searchPackages",
			Description: "Lexically search the discovered Nimble package cache by base name substring.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Substring to match against discovered package base names"}
				},
				"required": ["query"]
			}`),
		},
		{
			Name:        "registerDirectory",
			Description: "Register an external directory as a named resource the coordinator tracks alongside the indexed project.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Project root directory (default: current directory), used to open the backing store"},
					"directory": {"type": "string", "description": "Absolute path of the directory being registered"},
					"name": {"type": "string", "description": "Short name for the registered directory"},
					"description": {"type": "string", "description": "Optional free-text description"}
				},
				"required": ["directory", "name"]
			}`),
		},
		{
			Name:        "listRegisteredDirectories",
			Description: "List every directory registered against the project's store.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Project root directory (default: current directory), used to open the backing store"}
				}
			}`),
		},
	}
}
