// Package mcpserver exposes a tool registry as an MCP server.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/opencode-ai/mcp-claude-code/internal/logging"
	"github.com/opencode-ai/mcp-claude-code/internal/tool"
)

// Options configures the MCP server.
type Options struct {
	Name         string
	Version      string
	Instructions string
}

// NewServer creates an MCP server with one MCP tool per registry tool.
func NewServer(registry *tool.Registry, opts Options) *server.MCPServer {
	if opts.Version == "" {
		opts.Version = "dev"
	}

	serverOpts := []server.ServerOption{
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	}
	if opts.Instructions != "" {
		serverOpts = append(serverOpts, server.WithInstructions(opts.Instructions))
	}
	s := server.NewMCPServer(opts.Name, opts.Version, serverOpts...)

	for _, t := range registry.List() {
		s.AddTool(mcp.NewToolWithRawSchema(t.ID(), t.Description(), t.Parameters()), toolHandler(t))
	}

	logging.Debug().
		Str("name", opts.Name).
		Strs("tools", registry.IDs()).
		Msg("MCP server created")
	return s
}

// toolHandler adapts t to an MCP handler. Tool failures are reported as
// error results, never as protocol errors.
func toolHandler(t tool.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input, err := rawArguments(request)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%sinvalid arguments: %v", tool.ErrorPrefix, err)), nil
		}

		output, failed := tool.Invoke(ctx, t, input, &tool.Context{Caller: tool.CallerMCP})
		if failed {
			return mcp.NewToolResultError(output), nil
		}
		return mcp.NewToolResultText(output), nil
	}
}

func rawArguments(request mcp.CallToolRequest) (json.RawMessage, error) {
	args := request.GetRawArguments()
	if args == nil {
		return json.RawMessage("{}"), nil
	}
	if raw, ok := args.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return data, nil
}
