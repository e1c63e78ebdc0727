// Package mcpserver publishes capability providers over the Model Context
// Protocol so external agents can call the same tools as session agents.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/llm"
	"github.com/novix-ai/novix/pkg/novix/tools"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
)

const serverName = "novix-marketplace"

// New returns an MCP server exposing every tool in registry. Arguments are
// validated against the tool schema before the tool runs.
func New(registry *tools.Registry, version string) (*server.MCPServer, error) {
	s := server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	for _, t := range registry.Tools() {
		schema, err := json.Marshal(t.InputSchema())
		if err != nil {
			return nil, apperrors.New(apperrors.ErrCodeAgentConfig,
				fmt.Sprintf("failed to encode schema for tool %s", t.Name()), err)
		}
		s.AddTool(mcp.NewToolWithRawSchema(t.Name(), t.Description(), schema), handler(registry, t.Name()))
	}

	return s, nil
}

func handler(registry *tools.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		log := ctrllog.FromContext(ctx).WithName("mcp")

		args := req.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		result := registry.Execute(ctx, llm.ToolCall{ID: name, Name: name, Arguments: args})
		if result.IsError {
			log.V(1).Info("Tool call failed", "tool", name, "result", result.Content)
			return mcp.NewToolResultError(result.Content), nil
		}
		return mcp.NewToolResultText(result.Content), nil
	}
}

// Serve speaks the stdio transport over in and out until ctx is done
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}
