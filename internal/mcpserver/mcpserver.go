// Package mcpserver exposes the operation catalog over the Model
// Context Protocol stdio transport. One MCP session acts as one fixed
// agent identity: the tool list is the catalog filtered by that
// agent's resolved profile, and every tool call goes through the same
// dispatch pipeline as the HTTP transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/opsgate/internal/dispatch"
	"github.com/flemzord/opsgate/internal/operation"
	"github.com/flemzord/opsgate/internal/permission"
)

// Config wires an MCP server.
type Config struct {
	AgentID    string
	Version    string
	Registry   *operation.Registry
	Resolver   *permission.Resolver
	Dispatcher *dispatch.Dispatcher
	Logger     *slog.Logger
}

// Server adapts the dispatcher to MCP.
type Server struct {
	cfg    Config
	logger *slog.Logger
	mcpSrv *server.MCPServer
}

// New builds the MCP server and registers one tool per operation the
// configured agent may invoke.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{cfg: cfg, logger: cfg.Logger}
	s.mcpSrv = server.NewMCPServer("opsgate", cfg.Version,
		server.WithToolCapabilities(false),
	)

	profile := cfg.Resolver.Resolve(cfg.AgentID)
	for _, op := range cfg.Registry.ListFor(profile) {
		d := op.Descriptor()
		s.mcpSrv.AddTool(toolFor(d), s.handlerFor(d.Name))
	}
	return s
}

// ServeStdio blocks serving the MCP session on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("mcp transport serving", "agent_id", s.cfg.AgentID)
	return server.ServeStdio(s.mcpSrv)
}

// toolFor translates an operation descriptor into an MCP tool schema.
func toolFor(d operation.Descriptor) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(d.Description)}
	for _, arg := range d.Arguments {
		var propOpts []mcp.PropertyOption
		if arg.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		if arg.Description != "" {
			propOpts = append(propOpts, mcp.Description(arg.Description))
		}
		switch arg.Kind {
		case operation.KindInteger, operation.KindFloat:
			opts = append(opts, mcp.WithNumber(arg.Name, propOpts...))
		case operation.KindBoolean:
			opts = append(opts, mcp.WithBoolean(arg.Name, propOpts...))
		case operation.KindObject:
			opts = append(opts, mcp.WithObject(arg.Name, propOpts...))
		case operation.KindArray:
			opts = append(opts, mcp.WithArray(arg.Name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(arg.Name, propOpts...))
		}
	}
	return mcp.NewTool(d.Name, opts...)
}

// handlerFor routes one tool call through the dispatcher.
func (s *Server) handlerFor(opName string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp := s.cfg.Dispatcher.Dispatch(ctx, dispatch.Request{
			ID:        uuid.NewString(),
			Operation: opName,
			Arguments: req.GetArguments(),
			AgentID:   s.cfg.AgentID,
		})
		if resp.Status == dispatch.StatusError {
			return mcp.NewToolResultError(
				fmt.Sprintf("[%d] %s", resp.ErrorCode, resp.Message)), nil
		}
		if resp.Result == nil {
			return mcp.NewToolResultText(""), nil
		}
		encoded, err := json.Marshal(resp.Result)
		if err != nil {
			return nil, fmt.Errorf("encoding result for %s: %w", opName, err)
		}
		return mcp.NewToolResultText(string(encoded)), nil
	}
}
