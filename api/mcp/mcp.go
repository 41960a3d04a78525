// Package mcp exposes the drift tracker as MCP (Model Context Protocol) tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/drift/pkg/conversation"
	"github.com/papercomputeco/drift/pkg/drift"
	"github.com/papercomputeco/drift/pkg/utils"
)

// Tracker is the conversation the tools drive. *tracker.Tracker implements it.
type Tracker interface {
	Generate(ctx context.Context, intent string, w io.Writer) (*drift.Record, error)
	Decide(action string) conversation.Decision
	Reset() conversation.Decision
	History() conversation.Snapshot
}

type Config struct {
	// Tracker runs exchanges and decisions.
	Tracker Tracker

	// Logger is the configured zap logger
	Logger *zap.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the drift tools.
func NewServer(c Config) (*Server, error) {
	if c.Tracker == nil {
		return nil, errors.New("tracker is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "drift",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        submitIntentToolName,
		Description: submitIntentDescription,
	}, s.handleSubmitIntent)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        decideToolName,
		Description: decideDescription,
	}, s.handleDecide)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        resetToolName,
		Description: resetDescription,
	}, s.handleReset)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        historyToolName,
		Description: historyDescription,
	}, s.handleHistory)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// toolError reports a failure to the calling model rather than as a
// protocol error.
func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// jsonResult mirrors structured output as a JSON text block for clients that
// only read text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}, nil
}

// MCPServer returns the underlying MCP server, e.g. to connect it to a
// non-HTTP transport.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
