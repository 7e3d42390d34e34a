// ABOUTME: MCP server initialization and configuration for logbook.
// ABOUTME: Exposes one journal.App to AI agents over stdio, one tool call at a time.
package mcp

import (
	"context"
	"fmt"
	"sync"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/2389-research/logbook/internal/journal"
)

// Server wraps the MCP server around a journal core.
type Server struct {
	mcp    *gomcp.Server
	logger *zap.Logger

	// mu serialises tool calls; journal.App is single-session.
	mu  sync.Mutex
	app *journal.App
}

// ServerOption configures optional Server dependencies.
type ServerOption func(*Server)

// WithLogger sets the logger used for tool call diagnostics.
func WithLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates an MCP server with the entry tools registered.
func NewServer(app *journal.App, opts ...ServerOption) (*Server, error) {
	if app == nil {
		return nil, fmt.Errorf("journal app is required")
	}

	mcpServer := gomcp.NewServer(
		&gomcp.Implementation{
			Name:    "logbook",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcp:    mcpServer,
		logger: zap.NewNop(),
		app:    app,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerEntryTools()

	return s, nil
}

// Serve starts the MCP server in stdio mode.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	count := s.app.Count()
	s.mu.Unlock()

	s.logger.Info("mcp server starting", zap.Int("entries", count))
	return s.mcp.Run(ctx, &gomcp.StdioTransport{})
}
