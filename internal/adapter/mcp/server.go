// Package mcp exposes the orchestration core over the Model Context Protocol
// so MCP-capable agents can launch analyses and read archived runs.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/port/database"
)

// Runner starts one orchestrated analysis. Implemented by the engine.
type Runner interface {
	Run(ctx context.Context, req flow.RunRequest) (*flow.FinalResult, error)
}

// RunReader reads archived runs. Implemented by the archive.
type RunReader interface {
	Get(ctx context.Context, id string) (*database.RunRecord, error)
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]database.RunRecord, error)
}

// ServerConfig holds the MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string // empty disables auth
}

// ServerDeps bundles the collaborators the MCP tools call into.
type ServerDeps struct {
	Runner Runner
	Runs   RunReader
}

// Server wraps an mcp-go server with the FundSage toolset.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
}

// NewServer creates the MCP server and registers all tools.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
		),
	}
	s.registerTools()
	return s
}

// MCPServer exposes the underlying mcp-go server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start serves the MCP endpoint over streamable HTTP in a background
// goroutine.
func (s *Server) Start() error {
	handler := AuthMiddleware(s.cfg.APIKey, mcpserver.NewStreamableHTTPServer(s.mcpServer))
	s.httpServer = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: handler,
	}

	go func() {
		slog.Info("mcp server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mcp server failed", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the MCP HTTP listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("mcp server shutdown: %w", err)
	}
	return nil
}

// toolResultJSON wraps a JSON string as a text tool result.
func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
