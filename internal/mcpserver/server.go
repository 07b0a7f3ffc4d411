package mcpserver

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/mark3labs/mcp-go/server"

	"github.com/apresai/newscast/internal/pipeline"
)

// Config holds server configuration.
type Config struct {
	Addr     string // listen address for the streamable HTTP transport
	MaxTasks int
}

// DefaultConfig returns a Config populated from environment variables.
func DefaultConfig() Config {
	cfg := Config{
		Addr:     envOr("MCP_ADDR", ":8090"),
		MaxTasks: 2,
	}
	if n, err := strconv.Atoi(os.Getenv("MCP_MAX_TASKS")); err == nil && n > 0 {
		cfg.MaxTasks = n
	}
	return cfg
}

// Server is the MCP server for episode generation.
type Server struct {
	cfg   Config
	mcp   *server.MCPServer
	tasks *TaskManager
	log   *slog.Logger
	http  *server.StreamableHTTPServer
}

// New creates and configures the MCP server around an existing pipeline.
// baseCtx should be cancelled on SIGTERM so running tasks shut down.
func New(cfg Config, pipe *pipeline.Pipeline, logger *slog.Logger, baseCtx context.Context) *Server {
	tasks := NewTaskManager(pipe, cfg.MaxTasks, logger, baseCtx)
	handlers := NewHandlers(tasks, pipe.Runs(), pipe.Progress(), logger)

	mcpServer := server.NewMCPServer(
		"newscast",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	tools := ToolDefs()
	mcpServer.AddTool(tools[0], handlers.HandleGenerateEpisode)
	mcpServer.AddTool(tools[1], handlers.HandleGetTaskStatus)
	mcpServer.AddTool(tools[2], handlers.HandleListEpisodes)
	mcpServer.AddTool(tools[3], handlers.HandleGetRunStatus)

	return &Server{
		cfg:   cfg,
		mcp:   mcpServer,
		tasks: tasks,
		log:   logger,
	}
}

// Tasks exposes the task manager for embedding callers.
func (s *Server) Tasks() *TaskManager { return s.tasks }

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("Starting MCP server on stdio")
	return server.ServeStdio(s.mcp)
}

// StartHTTP blocks serving the streamable HTTP transport on cfg.Addr.
func (s *Server) StartHTTP() error {
	s.log.Info("Starting MCP server", "addr", s.cfg.Addr)
	s.http = server.NewStreamableHTTPServer(s.mcp,
		server.WithStateLess(true),
	)
	return s.http.Start(s.cfg.Addr)
}

// Shutdown stops the HTTP transport if it was started.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
