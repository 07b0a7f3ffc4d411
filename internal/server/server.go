// Package server is the HTTP surface: run triggers, run history, live
// progress, the podcast feed, episode streaming, dashboard config, health,
// and play stats. Handlers stay thin; everything stateful lives in the
// pipeline and its collaborators.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apresai/newscast/internal/pipeline"
	"github.com/apresai/newscast/internal/plays"
)

// Server owns the router and the listeners' shared dependencies.
type Server struct {
	pipe   *pipeline.Pipeline
	plays  *plays.Store
	logger *slog.Logger

	http *http.Server
}

// NewServer wires the HTTP surface. plays may be nil when play tracking is
// not configured; GET /stats then reports the feature as disabled.
func NewServer(pipe *pipeline.Pipeline, playStore *plays.Store, logger *slog.Logger) *Server {
	return &Server{pipe: pipe, plays: playStore, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	r.POST("/run", s.requireCronSecret(), s.handleRun)
	r.GET("/runs", s.handleRuns)
	r.DELETE("/runs/:id", s.handleDeleteRun)
	r.GET("/progress", s.handleProgress)
	r.GET("/podcast/feed", s.handleFeed)
	r.GET("/podcast/episodes", s.handleEpisode)
	r.GET("/config", s.handleGetConfig)
	r.PUT("/config", s.requireDashboardAuth(), s.handlePutConfig)
	r.GET("/health", s.handleHealth)
	r.GET("/stats", s.handleStats)
	return r
}

// Start serves until Shutdown or a listener error. Blocks; run it in a
// goroutine and watch for http.ErrServerClosed.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests within the context's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// requestLog emits one structured line per request.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.InfoContext(c.Request.Context(), "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP())
	}
}
