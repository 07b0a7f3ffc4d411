package server

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/publish"
	"github.com/apresai/newscast/internal/runs"
	"github.com/apresai/newscast/internal/storage"
)

// handleFeed serves the stored feed.xml, or synthesizes one from the runs
// index when the store has none yet. A synthesized feed gets a short cache
// life so the stored one takes over quickly.
func (s *Server) handleFeed(c *gin.Context) {
	ctx := c.Request.Context()

	doc, err := s.pipe.Storage().Get(ctx, publish.FeedKey)
	if err == nil {
		c.Header("Cache-Control", "public, max-age=3600")
		c.Data(http.StatusOK, publish.FeedContentType, doc)
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cfg, err := config.Load(ctx, s.pipe.Storage())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	summaries, _ := s.pipe.Runs().List(ctx, 1, 100)
	doc = publish.Synthesize(cfg.Podcast, summaries, time.Now().UTC())

	s.logger.InfoContext(ctx, "Served synthesized feed", "episodes", len(summaries))
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, publish.FeedContentType, doc)
}

// handleEpisode streams one episode's mp3 with HTTP Range support, so
// podcast players can seek and resume.
func (s *Server) handleEpisode(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date query parameter is required (YYYY-MM-DD)"})
		return
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
		return
	}

	ctx := c.Request.Context()
	data, err := s.pipe.Storage().Get(ctx, runs.EpisodeKey(date))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no episode for date"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	modTime := time.Time{}
	if m, err := s.pipe.Runs().GetManifest(ctx, date); err == nil {
		modTime = m.GeneratedAt
	}

	c.Header("Content-Type", "audio/mpeg")
	http.ServeContent(c.Writer, c.Request, date+".mp3", modTime, bytes.NewReader(data))
}
