package server

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/pipeline"
	"github.com/apresai/newscast/internal/runs"
)

type runRequest struct {
	Date           string `json:"date"`
	ForceOverwrite bool   `json:"force_overwrite"`
	WindowHours    int    `json:"window_hours"`
}

// handleRun triggers one pipeline run and blocks until it finishes. The
// scheduler Lambda and the dashboard both call this.
func (s *Server) handleRun(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}
	if req.Date == "" {
		req.Date = c.Query("date")
	}
	if !req.ForceOverwrite {
		req.ForceOverwrite, _ = strconv.ParseBool(c.Query("force_overwrite"))
	}
	if req.WindowHours == 0 {
		req.WindowHours, _ = strconv.Atoi(c.Query("window_hours"))
	}

	start := time.Now()
	res, err := s.pipe.Run(c.Request.Context(), pipeline.Options{
		Date:           req.Date,
		ForceOverwrite: req.ForceOverwrite,
		WindowHours:    req.WindowHours,
	})
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		metrics := gin.H{"elapsed_ms": elapsed}
		if req.Date != "" {
			if rp, ok := s.pipe.Progress().Get(req.Date); ok {
				metrics["progress"] = rp
			}
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
			"metrics": metrics,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"episode": res.Manifest,
		"metrics": gin.H{"elapsed_ms": elapsed, "run_id": res.RunID, "reused": res.Reused},
	})
}

// handleRuns serves the paginated index, or one run's summary+manifest
// when ?runId= is present.
func (s *Server) handleRuns(c *gin.Context) {
	ctx := c.Request.Context()

	if runID := c.Query("runId"); runID != "" {
		summary, err := s.pipe.Runs().Get(ctx, runID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		out := gin.H{"summary": summary}
		if m, err := s.pipe.Runs().GetManifest(ctx, runID); err == nil {
			out["manifest"] = m
		}
		c.JSON(http.StatusOK, out)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	list, total := s.pipe.Runs().List(ctx, page, pageSize)
	c.JSON(http.StatusOK, gin.H{
		"runs":     list,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

func (s *Server) handleDeleteRun(c *gin.Context) {
	runID := c.Param("id")
	if err := s.pipe.Runs().Delete(c.Request.Context(), runID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": runID})
}

func (s *Server) handleProgress(c *gin.Context) {
	runID := c.Query("runId")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "runId query parameter is required"})
		return
	}
	rp, ok := s.pipe.Progress().Get(runID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no progress for run"})
		return
	}
	c.JSON(http.StatusOK, rp)
}

func (s *Server) handleGetConfig(c *gin.Context) {
	cfg, err := config.Load(c.Request.Context(), s.pipe.Storage())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) handlePutConfig(c *gin.Context) {
	var cfg config.DashboardConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := config.Save(c.Request.Context(), s.pipe.Storage(), &cfg, authUser(c)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, &cfg)
}

// handleHealth reports env presence, a storage round-trip, and what the
// store currently holds. Degraded storage turns the response 503.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	env := gin.H{}
	for _, key := range []string{"OPENAI_API_KEY", "STORAGE_BACKEND", "S3_BUCKET", "PODCAST_BASE_URL", "CRON_SECRET"} {
		env[key] = os.Getenv(key) != ""
	}

	healthy := true
	st := s.pipe.Storage()

	storageCheck := gin.H{"ok": true}
	probe := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	if err := st.Put(ctx, "health/probe", probe, "text/plain"); err != nil {
		healthy = false
		storageCheck = gin.H{"ok": false, "error": err.Error()}
	} else if got, err := st.Get(ctx, "health/probe"); err != nil || string(got) != string(probe) {
		healthy = false
		storageCheck = gin.H{"ok": false, "error": "probe read mismatch"}
	} else {
		_ = st.Delete(ctx, "health/probe")
	}

	indexPresent, _ := st.Exists(ctx, runs.IndexKey)

	episodes := 0
	if keys, err := st.List(ctx, "episodes/"); err == nil {
		for _, k := range keys {
			if strings.HasSuffix(k, "_manifest.json") {
				episodes++
			}
		}
	}

	status := http.StatusOK
	body := gin.H{
		"status":     "ok",
		"env":        env,
		"storage":    storageCheck,
		"runs_index": indexPresent,
		"episodes":   episodes,
	}
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// handleStats serves play counts. Without a configured play store the
// feature reports itself off instead of failing.
func (s *Server) handleStats(c *gin.Context) {
	if s.plays == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	ctx := c.Request.Context()

	if episode := c.Query("episode"); episode != "" {
		days, err := s.plays.EpisodeDays(ctx, episode)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"enabled": true, "episode": episode, "days": days})
		return
	}

	totals, err := s.plays.Totals(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "episodes": totals})
}
