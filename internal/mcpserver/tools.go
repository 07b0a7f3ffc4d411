package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/newscast/internal/pipeline"
	"github.com/apresai/newscast/internal/progress"
	"github.com/apresai/newscast/internal/runs"
)

var tracer = otel.Tracer("newscast-mcp")

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "generate_episode",
			Description: "Generate the daily news episode. Starts an async task and returns a task ID. Use get_task_status to check progress.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"date": map[string]any{
						"type":        "string",
						"description": "Episode date (YYYY-MM-DD). Defaults to today in the show timezone.",
					},
					"force_overwrite": map[string]any{
						"type":        "boolean",
						"description": "Regenerate even when an episode already exists for the date",
						"default":     false,
					},
					"window_hours": map[string]any{
						"type":        "integer",
						"description": "Override the ingestion lookback window in hours",
					},
				},
			},
		},
		{
			Name:        "get_task_status",
			Description: "Get the status of a generation task. Returns phase, progress percent, and the episode URL once complete.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "The task ID returned from generate_episode",
					},
				},
				Required: []string{"task_id"},
			},
		},
		{
			Name:        "list_episodes",
			Description: "List published and failed runs, newest first. Returns run IDs, status, story counts, and episode URLs.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results (default 20)",
						"default":     20,
					},
					"page": map[string]any{
						"type":        "integer",
						"description": "Page number, 1-based (default 1)",
						"default":     1,
					},
				},
			},
		},
		{
			Name:        "get_run_status",
			Description: "Get the durable status of one run by its ID (the episode date), including live phase progress while it is running.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"run_id": map[string]any{
						"type":        "string",
						"description": "Run ID, which is the episode date (YYYY-MM-DD)",
					},
				},
				Required: []string{"run_id"},
			},
		},
	}
}

// Handlers contains tool handler implementations.
type Handlers struct {
	tasks   *TaskManager
	runsIdx *runs.Tracker
	live    *progress.Tracker
	log     *slog.Logger
}

// NewHandlers creates tool handlers.
func NewHandlers(tasks *TaskManager, runsIdx *runs.Tracker, live *progress.Tracker, logger *slog.Logger) *Handlers {
	return &Handlers{tasks: tasks, runsIdx: runsIdx, live: live, log: logger}
}

// HandleGenerateEpisode starts a generation task.
func (h *Handlers) HandleGenerateEpisode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.generate_episode")
	defer span.End()

	opts := pipeline.Options{
		Date:           mcp.ParseString(req, "date", ""),
		ForceOverwrite: parseBoolParam(req, "force_overwrite", false),
		WindowHours:    parseIntParam(req, "window_hours", 0),
	}

	if opts.Date != "" {
		if _, err := time.Parse("2006-01-02", opts.Date); err != nil {
			span.SetStatus(codes.Error, "bad date")
			return mcp.NewToolResultError("date must be YYYY-MM-DD"), nil
		}
	}

	span.SetAttributes(
		attribute.String("date", opts.Date),
		attribute.Bool("force_overwrite", opts.ForceOverwrite),
		attribute.Int("window_hours", opts.WindowHours),
	)

	id, err := h.tasks.StartTask(ctx, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start task failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to start task: %v", err)), nil
	}

	span.SetAttributes(attribute.String("task_id", id))
	h.log.InfoContext(ctx, "Episode generation started", "task_id", id, "date", opts.Date)

	result := map[string]any{
		"task_id": id,
		"status":  string(TaskRunning),
		"message": "Episode generation started. Use get_task_status with this task_id to check progress.",
	}
	if opts.Date != "" {
		result["date"] = opts.Date
	}
	return jsonResult(result)
}

// HandleGetTaskStatus returns a task snapshot.
func (h *Handlers) HandleGetTaskStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.get_task_status")
	defer span.End()

	id := mcp.ParseString(req, "task_id", "")
	if id == "" {
		span.SetStatus(codes.Error, "missing task_id")
		return mcp.NewToolResultError("task_id is required"), nil
	}

	span.SetAttributes(attribute.String("task_id", id))

	snap, ok := h.tasks.Get(id)
	if !ok {
		span.SetStatus(codes.Error, "not found")
		return mcp.NewToolResultError(fmt.Sprintf("task %s not found", id)), nil
	}

	return jsonResult(snap)
}

// HandleListEpisodes returns a page of run summaries, newest first.
func (h *Handlers) HandleListEpisodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.list_episodes")
	defer span.End()

	limit := parseIntParam(req, "limit", 20)
	page := parseIntParam(req, "page", 1)

	span.SetAttributes(
		attribute.Int("limit", limit),
		attribute.Int("page", page),
	)

	summaries, total := h.runsIdx.List(ctx, page, limit)
	span.SetAttributes(attribute.Int("result_count", len(summaries)))

	episodes := make([]map[string]any, 0, len(summaries))
	for _, s := range summaries {
		e := map[string]any{
			"run_id":     s.RunID,
			"date":       s.Date,
			"status":     string(s.Status),
			"started_at": s.StartedAt,
		}
		if s.EpisodeURL != "" {
			e["episode_url"] = s.EpisodeURL
		}
		if s.StoriesCount > 0 {
			e["stories_count"] = s.StoriesCount
		}
		if s.DurationMs > 0 {
			e["duration_ms"] = s.DurationMs
		}
		if s.Error != "" {
			e["error"] = s.Error
		}
		episodes = append(episodes, e)
	}

	result := map[string]any{
		"episodes": episodes,
		"count":    len(episodes),
		"total":    total,
		"page":     page,
	}
	return jsonResult(result)
}

// HandleGetRunStatus returns the runs-index summary for one run, plus the
// live phase snapshot while the run is still in flight.
func (h *Handlers) HandleGetRunStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.get_run_status")
	defer span.End()

	runID := mcp.ParseString(req, "run_id", "")
	if runID == "" {
		span.SetStatus(codes.Error, "missing run_id")
		return mcp.NewToolResultError("run_id is required"), nil
	}
	if _, err := time.Parse("2006-01-02", runID); err != nil {
		span.SetStatus(codes.Error, "bad run_id")
		return mcp.NewToolResultError("run_id must be an episode date (YYYY-MM-DD)"), nil
	}

	span.SetAttributes(attribute.String("run_id", runID))

	summary, err := h.runsIdx.Get(ctx, runID)
	if err != nil {
		span.SetStatus(codes.Error, "not found")
		return mcp.NewToolResultError(fmt.Sprintf("run %s not found", runID)), nil
	}

	result := map[string]any{
		"run_id":     summary.RunID,
		"date":       summary.Date,
		"status":     string(summary.Status),
		"started_at": summary.StartedAt,
	}
	if summary.CompletedAt != nil {
		result["completed_at"] = summary.CompletedAt
	}
	if summary.DurationMs > 0 {
		result["duration_ms"] = summary.DurationMs
	}
	if summary.StoriesCount > 0 {
		result["stories_count"] = summary.StoriesCount
	}
	if summary.EpisodeURL != "" {
		result["episode_url"] = summary.EpisodeURL
	}
	if summary.Error != "" {
		result["error"] = summary.Error
	}
	if rp, ok := h.live.Get(runID); ok {
		result["progress"] = rp
	}

	return jsonResult(result)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseIntParam(req mcp.CallToolRequest, key string, defaultVal int) int {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	raw, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}

func parseBoolParam(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	if v, ok := args[key].(bool); ok {
		return v
	}
	return defaultVal
}
