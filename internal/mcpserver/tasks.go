// Package mcpserver exposes episode generation to MCP clients. Generation
// is async: generate_episode returns a task id immediately and the client
// polls get_task_status. Task snapshots are process-local; durable run
// state lives in the runs index and is served by get_run_status.
package mcpserver

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/apresai/newscast/internal/observability"
	"github.com/apresai/newscast/internal/pipeline"
	"github.com/apresai/newscast/internal/progress"
)

// TaskStatus is the lifecycle state of a generation task.
type TaskStatus string

const (
	TaskRunning  TaskStatus = "running"
	TaskComplete TaskStatus = "complete"
	TaskFailed   TaskStatus = "failed"
)

// maxHistory caps how many finished task snapshots are kept for polling.
const maxHistory = 50

// TaskSnapshot is the polled view of one generation task.
type TaskSnapshot struct {
	TaskID          string     `json:"task_id"`
	RunID           string     `json:"run_id,omitempty"`
	Status          TaskStatus `json:"status"`
	ProgressPercent float64    `json:"progress_percent"`
	Phase           string     `json:"phase,omitempty"`
	Message         string     `json:"message,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	EpisodeURL      string     `json:"episode_url,omitempty"`
	Reused          bool       `json:"reused,omitempty"`
	Error           string     `json:"error,omitempty"`
}

type runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
}

// TaskManager runs generation tasks in goroutines and keeps their
// snapshots for polling.
type TaskManager struct {
	pipe    runner
	log     *slog.Logger
	baseCtx context.Context // cancelled on SIGTERM for graceful shutdown

	mu       sync.Mutex
	tasks    map[string]*TaskSnapshot
	order    []string // insertion order, oldest first
	cancels  map[string]context.CancelFunc
	maxTasks int
	running  int
}

// NewTaskManager creates a task manager. baseCtx should be cancelled on
// SIGTERM so in-flight pipeline goroutines can clean up.
func NewTaskManager(pipe runner, maxTasks int, logger *slog.Logger, baseCtx context.Context) *TaskManager {
	if maxTasks <= 0 {
		maxTasks = 2
	}
	return &TaskManager{
		pipe:     pipe,
		log:      logger,
		baseCtx:  baseCtx,
		tasks:    make(map[string]*TaskSnapshot),
		cancels:  make(map[string]context.CancelFunc),
		maxTasks: maxTasks,
	}
}

// NewTaskID generates a ULID for a new task.
func NewTaskID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

// StartTask launches pipeline.Run in a goroutine and returns the task id
// immediately. The pipeline itself rejects overlapping runs; this bound
// only stops a client from piling up goroutines.
func (tm *TaskManager) StartTask(ctx context.Context, opts pipeline.Options) (string, error) {
	id, err := NewTaskID()
	if err != nil {
		return "", err
	}

	tm.mu.Lock()
	if tm.running >= tm.maxTasks {
		tm.mu.Unlock()
		return "", fmt.Errorf("max concurrent tasks reached (%d)", tm.maxTasks)
	}
	tm.running++

	// Derive the goroutine context from baseCtx (cancelled on SIGTERM)
	// rather than the tool call context (cancelled when the response is
	// sent). Carry the trace span over for observability linking.
	taskCtx := observability.DetachTraceContextFrom(ctx, tm.baseCtx)
	taskCtx, cancel := context.WithCancel(taskCtx)
	tm.cancels[id] = cancel

	tm.tasks[id] = &TaskSnapshot{
		TaskID:    id,
		RunID:     opts.Date,
		Status:    TaskRunning,
		Message:   "Generation started",
		StartedAt: time.Now().UTC(),
	}
	tm.order = append(tm.order, id)
	tm.pruneLocked()
	tm.mu.Unlock()

	go tm.runTask(taskCtx, id, opts)

	return id, nil
}

// CancelTask cancels a running task.
func (tm *TaskManager) CancelTask(id string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if cancel, ok := tm.cancels[id]; ok {
		cancel()
	}
}

// Get returns a copy of a task's snapshot.
func (tm *TaskManager) Get(id string) (TaskSnapshot, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	snap, ok := tm.tasks[id]
	if !ok {
		return TaskSnapshot{}, false
	}
	return *snap, true
}

func (tm *TaskManager) runTask(ctx context.Context, id string, opts pipeline.Options) {
	defer func() {
		// On shutdown (SIGTERM), mark the task as failed so it doesn't
		// appear stuck in "running" forever.
		if ctx.Err() != nil {
			tm.setFailed(id, "server shutdown during generation")
			tm.log.Info("Marked task failed due to shutdown", "task_id", id)
		}
		tm.mu.Lock()
		delete(tm.cancels, id)
		tm.running--
		tm.mu.Unlock()
	}()

	// Throttle snapshot writes: max one per 2 seconds except on phase
	// transitions.
	var lastWrite time.Time
	var lastPhase progress.Phase
	opts.OnProgress = func(evt progress.Event) {
		now := time.Now()
		phaseChanged := evt.Phase != lastPhase
		if now.Sub(lastWrite) < 2*time.Second && !phaseChanged {
			return
		}
		tm.update(id, evt)
		lastWrite = now
		lastPhase = evt.Phase
	}

	start := time.Now()
	tm.log.InfoContext(ctx, "Generation task starting", "task_id", id, "date", opts.Date,
		"force_overwrite", opts.ForceOverwrite)

	res, err := tm.pipe.Run(ctx, opts)
	elapsed := time.Since(start).Round(time.Second)
	if err != nil {
		tm.setFailed(id, err.Error())
		tm.log.ErrorContext(ctx, "Generation task failed", "task_id", id,
			"error", err, "elapsed", elapsed.String())
		return
	}

	tm.setComplete(id, res)
	tm.log.InfoContext(ctx, "Generation task complete", "task_id", id,
		"run_id", res.RunID, "reused", res.Reused, "elapsed", elapsed.String())
}

func (tm *TaskManager) update(id string, evt progress.Event) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	snap, ok := tm.tasks[id]
	if !ok {
		return
	}
	snap.Phase = string(evt.Phase)
	snap.ProgressPercent = evt.Percent * 100
	snap.Message = evt.Message
}

func (tm *TaskManager) setComplete(id string, res *pipeline.Result) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	snap, ok := tm.tasks[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	snap.Status = TaskComplete
	snap.ProgressPercent = 100
	snap.Phase = string(progress.PhaseComplete)
	snap.Message = "Complete"
	snap.RunID = res.RunID
	snap.Reused = res.Reused
	snap.CompletedAt = &now
	if res.Manifest != nil {
		snap.EpisodeURL = res.Manifest.MP3URL
	}
}

func (tm *TaskManager) setFailed(id, errMsg string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	snap, ok := tm.tasks[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	snap.Status = TaskFailed
	snap.Message = "Failed: " + errMsg
	snap.Error = errMsg
	snap.CompletedAt = &now
}

// pruneLocked evicts the oldest finished snapshots past maxHistory.
// Callers hold tm.mu.
func (tm *TaskManager) pruneLocked() {
	for len(tm.order) > maxHistory {
		oldest := tm.order[0]
		if snap, ok := tm.tasks[oldest]; ok && snap.Status == TaskRunning {
			return
		}
		delete(tm.tasks, oldest)
		tm.order = tm.order[1:]
	}
}
