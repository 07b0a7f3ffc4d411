// Package agent is the envelope every pipeline stage runs inside: typed
// input/output, stage-level retries, timing, api-call accounting, and
// artifact persistence under runs/<run_id>/agents/.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/apresai/newscast/internal/storage"
)

const (
	defaultAttempts     = 3
	defaultInitialDelay = time.Second
	llmExtraAttempts    = 3
	llmBackoffCap       = 10 * time.Second
)

// Envelope is the persisted record of one stage execution.
type Envelope struct {
	Agent      string          `json:"agent"`
	RunID      string          `json:"run_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	Errors     []string        `json:"errors,omitempty"`
	Artifacts  []string        `json:"artifacts,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	APICalls   int             `json:"api_calls"`
}

// Runtime executes stages and keeps the process-wide api-call table.
type Runtime struct {
	storage storage.Storage
	logger  *slog.Logger

	attempts     int
	initialDelay time.Duration

	mu    sync.Mutex
	calls map[string]map[string]int // run_id -> agent -> count
}

func NewRuntime(st storage.Storage, logger *slog.Logger) *Runtime {
	return &Runtime{
		storage:      st,
		logger:       logger,
		attempts:     defaultAttempts,
		initialDelay: defaultInitialDelay,
		calls:        make(map[string]map[string]int),
	}
}

// RecordAPICall bumps the counter for one provider call. Stages invoke it
// for embedding and synthesis calls; LLMCall does it automatically.
func (r *Runtime) RecordAPICall(runID, agent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls[runID] == nil {
		r.calls[runID] = make(map[string]int)
	}
	r.calls[runID][agent]++
}

// Calls returns a copy of the per-agent call counts for a run.
func (r *Runtime) Calls(runID string) map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.calls[runID]))
	for agent, n := range r.calls[runID] {
		out[agent] = n
	}
	return out
}

// ClearRun drops a run's call counts once its report is compiled.
func (r *Runtime) ClearRun(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.calls, runID)
}

func (r *Runtime) resetCalls(runID, agent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls[runID] == nil {
		r.calls[runID] = make(map[string]int)
	}
	r.calls[runID][agent] = 0
}

func (r *Runtime) callCount(runID, agent string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[runID][agent]
}

// Execute wraps one stage: retry the process function, time it, persist
// the envelope on success and on failure, and log both ends. The returned
// error carries the agent name.
func Execute[I, O any](ctx context.Context, r *Runtime, name, runID string, input I, process func(context.Context, I) (O, error)) (O, error) {
	r.resetCalls(runID, name)
	r.logger.InfoContext(ctx, "Agent starting", "agent", name, "run_id", runID)
	start := time.Now()

	var out O
	var err error
	delay := r.initialDelay
	for attempt := 1; attempt <= r.attempts; attempt++ {
		out, err = process(ctx, input)
		if err == nil {
			break
		}
		r.logger.WarnContext(ctx, "Agent attempt failed",
			"agent", name, "run_id", runID, "attempt", attempt, "error", err)
		if attempt == r.attempts || !executeRetryable(err) {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			attempt = r.attempts
		case <-time.After(delay):
			delay *= 2
		}
	}

	env := Envelope{
		Agent:      name,
		RunID:      runID,
		Timestamp:  start.UTC(),
		DurationMs: time.Since(start).Milliseconds(),
		APICalls:   r.callCount(runID, name),
	}
	if in, merr := json.Marshal(input); merr == nil {
		env.Input = in
	}
	if err == nil {
		if o, merr := json.Marshal(out); merr == nil {
			env.Output = o
		}
	} else {
		env.Errors = append(env.Errors, err.Error())
	}

	key := fmt.Sprintf("runs/%s/agents/%s.json", runID, name)
	if data, merr := json.MarshalIndent(env, "", "  "); merr == nil {
		if perr := r.storage.Put(ctx, key, data, "application/json"); perr != nil {
			r.logger.WarnContext(ctx, "Envelope persist failed", "agent", name, "key", key, "error", perr)
		}
	}

	if err != nil {
		r.logger.ErrorContext(ctx, "Agent failed",
			"agent", name, "run_id", runID, "duration_ms", env.DurationMs, "error", err)
		return out, fmt.Errorf("%s: %w", name, err)
	}
	r.logger.InfoContext(ctx, "Agent completed",
		"agent", name, "run_id", runID, "duration_ms", env.DurationMs, "api_calls", env.APICalls)
	return out, nil
}

// LLMCall runs one model call under the nested retry policy: up to three
// retries at 1s/2s/4s (capped), only for rate limits and transient network
// failures. Every attempt counts against the run's api-call table.
func (r *Runtime) LLMCall(ctx context.Context, runID, agent string, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	backoff := time.Second
	for attempt := 0; attempt <= llmExtraAttempts; attempt++ {
		if attempt > 0 {
			d := backoff
			if d > llmBackoffCap {
				d = llmBackoffCap
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(d):
			}
			backoff *= 2
		}

		r.RecordAPICall(runID, agent)
		out, err := call(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !Retryable(err) {
			return "", err
		}
		r.logger.WarnContext(ctx, "Model call retrying",
			"agent", agent, "run_id", runID, "attempt", attempt+1, "error", err)
	}
	return "", fmt.Errorf("model call exhausted retries: %w", lastErr)
}
