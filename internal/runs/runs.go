// Package runs holds the process-wide active-run interlock and the
// append-only index of run summaries at runs/index.json.
package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/apresai/newscast/internal/storage"
)

// IndexKey is the object-store location of the runs index.
const IndexKey = "runs/index.json"

// maxIndexEntries caps the index; older summaries fall off on every write.
const maxIndexEntries = 100

// Status is the lifecycle state of a run summary.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// RunSummary is one line of the runs index.
type RunSummary struct {
	RunID        string     `json:"run_id"`
	Date         string     `json:"date"`
	Status       Status     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	DurationMs   int64      `json:"duration_ms,omitempty"`
	StoriesCount int        `json:"stories_count,omitempty"`
	EpisodeURL   string     `json:"episode_url,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Index is the persisted form of runs/index.json, newest first.
type Index struct {
	Runs        []RunSummary `json:"runs"`
	LastUpdated time.Time    `json:"last_updated"`
}

// Tracker is the single-slot concurrency guard plus index writer. The
// guard is advisory within one process; cross-instance exclusion comes
// from the date-level idempotency check in the orchestrator.
type Tracker struct {
	storage storage.Storage
	logger  *slog.Logger

	mu        sync.Mutex
	activeRun string
}

func NewTracker(st storage.Storage, logger *slog.Logger) *Tracker {
	return &Tracker{storage: st, logger: logger}
}

// StartRun atomically claims the active-run slot. Returns false when
// another run holds it. On success the index gains a running entry.
func (t *Tracker) StartRun(ctx context.Context, runID, date string) bool {
	t.mu.Lock()
	if t.activeRun != "" {
		t.mu.Unlock()
		return false
	}
	t.activeRun = runID
	t.mu.Unlock()

	t.upsert(ctx, RunSummary{
		RunID:     runID,
		Date:      date,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	})
	return true
}

// CompleteRun releases the guard and records success in the index.
func (t *Tracker) CompleteRun(ctx context.Context, runID string, m *Manifest) {
	t.release(runID)

	now := time.Now().UTC()
	summary := RunSummary{
		RunID:       runID,
		Status:      StatusSuccess,
		CompletedAt: &now,
	}
	if m != nil {
		summary.Date = m.Date
		summary.StoriesCount = len(m.Picks)
		summary.EpisodeURL = m.MP3URL
	}
	t.upsert(ctx, summary)
}

// FailRun releases the guard and records the failure.
func (t *Tracker) FailRun(ctx context.Context, runID, errMsg string) {
	t.release(runID)

	now := time.Now().UTC()
	t.upsert(ctx, RunSummary{
		RunID:       runID,
		Status:      StatusFailed,
		CompletedAt: &now,
		Error:       errMsg,
	})
}

// ActiveRun returns the run currently holding the slot, if any.
func (t *Tracker) ActiveRun() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeRun
}

func (t *Tracker) release(runID string) {
	t.mu.Lock()
	if t.activeRun == runID {
		t.activeRun = ""
	}
	t.mu.Unlock()
}

// upsert moves the run's summary to the front of the index, carrying
// forward fields the caller did not set, then truncates and persists.
func (t *Tracker) upsert(ctx context.Context, summary RunSummary) {
	idx := t.loadIndex(ctx)

	rest := make([]RunSummary, 0, len(idx.Runs))
	for _, r := range idx.Runs {
		if r.RunID == summary.RunID {
			if summary.StartedAt.IsZero() {
				summary.StartedAt = r.StartedAt
			}
			if summary.Date == "" {
				summary.Date = r.Date
			}
			continue
		}
		rest = append(rest, r)
	}

	if summary.CompletedAt != nil && !summary.StartedAt.IsZero() {
		summary.DurationMs = summary.CompletedAt.Sub(summary.StartedAt).Milliseconds()
	}

	idx.Runs = append([]RunSummary{summary}, rest...)
	if len(idx.Runs) > maxIndexEntries {
		idx.Runs = idx.Runs[:maxIndexEntries]
	}
	idx.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		t.logger.ErrorContext(ctx, "Marshal runs index failed", "error", err)
		return
	}
	if err := t.storage.Put(ctx, IndexKey, data, "application/json"); err != nil {
		t.logger.ErrorContext(ctx, "Persist runs index failed", "error", err)
	}
}

// loadIndex degrades to an empty index on any error, never fails.
func (t *Tracker) loadIndex(ctx context.Context) *Index {
	data, err := t.storage.Get(ctx, IndexKey)
	if err != nil {
		return &Index{}
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		t.logger.WarnContext(ctx, "Runs index unreadable, starting fresh", "error", err)
		return &Index{}
	}
	return &idx
}

// List returns one page of summaries (newest first) plus the total count.
// Pages are 1-based.
func (t *Tracker) List(ctx context.Context, page, pageSize int) ([]RunSummary, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	idx := t.loadIndex(ctx)
	total := len(idx.Runs)
	start := (page - 1) * pageSize
	if start >= total {
		return []RunSummary{}, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return idx.Runs[start:end], total
}

// Get returns the summary for one run.
func (t *Tracker) Get(ctx context.Context, runID string) (*RunSummary, error) {
	idx := t.loadIndex(ctx)
	for i := range idx.Runs {
		if idx.Runs[i].RunID == runID {
			return &idx.Runs[i], nil
		}
	}
	return nil, fmt.Errorf("run %s not in index", runID)
}

// GetManifest reads the episode manifest written at publication.
func (t *Tracker) GetManifest(ctx context.Context, runID string) (*Manifest, error) {
	data, err := t.storage.Get(ctx, ManifestKey(runID))
	if err != nil {
		return nil, fmt.Errorf("load manifest for %s: %w", runID, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest for %s: %w", runID, err)
	}
	return &m, nil
}

// Delete removes a run's mp3, manifest, and index entry.
func (t *Tracker) Delete(ctx context.Context, runID string) error {
	if err := t.storage.Delete(ctx, EpisodeKey(runID)); err != nil {
		return err
	}
	if err := t.storage.Delete(ctx, ManifestKey(runID)); err != nil {
		return err
	}

	idx := t.loadIndex(ctx)
	kept := idx.Runs[:0]
	for _, r := range idx.Runs {
		if r.RunID != runID {
			kept = append(kept, r)
		}
	}
	idx.Runs = kept
	idx.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal runs index: %w", err)
	}
	return t.storage.Put(ctx, IndexKey, data, "application/json")
}

// ManifestKey is the manifest path for a run; run ids are episode dates.
func ManifestKey(runID string) string {
	return fmt.Sprintf("episodes/%s_manifest.json", runID)
}

// EpisodeKey is the mp3 path for a run.
func EpisodeKey(runID string) string {
	return fmt.Sprintf("episodes/%s_daily_rohit_news.mp3", runID)
}
