// Package progress tracks per-run phase snapshots for the status API and
// renders live progress for the CLI. Tracker state is process-local and
// lossy on restart.
package progress

import (
	"sync"
	"time"
)

// Phase identifies which pipeline phase is active.
type Phase string

const (
	PhaseStarting      Phase = "starting"
	PhaseIngestion     Phase = "ingestion"
	PhaseRanking       Phase = "ranking"
	PhaseOutline       Phase = "outline"
	PhaseScriptwriting Phase = "scriptwriting"
	PhaseFactCheck     Phase = "fact_check"
	PhaseSafety        Phase = "safety"
	PhaseTTS           Phase = "tts"
	PhaseAudio         Phase = "audio"
	PhasePublishing    Phase = "publishing"
	PhaseComplete      Phase = "complete"
)

// phasePercent fixes how far through a run each phase is.
var phasePercent = map[Phase]int{
	PhaseStarting:      5,
	PhaseIngestion:     15,
	PhaseRanking:       25,
	PhaseOutline:       35,
	PhaseScriptwriting: 50,
	PhaseFactCheck:     60,
	PhaseSafety:        65,
	PhaseTTS:           70,
	PhaseAudio:         85,
	PhasePublishing:    95,
	PhaseComplete:      100,
}

// Percent returns the fixed progress value for a phase.
func Percent(p Phase) int { return phasePercent[p] }

// retention is how long a run's snapshot survives after it started.
const retention = time.Hour

// Update is one timestamped progress event within a run.
type Update struct {
	Phase     Phase          `json:"phase"`
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// RunProgress is the live snapshot served by GET /progress.
type RunProgress struct {
	RunID        string    `json:"run_id"`
	Status       string    `json:"status"`
	CurrentPhase Phase     `json:"current_phase"`
	Progress     int       `json:"progress"`
	StartedAt    time.Time `json:"started_at"`
	Updates      []Update  `json:"updates"`
}

// Tracker holds in-memory progress per run.
type Tracker struct {
	mu   sync.Mutex
	runs map[string]*RunProgress
}

func NewTracker() *Tracker {
	return &Tracker{runs: make(map[string]*RunProgress)}
}

// AddUpdate appends an update and moves the run's progress to the phase's
// fixed percent. A "failed" status pins the run as failed; reaching 100
// marks it completed.
func (t *Tracker) AddUpdate(runID string, phase Phase, status, message string, details map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rp, ok := t.runs[runID]
	if !ok {
		rp = &RunProgress{
			RunID:     runID,
			Status:    "running",
			StartedAt: time.Now().UTC(),
		}
		t.runs[runID] = rp
	}

	rp.CurrentPhase = phase
	rp.Progress = phasePercent[phase]
	rp.Updates = append(rp.Updates, Update{
		Phase:     phase,
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	})

	switch {
	case status == "failed":
		rp.Status = "failed"
	case rp.Status != "failed" && rp.Progress >= 100:
		rp.Status = "completed"
	}
}

// Get returns a copy of a run's snapshot.
func (t *Tracker) Get(runID string) (RunProgress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rp, ok := t.runs[runID]
	if !ok {
		return RunProgress{}, false
	}
	cp := *rp
	cp.Updates = append([]Update(nil), rp.Updates...)
	return cp, true
}

// ClearOldRuns evicts snapshots started more than an hour ago and returns
// how many were removed.
func (t *Tracker) ClearOldRuns() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().UTC().Add(-retention)
	removed := 0
	for id, rp := range t.runs {
		if rp.StartedAt.Before(cutoff) {
			delete(t.runs, id)
			removed++
		}
	}
	return removed
}

// Event carries progress information from the pipeline to the renderer.
type Event struct {
	Phase   Phase
	Message string
	Percent float64 // 0.0-1.0
	Elapsed time.Duration
	Error   error
	// EpisodeURL is set on PhaseComplete with the published artifact url.
	EpisodeURL string
	// Duration is the episode duration string (e.g. "14:47"), set on PhaseComplete.
	Duration string
	// SizeMB is the episode size in MB, set on PhaseComplete.
	SizeMB float64
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// NewEvent creates an Event with common fields populated.
func NewEvent(phase Phase, msg string, start time.Time) Event {
	return Event{
		Phase:   phase,
		Message: msg,
		Percent: float64(phasePercent[phase]) / 100,
		Elapsed: time.Since(start),
	}
}
