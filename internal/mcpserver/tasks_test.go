package mcpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/newscast/internal/pipeline"
	"github.com/apresai/newscast/internal/progress"
	"github.com/apresai/newscast/internal/runs"
)

type stubRunner struct {
	mu     sync.Mutex
	block  chan struct{}
	result *pipeline.Result
	err    error
	events []progress.Event
	calls  int
}

func (s *stubRunner) Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	for _, evt := range s.events {
		if opts.OnProgress != nil {
			opts.OnProgress(evt)
		}
	}
	if s.block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.block:
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	res := *s.result
	if res.RunID == "" {
		res.RunID = opts.Date
	}
	return &res, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartTaskCompletesWithManifest(t *testing.T) {
	stub := &stubRunner{
		result: &pipeline.Result{
			Manifest: &runs.Manifest{MP3URL: "https://cdn.example.com/episodes/2026-08-24_daily_rohit_news.mp3"},
		},
	}
	tm := NewTaskManager(stub, 2, discardLogger(), context.Background())

	id, err := tm.StartTask(context.Background(), pipeline.Options{Date: "2026-08-24"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		snap, ok := tm.Get(id)
		return ok && snap.Status == TaskComplete
	}, 2*time.Second, 10*time.Millisecond)

	snap, ok := tm.Get(id)
	require.True(t, ok)
	assert.Equal(t, "2026-08-24", snap.RunID)
	assert.Equal(t, "https://cdn.example.com/episodes/2026-08-24_daily_rohit_news.mp3", snap.EpisodeURL)
	assert.InDelta(t, 100.0, snap.ProgressPercent, 1e-9)
	assert.NotNil(t, snap.CompletedAt)
	assert.False(t, snap.Reused)
}

func TestTaskSnapshotThrottlesSamePhase(t *testing.T) {
	release := make(chan struct{})
	stub := &stubRunner{
		block:  release,
		result: &pipeline.Result{Manifest: &runs.Manifest{}},
		events: []progress.Event{
			{Phase: progress.PhaseIngestion, Message: "first", Percent: 0.15},
			{Phase: progress.PhaseIngestion, Message: "second", Percent: 0.15},
			{Phase: progress.PhaseRanking, Message: "third", Percent: 0.25},
		},
	}
	tm := NewTaskManager(stub, 2, discardLogger(), context.Background())

	id, err := tm.StartTask(context.Background(), pipeline.Options{Date: "2026-08-24"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, ok := tm.Get(id)
		return ok && snap.Phase == string(progress.PhaseRanking)
	}, 2*time.Second, 10*time.Millisecond)

	// The second ingestion event landed inside the 2s window with no phase
	// change, so its message was never written.
	snap, _ := tm.Get(id)
	assert.Equal(t, "third", snap.Message)

	close(release)
	require.Eventually(t, func() bool {
		snap, ok := tm.Get(id)
		return ok && snap.Status == TaskComplete
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartTaskBoundsConcurrency(t *testing.T) {
	release := make(chan struct{})
	stub := &stubRunner{block: release, result: &pipeline.Result{Manifest: &runs.Manifest{}}}
	tm := NewTaskManager(stub, 1, discardLogger(), context.Background())

	first, err := tm.StartTask(context.Background(), pipeline.Options{Date: "2026-08-24"})
	require.NoError(t, err)

	_, err = tm.StartTask(context.Background(), pipeline.Options{Date: "2026-08-25"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max concurrent tasks reached (1)")

	close(release)
	require.Eventually(t, func() bool {
		snap, ok := tm.Get(first)
		return ok && snap.Status == TaskComplete
	}, 2*time.Second, 10*time.Millisecond)

	// The slot freed up once the first task finished.
	require.Eventually(t, func() bool {
		_, err := tm.StartTask(context.Background(), pipeline.Options{Date: "2026-08-26"})
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTaskFailureRecorded(t *testing.T) {
	stub := &stubRunner{err: errors.New("no enabled topics: every topic weight is zero")}
	tm := NewTaskManager(stub, 2, discardLogger(), context.Background())

	id, err := tm.StartTask(context.Background(), pipeline.Options{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, ok := tm.Get(id)
		return ok && snap.Status == TaskFailed
	}, 2*time.Second, 10*time.Millisecond)

	snap, _ := tm.Get(id)
	assert.Contains(t, snap.Error, "no enabled topics")
	assert.Contains(t, snap.Message, "Failed:")
	assert.NotNil(t, snap.CompletedAt)
}

func TestShutdownMarksRunningTaskFailed(t *testing.T) {
	baseCtx, cancel := context.WithCancel(context.Background())
	stub := &stubRunner{block: make(chan struct{}), result: &pipeline.Result{Manifest: &runs.Manifest{}}}
	tm := NewTaskManager(stub, 2, discardLogger(), baseCtx)

	id, err := tm.StartTask(context.Background(), pipeline.Options{Date: "2026-08-24"})
	require.NoError(t, err)

	cancel()

	require.Eventually(t, func() bool {
		snap, ok := tm.Get(id)
		return ok && snap.Status == TaskFailed
	}, 2*time.Second, 10*time.Millisecond)

	snap, _ := tm.Get(id)
	assert.Equal(t, "server shutdown during generation", snap.Error)
}

func TestGetUnknownTask(t *testing.T) {
	tm := NewTaskManager(&stubRunner{}, 2, discardLogger(), context.Background())
	_, ok := tm.Get("01K3DOESNOTEXIST0000000000")
	assert.False(t, ok)
}
