package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/newscast/internal/storage"
)

func testTracker(t *testing.T) (*Tracker, storage.Storage) {
	t.Helper()
	st, err := storage.NewFS(t.TempDir(), "")
	require.NoError(t, err)
	return NewTracker(st, slog.New(slog.NewTextHandler(io.Discard, nil))), st
}

func TestStartRunClaimsSlotOnce(t *testing.T) {
	tr, _ := testTracker(t)
	ctx := context.Background()

	assert.True(t, tr.StartRun(ctx, "2026-08-24", "2026-08-24"))
	assert.False(t, tr.StartRun(ctx, "2026-08-25", "2026-08-25"))
	assert.Equal(t, "2026-08-24", tr.ActiveRun())

	tr.CompleteRun(ctx, "2026-08-24", nil)
	assert.Empty(t, tr.ActiveRun())
	assert.True(t, tr.StartRun(ctx, "2026-08-25", "2026-08-25"))
}

func TestConcurrentStartRunGrantsExactlyOne(t *testing.T) {
	tr, _ := testTracker(t)
	ctx := context.Background()

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if tr.StartRun(ctx, fmt.Sprintf("run-%d", n), "2026-08-24") {
				granted.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), granted.Load())
}

func TestCompleteRunUpdatesIndexEntry(t *testing.T) {
	tr, st := testTracker(t)
	ctx := context.Background()

	require.True(t, tr.StartRun(ctx, "2026-08-24", "2026-08-24"))
	tr.CompleteRun(ctx, "2026-08-24", &Manifest{
		Date:   "2026-08-24",
		RunID:  "2026-08-24",
		MP3URL: "https://news.example.com/episodes/2026-08-24_daily_rohit_news.mp3",
		Picks:  []ManifestPick{{StoryID: "a"}, {StoryID: "b"}},
	})

	entries, total := tr.List(ctx, 1, 10)
	require.Equal(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusSuccess, entries[0].Status)
	assert.Equal(t, 2, entries[0].StoriesCount)
	assert.NotNil(t, entries[0].CompletedAt)
	assert.NotEmpty(t, entries[0].EpisodeURL)

	// Only one entry per run survives the status change.
	data, err := st.Get(ctx, IndexKey)
	require.NoError(t, err)
	var idx Index
	require.NoError(t, json.Unmarshal(data, &idx))
	assert.Len(t, idx.Runs, 1)
}

func TestFailRunRecordsError(t *testing.T) {
	tr, _ := testTracker(t)
	ctx := context.Background()

	require.True(t, tr.StartRun(ctx, "2026-08-24", "2026-08-24"))
	tr.FailRun(ctx, "2026-08-24", "ingestion: all sources failed")

	got, err := tr.Get(ctx, "2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "all sources failed")
	assert.Empty(t, tr.ActiveRun())
}

func TestIndexTruncatesAtCap(t *testing.T) {
	tr, _ := testTracker(t)
	ctx := context.Background()

	for i := 0; i < maxIndexEntries+20; i++ {
		id := fmt.Sprintf("2026-01-%03d", i)
		require.True(t, tr.StartRun(ctx, id, id))
		tr.CompleteRun(ctx, id, nil)
	}

	_, total := tr.List(ctx, 1, 10)
	assert.Equal(t, maxIndexEntries, total)

	// Newest entry is first.
	entries, _ := tr.List(ctx, 1, 1)
	require.Len(t, entries, 1)
	assert.Equal(t, fmt.Sprintf("2026-01-%03d", maxIndexEntries+19), entries[0].RunID)
}

func TestListPaginates(t *testing.T) {
	tr, _ := testTracker(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("2026-08-2%d", i)
		require.True(t, tr.StartRun(ctx, id, id))
		tr.CompleteRun(ctx, id, nil)
	}

	page2, total := tr.List(ctx, 2, 2)
	assert.Equal(t, 5, total)
	require.Len(t, page2, 2)
	assert.Equal(t, "2026-08-22", page2[0].RunID)

	empty, _ := tr.List(ctx, 9, 2)
	assert.Empty(t, empty)
}

func TestCorruptIndexDegradesToEmpty(t *testing.T) {
	tr, st := testTracker(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, IndexKey, []byte("not json"), "application/json"))

	entries, total := tr.List(ctx, 1, 10)
	assert.Empty(t, entries)
	assert.Zero(t, total)
	assert.True(t, tr.StartRun(ctx, "2026-08-24", "2026-08-24"))
}

func TestGetManifestRoundTrip(t *testing.T) {
	tr, st := testTracker(t)
	ctx := context.Background()

	m := Manifest{Date: "2026-08-24", RunID: "2026-08-24", DurationSec: 887.5, WordCount: 2200}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, ManifestKey("2026-08-24"), data, "application/json"))

	got, err := tr.GetManifest(ctx, "2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-24", got.RunID)
	assert.InDelta(t, 887.5, got.DurationSec, 1e-9)
}

func TestDeleteRemovesArtifactsAndEntry(t *testing.T) {
	tr, st := testTracker(t)
	ctx := context.Background()

	require.True(t, tr.StartRun(ctx, "2026-08-24", "2026-08-24"))
	tr.CompleteRun(ctx, "2026-08-24", nil)
	require.NoError(t, st.Put(ctx, EpisodeKey("2026-08-24"), []byte{0xFF}, "audio/mpeg"))
	require.NoError(t, st.Put(ctx, ManifestKey("2026-08-24"), []byte("{}"), "application/json"))

	require.NoError(t, tr.Delete(ctx, "2026-08-24"))

	ok, _ := st.Exists(ctx, EpisodeKey("2026-08-24"))
	assert.False(t, ok)
	_, total := tr.List(ctx, 1, 10)
	assert.Zero(t, total)
}
