package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/newscast/internal/agent"
	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/llm"
	"github.com/apresai/newscast/internal/pipeline"
	"github.com/apresai/newscast/internal/plays"
	"github.com/apresai/newscast/internal/progress"
	"github.com/apresai/newscast/internal/publish"
	"github.com/apresai/newscast/internal/runs"
	"github.com/apresai/newscast/internal/storage"
)

type inertLLM struct{}

func (inertLLM) Complete(context.Context, llm.Request) (string, error) {
	return "", fmt.Errorf("llm should not be called")
}
func (inertLLM) Name() string { return "inert" }

type inertEmbedder struct{}

func (inertEmbedder) Name() string { return "inert" }
func (inertEmbedder) Embed(context.Context, []string) ([][]float64, error) {
	return nil, fmt.Errorf("embedder should not be called")
}

type inertSynth struct{}

func (inertSynth) Name() string { return "inert" }
func (inertSynth) Synthesize(context.Context, string, string, float64) ([]byte, error) {
	return nil, fmt.Errorf("synth should not be called")
}
func (inertSynth) Close() error { return nil }

func testServer(t *testing.T) (*Server, storage.Storage, *pipeline.Pipeline) {
	t.Helper()
	t.Setenv("CRON_SECRET", "")
	t.Setenv("SCRAPE_FULL_TEXT", "")
	st, err := storage.NewFS(t.TempDir(), "https://cdn.example.com")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pipe := pipeline.New(pipeline.Deps{
		Storage:  st,
		Runtime:  agent.NewRuntime(st, logger),
		LLM:      inertLLM{},
		Embedder: inertEmbedder{},
		Synth:    inertSynth{},
		Runs:     runs.NewTracker(st, logger),
		Progress: progress.NewTracker(),
		Logger:   logger,
	})
	return NewServer(pipe, nil, logger), st, pipe
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func seedConfig(t *testing.T, st storage.Storage, mutate func(*config.DashboardConfig)) {
	t.Helper()
	cfg := config.Default()
	cfg.Version = 1
	if mutate != nil {
		mutate(cfg)
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, st.Put(context.Background(), config.Key, data, "application/json"))
}

func seedEpisode(t *testing.T, st storage.Storage, date string) *runs.Manifest {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, runs.EpisodeKey(date), []byte("mp3-bytes-0123456789"), "audio/mpeg"))
	m := &runs.Manifest{
		Date:        date,
		RunID:       date,
		MP3URL:      "https://cdn.example.com/" + runs.EpisodeKey(date),
		DurationSec: 840,
		WordCount:   2100,
		Picks:       []runs.ManifestPick{{Title: "A story", Topic: "AI"}},
		GeneratedAt: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, runs.ManifestKey(date), data, "application/json"))
	return m
}

func TestRunReturnsStoredEpisode(t *testing.T) {
	s, st, _ := testServer(t)
	seedConfig(t, st, nil)
	m := seedEpisode(t, st, "2026-08-24")

	req := httptest.NewRequest(http.MethodPost, "/run", bytes.NewBufferString(`{"date":"2026-08-24"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, s, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	episode := body["episode"].(map[string]any)
	assert.Equal(t, m.MP3URL, episode["mp3_url"])
	metrics := body["metrics"].(map[string]any)
	assert.Equal(t, true, metrics["reused"])
}

func TestRunFailureEnvelope(t *testing.T) {
	s, st, _ := testServer(t)
	seedConfig(t, st, func(cfg *config.DashboardConfig) {
		for i := range cfg.Topics {
			cfg.Topics[i].Weight = 0
		}
	})

	req := httptest.NewRequest(http.MethodPost, "/run", bytes.NewBufferString(`{"date":"2026-08-24"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, s, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "no enabled topics")
	assert.Contains(t, body, "metrics")
}

func TestRunCronSecret(t *testing.T) {
	s, st, _ := testServer(t)
	seedConfig(t, st, nil)
	seedEpisode(t, st, "2026-08-24")
	t.Setenv("CRON_SECRET", "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/run", bytes.NewBufferString(`{"date":"2026-08-24"}`))
	w := do(t, s, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/run", bytes.NewBufferString(`{"date":"2026-08-24"}`))
	req.Header.Set("X-Cron-Secret", "s3cret")
	w = do(t, s, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRunsListDetailAndDelete(t *testing.T) {
	s, st, pipe := testServer(t)
	m := seedEpisode(t, st, "2026-08-24")

	ctx := context.Background()
	require.True(t, pipe.Runs().StartRun(ctx, "2026-08-24", "2026-08-24"))
	pipe.Runs().CompleteRun(ctx, "2026-08-24", m)

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["total"])

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/runs?runId=2026-08-24", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Contains(t, body, "summary")
	assert.Contains(t, body, "manifest")

	w = do(t, s, httptest.NewRequest(http.MethodDelete, "/runs/2026-08-24", nil))
	require.Equal(t, http.StatusOK, w.Code)

	exists, err := st.Exists(ctx, runs.EpisodeKey("2026-08-24"))
	require.NoError(t, err)
	assert.False(t, exists)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/runs?runId=2026-08-24", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProgressEndpoint(t *testing.T) {
	s, _, pipe := testServer(t)
	pipe.Progress().AddUpdate("2026-08-24", progress.PhaseIngestion, "in_progress", "Scanning feeds", nil)

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/progress?runId=2026-08-24", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "in_progress", body["status"])

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/progress", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/progress?runId=2000-01-01", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeedStored(t *testing.T) {
	s, st, _ := testServer(t)
	stored := []byte(`<?xml version="1.0"?><rss version="2.0"></rss>`)
	require.NoError(t, st.Put(context.Background(), publish.FeedKey, stored, publish.FeedContentType))

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/podcast/feed", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, stored, w.Body.Bytes())
	assert.Equal(t, publish.FeedContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
}

func TestFeedSynthesizedFromIndex(t *testing.T) {
	s, st, pipe := testServer(t)
	m := seedEpisode(t, st, "2026-08-24")

	ctx := context.Background()
	require.True(t, pipe.Runs().StartRun(ctx, "2026-08-24", "2026-08-24"))
	pipe.Runs().CompleteRun(ctx, "2026-08-24", m)

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/podcast/feed", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=300", w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Body.String(), "<rss")
	assert.Contains(t, w.Body.String(), m.MP3URL)
}

func TestEpisodeRangeRequests(t *testing.T) {
	s, st, _ := testServer(t)
	require.NoError(t, st.Put(context.Background(), runs.EpisodeKey("2026-08-24"), []byte("0123456789"), "audio/mpeg"))

	req := httptest.NewRequest(http.MethodGet, "/podcast/episodes?date=2026-08-24", nil)
	req.Header.Set("Range", "bytes=2-5")
	w := do(t, s, req)
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "2345", w.Body.String())
	assert.Equal(t, "bytes 2-5/10", w.Header().Get("Content-Range"))
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/podcast/episodes", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/podcast/episodes?date=2000-01-01", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfigReadAndAuthedWrite(t *testing.T) {
	s, _, _ := testServer(t)
	t.Setenv("DASHBOARD_USER", "admin")
	t.Setenv("DASHBOARD_PASS", "pw")
	t.Setenv("DASHBOARD_TOKEN", "")

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/config", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 0, body["version"])

	cfg := config.Default()
	payload, err := json.Marshal(cfg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/config", bytes.NewReader(payload))
	w = do(t, s, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPut, "/config", bytes.NewReader(payload))
	req.SetBasicAuth("admin", "pw")
	w = do(t, s, req)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.EqualValues(t, 1, body["version"])

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/config", nil))
	body = decode(t, w)
	assert.EqualValues(t, 1, body["version"])
}

func TestConfigBearerToken(t *testing.T) {
	s, _, _ := testServer(t)
	t.Setenv("DASHBOARD_USER", "")
	t.Setenv("DASHBOARD_PASS", "")
	t.Setenv("DASHBOARD_TOKEN", "tok-123")

	payload, err := json.Marshal(config.Default())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/config", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer wrong")
	w := do(t, s, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPut, "/config", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer tok-123")
	w = do(t, s, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	s, st, _ := testServer(t)
	seedEpisode(t, st, "2026-08-24")

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	storageCheck := body["storage"].(map[string]any)
	assert.Equal(t, true, storageCheck["ok"])
	assert.EqualValues(t, 1, body["episodes"])
}

func TestStatsDisabledWithoutStore(t *testing.T) {
	s, _, _ := testServer(t)
	w := do(t, s, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["enabled"])
}

type fakePlaysAPI struct {
	scanOut  *dynamodb.ScanOutput
	queryOut *dynamodb.QueryOutput
}

func (f *fakePlaysAPI) UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return &dynamodb.UpdateItemOutput{}, nil
}
func (f *fakePlaysAPI) PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return &dynamodb.PutItemOutput{}, nil
}
func (f *fakePlaysAPI) Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return f.queryOut, nil
}
func (f *fakePlaysAPI) Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return f.scanOut, nil
}

func TestStatsTotals(t *testing.T) {
	s, _, _ := testServer(t)
	s.plays = plays.New(&fakePlaysAPI{scanOut: &dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{
		{
			"PK":    &types.AttributeValueMemberS{Value: "PLAY#2026-08-24"},
			"SK":    &types.AttributeValueMemberS{Value: "TOTAL"},
			"plays": &types.AttributeValueMemberN{Value: "12"},
		},
	}}}, "plays")

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["enabled"])
	episodes := body["episodes"].([]any)
	require.Len(t, episodes, 1)
	first := episodes[0].(map[string]any)
	assert.Equal(t, "2026-08-24", first["episode"])
	assert.EqualValues(t, 12, first["plays"])
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := testServer(t)
	w := do(t, s, httptest.NewRequest(http.MethodGet, "/run", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
