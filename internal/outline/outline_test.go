package outline

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/newscast/internal/agent"
	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/ingest"
	"github.com/apresai/newscast/internal/llm"
	"github.com/apresai/newscast/internal/rank"
	"github.com/apresai/newscast/internal/storage"
)

type fakeClient struct {
	reply    string
	requests []llm.Request
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Complete(_ context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.reply, nil
}

func testStage(t *testing.T, reply string) (*Stage, *fakeClient, *agent.Runtime) {
	t.Helper()
	st, err := storage.NewFS(t.TempDir(), "")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := agent.NewRuntime(st, logger)
	fc := &fakeClient{reply: reply}
	return New(fc, rt, logger), fc, rt
}

func testPicks() []rank.Pick {
	return []rank.Pick{
		{Story: ingest.Story{ID: "aaa111", Title: "AI story", Topic: "AI", Source: "Reuters", Summary: "s1"}},
		{Story: ingest.Story{ID: "bbb222", Title: "Verizon story", Topic: "Verizon", Source: "CNBC", Summary: "s2"}},
		{Story: ingest.Story{ID: "ccc333", Title: "Accenture story", Topic: "Accenture", Source: "FT", Summary: "s3"}},
	}
}

const goodReply = `{
  "opening_hook": "Three stories, one thread: the AI buildout is reshaping who gets paid.",
  "segments": [
    {"title": "The model race", "refs": [0], "connection_type": "industry-impact", "bridge": "And that compute bill lands on the carriers."},
    {"title": "Who pays for the pipes", "refs": [1, 2], "connection_type": "common-theme", "bridge": "That's the day."}
  ]
}`

func TestRunRemapsRefsToStoryIDs(t *testing.T) {
	s, fc, rt := testStage(t, goodReply)
	cfg := config.Default()

	out, err := s.Run(context.Background(), "2026-08-24", testPicks(), cfg)
	require.NoError(t, err)

	require.Len(t, out.Segments, 2)
	assert.Equal(t, []string{"aaa111"}, out.Segments[0].StoryIDs)
	assert.Equal(t, []string{"bbb222", "ccc333"}, out.Segments[1].StoryIDs)
	assert.Equal(t, "industry-impact", out.Segments[0].ConnectionType)
	assert.NotEmpty(t, out.OpeningHook)

	assert.Equal(t, 1, rt.Calls("2026-08-24")["Outline"])
	require.Len(t, fc.requests, 1)
	assert.Contains(t, fc.requests[0].Prompt, "0. [AI] AI story (Reuters)")
}

func TestRunEmptyPicks(t *testing.T) {
	s, _, _ := testStage(t, goodReply)

	_, err := s.Run(context.Background(), "2026-08-24", nil, config.Default())
	require.Error(t, err)
	assert.Equal(t, agent.KindEmptyResult, agent.Classify(err))
}

func TestAssembleRejectsMissingCoverage(t *testing.T) {
	s, _, _ := testStage(t, "")

	p := payload{
		OpeningHook: "hook",
		Segments: []payloadSegment{
			{Title: "only one", Refs: []any{float64(0)}, ConnectionType: "timeline", Bridge: "b"},
		},
	}
	_, err := s.assemble(p, testPicks(), 2000)
	require.Error(t, err)
	assert.Equal(t, agent.KindParseError, agent.Classify(err))
	assert.Contains(t, err.Error(), "not referenced")
}

func TestAssembleFiltersInvalidRefs(t *testing.T) {
	s, _, _ := testStage(t, "")

	p := payload{
		OpeningHook: "hook",
		Segments: []payloadSegment{
			{Title: "a", Refs: []any{float64(0), nil, "junk", float64(99)}, ConnectionType: "contrast", Bridge: "b"},
			{Title: "b", Refs: []any{"1", float64(2)}, ConnectionType: "made-up-type", Bridge: "b"},
		},
	}
	out, err := s.assemble(p, testPicks(), 2000)
	require.NoError(t, err)

	assert.Equal(t, []string{"aaa111"}, out.Segments[0].StoryIDs)
	assert.Equal(t, []string{"bbb222", "ccc333"}, out.Segments[1].StoryIDs)
	assert.Equal(t, "common-theme", out.Segments[1].ConnectionType, "unknown connection types fall back")
}

func TestAssembleRejectsTooManySegments(t *testing.T) {
	s, _, _ := testStage(t, "")

	p := payload{OpeningHook: "hook"}
	for i := 0; i < 5; i++ {
		p.Segments = append(p.Segments, payloadSegment{Refs: []any{float64(0)}})
	}
	_, err := s.assemble(p, testPicks(), 2000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want 2-4")
}

func TestAssembleRejectsMissingHook(t *testing.T) {
	s, _, _ := testStage(t, "")

	p := payload{Segments: []payloadSegment{{Refs: []any{float64(0)}}}}
	_, err := s.assemble(p, testPicks(), 2000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening hook")
}

func TestWordTarget(t *testing.T) {
	cfg := config.Default()
	cfg.TargetDurationSec = 900
	cfg.Production.IntroPauseMs = 500
	cfg.Production.OutroPauseMs = 500
	cfg.Production.SegmentPauseMs = 800

	// 900s minus 2.6s of pauses at 2.5 words/sec.
	want := (900 - 2.6) * 2.5
	assert.Equal(t, int(want), wordTarget(cfg))
}
