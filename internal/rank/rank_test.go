package rank

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/ingest"
)

// fakeEmbedder maps exact input texts to fixed vectors. Unknown texts come
// back nil, which the stage must treat as a skip.
type fakeEmbedder struct {
	vectors  map[string][]float64
	embedded []string
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		f.embedded = append(f.embedded, t)
		out[i] = f.vectors[t]
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func twoTopics() []config.TopicConfig {
	return []config.TopicConfig{
		{Label: "AI", Weight: 0.6, Keywords: []string{"ai", "llm"}},
		{Label: "Verizon", Weight: 0.4, Keywords: []string{"verizon", "fios"}},
	}
}

func story(id, title, topic string, published time.Time) ingest.Story {
	return ingest.Story{
		ID:        id,
		Title:     title,
		Summary:   "summary of " + title,
		Domain:    "reuters.com",
		Topic:     topic,
		Published: published,
	}
}

func TestTopicTargetsProportional(t *testing.T) {
	topics := []config.TopicConfig{
		{Label: "AI", Weight: 0.5},
		{Label: "Verizon", Weight: 0.3},
		{Label: "Accenture", Weight: 0.2},
	}

	targets := topicTargets(topics, 8)
	assert.Equal(t, map[string]int{"AI": 4, "Verizon": 2, "Accenture": 2}, targets)
}

func TestTopicTargetsSlackGoesToHeaviest(t *testing.T) {
	topics := []config.TopicConfig{
		{Label: "AI", Weight: 0.5},
		{Label: "Verizon", Weight: 0.3},
		{Label: "Accenture", Weight: 0.2},
	}

	// Rounding gives 3+2+1=6; the extra slot over 5 comes off AI.
	targets := topicTargets(topics, 5)
	assert.Equal(t, map[string]int{"AI": 2, "Verizon": 2, "Accenture": 1}, targets)

	total := 0
	for _, n := range targets {
		total += n
	}
	assert.Equal(t, 5, total)
}

func TestTopicTargetsMinimumOne(t *testing.T) {
	topics := []config.TopicConfig{
		{Label: "AI", Weight: 0.9},
		{Label: "Verizon", Weight: 0.05},
		{Label: "Accenture", Weight: 0.05},
	}

	targets := topicTargets(topics, 4)
	assert.GreaterOrEqual(t, targets["Verizon"], 1)
	assert.GreaterOrEqual(t, targets["Accenture"], 1)
	assert.Equal(t, 2, targets["AI"])
}

func TestScoreStoryFormula(t *testing.T) {
	now := time.Now()
	st := story("s1", "fresh ai story", "AI", now)

	topicVecs := map[string][]float64{
		"AI":      {1, 0},
		"Verizon": {0, 1},
	}
	weights := map[string]float64{"ai": 0.5, "verizon": 0.3}

	sc := scoreStory(st, []float64{1, 0}, topicVecs, weights, now)

	// recency 1.0, topic 1.0, authority 1.0 (reuters), weight 0.5, bonus 0.
	assert.InDelta(t, 1.0, sc.recency, 1e-9)
	assert.InDelta(t, 1.0, sc.topicScore, 1e-9)
	assert.InDelta(t, 1.0, sc.authority, 1e-9)
	assert.InDelta(t, 0.0, sc.bonus, 1e-9)
	assert.InDelta(t, 0.25+0.35*0.5+0.15+0.15*0.5, sc.final, 1e-9)
}

func TestScoreStoryRecencyDecay(t *testing.T) {
	now := time.Now()
	topicVecs := map[string][]float64{"AI": {1, 0}}
	weights := map[string]float64{"ai": 0.5}

	day := scoreStory(story("s", "t", "AI", now.Add(-24*time.Hour)), []float64{1, 0}, topicVecs, weights, now)
	assert.InDelta(t, 0.5, day.recency, 1e-6)

	stale := scoreStory(story("s", "t", "AI", now.Add(-96*time.Hour)), []float64{1, 0}, topicVecs, weights, now)
	assert.Zero(t, stale.recency)
}

func TestScoreStoryMultiTopicBonus(t *testing.T) {
	now := time.Now()
	topicVecs := map[string][]float64{
		"AI":      {1, 0},
		"Verizon": {1, 0}, // overlapping topic, similarity 1 > 0.65
	}
	weights := map[string]float64{"ai": 0.5, "verizon": 0.3}

	sc := scoreStory(story("s", "t", "AI", now), []float64{1, 0}, topicVecs, weights, now)
	assert.InDelta(t, 0.3*1.0*0.5, sc.bonus, 1e-9)
}

func TestScoreStoryDefaultWeight(t *testing.T) {
	now := time.Now()
	sc := scoreStory(story("s", "t", "Unknown", now), []float64{1, 0}, map[string][]float64{}, map[string]float64{}, now)
	assert.InDelta(t, defaultTopicWeight, sc.weight, 1e-9)
}

func TestRunEmptyInput(t *testing.T) {
	fe := &fakeEmbedder{vectors: map[string][]float64{}}
	s := New(fe, testLogger())

	picks, report, err := s.Run(context.Background(), nil, twoTopics(), 5)
	require.NoError(t, err)
	assert.Empty(t, picks)
	assert.Zero(t, report.Considered)
	assert.Empty(t, fe.embedded)
}

func TestRunSelectsAndOrders(t *testing.T) {
	now := time.Now()
	a1 := story("a1", "top ai story", "AI", now)
	a2 := story("a2", "duplicate ai story", "AI", now)
	a3 := story("a3", "second ai angle", "AI", now)
	v1 := story("v1", "verizon story", "Verizon", now)

	fe := &fakeEmbedder{vectors: map[string][]float64{
		a1.Title + ". " + a1.Summary: {1, 0, 0},
		a2.Title + ". " + a2.Summary: {0.99, 0.1, 0},
		a3.Title + ". " + a3.Summary: {0.7, 0.7, 0},
		v1.Title + ". " + v1.Summary: {0, 1, 0},
		"ai, llm":                    {1, 0, 0},
		"verizon, fios":              {0, 1, 0},
	}}
	s := New(fe, testLogger())

	picks, report, err := s.Run(context.Background(), []ingest.Story{a1, a2, a3, v1}, twoTopics(), 3)
	require.NoError(t, err)

	// Targets: AI 2, Verizon 1. a2 is nearly identical to a1 and loses to
	// the diversity guard; a3 takes the second AI slot.
	require.Len(t, picks, 3)
	assert.Equal(t, "a1", picks[0].Story.ID)
	assert.Equal(t, "a3", picks[1].Story.ID)
	assert.Equal(t, "v1", picks[2].Story.ID)

	assert.Equal(t, 3, report.Selected)
	assert.Equal(t, map[string]int{"AI": 2, "Verizon": 1}, report.ByTopic)

	require.Len(t, report.Rejections, 1)
	assert.Equal(t, "duplicate ai story", report.Rejections[0].Title)
	assert.Contains(t, report.Rejections[0].Reason, "diversity constraint")
}

func TestRunQuotaRejections(t *testing.T) {
	now := time.Now()
	a1 := story("a1", "first", "AI", now)
	a2 := story("a2", "second", "AI", now.Add(-10*time.Hour))

	fe := &fakeEmbedder{vectors: map[string][]float64{
		a1.Title + ". " + a1.Summary: {1, 0},
		a2.Title + ". " + a2.Summary: {0, 1},
		"ai, llm":                    {1, 0},
		"verizon, fios":              {0.5, 0.5},
	}}
	s := New(fe, testLogger())

	picks, report, err := s.Run(context.Background(), []ingest.Story{a1, a2}, twoTopics(), 2)
	require.NoError(t, err)

	// Targets: AI 1, Verizon 1. Only one AI slot, no Verizon stories.
	require.Len(t, picks, 1)
	assert.Equal(t, "a1", picks[0].Story.ID)

	require.Len(t, report.Rejections, 1)
	assert.Contains(t, report.Rejections[0].Reason, "quota")
}

func TestRunSkipsMissingEmbeddings(t *testing.T) {
	now := time.Now()
	a1 := story("a1", "has vector", "AI", now)
	a2 := story("a2", "no vector", "AI", now)

	fe := &fakeEmbedder{vectors: map[string][]float64{
		a1.Title + ". " + a1.Summary: {1, 0},
		"ai, llm":                    {1, 0},
		"verizon, fios":              {0, 1},
	}}
	s := New(fe, testLogger())

	picks, report, err := s.Run(context.Background(), []ingest.Story{a1, a2}, twoTopics(), 2)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, 1, report.Skipped)
}

func TestTopicVectorCache(t *testing.T) {
	now := time.Now()
	a1 := story("a1", "cached run", "AI", now)

	fe := &fakeEmbedder{vectors: map[string][]float64{
		a1.Title + ". " + a1.Summary: {1, 0},
		"ai, llm":                    {1, 0},
		"verizon, fios":              {0, 1},
	}}
	s := New(fe, testLogger())

	_, _, err := s.Run(context.Background(), []ingest.Story{a1}, twoTopics(), 2)
	require.NoError(t, err)
	_, _, err = s.Run(context.Background(), []ingest.Story{a1}, twoTopics(), 2)
	require.NoError(t, err)

	bundles := 0
	for _, text := range fe.embedded {
		if text == "ai, llm" || text == "verizon, fios" {
			bundles++
		}
	}
	assert.Equal(t, 2, bundles, "each topic bundle should be embedded exactly once across runs")
}
