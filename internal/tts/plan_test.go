package tts

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/newscast/internal/agent"
	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/script"
)

func testPlanner() *Planner {
	return NewPlanner(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNormalizeForSpeech(t *testing.T) {
	got := normalizeForSpeech("Hello (warmly) world [beat 300ms] again", nil)
	assert.Equal(t, "Hello world ... again", got)

	got = normalizeForSpeech("Wait for it [pause] there.", nil)
	assert.Equal(t, "Wait for it ... there.", got)

	got = normalizeForSpeech("A claim. [1] Another. [12]", nil)
	assert.Equal(t, "A claim. Another.", got)

	got = normalizeForSpeech("GenAI is here. GenAIx is not.", map[string]string{"GenAI": "gen A I"})
	assert.Equal(t, "gen A I is here. GenAIx is not.", got)

	got = normalizeForSpeech("  spaced\t\nout  ", nil)
	assert.Equal(t, "spaced out", got)
}

func TestRoleFor(t *testing.T) {
	assert.Equal(t, "host", roleFor("intro"))
	assert.Equal(t, "host", roleFor("outro"))
	assert.Equal(t, "host", roleFor("cold-open"))
	assert.Equal(t, "host", roleFor("sign-off"))
	assert.Equal(t, "analyst", roleFor("deep-dive"))
	assert.Equal(t, "host", roleFor("news-brief"))
}

func TestSpeedFor(t *testing.T) {
	assert.Equal(t, 0.93, speedFor("The company faces a lawsuit this week."))
	assert.Equal(t, 1.00, speedFor("A record launch for the platform."))
	assert.Equal(t, 0.90, speedFor("The founder died before the launch."))
	assert.Equal(t, 0.97, speedFor("A milestone for the partnership."))
	assert.Equal(t, 0.95, speedFor("The committee met on Tuesday."))
}

func TestClampSpeed(t *testing.T) {
	assert.Equal(t, 0.85, clampSpeed(0.5))
	assert.Equal(t, 1.05, clampSpeed(1.5))
	assert.Equal(t, 0.95, clampSpeed(0.95))
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"One.", "Two!", "Three?"}, splitSentences("One. Two! Three?"))
	assert.Equal(t, []string{"One.", "trailing fragment"}, splitSentences("One. trailing fragment"))
}

func TestChunkText(t *testing.T) {
	short := "A short section."
	assert.Equal(t, []string{short}, chunkText(short))

	sentence := strings.Repeat("word ", 60) + "end."
	long := strings.TrimSpace(strings.Repeat(sentence+" ", 20))
	require.Greater(t, len(long), maxUnitChars)

	chunks := chunkText(long)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), maxUnitChars)
		assert.NotEmpty(t, c)
	}
	assert.Equal(t, long, strings.Join(chunks, " "))
}

func TestBuildPlan(t *testing.T) {
	sections := []script.Section{
		{Type: "intro", Text: "Welcome back (brightly) to the show. [beat 200ms] Here we go."},
		{Type: "deep-dive", Text: "The committee met on Tuesday. [1] More details followed. [2]"},
	}

	plan, err := testPlanner().Build(sections, config.Default())
	require.NoError(t, err)
	require.Len(t, plan.Units, 2)

	intro := plan.Units[0]
	assert.Equal(t, "host", intro.Role)
	assert.Equal(t, "shimmer", intro.Voice)
	assert.Equal(t, "Welcome back to the show. ... Here we go.", intro.Text)
	assert.NotEmpty(t, intro.ID)

	dive := plan.Units[1]
	assert.Equal(t, "analyst", dive.Role)
	assert.Equal(t, "echo", dive.Voice)
	assert.Equal(t, 0.95, dive.Speed)
	assert.InDelta(t, float64(8)/wordsPerSecond, dive.DurationSec, 1e-9)

	assert.NotEqual(t, intro.ID, dive.ID)
	assert.Greater(t, plan.EstimatedSeconds(), 0.0)
}

func TestBuildPlanChunksLongSection(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("The quarter closed above every forecast on the street. ", 120))
	require.Greater(t, len(long), maxUnitChars)

	plan, err := testPlanner().Build([]script.Section{{Type: "deep-dive", Text: long}}, config.Default())
	require.NoError(t, err)
	require.Greater(t, len(plan.Units), 1)

	ids := make(map[string]bool)
	for _, u := range plan.Units {
		assert.Equal(t, "echo", u.Voice)
		assert.LessOrEqual(t, len(u.Text), maxUnitChars)
		assert.False(t, ids[u.ID])
		ids[u.ID] = true
	}
}

func TestBuildPlanEmptyIsFatal(t *testing.T) {
	sections := []script.Section{{Type: "intro", Text: "(music swells under the greeting)"}}

	_, err := testPlanner().Build(sections, config.Default())
	require.Error(t, err)
	assert.Equal(t, agent.KindEmptyResult, agent.Classify(err))
}

func TestBuildPlanVoiceOverride(t *testing.T) {
	cfg := config.Default()
	cfg.Voices = map[string]string{"analyst": "onyx"}

	plan, err := testPlanner().Build([]script.Section{{Type: "deep-dive", Text: "Plain text."}}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "onyx", plan.Units[0].Voice)
}
