// Package outline groups the ranked picks into the episode's thematic
// segments.
package outline

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/apresai/newscast/internal/agent"
	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/llm"
	"github.com/apresai/newscast/internal/rank"
)

// wordsPerSecond converts the target duration into a word budget.
const wordsPerSecond = 2.5

// nominalSegments sizes the pause deduction before the model has decided
// the real segment count.
const nominalSegments = 3

var connectionTypes = map[string]bool{
	"cause-effect":    true,
	"common-theme":    true,
	"contrast":        true,
	"timeline":        true,
	"industry-impact": true,
}

// Segment references stories by their stable IDs; prompt-side indices never
// leave this package.
type Segment struct {
	Title          string   `json:"title"`
	StoryIDs       []string `json:"story_ids"`
	ConnectionType string   `json:"connection_type"`
	Bridge         string   `json:"bridge"`
}

type Outline struct {
	OpeningHook string    `json:"opening_hook"`
	Segments    []Segment `json:"segments"`
	WordTarget  int       `json:"word_target"`
}

// payload is the wire shape the model returns. Refs decode loosely so a
// null or junk entry can be dropped instead of failing the document.
type payload struct {
	OpeningHook string           `json:"opening_hook"`
	Segments    []payloadSegment `json:"segments"`
}

type payloadSegment struct {
	Title          string `json:"title"`
	Refs           []any  `json:"refs"`
	ConnectionType string `json:"connection_type"`
	Bridge         string `json:"bridge"`
}

type Stage struct {
	client llm.Client
	rt     *agent.Runtime
	logger *slog.Logger
}

func New(client llm.Client, rt *agent.Runtime, logger *slog.Logger) *Stage {
	return &Stage{client: client, rt: rt, logger: logger}
}

func (s *Stage) Run(ctx context.Context, runID string, picks []rank.Pick, cfg *config.DashboardConfig) (*Outline, error) {
	if len(picks) == 0 {
		return nil, agent.E(agent.KindEmptyResult, "no stories to outline")
	}

	target := wordTarget(cfg)
	user := buildUserPrompt(picks, target, cfg.Production.Style)

	raw, err := s.rt.LLMCall(ctx, runID, "Outline", func(ctx context.Context) (string, error) {
		return s.client.Complete(ctx, llm.Request{
			System:      systemPrompt,
			Prompt:      user,
			Temperature: 0.7,
			MaxTokens:   4096,
		})
	})
	if err != nil {
		return nil, err
	}

	var p payload
	if err := llm.DecodeJSON(raw, &p); err != nil {
		return nil, err
	}
	return s.assemble(p, picks, target)
}

// wordTarget is the speech budget: target duration minus the configured
// pauses, at normal speaking pace.
func wordTarget(cfg *config.DashboardConfig) int {
	secs := float64(cfg.TargetDurationSec) - cfg.TotalPauseSeconds(nominalSegments)
	if secs < 60 {
		secs = 60
	}
	return int(secs * wordsPerSecond)
}

// assemble validates the model's outline and remaps prompt indices to
// story IDs. Every pick must land in at least one segment; a model that
// dropped a story gets another attempt via the stage retry.
func (s *Stage) assemble(p payload, picks []rank.Pick, target int) (*Outline, error) {
	if strings.TrimSpace(p.OpeningHook) == "" {
		return nil, agent.E(agent.KindParseError, "outline missing opening hook")
	}
	if len(p.Segments) == 0 || len(p.Segments) > 4 {
		return nil, agent.E(agent.KindParseError, "outline has %d segments, want 2-4", len(p.Segments))
	}

	covered := make(map[int]bool)
	out := &Outline{OpeningHook: strings.TrimSpace(p.OpeningHook), WordTarget: target}

	for _, seg := range p.Segments {
		ids := make([]string, 0, len(seg.Refs))
		for _, ref := range seg.Refs {
			idx, ok := refIndex(ref)
			if !ok || idx < 0 || idx >= len(picks) {
				s.logger.Warn("Dropping invalid story ref", "ref", ref)
				continue
			}
			covered[idx] = true
			ids = append(ids, picks[idx].Story.ID)
		}
		if len(ids) == 0 {
			s.logger.Warn("Dropping segment with no valid refs", "title", seg.Title)
			continue
		}

		ct := strings.ToLower(strings.TrimSpace(seg.ConnectionType))
		if !connectionTypes[ct] {
			ct = "common-theme"
		}
		out.Segments = append(out.Segments, Segment{
			Title:          strings.TrimSpace(seg.Title),
			StoryIDs:       ids,
			ConnectionType: ct,
			Bridge:         strings.TrimSpace(seg.Bridge),
		})
	}

	if len(out.Segments) == 0 {
		return nil, agent.E(agent.KindParseError, "no usable segments in outline")
	}
	for i := range picks {
		if !covered[i] {
			return nil, agent.E(agent.KindParseError, "story %d (%s) not referenced by any segment", i, picks[i].Story.Title)
		}
	}
	return out, nil
}

func refIndex(ref any) (int, bool) {
	switch v := ref.(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}
