package script

import (
	"context"
	"log/slog"

	"github.com/apresai/newscast/internal/agent"
	"github.com/apresai/newscast/internal/llm"
)

type safetyPayload struct {
	Sections []struct {
		RevisedText *string  `json:"revised_text"`
		Changes     []string `json:"changes"`
		RiskLevel   string   `json:"risk_level"`
	} `json:"sections"`
}

var riskOrder = map[string]int{"low": 0, "medium": 1, "high": 2}

// maxRisk returns the higher of two risk levels. Unknown labels count as
// low so a malformed level never escalates an episode.
func maxRisk(a, b string) string {
	if riskOrder[b] > riskOrder[a] {
		return b
	}
	return a
}

// Safety runs the standards pass over every section, including intro and
// outro.
type Safety struct {
	client llm.Client
	rt     *agent.Runtime
	logger *slog.Logger
}

func NewSafety(client llm.Client, rt *agent.Runtime, logger *slog.Logger) *Safety {
	return &Safety{client: client, rt: rt, logger: logger}
}

// Run returns the reviewed script, the list of changes made, and the
// episode risk level (the maximum across sections). A high risk level is
// logged, not fatal: the episode still ships and the report carries the
// flag.
func (s *Safety) Run(ctx context.Context, runID string, sc *Script) (*Script, []string, string, error) {
	if len(sc.Sections) == 0 {
		return sc, nil, "low", nil
	}

	user := buildSafetyPrompt(sc.Sections)
	raw, err := s.rt.LLMCall(ctx, runID, "SafetyReviewer", func(ctx context.Context) (string, error) {
		return s.client.Complete(ctx, llm.Request{
			System:      safetySystemPrompt,
			Prompt:      user,
			Temperature: 0.2,
			MaxTokens:   8192,
		})
	})
	if err != nil {
		return nil, nil, "", err
	}

	var p safetyPayload
	if err := llm.DecodeJSON(raw, &p); err != nil {
		return nil, nil, "", err
	}
	if len(p.Sections) != len(sc.Sections) {
		return nil, nil, "", agent.E(agent.KindParseError, "safety review returned %d results for %d sections", len(p.Sections), len(sc.Sections))
	}

	reviewed := sc.Clone()
	risk := "low"
	var changes []string
	for i, res := range p.Sections {
		applyRevision(&reviewed.Sections[i], res.RevisedText)
		changes = append(changes, res.Changes...)
		risk = maxRisk(risk, res.RiskLevel)
	}
	reviewed.recountWords()

	if risk == "high" {
		s.logger.Warn("Safety review flagged high risk", "changes", len(changes))
	} else {
		s.logger.Info("Safety review complete", "risk", risk, "changes", len(changes))
	}
	return reviewed, changes, risk, nil
}
