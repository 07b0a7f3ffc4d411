package script

import (
	"context"
	"log/slog"

	"github.com/apresai/newscast/internal/agent"
	"github.com/apresai/newscast/internal/llm"
	"github.com/apresai/newscast/internal/rank"
)

type factcheckPayload struct {
	Sections []struct {
		RevisedText *string  `json:"revised_text"`
		Edits       []string `json:"edits"`
		Flags       []string `json:"flags"`
	} `json:"sections"`
}

// FactChecker verifies script claims against source material in one batched
// model call. Intro and outro sections carry no factual claims and are not
// sent.
type FactChecker struct {
	client llm.Client
	rt     *agent.Runtime
	logger *slog.Logger
}

func NewFactChecker(client llm.Client, rt *agent.Runtime, logger *slog.Logger) *FactChecker {
	return &FactChecker{client: client, rt: rt, logger: logger}
}

// Run returns the checked script and the reviewer's notes: edits made
// plus any claims it could not verify.
func (f *FactChecker) Run(ctx context.Context, runID string, sc *Script, picks []rank.Pick) (*Script, []string, error) {
	var idxs []int
	for i, sec := range sc.Sections {
		if sec.Type == "intro" || sec.Type == "outro" {
			continue
		}
		idxs = append(idxs, i)
	}
	if len(idxs) == 0 {
		return sc, nil, nil
	}

	user := buildFactcheckPrompt(sc.Sections, idxs, sc.Sources)
	raw, err := f.rt.LLMCall(ctx, runID, "FactChecker", func(ctx context.Context) (string, error) {
		return f.client.Complete(ctx, llm.Request{
			System:      factcheckSystemPrompt,
			Prompt:      user,
			Temperature: 0.2,
			MaxTokens:   8192,
		})
	})
	if err != nil {
		return nil, nil, err
	}

	var p factcheckPayload
	if err := llm.DecodeJSON(raw, &p); err != nil {
		return nil, nil, err
	}
	if len(p.Sections) != len(idxs) {
		return nil, nil, agent.E(agent.KindParseError, "fact-check returned %d results for %d sections", len(p.Sections), len(idxs))
	}

	checked := sc.Clone()
	var notes []string
	edited := 0
	for i, res := range p.Sections {
		sec := &checked.Sections[idxs[i]]
		if applyRevision(sec, res.RevisedText) {
			edited++
			for _, e := range res.Edits {
				f.logger.Info("Fact-check edit", "section", idxs[i], "edit", e)
			}
			notes = append(notes, res.Edits...)
		}
		notes = append(notes, res.Flags...)
	}
	checked.recountWords()

	f.logger.Info("Fact-check complete", "sections_checked", len(idxs), "sections_edited", edited, "notes", len(notes))
	return checked, notes, nil
}
