// Package script writes the episode script from the outline and runs the
// fact-check and safety passes over it.
package script

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/apresai/newscast/internal/agent"
	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/llm"
	"github.com/apresai/newscast/internal/outline"
	"github.com/apresai/newscast/internal/rank"
)

// Section is one block of spoken text. Citations are the deduped [n]
// markers found in the text, pointing into Script.Sources.
type Section struct {
	Type        string  `json:"type"`
	Text        string  `json:"text"`
	DurationSec float64 `json:"duration_estimate_sec,omitempty"`
	WordCount   int     `json:"word_count,omitempty"`
	Citations   []int   `json:"citations,omitempty"`
}

type Source struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Outlet string `json:"outlet"`
	URL    string `json:"url"`
}

type Script struct {
	Sections  []Section `json:"sections"`
	Sources   []Source  `json:"sources"`
	WordCount int       `json:"word_count"`
}

// Clone returns a copy whose sections can be mutated without touching the
// original.
func (s *Script) Clone() *Script {
	out := *s
	out.Sections = append([]Section(nil), s.Sections...)
	return &out
}

func (s *Script) recountWords() {
	parts := make([]string, 0, len(s.Sections))
	for _, sec := range s.Sections {
		parts = append(parts, sec.Text)
	}
	s.WordCount = len(strings.Fields(strings.Join(parts, " ")))
}

var citationRe = regexp.MustCompile(`\[(\d+)\]`)

// extractCitations pulls the [n] markers out of spoken text, deduped in
// order of first appearance.
func extractCitations(text string) []int {
	seen := make(map[int]bool)
	var out []int
	for _, m := range citationRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// applyRevision swaps in a reviewer's rewritten text. A nil or empty
// revision means the section stands as written.
func applyRevision(sec *Section, revised *string) bool {
	if revised == nil {
		return false
	}
	text := strings.TrimSpace(*revised)
	if text == "" || text == sec.Text {
		return false
	}
	sec.Text = text
	sec.WordCount = len(strings.Fields(text))
	sec.Citations = extractCitations(text)
	return true
}

type scriptPayload struct {
	Sections []struct {
		Type                string  `json:"type"`
		Text                string  `json:"text"`
		DurationEstimateSec float64 `json:"duration_estimate_sec"`
		WordCount           int     `json:"word_count"`
	} `json:"sections"`
}

// Writer turns an outline into the full episode script with one batched
// model call.
type Writer struct {
	client llm.Client
	rt     *agent.Runtime
	logger *slog.Logger
}

func NewWriter(client llm.Client, rt *agent.Runtime, logger *slog.Logger) *Writer {
	return &Writer{client: client, rt: rt, logger: logger}
}

func (w *Writer) Run(ctx context.Context, runID string, o *outline.Outline, picks []rank.Pick, cfg *config.DashboardConfig) (*Script, error) {
	user := buildScriptPrompt(o, picks, cfg.Production.Style, cfg.RumorFilter)

	raw, err := w.rt.LLMCall(ctx, runID, "Scriptwriter", func(ctx context.Context) (string, error) {
		return w.client.Complete(ctx, llm.Request{
			System:      writerSystemPrompt,
			Prompt:      user,
			Temperature: 0.7,
			MaxTokens:   8192,
		})
	})
	if err != nil {
		return nil, err
	}

	var p scriptPayload
	if err := llm.DecodeJSON(raw, &p); err != nil {
		return nil, err
	}
	return assembleScript(p, picks)
}

func assembleScript(p scriptPayload, picks []rank.Pick) (*Script, error) {
	if len(p.Sections) == 0 {
		return nil, agent.E(agent.KindParseError, "script has no sections")
	}

	script := &Script{}
	types := make(map[string]bool)
	for i, sec := range p.Sections {
		text := strings.TrimSpace(sec.Text)
		if text == "" {
			return nil, agent.E(agent.KindParseError, "script section %d has empty text", i)
		}
		secType := strings.ToLower(strings.TrimSpace(sec.Type))
		if secType == "" {
			secType = "news-brief"
		}
		types[secType] = true
		script.Sections = append(script.Sections, Section{
			Type:        secType,
			Text:        text,
			DurationSec: sec.DurationEstimateSec,
			WordCount:   len(strings.Fields(text)),
			Citations:   extractCitations(text),
		})
	}

	if !types["intro"] || !types["outro"] {
		return nil, agent.E(agent.KindParseError, "script missing intro or outro section")
	}

	for i, pick := range picks {
		script.Sources = append(script.Sources, Source{
			Number: i + 1,
			Title:  pick.Story.Title,
			Outlet: pick.Story.Source,
			URL:    pick.Story.URL,
		})
	}
	script.recountWords()
	return script, nil
}
