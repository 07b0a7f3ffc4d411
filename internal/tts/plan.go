package tts

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/apresai/newscast/internal/agent"
	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/script"
)

const (
	maxUnitChars   = 4000
	minUnitSpeed   = 0.85
	maxUnitSpeed   = 1.05
	wordsPerSecond = 2.5
)

// Unit is one synthesis call: a voice, a speed, and cleaned text short
// enough for the provider.
type Unit struct {
	ID          string  `json:"id"`
	Role        string  `json:"role"`
	Voice       string  `json:"voice"`
	Text        string  `json:"text"`
	Speed       float64 `json:"speed"`
	DurationSec float64 `json:"duration_estimate_sec"`
}

type Plan struct {
	Units []Unit `json:"units"`
}

// EstimatedSeconds sums the per-unit duration estimates.
func (p *Plan) EstimatedSeconds() float64 {
	var total float64
	for _, u := range p.Units {
		total += u.DurationSec
	}
	return total
}

// Planner turns reviewed script sections into synthesis units.
type Planner struct {
	logger *slog.Logger
}

func NewPlanner(logger *slog.Logger) *Planner {
	return &Planner{logger: logger}
}

// Build cleans each section for the synthesizer, assigns voice and speed,
// and chunks long sections at sentence boundaries. An empty plan is fatal:
// there is nothing to record.
func (p *Planner) Build(sections []script.Section, cfg *config.DashboardConfig) (*Plan, error) {
	plan := &Plan{}
	for i, sec := range sections {
		text := normalizeForSpeech(sec.Text, cfg.PronunciationGlossary)
		if text == "" {
			p.logger.Warn("Section empty after cleanup, skipped", "section", i, "type", sec.Type)
			continue
		}

		role := roleFor(sec.Type)
		voice := cfg.Voice(role)
		speed := clampSpeed(speedFor(text))

		for _, chunk := range chunkText(text) {
			words := len(strings.Fields(chunk))
			plan.Units = append(plan.Units, Unit{
				ID:          uuid.NewString(),
				Role:        role,
				Voice:       voice,
				Text:        chunk,
				Speed:       speed,
				DurationSec: float64(words) / wordsPerSecond,
			})
		}
	}

	if len(plan.Units) == 0 {
		return nil, agent.E(agent.KindEmptyResult, "synthesis plan is empty")
	}

	p.logger.Info("Synthesis plan built",
		"units", len(plan.Units), "estimated_sec", int(plan.EstimatedSeconds()))
	return plan, nil
}

// roleFor picks the speaking role for a section type. The stinger voice is
// reserved for dashboard overrides.
func roleFor(sectionType string) string {
	switch sectionType {
	case "intro", "outro", "cold-open", "sign-off":
		return "host"
	case "deep-dive":
		return "analyst"
	default:
		return "host"
	}
}

var (
	somberWords   = []string{"died", "death", "fatal", "tragedy", "shutting down"}
	seriousWords  = []string{"lawsuit", "layoff", "breach", "investigation", "recall", "outage"}
	excitingWords = []string{"breakthrough", "record", "surge", "launch", "unveil"}
	positiveWords = []string{"growth", "partnership", "expand", "milestone", "wins"}
)

// speedFor sets delivery pace from the section's tone, graver tones first.
func speedFor(text string) float64 {
	t := strings.ToLower(text)
	switch {
	case containsAny(t, somberWords):
		return 0.90
	case containsAny(t, seriousWords):
		return 0.93
	case containsAny(t, excitingWords):
		return 1.00
	case containsAny(t, positiveWords):
		return 0.97
	default:
		return 0.95
	}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func clampSpeed(s float64) float64 {
	if s < minUnitSpeed {
		return minUnitSpeed
	}
	if s > maxUnitSpeed {
		return maxUnitSpeed
	}
	return s
}

var (
	parentheticalRe = regexp.MustCompile(`\([^)]*\)`)
	pauseMarkerRe   = regexp.MustCompile(`\[(?:beat\s+\d+\s*ms|pause)\]`)
	citationRe      = regexp.MustCompile(`\[\d+\]`)
)

// normalizeForSpeech strips what should not be read aloud: stage
// directions, pause markers (mapped to ellipses), citation numbers. The
// pronunciation glossary expands tokens the voice would otherwise mangle.
func normalizeForSpeech(text string, glossary map[string]string) string {
	text = parentheticalRe.ReplaceAllString(text, " ")
	text = pauseMarkerRe.ReplaceAllString(text, " ... ")
	text = citationRe.ReplaceAllString(text, " ")
	for token, spoken := range glossary {
		if token == "" || spoken == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(token) + `\b`)
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, spoken)
	}
	return strings.Join(strings.Fields(text), " ")
}

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

// chunkText splits text over the provider limit at sentence boundaries,
// packing greedily. A single sentence over the limit becomes its own unit.
func chunkText(text string) []string {
	if len(text) <= maxUnitChars {
		return []string{text}
	}

	sentences := splitSentences(text)
	var chunks []string
	var cur strings.Builder
	for _, s := range sentences {
		if cur.Len() > 0 && cur.Len()+1+len(s) > maxUnitChars {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(s)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// splitSentences keeps any trailing fragment without terminal punctuation.
func splitSentences(text string) []string {
	var out []string
	end := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		out = append(out, strings.TrimSpace(text[loc[0]:loc[1]]))
		end = loc[1]
	}
	if rest := strings.TrimSpace(text[end:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
