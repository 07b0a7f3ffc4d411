package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/apresai/newscast/internal/agent"
)

var (
	scratchpadRe = regexp.MustCompile(`(?s)<scratchpad>.*?</scratchpad>`)
	fenceRe      = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\n?```")
)

// CleanJSON strips the decoration models wrap around JSON payloads:
// scratchpad tags, markdown fences, and prose before the first brace or
// after the last one.
func CleanJSON(text string) string {
	text = scratchpadRe.ReplaceAllString(text, "")
	if matches := fenceRe.FindStringSubmatch(text); len(matches) > 1 {
		text = matches[1]
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// DecodeJSON cleans a completion and unmarshals it into v. Failures come
// back as parse errors so the stage retry gets another attempt at the model.
func DecodeJSON(text string, v any) error {
	cleaned := CleanJSON(text)
	if cleaned == "" {
		return agent.E(agent.KindParseError, "no JSON content in completion")
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return &agent.Error{
			Kind:    agent.KindParseError,
			Message: fmt.Sprintf("invalid JSON (first 500 chars: %s)", truncate(cleaned, 500)),
			Err:     err,
		}
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
