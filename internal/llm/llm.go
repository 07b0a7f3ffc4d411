// Package llm abstracts the chat-completion providers behind the outline,
// scriptwriting, fact-check, and safety stages. Providers make exactly one
// API call per Complete; retry policy lives with the caller so attempts are
// counted in one place.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Request is a single completion: one system prompt, one user prompt, no
// conversation history.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
}

type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

const defaultMaxTokens = 8192

// FromEnv selects a provider from LLM_PROVIDER (default openai). LLM_MODEL
// overrides the provider's default model.
func FromEnv(ctx context.Context) (Client, error) {
	provider := strings.ToLower(os.Getenv("LLM_PROVIDER"))
	model := os.Getenv("LLM_MODEL")

	switch provider {
	case "", "openai":
		return NewOpenAI(model)
	case "anthropic", "claude":
		return NewAnthropic(model), nil
	case "nova", "bedrock":
		return NewNova(ctx, model)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}
