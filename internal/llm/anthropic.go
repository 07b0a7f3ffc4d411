package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/apresai/newscast/internal/agent"
)

var claudeModels = map[string]string{
	"haiku":  "claude-haiku-4-5-20251001",
	"sonnet": "claude-sonnet-4-5-20250929",
}

type AnthropicClient struct {
	client anthropic.Client
	model  string
}

var _ Client = (*AnthropicClient)(nil)

// NewAnthropic resolves model aliases ("haiku", "sonnet") to pinned model
// IDs; unknown names pass through unchanged. The API key comes from
// ANTHROPIC_API_KEY via the SDK.
func NewAnthropic(model string) *AnthropicClient {
	if model == "" {
		model = "haiku"
	}
	if id := claudeModels[model]; id != "" {
		model = id
	}
	return &AnthropicClient{client: anthropic.NewClient(), model: model}
}

func (c *AnthropicClient) Name() string { return "anthropic/" + c.model }

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			return "", &agent.Error{
				Kind:    agent.ClassifyStatus(apierr.StatusCode, err.Error()),
				Message: "anthropic message",
				Err:     err,
			}
		}
		return "", agent.WrapErr(agent.Classify(err), err, "anthropic message")
	}

	text := messageText(message)
	if strings.TrimSpace(text) == "" {
		return "", agent.E(agent.KindTransientNetwork, "empty completion from %s", c.Name())
	}
	return text, nil
}

func messageText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "")
}
