package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/apresai/newscast/internal/agent"
)

var novaModels = map[string]string{
	"nova-lite": "us.amazon.nova-2-lite-v1:0",
}

type NovaClient struct {
	client *bedrockruntime.Client
	model  string
}

var _ Client = (*NovaClient)(nil)

func NewNova(ctx context.Context, model string) (*NovaClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions)

	if model == "" {
		model = "nova-lite"
	}
	if id := novaModels[model]; id != "" {
		model = id
	}
	return &NovaClient{client: bedrockruntime.NewFromConfig(cfg), model: model}, nil
}

func (c *NovaClient) Name() string { return "bedrock/" + c.model }

func (c *NovaClient) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.model),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: req.Prompt},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(maxTokens)),
			Temperature: aws.Float32(float32(req.Temperature)),
		},
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}

	resp, err := c.client.Converse(ctx, input)
	if err != nil {
		return "", &agent.Error{Kind: classifyBedrock(err), Message: "bedrock converse", Err: err}
	}

	text := converseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", agent.E(agent.KindTransientNetwork, "empty completion from %s", c.Name())
	}
	return text, nil
}

func converseText(resp *bedrockruntime.ConverseOutput) string {
	if resp.Output == nil {
		return ""
	}
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			return tb.Value
		}
	}
	return ""
}

func classifyBedrock(err error) agent.Kind {
	var (
		throttle *types.ThrottlingException
		quota    *types.ServiceQuotaExceededException
		denied   *types.AccessDeniedException
		internal *types.InternalServerException
		busy     *types.ServiceUnavailableException
		notReady *types.ModelNotReadyException
		timeout  *types.ModelTimeoutException
	)
	switch {
	case errors.As(err, &throttle):
		return agent.KindRateLimit
	case errors.As(err, &quota):
		return agent.KindProviderQuota
	case errors.As(err, &denied):
		return agent.KindProviderAuth
	case errors.As(err, &internal), errors.As(err, &busy),
		errors.As(err, &notReady), errors.As(err, &timeout):
		return agent.KindTransientNetwork
	default:
		return agent.Classify(err)
	}
}
