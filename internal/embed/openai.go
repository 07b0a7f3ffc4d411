package embed

import (
	"context"
	"errors"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/apresai/newscast/internal/agent"
)

const defaultEmbedModel = string(openai.EmbeddingModelTextEmbedding3Small)

type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

var _ Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAI(model string) (*OpenAIEmbedder, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, agent.E(agent.KindProviderAuth, "OPENAI_API_KEY not set")
	}
	if model == "" {
		model = defaultEmbedModel
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(option.WithAPIKey(key)),
		model:  model,
	}, nil
}

// FromEnv builds the embedder the ranking stage uses. EMBED_MODEL overrides
// the default text-embedding-3-small.
func FromEnv() (Embedder, error) {
	return NewOpenAI(os.Getenv("EMBED_MODEL"))
}

func (e *OpenAIEmbedder) Name() string { return "openai/" + e.model }

// Embed requests one vector per text. Rows are placed by the index the API
// reports, so a row the provider dropped stays nil rather than shifting the
// batch.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			return nil, &agent.Error{
				Kind:    agent.ClassifyStatus(apierr.StatusCode, err.Error()),
				Message: "openai embeddings",
				Err:     err,
			}
		}
		return nil, agent.WrapErr(agent.Classify(err), err, "openai embeddings")
	}
	if len(resp.Data) == 0 {
		return nil, agent.E(agent.KindTransientNetwork, "empty embedding batch from %s", e.Name())
	}

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && int(d.Index) < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	return out, nil
}
