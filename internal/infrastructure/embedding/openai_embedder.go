package embedding

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"hippos/internal/domain/vector"
	pkgerrors "hippos/pkg/errors"
)

// OpenAIEmbedder is an EmbeddingProvider backed by OpenAI's embeddings
// API. It is an optional, swappable alternative to HashEmbedder -- the
// engine must never require it to function.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
}

// OpenAIEmbedderConfig configures an OpenAIEmbedder.
type OpenAIEmbedderConfig struct {
	APIKey    string
	BaseURL   string
	Model     openai.EmbeddingModel
	Dimension int
}

// NewOpenAIEmbedder creates an OpenAIEmbedder. Model defaults to
// text-embedding-ada-002 (openai.AdaEmbeddingV2) and Dimension to 1536
// when unset.
func NewOpenAIEmbedder(cfg OpenAIEmbedderConfig) *OpenAIEmbedder {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.AdaEmbeddingV2
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = 1536
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     model,
		dimension: dimension,
	}
}

func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (vector.Embedding, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, pkgerrors.NewBackend("openai embedding request failed", err)
	}
	if len(resp.Data) == 0 {
		return nil, pkgerrors.NewBackend("openai returned no embedding data", nil)
	}

	raw := resp.Data[0].Embedding
	out := make(vector.Embedding, len(raw))
	for i, f := range raw {
		out[i] = f
	}
	return out, nil
}
