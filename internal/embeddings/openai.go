package embeddings

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const maxBatchSize = 100

// Known OpenAI embedding models.
const (
	ModelTextEmbedding3Small = "text-embedding-3-small"
	ModelTextEmbedding3Large = "text-embedding-3-large"
	ModelTextEmbeddingAda002 = "text-embedding-ada-002"
)

// openAIDimensions returns the native output width of a known model, or 0.
func openAIDimensions(model string) int {
	switch model {
	case ModelTextEmbedding3Small, ModelTextEmbeddingAda002:
		return 1536
	case ModelTextEmbedding3Large:
		return 3072
	default:
		return 0
	}
}

// OpenAIEmbedder generates embeddings using OpenAI's API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates a new OpenAI embedder. dimensions of 0 uses the
// model's native width. baseURL overrides the API endpoint when non-empty,
// which also makes OpenAI-compatible servers usable.
func NewOpenAIEmbedder(apiKey, model string, dimensions int, baseURL string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if dimensions <= 0 {
		dimensions = openAIDimensions(model)
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}
}

func (e *OpenAIEmbedder) Name() string {
	return e.model
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	allEmbeddings := make([][]float32, 0, len(texts))

	// Batch up to maxBatchSize texts per API call
	for i := 0; i < len(texts); i += maxBatchSize {
		end := min(i+maxBatchSize, len(texts))
		batch := texts[i:end]

		req := openai.EmbeddingRequest{
			Input: batch,
			Model: openai.EmbeddingModel(e.model),
		}
		// Request a reduced width only when it differs from the native one.
		if native := openAIDimensions(e.model); native != 0 && e.dimensions != native {
			req.Dimensions = e.dimensions
		}

		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("openai embedding request failed: %w", err)
		}

		if len(resp.Data) != len(batch) {
			return nil, errEmbeddingCount(len(resp.Data), len(batch))
		}

		for _, emb := range resp.Data {
			allEmbeddings = append(allEmbeddings, emb.Embedding)
		}
	}

	return allEmbeddings, nil
}

func errEmbeddingCount(got, want int) error {
	return fmt.Errorf("embedding model returned %d embeddings, expected %d", got, want)
}
