package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gapscout/gapscout/pkg/utils"
)

const defaultAPIBatchSize = 32

// OpenAIEmbedder generates embeddings via the OpenAI embeddings API. It is
// the production implementation of the external embedding function; the
// pipeline itself is agnostic to the provider.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	batchSize  int
	cache      *Cache
}

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*OpenAIEmbedder)

// WithCache enables an in-memory LRU cache of the given capacity.
func WithCache(capacity int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if capacity > 0 {
			e.cache = NewCache(capacity)
		}
	}
}

// WithBatchSize sets how many texts are sent per API request. Batching is a
// throughput optimization only; results are identical to one-at-a-time calls.
func WithBatchSize(n int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// NewOpenAIEmbedder creates an embedder using the given API key and model.
// Empty model defaults to text-embedding-ada-002 (1536 dimensions).
func NewOpenAIEmbedder(apiKey, model string, dimensions int, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	m := openai.AdaEmbeddingV2
	if model != "" {
		if err := m.UnmarshalText([]byte(model)); err != nil || m == openai.Unknown {
			return nil, fmt.Errorf("unknown embedding model %q", model)
		}
	}
	if dimensions <= 0 {
		dimensions = 1536
	}
	e := &OpenAIEmbedder{
		client:     openai.NewClient(apiKey),
		model:      m,
		dimensions: dimensions,
		batchSize:  defaultAPIBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Embed returns the unit-normalized embedding for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		if emb, ok := e.cache.Get(text); ok {
			return emb, nil
		}
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(resp.Data))
	}
	emb := resp.Data[0].Embedding
	utils.NormalizeL2(emb)
	if e.cache != nil {
		e.cache.Set(text, emb)
	}
	return emb, nil
}

// EmbedBatch embeds texts in API-sized sub-batches, preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))

	// Serve cache hits first so only misses hit the API.
	var missIdx []int
	for i, text := range texts {
		if e.cache != nil {
			if emb, ok := e.cache.Get(text); ok {
				embeddings[i] = emb
				continue
			}
		}
		missIdx = append(missIdx, i)
	}

	for start := 0; start < len(missIdx); start += e.batchSize {
		end := start + e.batchSize
		if end > len(missIdx) {
			end = len(missIdx)
		}
		batch := missIdx[start:end]
		input := make([]string, len(batch))
		for j, idx := range batch {
			input[j] = texts[idx]
		}
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: input,
			Model: e.model,
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Data))
		}
		for j, idx := range batch {
			emb := resp.Data[j].Embedding
			utils.NormalizeL2(emb)
			embeddings[idx] = emb
			if e.cache != nil {
				e.cache.Set(texts[idx], emb)
			}
		}
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the underlying HTTP client needs no shutdown.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
