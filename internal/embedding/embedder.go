// Package embedding provides text embedding for semantic matching, with an
// OpenAI-backed implementation, a deterministic mock, and caching.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations must be
// deterministic for identical input text within a run and must return
// unit-normalized vectors so that inner product equals cosine similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
