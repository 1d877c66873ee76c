package embedding

import "context"

// Store persists embeddings between runs, keyed by model and text. Used so an
// unchanged article corpus is not re-embedded on every pipeline run.
type Store interface {
	Get(ctx context.Context, model, text string) ([]float32, bool, error)
	Put(ctx context.Context, model, text string, vector []float32) error
}

// PersistentEmbedder wraps an Embedder with a durable Store. Store errors are
// swallowed: a broken cache degrades to re-embedding, never to a failed batch.
type PersistentEmbedder struct {
	inner Embedder
	store Store
	model string
}

// NewPersistentEmbedder wraps inner with store. model namespaces cache keys so
// switching embedding models invalidates prior entries.
func NewPersistentEmbedder(inner Embedder, store Store, model string) *PersistentEmbedder {
	return &PersistentEmbedder{inner: inner, store: store, model: model}
}

// Embed returns the stored embedding when present, otherwise delegates and stores.
func (p *PersistentEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if emb, ok, err := p.store.Get(ctx, p.model, text); err == nil && ok {
		return emb, nil
	}
	emb, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	_ = p.store.Put(ctx, p.model, text, emb)
	return emb, nil
}

// EmbedBatch serves stored embeddings and delegates only the misses,
// preserving input order.
func (p *PersistentEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if emb, ok, err := p.store.Get(ctx, p.model, text); err == nil && ok {
			embeddings[i] = emb
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) > 0 {
		fresh, err := p.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, idx := range missIdx {
			embeddings[idx] = fresh[j]
			_ = p.store.Put(ctx, p.model, texts[idx], fresh[j])
		}
	}
	return embeddings, nil
}

// Dimensions returns the wrapped embedder's dimension.
func (p *PersistentEmbedder) Dimensions() int {
	return p.inner.Dimensions()
}

// Close closes the wrapped embedder.
func (p *PersistentEmbedder) Close() error {
	return p.inner.Close()
}
