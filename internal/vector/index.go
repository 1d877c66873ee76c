package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ArticleIndex holds one embedding per article, aligned index-for-index with
// the article list it was built from. Position is the only key: the caller
// correlates a hit back to its article by slice index, never by article ID.
type ArticleIndex struct {
	mu      sync.RWMutex
	vectors [][]float32
	dims    int
}

// Hit is a single nearest-neighbor result: the position of the winning
// vector in build order and its cosine similarity.
type Hit struct {
	Position int
	Score    float64
}

// NewArticleIndex returns an empty index.
func NewArticleIndex() *ArticleIndex {
	return &ArticleIndex{}
}

// Build replaces the index contents with vectors. The swap is atomic from a
// reader's point of view: a concurrent Best never observes a partial build.
// All vectors must share one dimension.
func (ix *ArticleIndex) Build(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("no vectors to index")
	}
	dims := len(vectors[0])
	if dims == 0 {
		return fmt.Errorf("zero-dimension vectors")
	}
	copied := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("vector %d dimension mismatch: got %d, expected %d", i, len(v), dims)
		}
		vec := make([]float32, dims)
		copy(vec, v)
		copied[i] = vec
	}
	ix.mu.Lock()
	ix.vectors = copied
	ix.dims = dims
	ix.mu.Unlock()
	return nil
}

// Best returns the arg-max cosine similarity position for query. Ties are
// broken by first occurrence in build order, so results are deterministic.
// Returns ok=false when the index is empty.
func (ix *ArticleIndex) Best(query []float32) (Hit, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(ix.vectors) == 0 {
		return Hit{}, false
	}
	best := Hit{Position: 0, Score: Cosine(query, ix.vectors[0])}
	for i := 1; i < len(ix.vectors); i++ {
		// Strict > keeps the first occurrence on ties.
		if score := Cosine(query, ix.vectors[i]); score > best.Score {
			best = Hit{Position: i, Score: score}
		}
	}
	return best, true
}

// Top returns up to k hits sorted by descending score; equal scores keep
// build order.
func (ix *ArticleIndex) Top(query []float32, k int) []Hit {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if k <= 0 || len(ix.vectors) == 0 {
		return nil
	}
	hits := make([]Hit, len(ix.vectors))
	for i, vec := range ix.vectors {
		hits[i] = Hit{Position: i, Score: Cosine(query, vec)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k]
}

// Size returns the number of indexed vectors.
func (ix *ArticleIndex) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Dimensions returns the vector dimension, or 0 before any build.
func (ix *ArticleIndex) Dimensions() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dims
}

// Save persists the index to path. Directory is created if needed.
// Format: dimensions (uint32), count (uint32), then count*dimensions float32
// values in build order, all little-endian.
func (ix *ArticleIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(ix.dims)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(ix.vectors))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, vec := range ix.vectors {
		if _, err := f.Write(float32SliceToBytes(vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path, replacing the in-memory contents. A missing
// file is not an error; the index is left unchanged.
func (ix *ArticleIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dims, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dims); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	vectors := make([][]float32, 0, n)
	buf := make([]byte, int(dims)*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	ix.mu.Lock()
	ix.vectors = vectors
	ix.dims = int(dims)
	ix.mu.Unlock()
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
