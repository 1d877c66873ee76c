package embedding

import (
	"context"
	"math"
	"testing"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()

	a1, err := e.Embed(ctx, "can I cancel my policy early?")
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := e.Embed(ctx, "can I cancel my policy early?")
	b, _ := e.Embed(ctx, "how do I file a claim?")

	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatalf("same text produced different embeddings at %d", i)
		}
	}
	same := true
	for i := range a1 {
		if a1[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical embeddings")
	}
}

func TestMockEmbedder_UnitNorm(t *testing.T) {
	e := NewMockEmbedder(128)
	emb, err := e.Embed(context.Background(), "renewal date")
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, v := range emb {
		sum += float64(v * v)
	}
	if math.Abs(sum-1.0) > 1e-5 {
		t.Errorf("norm^2 = %v, want 1.0", sum)
	}
}

func TestMockEmbedder_BatchOrder(t *testing.T) {
	e := NewMockEmbedder(32)
	ctx := context.Background()
	texts := []string{"one", "two", "three"}
	batch, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 3 {
		t.Fatalf("batch len = %d", len(batch))
	}
	for i, text := range texts {
		single, _ := e.Embed(ctx, text)
		for j := range single {
			if batch[i][j] != single[j] {
				t.Fatalf("batch result differs from single embed for %q", text)
			}
		}
	}
}

type fakeStore struct {
	data map[string][]float32
	puts int
}

func (f *fakeStore) Get(_ context.Context, model, text string) ([]float32, bool, error) {
	v, ok := f.data[model+"|"+text]
	return v, ok, nil
}

func (f *fakeStore) Put(_ context.Context, model, text string, vec []float32) error {
	f.data[model+"|"+text] = vec
	f.puts++
	return nil
}

func TestPersistentEmbedder_StoresAndServes(t *testing.T) {
	store := &fakeStore{data: make(map[string][]float32)}
	p := NewPersistentEmbedder(NewMockEmbedder(16), store, "mock-v1")
	ctx := context.Background()

	first, err := p.EmbedBatch(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if store.puts != 2 {
		t.Errorf("puts = %d, want 2", store.puts)
	}

	second, err := p.EmbedBatch(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if store.puts != 2 {
		t.Errorf("cached batch should not re-store, puts = %d", store.puts)
	}
	for i := range first {
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatal("stored embedding differs from fresh embedding")
			}
		}
	}
}
