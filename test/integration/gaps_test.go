// Package integration provides API tests wired against real on-disk storage
// and indices.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/gapscout/gapscout/internal/config"
	"github.com/gapscout/gapscout/internal/embedding"
	"github.com/gapscout/gapscout/internal/gaps"
	"github.com/gapscout/gapscout/internal/keyword"
	"github.com/gapscout/gapscout/internal/matcher"
	"github.com/gapscout/gapscout/internal/models"
	"github.com/gapscout/gapscout/internal/server"
	"github.com/gapscout/gapscout/internal/storage"
)

func TestIntegration_GapAnalysis(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Matching: config.MatchingConfig{SimilarityThreshold: 0.75, ArticleTextBudget: 500},
		Storage: config.StorageConfig{
			EmbeddingCachePath: filepath.Join(dir, "cache.db"),
			BleveIndexPath:     filepath.Join(dir, "bleve"),
		},
	}

	store, err := storage.NewSQLiteEmbeddingStore(cfg.Storage.EmbeddingCachePath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	embedder := embedding.NewPersistentEmbedder(embedding.NewMockEmbedder(64), store, "mock")

	kwIndex, err := keyword.NewArticleIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	defer kwIndex.Close()

	m := matcher.New(embedder, matcher.Config{
		SimilarityThreshold: cfg.Matching.SimilarityThreshold,
		ArticleTextBudget:   cfg.Matching.ArticleTextBudget,
	})
	analyzer := gaps.NewAnalyzer(cfg.Matching.SimilarityThreshold)

	corpus := []models.Article{
		{ID: "kb-1", Title: "Cancelling a policy", Body: "Cancel online or by phone. Refunds are prorated."},
		{ID: "kb-2", Title: "Making a payment", Body: "We accept cards and direct debit."},
	}
	if err := m.IndexArticles(context.Background(), corpus); err != nil {
		t.Fatal(err)
	}
	if err := kwIndex.IndexArticles(context.Background(), corpus); err != nil {
		t.Fatal(err)
	}

	srv := server.NewServer(m, analyzer, kwIndex, corpus, cfg, zap.NewNop())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]interface{}{
		"questions": []models.Question{
			{Text: "How do I insure a houseboat?", SourceType: models.SourceEmail, SourceID: "m1"},
		},
	})
	resp, err := http.Post(ts.URL+"/api/v1/gaps", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("gaps status = %d, want 200", resp.StatusCode)
	}

	var out struct {
		Gaps    []models.KnowledgeGap `json:"gaps"`
		Matches []models.Match        `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(out.Matches))
	}
	if len(out.Gaps) != 1 {
		t.Fatalf("got %d gaps, want 1", len(out.Gaps))
	}
	if out.Gaps[0].PriorityScore <= 0 {
		t.Errorf("gap priority = %f, want > 0", out.Gaps[0].PriorityScore)
	}

	searchResp, err := http.Get(ts.URL + "/api/v1/articles/search?q=cancel")
	if err != nil {
		t.Fatal(err)
	}
	defer searchResp.Body.Close()
	var searchOut struct {
		Results []keyword.Result `json:"results"`
	}
	if err := json.NewDecoder(searchResp.Body).Decode(&searchOut); err != nil {
		t.Fatal(err)
	}
	if len(searchOut.Results) == 0 || searchOut.Results[0].ID != "kb-1" {
		t.Errorf("search results = %+v, want kb-1 first", searchOut.Results)
	}
}
