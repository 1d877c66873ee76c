package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/gapscout/gapscout/internal/config"
	"github.com/gapscout/gapscout/internal/embedding"
	"github.com/gapscout/gapscout/internal/gaps"
	"github.com/gapscout/gapscout/internal/keyword"
	"github.com/gapscout/gapscout/internal/matcher"
	"github.com/gapscout/gapscout/internal/models"
)

func testCorpus() []models.Article {
	return []models.Article{
		{ID: "kb-1", Title: "Cancelling a policy", Body: "How to cancel."},
		{ID: "kb-2", Title: "Payment methods", Body: "Cards, direct debit."},
	}
}

func newTestServer(t *testing.T, indexed bool) *Server {
	t.Helper()
	m := matcher.New(embedding.NewMockEmbedder(32), matcher.Config{SimilarityThreshold: 0.75})
	corpus := testCorpus()
	if indexed {
		if err := m.IndexArticles(context.Background(), corpus); err != nil {
			t.Fatalf("IndexArticles: %v", err)
		}
	}
	kw, err := keyword.NewArticleIndex("")
	if err != nil {
		t.Fatalf("NewArticleIndex: %v", err)
	}
	t.Cleanup(func() {
		_ = kw.Close()
	})
	if err := kw.IndexArticles(context.Background(), corpus); err != nil {
		t.Fatalf("keyword IndexArticles: %v", err)
	}

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.VectorIndexPath = "" // no index persistence in handler tests
	return NewServer(m, gaps.NewAnalyzer(0.75), kw, corpus, cfg, zap.NewNop())
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, true)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleAnonymize(t *testing.T) {
	s := newTestServer(t, true)
	rec := postJSON(t, s.Router(), "/api/v1/anonymize", anonymizeRequest{
		Text: "Contact jane.doe@corp.example about POL-1234-AB-19",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp anonymizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bytes.Contains([]byte(resp.Text), []byte("jane.doe")) {
		t.Errorf("PII survived: %q", resp.Text)
	}
	if resp.Stats["emails"] == 0 {
		t.Errorf("expected email substitution counted, stats: %+v", resp.Stats)
	}
}

func TestHandleMatch(t *testing.T) {
	s := newTestServer(t, true)
	rec := postJSON(t, s.Router(), "/api/v1/match", matchRequest{
		Questions: []models.Question{
			{Text: "how do I cancel?", SourceType: models.SourceEmail, SourceID: "e1"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp matchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(resp.Matches))
	}
}

func TestHandleMatchBeforeIndexConflicts(t *testing.T) {
	s := newTestServer(t, false)
	rec := postJSON(t, s.Router(), "/api/v1/match", matchRequest{
		Questions: []models.Question{
			{Text: "how do I cancel?", SourceType: models.SourceEmail, SourceID: "e1"},
		},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestHandleMatchEmptyQuestions(t *testing.T) {
	s := newTestServer(t, true)
	rec := postJSON(t, s.Router(), "/api/v1/match", matchRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleGaps(t *testing.T) {
	s := newTestServer(t, true)
	rec := postJSON(t, s.Router(), "/api/v1/gaps", matchRequest{
		Questions: []models.Question{
			{Text: "does my policy cover flood damage?", SourceType: models.SourceEmail, SourceID: "e1", UrgencyScore: 0.9},
		},
		Answers: []models.AnswerCandidate{
			{Text: "only with the premium addon", SourceType: models.SourceEmail, SourceID: "e1", ConfidenceScore: 0.7},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp gapsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(resp.Matches))
	}
	// Mock embeddings of unrelated texts land far below the threshold.
	if len(resp.Gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(resp.Gaps))
	}
	if len(resp.Gaps[0].AnswerCandidates) != 1 {
		t.Errorf("expected the answer candidate attached, got %+v", resp.Gaps[0])
	}
}

func TestHandleGapsCustomThresholdScoresPriority(t *testing.T) {
	s := newTestServer(t, true)
	// Low urgency keeps the score away from the 1.0 clamp whatever the
	// similarity comes out as.
	q := models.Question{Text: "does my policy cover flood damage?", SourceType: models.SourceEmail, SourceID: "e1", UrgencyScore: 0.2}

	gapsAt := func(threshold float64) gapsResponse {
		rec := postJSON(t, s.Router(), "/api/v1/gaps", matchRequest{
			Questions: []models.Question{q},
			Threshold: threshold,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var resp gapsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Gaps) != 1 {
			t.Fatalf("expected 1 gap, got %d", len(resp.Gaps))
		}
		return resp
	}

	a := gaps.NewAnalyzer(0.75)
	defaultResp := gapsAt(0)
	custom := gapsAt(0.999)
	want := a.PriorityAt(q, custom.Matches[0].SimilarityScore, 0.999)
	if got := custom.Gaps[0].PriorityScore; got != want {
		t.Errorf("priority at threshold 0.999 = %f, want %f", got, want)
	}
	if custom.Gaps[0].PriorityScore <= defaultResp.Gaps[0].PriorityScore {
		t.Error("raising the threshold should raise the severity term of the priority")
	}
}

func TestHandleReindexAndStatus(t *testing.T) {
	s := newTestServer(t, false)
	router := s.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reindex", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("reindex status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["indexed_articles"].(float64) != 2 {
		t.Errorf("indexed_articles = %v, want 2", resp["indexed_articles"])
	}
	if resp["similarity_threshold"].(float64) != 0.75 {
		t.Errorf("similarity_threshold = %v", resp["similarity_threshold"])
	}
}

func TestHandleArticleSearch(t *testing.T) {
	s := newTestServer(t, true)
	router := s.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/articles/search?q=cancel&limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Query   string           `json:"query"`
		Results []keyword.Result `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) == 0 || resp.Results[0].ID != "kb-1" {
		t.Fatalf("expected kb-1 hit for cancel, got %+v", resp.Results)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/articles/search", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing q should 400, got %d", rec.Code)
	}
}
