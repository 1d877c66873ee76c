package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/gapscout/gapscout/internal/matcher"
	"github.com/gapscout/gapscout/internal/models"
)

type anonymizeRequest struct {
	Text string `json:"text"`
}

type anonymizeResponse struct {
	Text  string         `json:"text"`
	Stats map[string]int `json:"stats"`
}

func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	var req anonymizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	out := s.anonymizer.Anonymize(req.Text)
	s.respondJSON(w, http.StatusOK, anonymizeResponse{Text: out, Stats: s.anonymizer.Stats()})
}

type matchRequest struct {
	Questions []models.Question        `json:"questions"`
	Answers   []models.AnswerCandidate `json:"answers,omitempty"`
	Threshold float64                  `json:"threshold,omitempty"`
}

type matchResponse struct {
	Matches  []models.Match   `json:"matches"`
	Warnings []models.Warning `json:"warnings,omitempty"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Questions) == 0 {
		s.respondError(w, http.StatusBadRequest, "no questions given")
		return
	}
	s.logger.Debug("match request", zap.Int("questions", len(req.Questions)))

	matches, warnings, err := s.matcher.MatchQuestionsAt(r.Context(), req.Questions, req.Threshold)
	if err != nil {
		if errors.Is(err, matcher.ErrNotIndexed) {
			s.respondError(w, http.StatusConflict, "article corpus not indexed")
			return
		}
		s.logger.Error("match failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, matchResponse{Matches: matches, Warnings: warnings})
}

type gapsResponse struct {
	Gaps     []models.KnowledgeGap `json:"gaps"`
	Matches  []models.Match        `json:"matches"`
	Warnings []models.Warning      `json:"warnings,omitempty"`
}

func (s *Server) handleGaps(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Questions) == 0 {
		s.respondError(w, http.StatusBadRequest, "no questions given")
		return
	}

	threshold := req.Threshold
	if threshold <= 0 {
		threshold = s.matcher.Threshold()
	}
	matches, warnings, err := s.matcher.MatchQuestionsAt(r.Context(), req.Questions, threshold)
	if err != nil {
		if errors.Is(err, matcher.ErrNotIndexed) {
			s.respondError(w, http.StatusConflict, "article corpus not indexed")
			return
		}
		s.logger.Error("gap analysis failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Priorities must be scored against the threshold the matches were
	// decided with, not the analyzer's configured default.
	knowledgeGaps := s.analyzer.IdentifyGapsAt(matches, req.Answers, threshold)
	s.respondJSON(w, http.StatusOK, gapsResponse{
		Gaps:     knowledgeGaps,
		Matches:  matches,
		Warnings: warnings,
	})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	corpus := s.corpus
	s.mu.RUnlock()
	if len(corpus) == 0 {
		s.respondError(w, http.StatusConflict, "no article corpus loaded")
		return
	}
	if err := s.matcher.IndexArticles(r.Context(), corpus); err != nil {
		s.logger.Error("reindex failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.matcher.SaveIndex(s.config.Storage.VectorIndexPath); err != nil {
		s.logger.Warn("failed to persist article index", zap.Error(err))
	}
	if s.articles != nil {
		if err := s.articles.IndexArticles(r.Context(), corpus); err != nil {
			s.logger.Warn("keyword reindex failed", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "indexed",
		"articles": len(corpus),
	})
}

func (s *Server) handleArticleSearch(w http.ResponseWriter, r *http.Request) {
	if s.articles == nil {
		s.respondError(w, http.StatusServiceUnavailable, "keyword index not configured")
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	results, err := s.articles.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("article search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": results,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	corpusSize := len(s.corpus)
	latest := s.latestResult
	s.mu.RUnlock()

	resp := map[string]interface{}{
		"articles":             corpusSize,
		"indexed_articles":     s.matcher.IndexedArticles(),
		"embedding_dimensions": s.matcher.Dimensions(),
		"similarity_threshold": s.matcher.Threshold(),
		"anonymizer_stats":     s.anonymizer.Stats(),
	}
	if latest != nil && latest.Report != nil {
		resp["last_run"] = map[string]interface{}{
			"report_id":    latest.Report.ID,
			"generated_at": latest.Report.GeneratedAt,
			"gaps":         len(latest.Gaps),
			"coverage_pct": latest.Report.CoveragePercentage,
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
