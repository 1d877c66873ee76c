// Package server provides the HTTP API for gapscout.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/gapscout/gapscout/internal/anonymize"
	"github.com/gapscout/gapscout/internal/config"
	"github.com/gapscout/gapscout/internal/gaps"
	"github.com/gapscout/gapscout/internal/keyword"
	"github.com/gapscout/gapscout/internal/matcher"
	"github.com/gapscout/gapscout/internal/models"
	"github.com/gapscout/gapscout/internal/pipeline"
)

// Server is the HTTP server for the gapscout API.
type Server struct {
	matcher    *matcher.Matcher
	analyzer   *gaps.Analyzer
	anonymizer *anonymize.Anonymizer
	articles   *keyword.ArticleIndex
	config     *config.Config
	logger     *zap.Logger
	server     *http.Server

	mu           sync.RWMutex
	corpus       []models.Article
	latestResult *pipeline.Result
}

// NewServer creates a server with the given dependencies. corpus is the
// article export the matcher was (or will be) indexed from.
func NewServer(
	m *matcher.Matcher,
	a *gaps.Analyzer,
	articles *keyword.ArticleIndex,
	corpus []models.Article,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		matcher:    m,
		analyzer:   a,
		anonymizer: anonymize.New(),
		articles:   articles,
		corpus:     corpus,
		config:     cfg,
		logger:     logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/anonymize", s.handleAnonymize)
	r.Post("/api/v1/match", s.handleMatch)
	r.Post("/api/v1/gaps", s.handleGaps)
	r.Post("/api/v1/reindex", s.handleReindex)
	r.Get("/api/v1/articles/search", s.handleArticleSearch)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// SetLatestResult swaps the most recent pipeline result. Watch mode calls
// this after each re-run.
func (s *Server) SetLatestResult(res *pipeline.Result) {
	s.mu.Lock()
	s.latestResult = res
	s.mu.Unlock()
}
