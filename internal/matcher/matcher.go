// Package matcher builds the article embedding index and matches customer
// questions against it by cosine similarity.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/gapscout/gapscout/internal/embedding"
	"github.com/gapscout/gapscout/internal/models"
	"github.com/gapscout/gapscout/internal/vector"
	"github.com/gapscout/gapscout/pkg/utils"
)

// ErrNotIndexed is returned when matching is attempted before a successful
// IndexArticles call. No fabricated matches are ever returned.
var ErrNotIndexed = errors.New("article corpus not indexed")

// ErrEmptyCorpus is returned when IndexArticles is called with no articles.
var ErrEmptyCorpus = errors.New("no articles to index")

const (
	// DefaultThreshold is the similarity at or above which a match is good.
	DefaultThreshold = 0.75
	// DefaultTextBudget bounds the article body prefix fed to the embedder.
	DefaultTextBudget = 500
	// DefaultBatchSize is how many question texts are embedded per batch.
	// Batching changes throughput only, never per-question results.
	DefaultBatchSize = 32
)

// Config holds matcher tuning. Zero values fall back to package defaults.
type Config struct {
	SimilarityThreshold float64
	ArticleTextBudget   int
	BatchSize           int
}

func (c *Config) applyDefaults() {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = DefaultThreshold
	}
	if c.ArticleTextBudget <= 0 {
		c.ArticleTextBudget = DefaultTextBudget
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// ArticleScore pairs an article with its similarity to a question.
type ArticleScore struct {
	Article models.Article
	Score   float64
}

// Matcher matches questions against an indexed article corpus.
type Matcher struct {
	embedder embedding.Embedder
	index    *vector.ArticleIndex
	cfg      Config
	logger   *zap.Logger

	mu       sync.RWMutex
	articles []models.Article
	indexed  bool
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(m *Matcher) { m.logger = l }
}

// New creates a Matcher using the given embedder.
func New(embedder embedding.Embedder, cfg Config, opts ...Option) *Matcher {
	cfg.applyDefaults()
	m := &Matcher{
		embedder: embedder,
		index:    vector.NewArticleIndex(),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the configured good-match threshold.
func (m *Matcher) Threshold() float64 {
	return m.cfg.SimilarityThreshold
}

// Dimensions returns the embedding dimension of the underlying embedder.
func (m *Matcher) Dimensions() int {
	return m.embedder.Dimensions()
}

// IndexedArticles returns the number of articles in the current index.
func (m *Matcher) IndexedArticles() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.indexed {
		return 0
	}
	return len(m.articles)
}

// IndexArticles embeds the articles and builds the index, fully replacing any
// prior index. Order is retained: a vector's position is the sole key back to
// its article.
func (m *Matcher) IndexArticles(ctx context.Context, articles []models.Article) error {
	if len(articles) == 0 {
		return ErrEmptyCorpus
	}

	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = m.articleText(a)
	}
	vectors, err := m.embedBatched(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed articles: %w", err)
	}
	built := vector.NewArticleIndex()
	if err := built.Build(ctx, vectors); err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	kept := make([]models.Article, len(articles))
	copy(kept, articles)

	m.mu.Lock()
	m.index = built
	m.articles = kept
	m.indexed = true
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("article corpus indexed", zap.Int("articles", len(articles)))
	}
	return nil
}

// SaveIndex persists the article index to path so a later process can warm
// start. No-op with an empty path.
func (m *Matcher) SaveIndex(path string) error {
	m.mu.RLock()
	index := m.index
	indexed := m.indexed
	m.mu.RUnlock()
	if !indexed {
		return ErrNotIndexed
	}
	return index.Save(path)
}

// LoadIndex warm starts from a previously saved index, adopting articles as
// the corpus. The load is rejected when the file is missing or was built from
// a different corpus size or embedding dimension; the caller should then
// index from scratch. Returns whether the index was adopted.
func (m *Matcher) LoadIndex(path string, articles []models.Article) (bool, error) {
	if path == "" || len(articles) == 0 {
		return false, nil
	}
	loaded := vector.NewArticleIndex()
	if err := loaded.Load(path); err != nil {
		return false, fmt.Errorf("load index: %w", err)
	}
	if loaded.Size() != len(articles) || loaded.Dimensions() != m.embedder.Dimensions() {
		return false, nil
	}

	kept := make([]models.Article, len(articles))
	copy(kept, articles)

	m.mu.Lock()
	m.index = loaded
	m.articles = kept
	m.indexed = true
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("article index loaded from disk",
			zap.String("path", path), zap.Int("articles", len(articles)))
	}
	return true, nil
}

// MatchQuestions matches each question to its best article at the configured
// threshold. Questions that fail validation or embedding are skipped and
// reported as warnings; the rest of the batch still completes.
func (m *Matcher) MatchQuestions(ctx context.Context, questions []models.Question) ([]models.Match, []models.Warning, error) {
	return m.MatchQuestionsAt(ctx, questions, m.cfg.SimilarityThreshold)
}

// MatchQuestionsAt is MatchQuestions with a per-call threshold override.
// threshold <= 0 falls back to the configured value.
func (m *Matcher) MatchQuestionsAt(ctx context.Context, questions []models.Question, threshold float64) ([]models.Match, []models.Warning, error) {
	if threshold <= 0 {
		threshold = m.cfg.SimilarityThreshold
	}

	m.mu.RLock()
	articles := m.articles
	index := m.index
	indexed := m.indexed
	m.mu.RUnlock()
	if !indexed {
		return nil, nil, ErrNotIndexed
	}

	matches := make([]models.Match, 0, len(questions))
	var warnings []models.Warning

	for start := 0; start < len(questions); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(questions) {
			end = len(questions)
		}

		var valid []models.Question
		for _, q := range questions[start:end] {
			if err := q.Validate(); err != nil {
				warnings = append(warnings, models.Warning{
					Stage:  "match",
					ItemID: q.SourceID,
					Reason: err.Error(),
				})
				continue
			}
			valid = append(valid, q)
		}
		if len(valid) == 0 {
			continue
		}

		embeddings, embedWarnings := m.embedQuestions(ctx, valid)
		warnings = append(warnings, embedWarnings...)

		for i, q := range valid {
			if embeddings[i] == nil {
				continue // embedding failed, already warned
			}
			hit, ok := index.Best(embeddings[i])
			if !ok {
				warnings = append(warnings, models.Warning{
					Stage:  "match",
					ItemID: q.SourceID,
					Reason: "article index is empty",
				})
				continue
			}
			score := utils.Clamp01(hit.Score)
			matches = append(matches, models.Match{
				Question:        q,
				Article:         articles[hit.Position],
				SimilarityScore: score,
				GoodMatch:       score >= threshold,
			})
		}
	}

	if m.logger != nil {
		good := 0
		for _, mt := range matches {
			if mt.GoodMatch {
				good++
			}
		}
		m.logger.Info("questions matched",
			zap.Int("questions", len(questions)),
			zap.Int("good_matches", good),
			zap.Int("gap_candidates", len(matches)-good),
			zap.Int("skipped", len(warnings)),
		)
	}
	return matches, warnings, nil
}

// TopMatches returns the k most similar articles for one question, sorted by
// descending similarity.
func (m *Matcher) TopMatches(ctx context.Context, q models.Question, k int) ([]ArticleScore, error) {
	m.mu.RLock()
	articles := m.articles
	index := m.index
	indexed := m.indexed
	m.mu.RUnlock()
	if !indexed {
		return nil, ErrNotIndexed
	}
	emb, err := m.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	hits := index.Top(emb, k)
	out := make([]ArticleScore, len(hits))
	for i, h := range hits {
		out[i] = ArticleScore{Article: articles[h.Position], Score: utils.Clamp01(h.Score)}
	}
	return out, nil
}

// embedQuestions embeds the batch, falling back to per-item embedding when
// the batch call fails so one bad item cannot sink its neighbors. The result
// slice is aligned with questions; failed items are nil.
func (m *Matcher) embedQuestions(ctx context.Context, questions []models.Question) ([][]float32, []models.Warning) {
	texts := make([]string, len(questions))
	for i, q := range questions {
		texts[i] = q.Text
	}
	embeddings, err := m.embedder.EmbedBatch(ctx, texts)
	if err == nil && len(embeddings) == len(questions) {
		return embeddings, nil
	}

	var warnings []models.Warning
	embeddings = make([][]float32, len(questions))
	for i, text := range texts {
		emb, itemErr := m.embedder.Embed(ctx, text)
		if itemErr != nil {
			warnings = append(warnings, models.Warning{
				Stage:  "embed",
				ItemID: questions[i].SourceID,
				Reason: itemErr.Error(),
			})
			continue
		}
		embeddings[i] = emb
	}
	return embeddings, warnings
}

// embedBatched embeds texts in config-sized batches, preserving order. Any
// failure aborts: partial article indexes are never built.
func (m *Matcher) embedBatched(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := m.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

// articleText builds the text representation embedded for an article:
// title, optional description, and a bounded body prefix joined by " | ".
func (m *Matcher) articleText(a models.Article) string {
	parts := []string{a.Title}
	if a.Description != "" {
		parts = append(parts, a.Description)
	}
	parts = append(parts, utils.TruncateRunes(a.Body, m.cfg.ArticleTextBudget))
	return strings.Join(parts, " | ")
}
