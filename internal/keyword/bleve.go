// Package keyword provides a Bleve index over knowledge-base articles so
// analysts can look up existing coverage by exact words, complementing the
// semantic matcher.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/gapscout/gapscout/internal/models"
)

// Result is one keyword search hit.
type Result struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// ArticleIndex is a Bleve-backed keyword index of articles.
type ArticleIndex struct {
	index bleve.Index
}

// articleDoc is the indexed shape of an article.
type articleDoc struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Body        string `json:"body"`
	Category    string `json:"category"`
}

func indexMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so a search for
	// "cancellation" does not silently match only the stem.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	docMapping.AddFieldMappingsAt("body", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("category", keywordFieldMapping)
	im.AddDocumentMapping("article", docMapping)
	im.DefaultType = "article"
	im.DefaultMapping = docMapping

	return im
}

// NewArticleIndex creates or opens a Bleve index at path. An empty path
// builds an in-memory index, which is what batch pipeline runs use.
func NewArticleIndex(path string) (*ArticleIndex, error) {
	im := indexMapping()

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &ArticleIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &ArticleIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &ArticleIndex{index: index}, nil
}

// IndexArticles indexes the articles in one batch, keyed by article ID.
func (a *ArticleIndex) IndexArticles(ctx context.Context, articles []models.Article) error {
	batch := a.index.NewBatch()
	for _, art := range articles {
		doc := articleDoc{
			Title:       art.Title,
			Description: art.Description,
			Body:        art.Body,
			Category:    art.Category,
		}
		if err := batch.Index(art.ID, doc); err != nil {
			return fmt.Errorf("failed to batch article %s: %w", art.ID, err)
		}
	}
	if err := a.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index articles: %w", err)
	}
	return nil
}

// Search runs a match query with a title boost and returns up to limit hits.
func (a *ArticleIndex) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}

	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	titleQuery.SetBoost(2.0)
	bodyQuery := bleve.NewMatchQuery(query)
	bodyQuery.SetField("body")
	descQuery := bleve.NewMatchQuery(query)
	descQuery.SetField("description")
	q := bleve.NewDisjunctionQuery(titleQuery, bodyQuery, descQuery)

	search := bleve.NewSearchRequest(q)
	search.Size = limit
	search.Fields = []string{"title"}
	results, err := a.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]Result, len(results.Hits))
	for i, hit := range results.Hits {
		r := Result{ID: hit.ID, Score: hit.Score}
		if title, ok := hit.Fields["title"].(string); ok {
			r.Title = title
		}
		out[i] = r
	}
	return out, nil
}

// Count returns the number of indexed articles.
func (a *ArticleIndex) Count() (uint64, error) {
	return a.index.DocCount()
}

// Close releases the underlying index.
func (a *ArticleIndex) Close() error {
	return a.index.Close()
}
