package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gapscout/gapscout/internal/models"
)

// LoadArticles reads the exported article corpus. The file is either a bare
// JSON array of articles or an object with an "articles" key.
func LoadArticles(path string) ([]models.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read article corpus: %w", err)
	}

	var articles []models.Article
	if err := json.Unmarshal(data, &articles); err != nil {
		var wrapped struct {
			Articles []models.Article `json:"articles"`
		}
		if wrapErr := json.Unmarshal(data, &wrapped); wrapErr != nil {
			return nil, fmt.Errorf("invalid article corpus in %s: %w", path, err)
		}
		articles = wrapped.Articles
	}

	valid := articles[:0]
	for _, a := range articles {
		if a.ID == "" || a.Title == "" {
			continue
		}
		valid = append(valid, a)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid articles in %s", path)
	}
	return valid, nil
}
