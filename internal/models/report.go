package models

import (
	"time"

	"github.com/google/uuid"
)

// ThemeCount is a theme label with the number of gaps assigned to it.
type ThemeCount struct {
	Theme string `json:"theme"`
	Count int    `json:"count"`
}

// Report summarizes one pipeline run.
type Report struct {
	ID                 string       `json:"id"`
	GeneratedAt        time.Time    `json:"generated_at"`
	TotalQuestions     int          `json:"total_questions"`
	TotalArticles      int          `json:"total_articles"`
	GoodMatches        int          `json:"good_matches"`
	KnowledgeGaps      int          `json:"knowledge_gaps"`
	TopThemes          []ThemeCount `json:"top_themes,omitempty"`
	CoveragePercentage float64      `json:"coverage_percentage"`
	Recommendations    []string     `json:"recommendations,omitempty"`
}

// NewReport returns a report with a fresh ID and timestamp.
func NewReport() *Report {
	return &Report{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now(),
	}
}

// Warning records an input item that was skipped or failed during a batch.
// Batches degrade item by item; nothing is dropped without a trace.
type Warning struct {
	Stage  string `json:"stage"`
	ItemID string `json:"item_id,omitempty"`
	Reason string `json:"reason"`
}
