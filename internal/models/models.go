// Package models defines core data structures for questions, articles,
// matches, and knowledge gaps.
package models

import (
	"fmt"
	"time"

	"github.com/gapscout/gapscout/pkg/utils"
)

// SourceType identifies where an interaction or article came from.
type SourceType string

const (
	// SourceCallTranscript is a customer call transcript.
	SourceCallTranscript SourceType = "call_transcript"
	// SourceEmail is a customer email.
	SourceEmail SourceType = "email"
	// SourceKBArticle is an existing knowledge-base article.
	SourceKBArticle SourceType = "kb_article"
)

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	switch s {
	case SourceCallTranscript, SourceEmail, SourceKBArticle:
		return true
	}
	return false
}

// Question is a single customer utterance or inferred information need.
// Immutable after creation except Frequency, which is incremented when the
// same normalized text recurs.
type Question struct {
	Text          string     `json:"text"`
	SourceType    SourceType `json:"source_type"`
	SourceID      string     `json:"source_id"`
	SourceExcerpt string     `json:"source_excerpt,omitempty"`
	Context       string     `json:"context,omitempty"`
	UrgencyScore  float64    `json:"urgency_score"`
	Frequency     int        `json:"frequency"`
}

// Validate checks required fields and clamps scores into range.
// Returns an error when text or source identity is missing; out-of-range
// urgency is clamped and a zero frequency is floored to 1.
func (q *Question) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("question text is required")
	}
	if q.SourceID == "" {
		return fmt.Errorf("question source_id is required")
	}
	if !q.SourceType.Valid() {
		return fmt.Errorf("unknown source type %q", q.SourceType)
	}
	q.UrgencyScore = utils.Clamp01(q.UrgencyScore)
	if q.Frequency < 1 {
		q.Frequency = 1
	}
	return nil
}

// AnswerCandidate is a response text observed alongside a question in the
// same interaction. Association with questions is by SourceID equality.
type AnswerCandidate struct {
	Text            string     `json:"text"`
	SourceType      SourceType `json:"source_type"`
	SourceID        string     `json:"source_id"`
	ConfidenceScore float64    `json:"confidence_score"`
	Context         string     `json:"context,omitempty"`
}

// Validate checks required fields and clamps the confidence score.
func (a *AnswerCandidate) Validate() error {
	if a.Text == "" {
		return fmt.Errorf("answer text is required")
	}
	if a.SourceID == "" {
		return fmt.Errorf("answer source_id is required")
	}
	a.ConfidenceScore = utils.Clamp01(a.ConfidenceScore)
	return nil
}

// Article is a knowledge-base entry, owned by the external help-center
// platform and fetched once per pipeline run.
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	Category    string     `json:"category,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Match is the result of comparing one question against the article index.
// Derived and ephemeral; never mutated after creation.
// GoodMatch is true exactly when SimilarityScore >= the configured threshold.
type Match struct {
	Question        Question `json:"question"`
	Article         Article  `json:"article"`
	SimilarityScore float64  `json:"similarity_score"`
	GoodMatch       bool     `json:"good_match"`
	Notes           string   `json:"notes,omitempty"`
}

// KnowledgeGap is a question identified as inadequately covered by the
// knowledge base. BestMatch carries provenance when the best article scored
// above 0.5 similarity even though it missed the threshold.
type KnowledgeGap struct {
	Question         Question          `json:"question"`
	BestMatch        *Match            `json:"best_match,omitempty"`
	AnswerCandidates []AnswerCandidate `json:"answer_candidates,omitempty"`
	PriorityScore    float64           `json:"priority_score"`
	Theme            string            `json:"theme,omitempty"`
}
