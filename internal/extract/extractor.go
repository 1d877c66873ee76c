// Package extract pulls customer questions and agent answer candidates out
// of parsed interactions. The Extractor interface is the seam for an
// LLM-backed implementation; HeuristicExtractor is the deterministic
// offline default.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/gapscout/gapscout/internal/ingest"
	"github.com/gapscout/gapscout/internal/models"
	"github.com/gapscout/gapscout/pkg/utils"
)

// Extractor turns one interaction into questions and answer candidates.
type Extractor interface {
	FromTranscript(ctx context.Context, t *ingest.Transcript) ([]models.Question, []models.AnswerCandidate, error)
	FromEmail(ctx context.Context, e *ingest.Email) ([]models.Question, []models.AnswerCandidate, error)
}

const (
	defaultUrgency    = 0.5
	elevatedUrgency   = 0.8
	defaultConfidence = 0.6
	excerptLen        = 120
)

// urgentKeywords raise a question's urgency when present.
var urgentKeywords = []string{
	"urgent", "immediately", "asap", "emergency", "right away",
	"today", "deadline", "complaint", "unacceptable",
}

// interrogativeLeads mark sentences that ask without a question mark.
var interrogativeLeads = []string{
	"how ", "what ", "when ", "where ", "why ", "who ", "which ",
	"can i", "can you", "could you", "do i", "does ", "is it", "am i",
}

// HeuristicExtractor extracts questions with rule-based text tests. It is
// deterministic and needs no network.
type HeuristicExtractor struct{}

// NewHeuristicExtractor returns the offline extractor.
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

// FromTranscript treats interrogative customer turns as questions and the
// agent turns that follow them as answer candidates.
func (h *HeuristicExtractor) FromTranscript(ctx context.Context, t *ingest.Transcript) ([]models.Question, []models.AnswerCandidate, error) {
	if t == nil || len(t.Turns) == 0 {
		return nil, nil, fmt.Errorf("empty transcript")
	}

	var questions []models.Question
	var answers []models.AnswerCandidate
	for i, turn := range t.Turns {
		if !isCustomer(turn.Speaker) || !looksLikeQuestion(turn.Text) {
			continue
		}
		questions = append(questions, models.Question{
			Text:          strings.TrimSpace(turn.Text),
			SourceType:    models.SourceCallTranscript,
			SourceID:      t.ID,
			SourceExcerpt: utils.Truncate(turn.Text, excerptLen),
			UrgencyScore:  urgency(turn.Text),
			Frequency:     1,
		})
		if reply, ok := nextAgentTurn(t.Turns, i+1); ok {
			answers = append(answers, models.AnswerCandidate{
				Text:            strings.TrimSpace(reply),
				SourceType:      models.SourceCallTranscript,
				SourceID:        t.ID,
				ConfidenceScore: defaultConfidence,
			})
		}
	}
	return questions, answers, nil
}

// FromEmail treats interrogative sentences of the subject and body as
// questions. Emails carry no agent side, so no answer candidates.
func (h *HeuristicExtractor) FromEmail(ctx context.Context, e *ingest.Email) ([]models.Question, []models.AnswerCandidate, error) {
	if e == nil || (e.Body == "" && e.Subject == "") {
		return nil, nil, fmt.Errorf("empty email")
	}

	text := e.Subject + ". " + e.Body
	bodyUrgency := urgency(text)

	var questions []models.Question
	for _, sentence := range splitSentences(e.Body) {
		if !looksLikeQuestion(sentence) {
			continue
		}
		questions = append(questions, models.Question{
			Text:          sentence,
			SourceType:    models.SourceEmail,
			SourceID:      e.ID,
			SourceExcerpt: utils.Truncate(sentence, excerptLen),
			Context:       e.Subject,
			UrgencyScore:  bodyUrgency,
			Frequency:     1,
		})
	}
	if len(questions) == 0 && looksLikeQuestion(e.Subject) {
		questions = append(questions, models.Question{
			Text:         strings.TrimSpace(e.Subject),
			SourceType:   models.SourceEmail,
			SourceID:     e.ID,
			UrgencyScore: bodyUrgency,
			Frequency:    1,
		})
	}
	return questions, nil, nil
}

func isCustomer(speaker string) bool {
	s := strings.ToLower(strings.TrimSpace(speaker))
	return s == "customer" || s == "caller" || s == "client"
}

func isAgent(speaker string) bool {
	s := strings.ToLower(strings.TrimSpace(speaker))
	return s == "agent" || s == "representative" || s == "support"
}

// looksLikeQuestion is true for text ending in a question mark or starting
// with an interrogative lead.
func looksLikeQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, lead := range interrogativeLeads {
		if strings.HasPrefix(lower, lead) {
			return true
		}
	}
	return false
}

func urgency(text string) float64 {
	lower := strings.ToLower(text)
	for _, kw := range urgentKeywords {
		if strings.Contains(lower, kw) {
			return elevatedUrgency
		}
	}
	return defaultUrgency
}

// nextAgentTurn finds the first agent utterance at or after index from.
func nextAgentTurn(turns []ingest.Turn, from int) (string, bool) {
	for i := from; i < len(turns); i++ {
		if isAgent(turns[i].Speaker) && strings.TrimSpace(turns[i].Text) != "" {
			return turns[i].Text, true
		}
	}
	return "", false
}

// splitSentences splits on sentence-ending punctuation, keeping the
// terminator so question marks survive.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '?' || r == '!' || r == '\n' {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
