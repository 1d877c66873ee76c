// Package gaps turns poor matches into prioritized knowledge gaps.
package gaps

import (
	"sort"

	"go.uber.org/zap"

	"github.com/gapscout/gapscout/internal/models"
	"github.com/gapscout/gapscout/pkg/utils"
)

const (
	// ProvenanceFloor is the similarity above which the best match is kept
	// on a gap for analyst context. At or below it the match is noise.
	ProvenanceFloor = 0.5

	urgencyWeight  = 0.4
	distanceWeight = 0.4
	frequencyCap   = 0.2
)

// Analyzer identifies and prioritizes knowledge gaps from match results.
type Analyzer struct {
	threshold float64
	logger    *zap.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets a logger for summary output.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// NewAnalyzer creates an Analyzer. threshold is the good-match threshold the
// matches were scored against; values <= 0 fall back to 0.75.
func NewAnalyzer(threshold float64, opts ...Option) *Analyzer {
	if threshold <= 0 {
		threshold = 0.75
	}
	a := &Analyzer{threshold: threshold}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IdentifyGaps builds one KnowledgeGap per match below the good-match
// threshold, attaches answer candidates sharing the question's source,
// assigns themes across the batch, and returns the gaps sorted by
// descending priority.
func (a *Analyzer) IdentifyGaps(matches []models.Match, answers []models.AnswerCandidate) []models.KnowledgeGap {
	return a.IdentifyGapsAt(matches, answers, a.threshold)
}

// IdentifyGapsAt is IdentifyGaps scored against an explicit threshold, for
// callers that overrode the matcher's threshold per request. A threshold <= 0
// falls back to the analyzer's own.
func (a *Analyzer) IdentifyGapsAt(matches []models.Match, answers []models.AnswerCandidate, threshold float64) []models.KnowledgeGap {
	if threshold <= 0 {
		threshold = a.threshold
	}
	answersBySource := make(map[string][]models.AnswerCandidate)
	for _, ans := range answers {
		answersBySource[ans.SourceID] = append(answersBySource[ans.SourceID], ans)
	}

	var gaps []models.KnowledgeGap
	for _, m := range matches {
		if m.GoodMatch {
			continue
		}
		gap := models.KnowledgeGap{
			Question:         m.Question,
			AnswerCandidates: answersBySource[m.Question.SourceID],
			PriorityScore:    a.PriorityAt(m.Question, m.SimilarityScore, threshold),
		}
		if m.SimilarityScore > ProvenanceFloor {
			best := m
			gap.BestMatch = &best
		}
		gaps = append(gaps, gap)
	}

	assignThemes(gaps)
	sortGaps(gaps)

	if a.logger != nil {
		a.logger.Info("knowledge gaps identified",
			zap.Int("matches", len(matches)),
			zap.Int("gaps", len(gaps)),
		)
	}
	return gaps
}

// Priority scores how badly a gap needs coverage. Urgency and the distance
// below the threshold each contribute up to 0.4, frequency contributes up to
// 0.2 at ten or more occurrences, and the sum is capped at 1.0.
func (a *Analyzer) Priority(q models.Question, similarity float64) float64 {
	return a.PriorityAt(q, similarity, a.threshold)
}

// PriorityAt is Priority with the severity term measured against an explicit
// threshold.
func (a *Analyzer) PriorityAt(q models.Question, similarity, threshold float64) float64 {
	urgency := utils.Clamp01(q.UrgencyScore)
	distance := threshold - similarity
	if distance < 0 {
		distance = 0
	}
	freq := float64(q.Frequency) / 10.0
	if freq > frequencyCap {
		freq = frequencyCap
	}
	return utils.Clamp01(urgencyWeight*urgency + distanceWeight*distance + freq)
}

// sortGaps orders by descending priority, breaking ties by source ID then
// question text so output is stable across runs.
func sortGaps(gaps []models.KnowledgeGap) {
	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].PriorityScore != gaps[j].PriorityScore {
			return gaps[i].PriorityScore > gaps[j].PriorityScore
		}
		if gaps[i].Question.SourceID != gaps[j].Question.SourceID {
			return gaps[i].Question.SourceID < gaps[j].Question.SourceID
		}
		return gaps[i].Question.Text < gaps[j].Question.Text
	})
}
