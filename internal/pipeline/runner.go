// Package pipeline orchestrates a full analysis run: anonymize, extract,
// index, match, and turn weak matches into a prioritized gap backlog.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gapscout/gapscout/internal/anonymize"
	"github.com/gapscout/gapscout/internal/extract"
	"github.com/gapscout/gapscout/internal/gaps"
	"github.com/gapscout/gapscout/internal/ingest"
	"github.com/gapscout/gapscout/internal/matcher"
	"github.com/gapscout/gapscout/internal/models"
	"github.com/gapscout/gapscout/pkg/utils"
)

// Result is everything one run produced.
type Result struct {
	Report   *models.Report        `json:"report"`
	Gaps     []models.KnowledgeGap `json:"gaps"`
	Matches  []models.Match        `json:"matches"`
	Warnings []models.Warning      `json:"warnings"`
}

// Runner wires the pipeline stages together.
type Runner struct {
	anonymizer *anonymize.Anonymizer
	extractor  extract.Extractor
	matcher    *matcher.Matcher
	analyzer   *gaps.Analyzer
	logger     *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets a logger for stage progress.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithExtractor replaces the default heuristic extractor.
func WithExtractor(e extract.Extractor) Option {
	return func(r *Runner) { r.extractor = e }
}

// NewRunner creates a Runner around an already-configured matcher and
// analyzer. A fresh anonymizer is created per Runner so placeholder maps are
// consistent within a run but never leak across runs.
func NewRunner(m *matcher.Matcher, a *gaps.Analyzer, opts ...Option) *Runner {
	r := &Runner{
		anonymizer: anonymize.New(),
		extractor:  extract.NewHeuristicExtractor(),
		matcher:    m,
		analyzer:   a,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run indexes the articles, matches the questions, and analyzes the misses.
// Question texts are anonymized and deduplicated before matching.
func (r *Runner) Run(ctx context.Context, articles []models.Article, questions []models.Question, answers []models.AnswerCandidate) (*Result, error) {
	if err := r.matcher.IndexArticles(ctx, articles); err != nil {
		return nil, fmt.Errorf("index articles: %w", err)
	}

	// Anonymize copies so callers keep their original slices.
	questions = append([]models.Question(nil), questions...)
	answers = append([]models.AnswerCandidate(nil), answers...)
	for i := range questions {
		questions[i].Text = r.anonymizer.Anonymize(questions[i].Text)
		questions[i].Context = r.anonymizer.Anonymize(questions[i].Context)
	}
	for i := range answers {
		answers[i].Text = r.anonymizer.Anonymize(answers[i].Text)
	}
	questions = dedupeQuestions(questions)

	matches, warnings, err := r.matcher.MatchQuestions(ctx, questions)
	if err != nil {
		return nil, fmt.Errorf("match questions: %w", err)
	}

	knowledgeGaps := r.analyzer.IdentifyGaps(matches, answers)
	report := r.buildReport(len(questions), len(articles), matches, knowledgeGaps)

	if r.logger != nil {
		r.logger.Info("pipeline run complete",
			zap.String("report_id", report.ID),
			zap.Int("questions", len(questions)),
			zap.Int("gaps", len(knowledgeGaps)),
			zap.Float64("coverage_pct", report.CoveragePercentage),
		)
	}
	return &Result{
		Report:   report,
		Gaps:     knowledgeGaps,
		Matches:  matches,
		Warnings: warnings,
	}, nil
}

// RunFromDirs ingests transcripts and emails from drop directories, extracts
// questions and answer candidates, and runs the pipeline. Either directory
// may be empty-string to skip that source.
func (r *Runner) RunFromDirs(ctx context.Context, articles []models.Article, transcriptDir, emailDir string) (*Result, error) {
	var questions []models.Question
	var answers []models.AnswerCandidate
	var warnings []models.Warning

	if transcriptDir != "" {
		transcripts, ws, err := ingest.ParseTranscriptDirectory(transcriptDir)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, ws...)
		for i := range transcripts {
			ingest.AnonymizeTranscript(r.anonymizer, &transcripts[i])
			qs, as, err := r.extractor.FromTranscript(ctx, &transcripts[i])
			if err != nil {
				warnings = append(warnings, models.Warning{
					Stage: "extract", ItemID: transcripts[i].ID, Reason: err.Error(),
				})
				continue
			}
			questions = append(questions, qs...)
			answers = append(answers, as...)
		}
	}

	if emailDir != "" {
		emails, ws, err := ingest.ParseEmailDirectory(emailDir)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, ws...)
		for i := range emails {
			ingest.AnonymizeEmail(r.anonymizer, &emails[i])
			qs, as, err := r.extractor.FromEmail(ctx, &emails[i])
			if err != nil {
				warnings = append(warnings, models.Warning{
					Stage: "extract", ItemID: emails[i].ID, Reason: err.Error(),
				})
				continue
			}
			questions = append(questions, qs...)
			answers = append(answers, as...)
		}
	}

	result, err := r.Run(ctx, articles, questions, answers)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(warnings, result.Warnings...)
	return result, nil
}

// buildReport assembles the run report with coverage and best-effort
// recommendation text.
func (r *Runner) buildReport(totalQuestions, totalArticles int, matches []models.Match, knowledgeGaps []models.KnowledgeGap) *models.Report {
	report := models.NewReport()
	report.TotalQuestions = totalQuestions
	report.TotalArticles = totalArticles
	report.KnowledgeGaps = len(knowledgeGaps)

	good := 0
	for _, m := range matches {
		if m.GoodMatch {
			good++
		}
	}
	report.GoodMatches = good
	if totalQuestions > 0 {
		report.CoveragePercentage = float64(good) / float64(totalQuestions) * 100
	}

	stats := gaps.Summarize(knowledgeGaps)
	report.TopThemes = stats.Themes
	report.Recommendations = recommendations(report.CoveragePercentage, stats)
	return report
}

func recommendations(coveragePct float64, stats gaps.SummaryStats) []string {
	var recs []string
	switch {
	case coveragePct >= 80:
		recs = append(recs, "Excellent coverage: the article corpus answers most customer questions.")
	case coveragePct >= 60:
		recs = append(recs, "Good coverage, with room for improvement in the themes below.")
	default:
		recs = append(recs, "Coverage needs improvement: consider authoring articles for the high-priority gaps.")
	}
	if stats.HighPriority > 0 {
		recs = append(recs, fmt.Sprintf("%d high-priority gaps need articles first.", stats.HighPriority))
	}
	if len(stats.Themes) > 0 && stats.Themes[0].Theme != gaps.DefaultTheme {
		recs = append(recs, fmt.Sprintf("The %q theme has the most gaps (%d); start there.",
			stats.Themes[0].Theme, stats.Themes[0].Count))
	}
	return recs
}

// dedupeQuestions merges questions with the same normalized text, keeping
// the first occurrence and summing frequencies. The first seen urgency wins
// unless a later duplicate is more urgent.
func dedupeQuestions(questions []models.Question) []models.Question {
	seen := make(map[string]int)
	var out []models.Question
	for _, q := range questions {
		key := utils.NormalizeText(q.Text)
		if idx, ok := seen[key]; ok {
			freq := q.Frequency
			if freq < 1 {
				freq = 1
			}
			out[idx].Frequency += freq
			if q.UrgencyScore > out[idx].UrgencyScore {
				out[idx].UrgencyScore = q.UrgencyScore
			}
			continue
		}
		seen[key] = len(out)
		if q.Frequency < 1 {
			q.Frequency = 1
		}
		out = append(out, q)
	}
	return out
}
