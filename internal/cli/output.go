// Package cli provides output formatting for gapscout commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gapscout/gapscout/internal/models"
	"github.com/gapscout/gapscout/internal/pipeline"
	"github.com/gapscout/gapscout/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteResult writes a pipeline result to w in the given format.
func WriteResult(w io.Writer, result *pipeline.Result, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		writeResultText(w, result)
		return nil
	}
}

// WriteGaps writes just a gap backlog to w in the given format.
func WriteGaps(w io.Writer, gaps []models.KnowledgeGap, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(gaps)
	default:
		writeGapsText(w, gaps)
		return nil
	}
}

func writeResultText(w io.Writer, result *pipeline.Result) {
	r := result.Report
	fmt.Fprintf(w, "\nReport %s (generated %s)\n", r.ID, r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Questions: %d | Articles: %d | Good matches: %d | Coverage: %.1f%%\n",
		r.TotalQuestions, r.TotalArticles, r.GoodMatches, r.CoveragePercentage)
	if len(r.TopThemes) > 0 {
		fmt.Fprint(w, "Top themes:")
		for _, tc := range r.TopThemes {
			fmt.Fprintf(w, " %s(%d)", tc.Theme, tc.Count)
		}
		fmt.Fprintln(w)
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "  * %s\n", rec)
	}
	writeGapsText(w, result.Gaps)
	if len(result.Warnings) > 0 {
		fmt.Fprintf(w, "\n%d warnings:\n", len(result.Warnings))
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "  [%s] %s: %s\n", warn.Stage, warn.ItemID, warn.Reason)
		}
	}
}

func writeGapsText(w io.Writer, gaps []models.KnowledgeGap) {
	fmt.Fprintf(w, "\n%d knowledge gaps\n", len(gaps))
	for i, g := range gaps {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "#%d | Priority: %.2f | Theme: %s\n", i+1, g.PriorityScore, g.Theme)
		fmt.Fprintf(w, "Q: %s\n", utils.Truncate(g.Question.Text, 200))
		fmt.Fprintf(w, "Source: %s (%s)\n", g.Question.SourceID, g.Question.SourceType)
		if g.BestMatch != nil {
			fmt.Fprintf(w, "Closest article: %s (similarity %.2f)\n",
				g.BestMatch.Article.Title, g.BestMatch.SimilarityScore)
		}
		for _, ans := range g.AnswerCandidates {
			fmt.Fprintf(w, "Observed answer (confidence %.2f): %s\n",
				ans.ConfidenceScore, utils.Truncate(ans.Text, 160))
		}
	}
}
