package gaps

import (
	"math"
	"testing"

	"github.com/gapscout/gapscout/internal/models"
)

func question(text, sourceID string, urgency float64, freq int) models.Question {
	return models.Question{
		Text:         text,
		SourceType:   models.SourceEmail,
		SourceID:     sourceID,
		UrgencyScore: urgency,
		Frequency:    freq,
	}
}

func badMatch(q models.Question, similarity float64) models.Match {
	return models.Match{
		Question:        q,
		Article:         models.Article{ID: "kb-1", Title: "Something"},
		SimilarityScore: similarity,
		GoodMatch:       false,
	}
}

func TestPriorityFormula(t *testing.T) {
	a := NewAnalyzer(0.75)
	tests := []struct {
		name       string
		urgency    float64
		similarity float64
		frequency  int
		want       float64
	}{
		{"max urgency no match", 1.0, 0.0, 1, 0.8},   // 0.4 + 0.3 + 0.1
		{"frequency capped", 1.0, 0.0, 100, 0.9},     // 0.4 + 0.3 + 0.2
		{"near miss", 0.5, 0.74, 1, 0.304},           // 0.2 + 0.004 + 0.1
		{"zero urgency", 0.0, 0.5, 1, 0.2},           // 0 + 0.1 + 0.1
		{"frequency at exactly ten", 0.0, 0.75, 10, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := question("q?", "s1", tt.urgency, tt.frequency)
			got := a.Priority(q, tt.similarity)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Priority = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestIdentifyGapsAtUsesGivenThreshold(t *testing.T) {
	a := NewAnalyzer(0.75)
	matches := []models.Match{badMatch(question("q?", "s1", 0.5, 1), 0.6)}

	// 0.4*0.5 + 0.4*(0.75-0.6) + 0.1
	gaps := a.IdentifyGapsAt(matches, nil, 0)
	if got := gaps[0].PriorityScore; math.Abs(got-0.36) > 1e-9 {
		t.Errorf("priority at fallback threshold = %f, want 0.36", got)
	}

	// 0.4*0.5 + 0.4*(0.9-0.6) + 0.1
	gaps = a.IdentifyGapsAt(matches, nil, 0.9)
	if got := gaps[0].PriorityScore; math.Abs(got-0.42) > 1e-9 {
		t.Errorf("priority at threshold 0.9 = %f, want 0.42", got)
	}
}

func TestPriorityBounds(t *testing.T) {
	a := NewAnalyzer(0.75)
	for _, urgency := range []float64{0, 0.5, 1.0} {
		for _, sim := range []float64{0, 0.25, 0.5, 0.74} {
			for _, freq := range []int{1, 5, 10, 1000} {
				got := a.Priority(question("q?", "s", urgency, freq), sim)
				if got < 0 || got > 1 {
					t.Fatalf("priority %f out of [0,1] for urgency=%f sim=%f freq=%d", got, urgency, sim, freq)
				}
			}
		}
	}
}

func TestIdentifyGapsSkipsGoodMatches(t *testing.T) {
	a := NewAnalyzer(0.75)
	matches := []models.Match{
		{Question: question("covered?", "s1", 0.5, 1), SimilarityScore: 0.9, GoodMatch: true},
		badMatch(question("not covered?", "s2", 0.5, 1), 0.3),
	}
	gaps := a.IdentifyGaps(matches, nil)
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(gaps))
	}
	if gaps[0].Question.SourceID != "s2" {
		t.Errorf("wrong question became a gap: %s", gaps[0].Question.SourceID)
	}
}

func TestBestMatchProvenance(t *testing.T) {
	a := NewAnalyzer(0.75)
	matches := []models.Match{
		badMatch(question("close one?", "s1", 0.1, 1), 0.6),
		badMatch(question("far one?", "s2", 0.1, 1), 0.5),
		badMatch(question("nothing?", "s3", 0.1, 1), 0.1),
	}
	gaps := a.IdentifyGaps(matches, nil)
	byID := make(map[string]models.KnowledgeGap)
	for _, g := range gaps {
		byID[g.Question.SourceID] = g
	}

	if byID["s1"].BestMatch == nil {
		t.Error("similarity 0.6 should keep the best match for context")
	}
	if byID["s2"].BestMatch != nil {
		t.Error("similarity exactly 0.5 should drop the best match")
	}
	if byID["s3"].BestMatch != nil {
		t.Error("similarity 0.1 should drop the best match")
	}
}

func TestAnswerCandidateAssociation(t *testing.T) {
	a := NewAnalyzer(0.75)
	matches := []models.Match{
		badMatch(question("how do I do the thing?", "call-7", 0.5, 1), 0.2),
	}
	answers := []models.AnswerCandidate{
		{Text: "the agent explained the thing", SourceType: models.SourceCallTranscript, SourceID: "call-7", ConfidenceScore: 0.6},
		{Text: "unrelated interaction", SourceType: models.SourceCallTranscript, SourceID: "call-9", ConfidenceScore: 0.6},
	}
	gaps := a.IdentifyGaps(matches, answers)
	if len(gaps[0].AnswerCandidates) != 1 {
		t.Fatalf("expected 1 associated answer, got %d", len(gaps[0].AnswerCandidates))
	}
	if gaps[0].AnswerCandidates[0].SourceID != "call-7" {
		t.Errorf("answer from wrong interaction: %s", gaps[0].AnswerCandidates[0].SourceID)
	}
}

func TestThemeAssignmentUsesBatchPopularity(t *testing.T) {
	a := NewAnalyzer(0.75)
	// All three match "payment"; the first also matches "cancellation".
	// Payment has more members in the batch so it wins.
	matches := []models.Match{
		badMatch(question("cancel the payment?", "s1", 0.5, 1), 0.1),
		badMatch(question("payment failed?", "s2", 0.5, 1), 0.1),
		badMatch(question("pay by card?", "s3", 0.5, 1), 0.1),
		badMatch(question("something weird", "s4", 0.5, 1), 0.1),
	}
	gaps := a.IdentifyGaps(matches, nil)
	themes := make(map[string]string)
	for _, g := range gaps {
		themes[g.Question.SourceID] = g.Theme
	}
	if themes["s1"] != "payment" {
		t.Errorf("expected batch-popular theme payment for s1, got %s", themes["s1"])
	}
	if themes["s2"] != "payment" || themes["s3"] != "payment" {
		t.Errorf("expected payment for s2/s3, got %s/%s", themes["s2"], themes["s3"])
	}
	if themes["s4"] != DefaultTheme {
		t.Errorf("expected %s for keyword-free question, got %s", DefaultTheme, themes["s4"])
	}
}

func TestThemeNamesSingular(t *testing.T) {
	a := NewAnalyzer(0.75)
	tests := []struct {
		text string
		want string
	}{
		{"can I cancel early?", "cancellation"},
		{"how do I submit a claim?", "claim"},
		{"when does my premium go up?", "payment"},
		{"need a quotation for a new car", "quote"},
		{"what paperwork do you need?", "document"},
	}
	for _, tt := range tests {
		gaps := a.IdentifyGaps([]models.Match{badMatch(question(tt.text, "s1", 0.5, 1), 0.1)}, nil)
		if gaps[0].Theme != tt.want {
			t.Errorf("theme for %q = %q, want %q", tt.text, gaps[0].Theme, tt.want)
		}
	}
}

func TestGapOrderingDeterministic(t *testing.T) {
	a := NewAnalyzer(0.75)
	matches := []models.Match{
		badMatch(question("b question?", "s2", 0.5, 1), 0.2),
		badMatch(question("a question?", "s1", 0.5, 1), 0.2),
		badMatch(question("urgent question?", "s3", 1.0, 1), 0.2),
	}
	gaps := a.IdentifyGaps(matches, nil)
	if gaps[0].Question.SourceID != "s3" {
		t.Fatalf("highest priority should sort first, got %s", gaps[0].Question.SourceID)
	}
	if gaps[1].Question.SourceID != "s1" || gaps[2].Question.SourceID != "s2" {
		t.Errorf("equal priorities should tie-break by source ID: got %s, %s",
			gaps[1].Question.SourceID, gaps[2].Question.SourceID)
	}
}

func TestSummarize(t *testing.T) {
	gaps := []models.KnowledgeGap{
		{Question: question("a?", "s1", 0, 1), PriorityScore: 0.9, Theme: "claim"},
		{Question: question("b?", "s2", 0, 1), PriorityScore: 0.5, Theme: "claim"},
		{Question: question("c?", "s3", 0, 1), PriorityScore: 0.2, Theme: "general"},
	}
	stats := Summarize(gaps)
	if stats.TotalGaps != 3 || stats.HighPriority != 1 || stats.MediumPriority != 1 || stats.LowPriority != 1 {
		t.Fatalf("band counts wrong: %+v", stats)
	}
	if len(stats.Themes) != 2 || stats.Themes[0].Theme != "claim" || stats.Themes[0].Count != 2 {
		t.Fatalf("theme counts wrong: %+v", stats.Themes)
	}
	if math.Abs(stats.AvgPriority-0.53) > 1e-9 {
		t.Errorf("avg priority = %f, want 0.53", stats.AvgPriority)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	stats := Summarize(nil)
	if stats.TotalGaps != 0 || stats.AvgPriority != 0 || len(stats.Themes) != 0 {
		t.Errorf("empty summary not zeroed: %+v", stats)
	}
}

func TestHighPriorityGaps(t *testing.T) {
	gaps := []models.KnowledgeGap{
		{Question: question("a?", "s1", 0, 1), PriorityScore: 0.9},
		{Question: question("b?", "s2", 0, 1), PriorityScore: 0.7},
		{Question: question("c?", "s3", 0, 1), PriorityScore: 0.69},
	}
	high := HighPriorityGaps(gaps, 0)
	if len(high) != 2 {
		t.Fatalf("expected 2 high-priority gaps, got %d", len(high))
	}
}
