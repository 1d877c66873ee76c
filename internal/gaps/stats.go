package gaps

import (
	"math"
	"sort"

	"github.com/gapscout/gapscout/internal/models"
)

// Priority bands used by SummaryStats and HighPriorityGaps.
const (
	HighPriorityFloor   = 0.7
	MediumPriorityFloor = 0.4
)

// SummaryStats summarizes a batch of gaps for reporting.
type SummaryStats struct {
	TotalGaps      int                 `json:"total_gaps"`
	HighPriority   int                 `json:"high_priority"`
	MediumPriority int                 `json:"medium_priority"`
	LowPriority    int                 `json:"low_priority"`
	Themes         []models.ThemeCount `json:"themes"`
	AvgPriority    float64             `json:"avg_priority"`
}

// Summarize computes priority-band counts and per-theme totals. Themes are
// sorted by descending count, then name.
func Summarize(gaps []models.KnowledgeGap) SummaryStats {
	stats := SummaryStats{TotalGaps: len(gaps)}
	if len(gaps) == 0 {
		return stats
	}

	byTheme := make(map[string]int)
	sum := 0.0
	for _, g := range gaps {
		switch {
		case g.PriorityScore >= HighPriorityFloor:
			stats.HighPriority++
		case g.PriorityScore >= MediumPriorityFloor:
			stats.MediumPriority++
		default:
			stats.LowPriority++
		}
		byTheme[g.Theme]++
		sum += g.PriorityScore
	}

	for theme, count := range byTheme {
		stats.Themes = append(stats.Themes, models.ThemeCount{Theme: theme, Count: count})
	}
	sort.Slice(stats.Themes, func(i, j int) bool {
		if stats.Themes[i].Count != stats.Themes[j].Count {
			return stats.Themes[i].Count > stats.Themes[j].Count
		}
		return stats.Themes[i].Theme < stats.Themes[j].Theme
	})

	stats.AvgPriority = math.Round(sum/float64(len(gaps))*100) / 100
	return stats
}

// HighPriorityGaps returns gaps at or above the floor, preserving order.
func HighPriorityGaps(gaps []models.KnowledgeGap, floor float64) []models.KnowledgeGap {
	if floor <= 0 {
		floor = HighPriorityFloor
	}
	var out []models.KnowledgeGap
	for _, g := range gaps {
		if g.PriorityScore >= floor {
			out = append(out, g)
		}
	}
	return out
}

// GapsByTheme groups gaps by assigned theme, preserving priority order
// within each group.
func GapsByTheme(gaps []models.KnowledgeGap) map[string][]models.KnowledgeGap {
	out := make(map[string][]models.KnowledgeGap)
	for _, g := range gaps {
		out[g.Theme] = append(out[g.Theme], g)
	}
	return out
}
