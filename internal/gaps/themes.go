package gaps

import (
	"sort"
	"strings"

	"github.com/gapscout/gapscout/internal/models"
)

// DefaultTheme groups questions that match no keyword table entry.
const DefaultTheme = "general"

// themeKeywords maps a theme name to the substrings that select it. Matching
// is case-insensitive against the question text.
var themeKeywords = map[string][]string{
	"claim":        {"claim", "claims", "filing", "submit"},
	"policy":       {"policy", "policies", "coverage", "plan"},
	"payment":      {"payment", "pay", "billing", "invoice", "premium"},
	"account":      {"account", "login", "password", "access"},
	"cancellation": {"cancel", "cancellation", "terminate", "end"},
	"renewal":      {"renew", "renewal", "extension", "expiry", "expire"},
	"quote":        {"quote", "quotation", "estimate", "price"},
	"document":     {"document", "documents", "paperwork", "forms", "certificate"},
	"contact":      {"contact", "reach", "phone", "email", "support"},
	"change":       {"change", "update", "modify", "edit"},
}

// matchingThemes returns every theme whose keyword appears in the question
// text, sorted for determinism.
func matchingThemes(questionText string) []string {
	lower := strings.ToLower(questionText)
	var themes []string
	for theme, keywords := range themeKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				themes = append(themes, theme)
				break
			}
		}
	}
	sort.Strings(themes)
	return themes
}

// assignThemes sets each gap's Theme in two phases. First every gap is
// bucketed under all themes its question matches, then each gap takes its
// matching theme with the most members in the whole batch, so related
// questions cluster under one name. Ties go to the lexicographically
// smaller theme. Gaps matching nothing fall to DefaultTheme.
func assignThemes(gaps []models.KnowledgeGap) {
	counts := make(map[string]int)
	matched := make([][]string, len(gaps))
	for i, g := range gaps {
		themes := matchingThemes(g.Question.Text)
		matched[i] = themes
		for _, t := range themes {
			counts[t]++
		}
	}

	for i := range gaps {
		best := DefaultTheme
		bestCount := 0
		// matched[i] is sorted, so ties keep the smaller theme name.
		for _, t := range matched[i] {
			if counts[t] > bestCount {
				best = t
				bestCount = counts[t]
			}
		}
		gaps[i].Theme = best
	}
}
