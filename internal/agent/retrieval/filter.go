package retrieval

import (
	"strings"

	"github.com/jewelry-concierge/server/internal/agent/model"
)

// categoryTokens maps query stems to catalog categories. Order matters:
// "earring" must be tested before "ring".
var categoryTokens = []struct {
	stem     string
	category string
}{
	{"earring", "earrings"},
	{"ring", "rings"},
	{"necklace", "necklaces"},
	{"bracelet", "bracelets"},
	{"pendant", "pendants"},
}

// ExtractCategory returns the catalog category named in query, if any.
func ExtractCategory(query string) string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
	for _, tok := range categoryTokens {
		for _, w := range words {
			if w == tok.stem || w == tok.category {
				return tok.category
			}
		}
	}
	return ""
}

// BuildFilter derives the structural predicate for a search: preferred
// materials, the budget range and a category named in the query.
func BuildFilter(query string, prefs *model.Preferences) model.Filter {
	f := model.Filter{Category: ExtractCategory(query)}
	if prefs == nil {
		return f
	}
	for _, m := range prefs.Materials {
		if m = strings.TrimSpace(m); m != "" {
			f.Materials = append(f.Materials, m)
		}
	}
	if prefs.BudgetMin != nil {
		f.PriceMin = model.Float(*prefs.BudgetMin)
	}
	if prefs.BudgetMax != nil {
		f.PriceMax = model.Float(*prefs.BudgetMax)
	}
	return f
}
