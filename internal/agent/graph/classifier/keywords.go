package classifier

import (
	"strings"
	"unicode"

	"github.com/jewelry-concierge/server/internal/agent/model"
)

var taskKeywords = map[model.HandlerID][]string{
	model.HandlerCompanion: {
		"horoscope", "zodiac", "astrolog", "how are you", "lonely", "feeling",
		"mood", "talk to me", "bored", "my day",
	},
	model.HandlerQuiz: {
		"quiz", "my taste", "questionnaire", "discover my style", "style test", "what suits me",
	},
	model.HandlerAnalytics: {
		"analytics", "analysis", "analyze", "segment", "report", "forecast",
		"demand", "statistic", "customer data",
	},
	model.HandlerTrend: {
		"trend", "popular", "fashion", "this season", "in style", "runway",
	},
	model.HandlerConsultant: {
		"ring", "necklace", "bracelet", "earring", "pendant", "gold", "silver",
		"platinum", "diamond", "buy", "looking for", "recommend", "gift", "price",
		"budget", "show me", "jewelry",
	},
}

// Module names of the analytics sub-flow, in execution order.
const (
	ModulePatterns      = "patterns"
	ModuleConsultations = "consultations"
	ModuleForecast      = "forecast"
	ModuleSegments      = "segments"
	ModuleReport        = "report"
)

var ModuleOrder = []string{ModulePatterns, ModuleConsultations, ModuleForecast, ModuleSegments, ModuleReport}

var moduleKeywords = map[string][]string{
	ModulePatterns:      {"style", "budget", "material", "preference", "popular", "trend"},
	ModuleConsultations: {"consultation", "advice", "recommend", "agent", "help"},
	ModuleForecast:      {"forecast", "predict", "demand", "future", "next", "trend"},
	ModuleSegments:      {"segment", "customer", "group", "category", "tier"},
	ModuleReport:        {"report", "summary", "analysis", "complete", "comprehensive", "overview"},
}

// countHits returns how many keywords of set occur in text. A keyword must
// start on a word boundary, so "ring" counts in "rings" but not in "spring";
// multi-word keywords match a run of whole words the same way.
func countHits(text string, set []string) int {
	padded := " " + strings.Join(words(text), " ")
	n := 0
	for _, kw := range set {
		if strings.Contains(padded, " "+strings.Join(words(kw), " ")) {
			n++
		}
	}
	return n
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
