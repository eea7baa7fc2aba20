package handlers

import (
	"cmp"
	"slices"
	"strings"

	"github.com/jewelry-concierge/server/internal/agent/model"
)

// Budget bucket and segment bounds, in store currency.
const (
	budgetLow  = 20000
	budgetMid  = 50000
	budgetHigh = 100000
)

// ForecastCategories are the categories the demand forecast covers.
var ForecastCategories = []string{"rings", "necklaces", "bracelets", "earrings", "pendants"}

// Count is one value and how often it occurs.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type PatternStats struct {
	PopularStyles      []Count        `json:"popular_styles"`
	PopularMaterials   []Count        `json:"popular_materials"`
	AverageBudget      float64        `json:"average_budget"`
	BudgetDistribution map[string]int `json:"budget_distribution"`
	SkinTones          []Count        `json:"skin_tone_distribution"`
	PopularOccasions   []Count        `json:"popular_occasions"`
	TotalAnalyzed      int            `json:"total_analyzed"`
}

type ConsultationStats struct {
	Total               int            `json:"total_consultations"`
	HandlerDistribution map[string]int `json:"agent_type_distribution"`
	AvgRecommendations  float64        `json:"average_recommendations_per_consultation"`
}

type CategoryForecast struct {
	DemandScore      float64 `json:"demand_score"`
	RecommendedStock string  `json:"recommended_stock"`
	Priority         string  `json:"priority"`
}

type Segment struct {
	Name          string  `json:"name"`
	Size          int     `json:"size"`
	AvgBudget     float64 `json:"avg_budget"`
	PopularStyles []Count `json:"popular_styles"`
}

// countValues counts non-empty values and sorts by count, keeping first-seen
// order among equal counts. n < 0 keeps every value.
func countValues(values []string, n int) []Count {
	idx := map[string]int{}
	var out []Count
	for _, v := range values {
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		if i, ok := idx[v]; ok {
			out[i].Count++
			continue
		}
		idx[v] = len(out)
		out = append(out, Count{Value: v, Count: 1})
	}
	slices.SortStableFunc(out, func(a, b Count) int { return cmp.Compare(b.Count, a.Count) })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	if out == nil {
		out = []Count{}
	}
	return out
}

// AnalyzePatterns summarizes styles, materials, budgets, skin tones and
// occasions across profiles.
func AnalyzePatterns(profiles []model.Profile) PatternStats {
	var styles, materials, tones, occasions []string
	var budgets []float64
	for _, p := range profiles {
		prefs := p.Preferences
		styles = append(styles, prefs.Style)
		materials = append(materials, prefs.Materials...)
		tones = append(tones, prefs.SkinTone)
		occasions = append(occasions, prefs.Occasions...)
		if prefs.BudgetMax != nil && *prefs.BudgetMax > 0 {
			budgets = append(budgets, *prefs.BudgetMax)
		}
	}

	dist := map[string]int{"under_20k": 0, "20k_50k": 0, "50k_100k": 0, "over_100k": 0}
	sum := 0.0
	for _, b := range budgets {
		sum += b
		switch {
		case b < budgetLow:
			dist["under_20k"]++
		case b < budgetMid:
			dist["20k_50k"]++
		case b < budgetHigh:
			dist["50k_100k"]++
		default:
			dist["over_100k"]++
		}
	}
	avg := 0.0
	if len(budgets) > 0 {
		avg = round2(sum / float64(len(budgets)))
	}

	return PatternStats{
		PopularStyles:      countValues(styles, 5),
		PopularMaterials:   countValues(materials, 5),
		AverageBudget:      avg,
		BudgetDistribution: dist,
		SkinTones:          countValues(tones, -1),
		PopularOccasions:   countValues(occasions, -1),
		TotalAnalyzed:      len(profiles),
	}
}

// AnalyzeConsultations counts interactions per handler and the average
// number of recommendations.
func AnalyzeConsultations(records []model.InteractionRecord) ConsultationStats {
	stats := ConsultationStats{HandlerDistribution: map[string]int{}}
	if len(records) == 0 {
		return stats
	}
	recs := 0
	for _, r := range records {
		stats.HandlerDistribution[string(r.AgentType)]++
		recs += len(r.Recommendations)
	}
	stats.Total = len(records)
	stats.AvgRecommendations = round2(float64(recs) / float64(len(records)))
	return stats
}

// ForecastDemand scores each category as 50 plus a tenth of the occasion
// mentions, capped at 100.
func ForecastDemand(patterns PatternStats) map[string]CategoryForecast {
	occasions := 0
	for _, c := range patterns.PopularOccasions {
		occasions += c.Count
	}
	if occasions == 0 {
		occasions = 1
	}
	score := round2(50 + float64(occasions)/10)

	out := make(map[string]CategoryForecast, len(ForecastCategories))
	for _, c := range ForecastCategories {
		f := CategoryForecast{DemandScore: min(score, 100), RecommendedStock: "medium", Priority: "medium"}
		if score > 60 {
			f.RecommendedStock = "high"
		}
		if score > 70 {
			f.Priority = "high"
		}
		out[c] = f
	}
	return out
}

// IdentifySegments groups profiles with a budget into luxury, mid-range and
// budget segments. Empty segments are omitted.
func IdentifySegments(profiles []model.Profile) []Segment {
	tiers := []struct {
		name string
		in   func(float64) bool
	}{
		{"Luxury Buyers", func(b float64) bool { return b >= budgetHigh }},
		{"Mid-Range Buyers", func(b float64) bool { return b >= budgetLow && b < budgetHigh }},
		{"Budget Conscious", func(b float64) bool { return b < budgetLow }},
	}

	out := []Segment{}
	for _, t := range tiers {
		var styles []string
		sum, size := 0.0, 0
		for _, p := range profiles {
			b := p.Preferences.BudgetMax
			if b == nil || *b <= 0 || !t.in(*b) {
				continue
			}
			size++
			sum += *b
			styles = append(styles, p.Preferences.Style)
		}
		if size == 0 {
			continue
		}
		out = append(out, Segment{
			Name:          t.name,
			Size:          size,
			AvgBudget:     round2(sum / float64(size)),
			PopularStyles: countValues(styles, 3),
		})
	}
	return out
}
