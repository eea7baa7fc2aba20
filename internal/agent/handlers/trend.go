package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jewelry-concierge/server/internal/agent/graph/parsers"
	"github.com/jewelry-concierge/server/internal/agent/graph/prompts"
	"github.com/jewelry-concierge/server/internal/agent/llm"
	"github.com/jewelry-concierge/server/internal/agent/model"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

const (
	trendContentLimit = 2000
	maxEmerging       = 5
	unknownForecast   = "Unable to determine"
)

// TrendFindings is the structured trend analysis of a text.
type TrendFindings struct {
	Styles           []string `json:"trending_styles"`
	Materials        []string `json:"popular_materials"`
	Colors           []string `json:"trending_colors"`
	Designers        []string `json:"mentioned_designers"`
	SeasonalForecast string   `json:"seasonal_forecast"`
}

// TrendRecommendation is one suggested action.
type TrendRecommendation struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Action   string `json:"action"`
}

// Trend summarizes fashion content into jewelry trends, category scores and
// recommendations.
type Trend struct {
	provider llm.Provider
}

func NewTrend(provider llm.Provider) *Trend {
	return &Trend{provider: provider}
}

func (t *Trend) ID() model.HandlerID { return model.HandlerTrend }

func (t *Trend) Process(ctx context.Context, snap model.Snapshot) (model.Result, error) {
	content := strings.TrimSpace(snap.Content())
	if content == "" {
		content = strings.TrimSpace(snap.Message())
	}
	if content == "" {
		return model.Result{
			Reply:  "There is no content to analyze for trends.",
			Status: model.StatusNoData,
		}, nil
	}

	keywords := ExtractKeywords(content)
	findings := t.analyze(ctx, content, keywords)
	scores := ShareOfVoice(keywords)
	emerging := EmergingTrends(findings)
	recs := TrendRecommendations(findings, emerging)
	report := t.report(ctx, keywords, findings, scores, emerging, recs)

	return model.Result{
		Reply: report,
		Data: map[string]any{
			"trends":          findings,
			"keywords":        keywords,
			"trend_scores":    scores,
			"emerging":        emerging,
			"recommendations": recs,
			"content_length":  len(content),
		},
		Meta: map[string]any{
			"trend_scores": scores,
			"emerging":     emerging,
		},
		Status: model.StatusSuccess,
	}, nil
}

// analyze asks the model for trend findings and falls back to the most
// mentioned keywords.
func (t *Trend) analyze(ctx context.Context, content string, keywords map[string][]KeywordCount) TrendFindings {
	fallback := KeywordFindings(keywords)
	if t.provider == nil {
		return fallback
	}
	log := logx.FromContext(ctx)

	prompt, err := prompts.RenderTrendAnalysis(ctx, toJSON(keywords), excerpt(content, trendContentLimit))
	if err != nil {
		return fallback
	}
	raw, err := t.provider.Generate(ctx, prompt, llm.WithTemperature(0.4))
	if err != nil {
		log.Warn().Err(err).Msg("trend analysis unavailable; using keyword findings")
		return fallback
	}
	findings, err := parsers.DecodeJSON[TrendFindings](raw)
	if err != nil {
		log.Warn().Err(err).Msg("trend analysis unparsable; using keyword findings")
		return fallback
	}
	if findings.SeasonalForecast == "" {
		findings.SeasonalForecast = unknownForecast
	}
	return findings
}

// KeywordFindings builds findings from keyword counts alone.
func KeywordFindings(keywords map[string][]KeywordCount) TrendFindings {
	return TrendFindings{
		Styles:           TopKeywords(keywords, GroupStyles, 5),
		Materials:        TopKeywords(keywords, GroupMaterials, 5),
		Colors:           TopKeywords(keywords, GroupColors, 3),
		Designers:        []string{},
		SeasonalForecast: unknownForecast,
	}
}

// EmergingTrends crosses the leading styles with the leading materials.
func EmergingTrends(f TrendFindings) []string {
	out := []string{}
	for _, style := range f.Styles[:min(3, len(f.Styles))] {
		for _, material := range f.Materials[:min(2, len(f.Materials))] {
			if len(out) == maxEmerging {
				return out
			}
			out = append(out, fmt.Sprintf("%s in %s style", capitalize(material), style))
		}
	}
	return out
}

// TrendRecommendations derives product, innovation and marketing actions.
func TrendRecommendations(f TrendFindings, emerging []string) []TrendRecommendation {
	out := []TrendRecommendation{}
	if len(f.Styles) > 0 {
		out = append(out, TrendRecommendation{"product", "high",
			"Increase inventory of " + strings.Join(f.Styles[:min(3, len(f.Styles))], ", ") + " style products"})
	}
	if len(f.Materials) > 0 {
		out = append(out, TrendRecommendation{"product", "high",
			"Focus on " + strings.Join(f.Materials[:min(3, len(f.Materials))], ", ") + " materials for new collections"})
	}
	if len(emerging) > 0 {
		out = append(out, TrendRecommendation{"innovation", "medium",
			"Explore new designs: " + strings.Join(emerging[:min(2, len(emerging))], ", ")})
	}
	if len(f.Designers) > 0 {
		out = append(out, TrendRecommendation{"marketing", "medium",
			"Highlight designer inspiration: " + strings.Join(f.Designers[:min(2, len(f.Designers))], ", ")})
	}
	return out
}

func (t *Trend) report(ctx context.Context, keywords map[string][]KeywordCount, f TrendFindings,
	scores map[string]float64, emerging []string, recs []TrendRecommendation) string {
	fallback := TrendSummary(f, scores, emerging, recs)
	if t.provider == nil {
		return fallback
	}
	prompt, err := prompts.RenderTrendReport(ctx, prompts.TrendReportVars{
		Keywords:        toJSON(keywords),
		Trends:          toJSON(f),
		Scores:          formatScores(scores),
		Emerging:        toJSON(emerging),
		Recommendations: toJSON(recs),
	})
	if err != nil {
		return fallback
	}
	text, err := t.provider.Generate(ctx, prompt, llm.WithTemperature(0.6))
	if err != nil {
		logx.FromContext(ctx).Warn().Err(err).Msg("trend report unavailable; using summary")
		return fallback
	}
	if text = strings.TrimSpace(parsers.StripThinking(text)); text == "" {
		return fallback
	}
	return text
}

// TrendSummary is the deterministic trend report.
func TrendSummary(f TrendFindings, scores map[string]float64, emerging []string, recs []TrendRecommendation) string {
	var b strings.Builder
	b.WriteString("Trend summary\n")
	if len(f.Styles) > 0 {
		b.WriteString("\nStyles: " + strings.Join(f.Styles, ", "))
	}
	if len(f.Materials) > 0 {
		b.WriteString("\nMaterials: " + strings.Join(f.Materials, ", "))
	}
	if len(f.Colors) > 0 {
		b.WriteString("\nColors: " + strings.Join(f.Colors, ", "))
	}
	b.WriteString("\nCategory share of voice:\n" + formatScores(scores))
	if len(emerging) > 0 {
		b.WriteString("\nEmerging: " + strings.Join(emerging, "; "))
	}
	for _, r := range recs {
		fmt.Fprintf(&b, "\n- [%s/%s] %s", r.Type, r.Priority, r.Action)
	}
	return b.String()
}

// formatScores lists scores in ScoredCategories order.
func formatScores(scores map[string]float64) string {
	lines := make([]string, 0, len(scores))
	for _, c := range ScoredCategories {
		if v, ok := scores[c]; ok {
			lines = append(lines, fmt.Sprintf("- %s: %.2f", c, v))
		}
	}
	return strings.Join(lines, "\n")
}

func toJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

var _ Handler = (*Trend)(nil)
