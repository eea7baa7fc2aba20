package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/jewelry-concierge/server/internal/agent/model"
)

var (
	//go:embed template/classifier_prompt.txt
	classifierPrompt string
	//go:embed template/analytics_modules_prompt.txt
	modulesPrompt string
	//go:embed template/preference_prompt.txt
	preferencePrompt string
	//go:embed template/consultant_prompt.txt
	consultantPrompt string
	//go:embed template/companion_prompt.txt
	companionPrompt string
	//go:embed template/quiz_prompt.txt
	quizPrompt string
	//go:embed template/trend_analysis_prompt.txt
	trendAnalysisPrompt string
	//go:embed template/trend_report_prompt.txt
	trendReportPrompt string
	//go:embed template/analytics_report_prompt.txt
	analyticsReportPrompt string
)

// render formats a system template through the Eino prompt component (Go
// template syntax) so prompt callbacks fire for every rendered prompt.
func render(ctx context.Context, name, tpl string, vars map[string]any) (string, error) {
	t := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(tpl))
	msgs, err := t.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return strings.TrimSpace(msgs[0].Content), nil
}

// RenderClassifierSystem renders the task classifier instructions.
func RenderClassifierSystem(ctx context.Context) (string, error) {
	return render(ctx, "classifier", classifierPrompt, map[string]any{})
}

// RenderModulesSystem renders the analytics module selection instructions.
func RenderModulesSystem(ctx context.Context) (string, error) {
	return render(ctx, "analytics modules", modulesPrompt, map[string]any{})
}

// RenderPreferenceSystem renders the preference extraction instructions.
func RenderPreferenceSystem(ctx context.Context, currency string) (string, error) {
	return render(ctx, "preference", preferencePrompt, map[string]any{"Currency": currency})
}

type ConsultantVars struct {
	StoreName   string
	Currency    string
	Preferences string
	Catalog     string
}

func RenderConsultantSystem(ctx context.Context, v ConsultantVars) (string, error) {
	if v.StoreName == "" {
		v.StoreName = "our jewelry store"
	}
	return render(ctx, "consultant", consultantPrompt, map[string]any{
		"StoreName":   v.StoreName,
		"Currency":    v.Currency,
		"Preferences": v.Preferences,
		"Catalog":     v.Catalog,
	})
}

type CompanionVars struct {
	HoroscopeTool string
	ZodiacTool    string
	ZodiacSign    string
}

func RenderCompanionSystem(ctx context.Context, v CompanionVars) (string, error) {
	return render(ctx, "companion", companionPrompt, map[string]any{
		"HoroscopeTool": v.HoroscopeTool,
		"ZodiacTool":    v.ZodiacTool,
		"ZodiacSign":    v.ZodiacSign,
	})
}

type QuizVars struct {
	Action       string
	Total        int
	Answered     int
	Number       int
	Question     string
	Answers      string
	QuestionTool string
	AnalyzeTool  string
}

func RenderQuizSystem(ctx context.Context, v QuizVars) (string, error) {
	return render(ctx, "quiz", quizPrompt, map[string]any{
		"Action":       v.Action,
		"Total":        v.Total,
		"Answered":     v.Answered,
		"Number":       v.Number,
		"Question":     v.Question,
		"Answers":      v.Answers,
		"QuestionTool": v.QuestionTool,
		"AnalyzeTool":  v.AnalyzeTool,
	})
}

func RenderTrendAnalysis(ctx context.Context, keywords, content string) (string, error) {
	return render(ctx, "trend analysis", trendAnalysisPrompt, map[string]any{
		"Keywords": keywords,
		"Content":  content,
	})
}

type TrendReportVars struct {
	Keywords        string
	Trends          string
	Scores          string
	Emerging        string
	Recommendations string
}

func RenderTrendReport(ctx context.Context, v TrendReportVars) (string, error) {
	return render(ctx, "trend report", trendReportPrompt, map[string]any{
		"Keywords":        v.Keywords,
		"Trends":          v.Trends,
		"Scores":          v.Scores,
		"Emerging":        v.Emerging,
		"Recommendations": v.Recommendations,
	})
}

type AnalyticsReportVars struct {
	Patterns      string
	Consultations string
	Forecast      string
	Segments      string
	Currency      string
}

func RenderAnalyticsReport(ctx context.Context, v AnalyticsReportVars) (string, error) {
	return render(ctx, "analytics report", analyticsReportPrompt, map[string]any{
		"Patterns":      v.Patterns,
		"Consultations": v.Consultations,
		"Forecast":      v.Forecast,
		"Segments":      v.Segments,
		"Currency":      v.Currency,
	})
}

// FormatHistory renders turns as a plain transcript, one line per turn.
func FormatHistory(turns []model.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		switch schema.RoleType(t.Role) {
		case schema.User:
			lines = append(lines, "Customer: "+t.Content)
		case schema.Assistant:
			lines = append(lines, "Assistant: "+t.Content)
		}
	}
	return strings.Join(lines, "\n")
}

// UserPrompt joins an optional transcript and the current message.
func UserPrompt(history []model.Turn, message string) string {
	transcript := FormatHistory(history)
	if transcript == "" {
		return message
	}
	return "Conversation so far:\n" + transcript + "\n\nCustomer: " + message
}
