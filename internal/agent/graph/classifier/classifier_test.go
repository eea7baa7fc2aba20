package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelry-concierge/server/internal/agent/llm/llmtest"
	"github.com/jewelry-concierge/server/internal/agent/model"
)

func TestRuleBasedPicksMostHits(t *testing.T) {
	ctx := context.Background()
	cases := map[string]model.HandlerID{
		"looking for a gold ring under $500":                 model.HandlerConsultant,
		"what is my horoscope for today?":                    model.HandlerCompanion,
		"can we do the quiz to discover my style":            model.HandlerQuiz,
		"give me a demand forecast report":                   model.HandlerAnalytics,
		"which colors are in fashion this season":            model.HandlerTrend,
		"hello there":                                        model.DefaultHandler,
		"what styles are trending and also show me a ring":   model.HandlerConsultant,
	}
	for msg, want := range cases {
		got := RuleBased{}.Classify(ctx, msg, nil)
		assert.Equal(t, model.TaskType(want), got.TaskType, msg)
		assert.Equal(t, StrategyRule, got.Strategy)
	}
}

func TestRuleBasedMatchesWholeWords(t *testing.T) {
	ctx := context.Background()
	cases := map[string]model.HandlerID{
		"what gold styles are trending this spring":  model.HandlerTrend,
		"what gold styles are trending this season":  model.HandlerTrend,
		"what are people wearing during the holidays": model.DefaultHandler,
		"bring me something popular":                 model.HandlerTrend,
		"two rings and an earring":                   model.HandlerConsultant,
	}
	for msg, want := range cases {
		assert.Equal(t, model.TaskType(want), RuleBased{}.Classify(ctx, msg, nil).TaskType, msg)
	}
}

func TestCountHits(t *testing.T) {
	assert.Equal(t, 0, countHits("spring wearing during bring", []string{"ring"}))
	assert.Equal(t, 1, countHits("rings!", []string{"ring"}))
	assert.Equal(t, 1, countHits("is that in style, really?", []string{"in style"}))
	assert.Equal(t, 0, countHits("within styles", []string{"in style"}))
	assert.Equal(t, 1, countHits("astrology", []string{"astrolog"}))
}

func TestRuleBasedTieGoesToPriority(t *testing.T) {
	// one trend hit, one consultant hit
	got := RuleBased{}.Classify(context.Background(), "popular gifts", nil)
	assert.Equal(t, model.TaskType(model.HandlerTrend), got.TaskType)
}

func TestRuleBasedMixedIntentIsSingleHandler(t *testing.T) {
	got := RuleBased{}.Classify(context.Background(), "what styles are trending and also show me a ring", nil)
	h := model.HandlerID(got.TaskType)
	assert.True(t, h.Valid())
	assert.Len(t, got.TaskType.Plan(), 1)
}

func TestModelBasedUsesModelDecision(t *testing.T) {
	p := llmtest.Text("```json\n{\"task_type\": \"trend\", \"confidence\": 1.7, \"reasoning\": \"asks about trends\"}\n```")
	c := NewModelBased(p)

	history := []model.Turn{{Role: "user", Content: "1"}, {Role: "assistant", Content: "2"}, {Role: "user", Content: "3"}}
	got := c.Classify(context.Background(), "what is hot now?", history)

	assert.Equal(t, model.TaskType(model.HandlerTrend), got.TaskType)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, StrategyModel, got.Strategy)
	require.Len(t, p.Prompts, 1)
	assert.NotContains(t, p.Prompts[0], "Customer: 1")
	assert.Contains(t, p.Prompts[0], "Assistant: 2")
}

func TestModelBasedFallsBackToRules(t *testing.T) {
	messages := []string{
		"looking for a gold ring under $500",
		"what is my horoscope",
		"what styles are trending and also show me a ring",
		"",
	}
	providers := map[string]*llmtest.Scripted{
		"error":     llmtest.Failing(errors.New("provider down")),
		"garbage":   llmtest.Text("I think it's a consultation"),
		"unknown":   llmtest.Text(`{"task_type": "weather", "confidence": 0.9}`),
		"hybrid":    llmtest.Text(`{"task_type": "hybrid", "confidence": 0.9}`),
		"no_task":   llmtest.Text(`{"confidence": 0.9}`),
	}
	for name, p := range providers {
		c := NewModelBased(p)
		for _, msg := range messages {
			want := RuleBased{}.Classify(context.Background(), msg, nil)
			got := c.Classify(context.Background(), msg, nil)
			assert.Equal(t, want, got, "%s: %q", name, msg)
		}
	}
}

func TestModelBasedWithoutProvider(t *testing.T) {
	got := NewModelBased(nil).Classify(context.Background(), "show me a necklace", nil)
	assert.Equal(t, model.TaskType(model.HandlerConsultant), got.TaskType)
}

func TestResolveModules(t *testing.T) {
	assert.Equal(t, []string{ModulePatterns, ModuleForecast}, ResolveModules([]string{ModuleForecast}))
	assert.Equal(t, []string{ModulePatterns, ModuleSegments}, ResolveModules([]string{ModuleSegments}))
	assert.Equal(t, ModuleOrder, ResolveModules([]string{ModuleReport}))
	assert.Equal(t, []string{ModulePatterns}, ResolveModules(nil))
	assert.Equal(t, []string{ModulePatterns, ModuleConsultations}, ResolveModules([]string{ModuleConsultations, ModulePatterns}))
}

func TestRuleModules(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, []string{ModulePatterns}, RuleModules{}.SelectModules(ctx, "hello"))
	assert.Equal(t, []string{ModulePatterns, ModuleForecast}, RuleModules{}.SelectModules(ctx, "demand forecast"))
	assert.Equal(t, ModuleOrder, RuleModules{}.SelectModules(ctx, "full report please"))
}

func TestModelModulesFiltersInvalidNames(t *testing.T) {
	p := llmtest.Text(`{"modules": ["Forecast", "astrology"]}`)
	got := NewModelModules(p).SelectModules(context.Background(), "what will sell next year")
	assert.Equal(t, []string{ModulePatterns, ModuleForecast}, got)
}

func TestModelModulesFallsBackWhenNothingValid(t *testing.T) {
	ctx := context.Background()
	p := llmtest.Text(`{"modules": ["astrology"]}`)
	want := RuleModules{}.SelectModules(ctx, "customer segment overview")
	assert.Equal(t, want, NewModelModules(p).SelectModules(ctx, "customer segment overview"))

	failing := llmtest.Failing(errors.New("boom"))
	assert.Equal(t, want, NewModelModules(failing).SelectModules(ctx, "customer segment overview"))
}
