package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/jewelry-concierge/server/internal/agent/graph/parsers"
	"github.com/jewelry-concierge/server/internal/agent/graph/prompts"
	"github.com/jewelry-concierge/server/internal/agent/llm"
	"github.com/jewelry-concierge/server/internal/agent/model"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

const (
	StrategyRule     = "rule"
	StrategyModel    = "model"
	StrategyOverride = "override"
)

// Classifier maps a message and its recent history to one task.
// Implementations never fail: every error degrades to the rule-based result.
type Classifier interface {
	Classify(ctx context.Context, message string, history []model.Turn) model.Classification
}

// RuleBased scores every handler by keyword hits and picks the highest.
// Ties are broken by model.HandlerPriority.
type RuleBased struct{}

func (RuleBased) Classify(_ context.Context, message string, _ []model.Turn) model.Classification {
	text := strings.ToLower(message)

	best, bestHits := model.DefaultHandler, 0
	var parts []string
	for _, h := range model.HandlerPriority {
		hits := countHits(text, taskKeywords[h])
		if hits == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%d", h, hits))
		// strict comparison keeps the earlier, higher priority handler on ties
		if hits > bestHits {
			best, bestHits = h, hits
		}
	}

	if bestHits == 0 {
		return model.Classification{
			TaskType:   model.TaskType(model.DefaultHandler),
			Confidence: 0.3,
			Rationale:  "no keywords matched",
			Strategy:   StrategyRule,
		}
	}
	return model.Classification{
		TaskType:   model.TaskType(best),
		Confidence: min(0.5+0.1*float64(bestHits), 0.9),
		Rationale:  "keyword hits: " + strings.Join(parts, ", "),
		Strategy:   StrategyRule,
	}
}

type modelDecision struct {
	TaskType   string  `json:"task_type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ModelBased asks the language model for the task and falls back to the
// rule-based decision on any provider or parse failure.
type ModelBased struct {
	provider     llm.Provider
	fallback     RuleBased
	historyTurns int
}

// NewModelBased creates a model-based classifier using the last two turns
// of history.
func NewModelBased(provider llm.Provider) *ModelBased {
	return &ModelBased{provider: provider, historyTurns: 2}
}

func (c *ModelBased) Classify(ctx context.Context, message string, history []model.Turn) model.Classification {
	decision, err := c.ask(ctx, message, history)
	if err != nil {
		logx.FromContext(ctx).Warn().Err(err).Msg("model classifier failed; using keyword rules")
		return c.fallback.Classify(ctx, message, history)
	}
	return decision
}

func (c *ModelBased) ask(ctx context.Context, message string, history []model.Turn) (model.Classification, error) {
	if c.provider == nil {
		return model.Classification{}, fmt.Errorf("no provider configured")
	}
	system, err := prompts.RenderClassifierSystem(ctx)
	if err != nil {
		return model.Classification{}, err
	}
	if len(history) > c.historyTurns {
		history = history[len(history)-c.historyTurns:]
	}

	raw, err := c.provider.Generate(ctx, prompts.UserPrompt(history, message),
		llm.WithSystem(system), llm.WithTemperature(0.1))
	if err != nil {
		return model.Classification{}, err
	}

	d, err := parsers.DecodeJSON[modelDecision](raw, "task_type")
	if err != nil {
		return model.Classification{}, err
	}
	t, ok := model.ParseTaskType(d.TaskType)
	if !ok || t == model.TaskHybrid {
		return model.Classification{}, fmt.Errorf("unknown task type %q", d.TaskType)
	}
	return model.Classification{
		TaskType:   t,
		Confidence: min(max(d.Confidence, 0), 1),
		Rationale:  d.Reasoning,
		Strategy:   StrategyModel,
	}, nil
}

var (
	_ Classifier = RuleBased{}
	_ Classifier = (*ModelBased)(nil)
)
