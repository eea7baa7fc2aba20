package classifier

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jewelry-concierge/server/internal/agent/graph/parsers"
	"github.com/jewelry-concierge/server/internal/agent/graph/prompts"
	"github.com/jewelry-concierge/server/internal/agent/llm"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// ModuleSelector picks the analytics modules a request needs.
type ModuleSelector interface {
	SelectModules(ctx context.Context, request string) []string
}

// RuleModules selects every module with at least one keyword hit,
// defaulting to patterns.
type RuleModules struct{}

func (RuleModules) SelectModules(_ context.Context, request string) []string {
	text := strings.ToLower(request)
	var selected []string
	for _, m := range ModuleOrder {
		if countHits(text, moduleKeywords[m]) > 0 {
			selected = append(selected, m)
		}
	}
	return ResolveModules(selected)
}

// ModelModules asks the language model and falls back to RuleModules when
// the call fails or no valid module name survives filtering.
type ModelModules struct {
	provider llm.Provider
	fallback RuleModules
}

func NewModelModules(provider llm.Provider) *ModelModules {
	return &ModelModules{provider: provider}
}

func (s *ModelModules) SelectModules(ctx context.Context, request string) []string {
	modules, err := s.ask(ctx, request)
	if err != nil {
		logx.FromContext(ctx).Warn().Err(err).Msg("model module selection failed; using keyword rules")
		return s.fallback.SelectModules(ctx, request)
	}
	return modules
}

func (s *ModelModules) ask(ctx context.Context, request string) ([]string, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("no provider configured")
	}
	system, err := prompts.RenderModulesSystem(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := s.provider.Generate(ctx, "USER REQUEST:\n"+request, llm.WithSystem(system), llm.WithTemperature(0.2))
	if err != nil {
		return nil, err
	}
	out, err := parsers.DecodeJSON[struct {
		Modules []string `json:"modules"`
	}](raw, "modules")
	if err != nil {
		return nil, err
	}

	var valid []string
	for _, m := range out.Modules {
		m = strings.ToLower(strings.TrimSpace(m))
		if slices.Contains(ModuleOrder, m) {
			valid = append(valid, m)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid module in %v", out.Modules)
	}
	return ResolveModules(valid), nil
}

// ResolveModules applies the module dependencies and returns the set in
// execution order: report needs every module, forecast and segments need
// patterns. An empty selection means patterns.
func ResolveModules(selected []string) []string {
	set := make(map[string]bool, len(ModuleOrder))
	for _, m := range selected {
		set[m] = true
	}
	if set[ModuleReport] {
		for _, m := range ModuleOrder {
			set[m] = true
		}
	}
	if set[ModuleForecast] || set[ModuleSegments] {
		set[ModulePatterns] = true
	}

	out := make([]string, 0, len(ModuleOrder))
	for _, m := range ModuleOrder {
		if set[m] {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return []string{ModulePatterns}
	}
	return out
}

var (
	_ ModuleSelector = RuleModules{}
	_ ModuleSelector = (*ModelModules)(nil)
)
