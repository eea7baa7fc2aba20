package handlers

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/cloudwego/eino/compose"
	"golang.org/x/sync/errgroup"

	"github.com/jewelry-concierge/server/internal/agent/graph/classifier"
	"github.com/jewelry-concierge/server/internal/agent/graph/parsers"
	"github.com/jewelry-concierge/server/internal/agent/graph/prompts"
	"github.com/jewelry-concierge/server/internal/agent/llm"
	"github.com/jewelry-concierge/server/internal/agent/model"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// Analytics sub-graph nodes.
const (
	NodeClassifyModules      = "classify_modules"
	NodeFetchData            = "fetch_data"
	NodeAnalyzePatterns      = "analyze_patterns"
	NodeAnalyzeConsultations = "analyze_consultations"
	NodeAnalyzeForecast      = "analyze_forecast"
	NodeAnalyzeSegments      = "analyze_segments"
	NodeGenerateReport       = "generate_report"
)

const noCustomerData = "No customer data is available for analysis yet."

var moduleNodes = map[string]string{
	classifier.ModulePatterns:      NodeAnalyzePatterns,
	classifier.ModuleConsultations: NodeAnalyzeConsultations,
	classifier.ModuleForecast:      NodeAnalyzeForecast,
	classifier.ModuleSegments:      NodeAnalyzeSegments,
}

// analysisModules are the modules with a node of their own; report is the
// closing node of every run.
var analysisModules = []string{
	classifier.ModulePatterns,
	classifier.ModuleConsultations,
	classifier.ModuleForecast,
	classifier.ModuleSegments,
}

// analyticsRun travels through the sub-graph. Nodes run one at a time, so
// each may update it in place.
type analyticsRun struct {
	request string
	modules []string

	profiles []model.Profile
	records  []model.InteractionRecord
	noData   bool

	patterns      *PatternStats
	consultations *ConsultationStats
	forecast      map[string]CategoryForecast
	segments      []Segment
	report        string
	executed      []string
}

func (r *analyticsRun) selected(module string) bool {
	return slices.Contains(r.modules, module)
}

// Analytics analyzes stored customer profiles and interaction records.
type Analytics struct {
	provider llm.Provider
	selector classifier.ModuleSelector
	profiles model.ProfileStore
	records  model.InteractionStore
	cfg      model.AnalyticsConfig
	currency string

	runnable compose.Runnable[*analyticsRun, *analyticsRun]
}

type AnalyticsDeps struct {
	Provider llm.Provider
	Profiles model.ProfileStore
	Records  model.InteractionStore
}

// NewAnalytics compiles the analytics sub-graph.
func NewAnalytics(ctx context.Context, deps AnalyticsDeps, cfg model.AnalyticsConfig, currency string) (*Analytics, error) {
	if cfg.RecordLimit <= 0 {
		cfg.RecordLimit = 500
	}
	a := &Analytics{
		provider: deps.Provider,
		profiles: deps.Profiles,
		records:  deps.Records,
		cfg:      cfg,
		currency: currency,
		selector: classifier.RuleModules{},
	}
	if deps.Provider != nil {
		a.selector = classifier.NewModelModules(deps.Provider)
	}

	runnable, err := a.build(ctx)
	if err != nil {
		return nil, err
	}
	a.runnable = runnable
	return a, nil
}

func (a *Analytics) ID() model.HandlerID { return model.HandlerAnalytics }

func (a *Analytics) build(ctx context.Context) (compose.Runnable[*analyticsRun, *analyticsRun], error) {
	g := compose.NewGraph[*analyticsRun, *analyticsRun]()

	nodes := []struct {
		name string
		fn   func(context.Context, *analyticsRun) (*analyticsRun, error)
	}{
		{NodeClassifyModules, a.classifyModules},
		{NodeFetchData, a.fetchData},
		{NodeAnalyzePatterns, analyzePatterns},
		{NodeAnalyzeConsultations, analyzeConsultations},
		{NodeAnalyzeForecast, analyzeForecast},
		{NodeAnalyzeSegments, analyzeSegments},
		{NodeGenerateReport, a.generateReport},
	}
	for _, n := range nodes {
		if err := g.AddLambdaNode(n.name, compose.InvokableLambda(n.fn), compose.WithNodeName(n.name)); err != nil {
			return nil, fmt.Errorf("add analytics node %s: %w", n.name, err)
		}
	}

	for _, e := range [][2]string{
		{compose.START, NodeClassifyModules},
		{NodeClassifyModules, NodeFetchData},
		{NodeGenerateReport, compose.END},
	} {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("add analytics edge %s -> %s: %w", e[0], e[1], err)
		}
	}

	// fetch_data and every module node route to the next selected module,
	// or to the report.
	from := []struct {
		node  string
		after int
	}{{NodeFetchData, -1}}
	for i, m := range analysisModules {
		from = append(from, struct {
			node  string
			after int
		}{moduleNodes[m], i})
	}
	for _, f := range from {
		ends := map[string]bool{NodeGenerateReport: true}
		for _, m := range analysisModules[f.after+1:] {
			ends[moduleNodes[m]] = true
		}
		branch := compose.NewGraphBranch(nextModule(f.after), ends)
		if err := g.AddBranch(f.node, branch); err != nil {
			return nil, fmt.Errorf("add analytics branch after %s: %w", f.node, err)
		}
	}

	runnable, err := g.Compile(ctx, compose.WithGraphName("analytics"), compose.WithMaxRunSteps(12))
	if err != nil {
		return nil, fmt.Errorf("compile analytics graph: %w", err)
	}
	return runnable, nil
}

// nextModule returns the branch condition leaving the module at position
// after in analysisModules; -1 is fetch_data.
func nextModule(after int) compose.GraphBranchCondition[*analyticsRun] {
	return func(_ context.Context, run *analyticsRun) (string, error) {
		if run.noData {
			return NodeGenerateReport, nil
		}
		for _, m := range analysisModules[after+1:] {
			if run.selected(m) {
				return moduleNodes[m], nil
			}
		}
		return NodeGenerateReport, nil
	}
}

func (a *Analytics) Process(ctx context.Context, snap model.Snapshot) (model.Result, error) {
	request := strings.TrimSpace(snap.Message())
	if request == "" {
		request = strings.TrimSpace(snap.Content())
	}

	run, err := a.runnable.Invoke(ctx, &analyticsRun{request: request})
	if err != nil {
		return model.Result{}, err
	}

	if run.noData {
		return model.Result{
			Reply:  run.report,
			Data:   map[string]any{"modules": run.modules, "total_customers": 0},
			Status: model.StatusNoData,
		}, nil
	}

	data := map[string]any{
		"modules":         run.modules,
		"executed":        run.executed,
		"total_customers": len(run.profiles),
		"report":          run.report,
	}
	if run.patterns != nil {
		data["patterns"] = run.patterns
	}
	if run.consultations != nil {
		data["consultation_stats"] = run.consultations
	}
	if run.forecast != nil {
		data["demand_forecast"] = run.forecast
	}
	if run.segments != nil {
		data["customer_segments"] = run.segments
	}

	return model.Result{
		Reply:  run.report,
		Data:   data,
		Meta:   map[string]any{"modules": run.modules},
		Status: model.StatusSuccess,
	}, nil
}

func (a *Analytics) classifyModules(ctx context.Context, run *analyticsRun) (*analyticsRun, error) {
	run.modules = a.selector.SelectModules(ctx, run.request)
	logx.FromContext(ctx).Debug().Strs("modules", run.modules).Msg("analytics modules selected")
	return run, nil
}

// fetchData loads profiles and interaction records concurrently. A failing
// record store only empties the consultation statistics.
func (a *Analytics) fetchData(ctx context.Context, run *analyticsRun) (*analyticsRun, error) {
	if a.profiles == nil {
		run.noData = true
		return run, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		profiles, err := a.profiles.ListProfiles(egCtx)
		if err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}
		run.profiles = profiles
		return nil
	})
	if a.records != nil {
		eg.Go(func() error {
			records, err := a.records.ListInteractionRecords(egCtx, a.cfg.RecordLimit)
			if err != nil {
				logx.FromContext(ctx).Warn().Err(err).Msg("interaction records unavailable")
				return nil
			}
			run.records = records
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	run.noData = len(run.profiles) == 0
	return run, nil
}

func analyzePatterns(_ context.Context, run *analyticsRun) (*analyticsRun, error) {
	p := AnalyzePatterns(run.profiles)
	run.patterns = &p
	run.executed = append(run.executed, classifier.ModulePatterns)
	return run, nil
}

func analyzeConsultations(_ context.Context, run *analyticsRun) (*analyticsRun, error) {
	c := AnalyzeConsultations(run.records)
	run.consultations = &c
	run.executed = append(run.executed, classifier.ModuleConsultations)
	return run, nil
}

func analyzeForecast(_ context.Context, run *analyticsRun) (*analyticsRun, error) {
	run.forecast = map[string]CategoryForecast{}
	if run.patterns != nil {
		run.forecast = ForecastDemand(*run.patterns)
	}
	run.executed = append(run.executed, classifier.ModuleForecast)
	return run, nil
}

func analyzeSegments(_ context.Context, run *analyticsRun) (*analyticsRun, error) {
	run.segments = IdentifySegments(run.profiles)
	run.executed = append(run.executed, classifier.ModuleSegments)
	return run, nil
}

func (a *Analytics) generateReport(ctx context.Context, run *analyticsRun) (*analyticsRun, error) {
	if run.noData {
		run.report = noCustomerData
		return run, nil
	}

	fallback := analyticsSummary(run, a.currency)
	run.report = fallback
	if a.provider == nil {
		return run, nil
	}

	vars := prompts.AnalyticsReportVars{Currency: a.currency}
	if run.patterns != nil {
		vars.Patterns = toJSON(run.patterns)
	}
	if run.consultations != nil {
		vars.Consultations = toJSON(run.consultations)
	}
	if run.forecast != nil {
		vars.Forecast = toJSON(run.forecast)
	}
	if run.segments != nil {
		vars.Segments = toJSON(run.segments)
	}
	prompt, err := prompts.RenderAnalyticsReport(ctx, vars)
	if err != nil {
		return run, nil
	}
	text, err := a.provider.Generate(ctx, prompt, llm.WithTemperature(0.3))
	if err != nil {
		logx.FromContext(ctx).Warn().Err(err).Msg("analytics report unavailable; using summary")
		return run, nil
	}
	if text = strings.TrimSpace(parsers.StripThinking(text)); text != "" {
		run.report = text
	}
	return run, nil
}

// analyticsSummary is the deterministic analytics report.
func analyticsSummary(run *analyticsRun, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analytics summary for %d customers", len(run.profiles))
	if p := run.patterns; p != nil {
		b.WriteString("\n\nPatterns:")
		if len(p.PopularStyles) > 0 {
			b.WriteString("\n- Top styles: " + formatCounts(p.PopularStyles))
		}
		if len(p.PopularMaterials) > 0 {
			b.WriteString("\n- Top materials: " + formatCounts(p.PopularMaterials))
		}
		fmt.Fprintf(&b, "\n- Average budget: %s%s", number(p.AverageBudget), currency)
		if len(p.PopularOccasions) > 0 {
			b.WriteString("\n- Occasions: " + formatCounts(p.PopularOccasions))
		}
	}
	if c := run.consultations; c != nil {
		fmt.Fprintf(&b, "\n\nConsultations: %d total, %s recommendations on average", c.Total, number(c.AvgRecommendations))
	}
	if len(run.forecast) > 0 {
		b.WriteString("\n\nDemand forecast:")
		for _, cat := range ForecastCategories {
			f := run.forecast[cat]
			fmt.Fprintf(&b, "\n- %s: score %s, stock %s, priority %s", cat, number(f.DemandScore), f.RecommendedStock, f.Priority)
		}
	}
	if len(run.segments) > 0 {
		b.WriteString("\n\nSegments:")
		for _, s := range run.segments {
			fmt.Fprintf(&b, "\n- %s: %d customers, average budget %s%s", s.Name, s.Size, number(s.AvgBudget), currency)
		}
	}
	return b.String()
}

func formatCounts(cs []Count) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, fmt.Sprintf("%s (%d)", c.Value, c.Count))
	}
	return strings.Join(parts, ", ")
}

var _ Handler = (*Analytics)(nil)
