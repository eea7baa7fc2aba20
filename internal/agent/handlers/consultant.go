package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jewelry-concierge/server/internal/agent/graph/parsers"
	"github.com/jewelry-concierge/server/internal/agent/graph/prompts"
	"github.com/jewelry-concierge/server/internal/agent/graph/tools"
	"github.com/jewelry-concierge/server/internal/agent/llm"
	"github.com/jewelry-concierge/server/internal/agent/model"
	"github.com/jewelry-concierge/server/internal/agent/retrieval"
	errx "github.com/jewelry-concierge/server/internal/core/error"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// Consultant answers product questions with catalog-grounded
// recommendations and keeps the customer's preference profile current.
type Consultant struct {
	provider  llm.Provider
	retriever retrieval.Retriever
	catalog   model.CatalogStore
	profiles  model.ProfileStore
	records   model.InteractionStore
	cfg       model.ConsultantConfig
	retrieval model.RetrievalConfig
}

type ConsultantDeps struct {
	Provider  llm.Provider
	Retriever retrieval.Retriever
	Catalog   model.CatalogStore
	Profiles  model.ProfileStore
	Records   model.InteractionStore
}

func NewConsultant(deps ConsultantDeps, cfg model.ConsultantConfig, rcfg model.RetrievalConfig) *Consultant {
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = 2
	}
	if cfg.Recommendations <= 0 {
		cfg.Recommendations = 5
	}
	if rcfg.ConsultLimit <= 0 {
		rcfg.ConsultLimit = 8
	}
	return &Consultant{
		provider:  deps.Provider,
		retriever: deps.Retriever,
		catalog:   deps.Catalog,
		profiles:  deps.Profiles,
		records:   deps.Records,
		cfg:       cfg,
		retrieval: rcfg,
	}
}

func (c *Consultant) ID() model.HandlerID { return model.HandlerConsultant }

// Recommendation is the compact product reference returned to callers.
type Recommendation struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Score float64 `json:"score,omitempty"`
}

func (c *Consultant) Process(ctx context.Context, snap model.Snapshot) (model.Result, error) {
	log := logx.FromContext(ctx)
	userID, message := snap.UserID(), snap.Message()

	profile := c.loadProfile(ctx, userID)
	extracted := c.extractPreferences(ctx, message)

	var merged model.Preferences
	if profile != nil {
		merged = profile.Preferences.Clone()
	}
	merged = merged.Merge(snap.Preferences()).Merge(&extracted)
	var prefs *model.Preferences
	if !merged.IsEmpty() {
		prefs = &merged
	}

	found := c.retriever.Retrieve(ctx, retrieval.Query{
		Text:           message,
		Preferences:    prefs,
		Limit:          c.retrieval.ConsultLimit,
		IncludeContext: true,
	})

	reply, used, err := c.reply(ctx, snap, prefs, found)
	if err != nil {
		return model.Result{}, err
	}

	if !extracted.IsEmpty() || !snap.Preferences().IsEmpty() {
		if _, err := c.upsertProfile(ctx, userID, merged); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("profile update skipped")
		}
	}

	recs := c.recommendations(found)
	c.appendRecord(ctx, userID, message, reply, recs, extracted)

	return model.Result{
		Reply: reply,
		Data: map[string]any{
			"recommendations":       recs,
			"extracted_preferences": extracted,
			"has_profile":           profile != nil,
			"user_id":               userID,
			"products_found":        found.Count,
			"fallback_search":       found.Fallback,
			"tools_used":            used,
		},
		Meta: map[string]any{
			"recommendations":       recommendationIDs(recs),
			"extracted_preferences": extracted,
		},
		Status: model.StatusSuccess,
	}, nil
}

func (c *Consultant) loadProfile(ctx context.Context, userID string) *model.Profile {
	if c.profiles == nil {
		return nil
	}
	p, err := c.profiles.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, errx.ErrNotFound) {
			logx.FromContext(ctx).Warn().Err(err).Str("user_id", userID).Msg("profile load skipped")
		}
		return nil
	}
	return p
}

// extractPreferences asks the model for preferences stated in message. Any
// failure yields empty preferences.
func (c *Consultant) extractPreferences(ctx context.Context, message string) model.Preferences {
	if c.provider == nil || message == "" {
		return model.Preferences{}
	}
	system, err := prompts.RenderPreferenceSystem(ctx, c.retrieval.Currency)
	if err != nil {
		return model.Preferences{}
	}
	raw, err := c.provider.Generate(ctx, message, llm.WithSystem(system), llm.WithTemperature(0.1))
	if err != nil {
		logx.FromContext(ctx).Warn().Err(err).Msg("preference extraction skipped")
		return model.Preferences{}
	}
	prefs, _ := parsers.DecodeOr(raw, model.Preferences{})
	return prefs
}

func (c *Consultant) reply(ctx context.Context, snap model.Snapshot, prefs *model.Preferences, found model.Retrieval) (string, []string, error) {
	if c.provider == nil {
		return "", nil, errx.WrapProvider(errNoProvider)
	}

	var prefText string
	if prefs != nil {
		prefText = retrieval.FormatPreferences(prefs, c.retrieval.Currency)
	}
	system, err := prompts.RenderConsultantSystem(ctx, prompts.ConsultantVars{
		StoreName:   c.cfg.StoreName,
		Currency:    c.retrieval.Currency,
		Preferences: prefText,
		Catalog:     found.LLMContext,
	})
	if err != nil {
		return "", nil, err
	}

	box, err := c.toolbox(ctx, prefs)
	if err != nil {
		return "", nil, err
	}

	history := model.Messages(snap.RecentHistory(c.cfg.HistoryTurns))
	res, err := runToolLoop(ctx, c.provider, box, snap.Message(), c.cfg.MaxToolIterations,
		llm.WithSystem(system), llm.WithContext(history))
	if err != nil {
		return "", nil, err
	}
	if res.Exhausted || res.Content == "" {
		// one last plain answer without tools
		text, err := c.provider.Generate(ctx, snap.Message(), llm.WithSystem(system), llm.WithContext(history))
		if err != nil {
			return "", nil, err
		}
		res.Content = text
	}
	return res.Content, res.ToolsUsed(), nil
}

func (c *Consultant) toolbox(ctx context.Context, prefs *model.Preferences) (*tools.Toolbox, error) {
	if c.catalog == nil {
		return tools.NewToolbox(ctx, tools.NewSearchProductsTool(c.retriever, prefs))
	}
	return tools.NewToolbox(ctx,
		tools.NewSearchProductsTool(c.retriever, prefs),
		tools.NewProductDetailsTool(c.catalog),
	)
}

func (c *Consultant) upsertProfile(ctx context.Context, userID string, prefs model.Preferences) (*model.Profile, error) {
	if c.profiles == nil {
		return nil, nil
	}
	return c.profiles.UpsertProfile(ctx, userID, prefs)
}

func (c *Consultant) recommendations(found model.Retrieval) []Recommendation {
	n := min(len(found.Items), c.cfg.Recommendations)
	out := make([]Recommendation, 0, n)
	for _, it := range found.Items[:n] {
		out = append(out, Recommendation{ID: it.Product.ID, Name: it.Product.Name, Price: it.Product.Price, Score: it.Score})
	}
	return out
}

func recommendationIDs(recs []Recommendation) []string {
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	return ids
}

func (c *Consultant) appendRecord(ctx context.Context, userID, message, reply string, recs []Recommendation, extracted model.Preferences) {
	if c.records == nil {
		return
	}
	record := model.InteractionRecord{
		ID:              uuid.NewString(),
		UserID:          userID,
		AgentType:       model.HandlerConsultant,
		Message:         message,
		Response:        reply,
		Recommendations: recommendationIDs(recs),
		CreatedAt:       time.Now().UTC(),
	}
	if !extracted.IsEmpty() {
		record.PreferenceUpdates = map[string]any{"preferences": extracted}
	}
	if err := c.records.AppendInteractionRecord(ctx, record); err != nil {
		logx.FromContext(ctx).Warn().Err(err).Str("user_id", userID).Msg("interaction record skipped")
	}
}

var _ Handler = (*Consultant)(nil)
