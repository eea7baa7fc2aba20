package retrieval

import (
	"context"
	"slices"
	"strings"

	"github.com/jewelry-concierge/server/internal/agent/model"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// Query is one retrieval request.
type Query struct {
	Text           string
	Preferences    *model.Preferences
	Limit          int
	IncludeContext bool
}

// Retriever narrows the catalog to items relevant to a conversation.
type Retriever interface {
	Retrieve(ctx context.Context, q Query) model.Retrieval
}

// Pipeline is the preference-aware retrieval pipeline. It never fails:
// an unavailable index falls back to a substring scan of the catalog, and
// a failing catalog yields an empty result.
type Pipeline struct {
	index   model.SimilarityIndex
	catalog model.CatalogStore
	cfg     model.RetrievalConfig
}

// NewPipeline creates a pipeline. index or catalog may be nil.
func NewPipeline(index model.SimilarityIndex, catalog model.CatalogStore, cfg model.RetrievalConfig) *Pipeline {
	if cfg.OverFetch <= 0 {
		cfg.OverFetch = 2
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 5
	}
	return &Pipeline{index: index, catalog: catalog, cfg: cfg}
}

func (p *Pipeline) Retrieve(ctx context.Context, q Query) model.Retrieval {
	limit := q.Limit
	if limit <= 0 {
		limit = p.cfg.DefaultLimit
	}
	q.Text = strings.TrimSpace(q.Text)

	items, fallback := p.search(ctx, q, limit)

	out := model.Retrieval{
		Items:    items,
		Count:    len(items),
		Query:    q.Text,
		Fallback: fallback,
	}
	if q.IncludeContext {
		out.LLMContext = FormatContext(items, q.Preferences, p.cfg.Currency)
	}

	logx.Debug().
		Str("query", q.Text).
		Int("count", out.Count).
		Bool("fallback", fallback).
		Msg("retrieved products")
	return out
}

func (p *Pipeline) search(ctx context.Context, q Query, limit int) ([]model.CandidateItem, bool) {
	if p.index != nil {
		filter := BuildFilter(q.Text, q.Preferences)
		raw, err := p.index.Search(ctx, q.Text, limit*p.cfg.OverFetch, filter)
		if err == nil {
			return Rank(raw, q.Preferences, limit, p.cfg.ScoreThreshold, p.cfg.Boost), false
		}
		logx.Warn().Err(err).Str("query", q.Text).Msg("similarity index unavailable; falling back to text search")
	}
	return p.substring(ctx, q.Text, limit), true
}

// substring scans the catalog in storage order without ranking.
func (p *Pipeline) substring(ctx context.Context, text string, limit int) []model.CandidateItem {
	if p.catalog == nil {
		return []model.CandidateItem{}
	}
	products, err := p.catalog.SearchText(ctx, text, limit)
	if err != nil {
		logx.Error().Err(err).Str("query", text).Msg("catalog text search failed")
		return []model.CandidateItem{}
	}
	if len(products) > limit {
		products = products[:limit]
	}
	items := make([]model.CandidateItem, 0, len(products))
	for _, pr := range products {
		items = append(items, model.CandidateItem{Product: pr})
	}
	return items
}

// Rank drops candidates under threshold, adds boost for a matching style
// and another for a preferred material, then stable-sorts by adjusted score
// and truncates to limit.
func Rank(raw []model.CandidateItem, prefs *model.Preferences, limit int, threshold, boost float64) []model.CandidateItem {
	kept := make([]model.CandidateItem, 0, len(raw))
	for _, c := range raw {
		if c.Score < threshold {
			continue
		}
		c.Score += Boost(c.Product, prefs, boost)
		kept = append(kept, c)
	}

	slices.SortStableFunc(kept, func(a, b model.CandidateItem) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if limit >= 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

// Boost returns the additive preference boost of product.
func Boost(product model.Product, prefs *model.Preferences, boost float64) float64 {
	if prefs == nil {
		return 0
	}
	total := 0.0
	if prefs.Style != "" && strings.EqualFold(strings.TrimSpace(product.Style), strings.TrimSpace(prefs.Style)) {
		total += boost
	}
	if prefs.HasMaterial(product.Material) {
		total += boost
	}
	return total
}

var _ Retriever = (*Pipeline)(nil)
