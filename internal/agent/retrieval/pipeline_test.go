package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelry-concierge/server/internal/agent/model"
)

type fakeIndex struct {
	items     []model.CandidateItem
	err       error
	gotLimit  int
	gotFilter model.Filter
}

func (f *fakeIndex) Search(_ context.Context, _ string, limit int, filter model.Filter) ([]model.CandidateItem, error) {
	f.gotLimit = limit
	f.gotFilter = filter
	return f.items, f.err
}

func (f *fakeIndex) Upsert(context.Context, model.Product) error { return nil }

type fakeCatalog struct {
	products []model.Product
	err      error
}

func (c *fakeCatalog) ListProducts(context.Context) ([]model.Product, error) {
	return c.products, c.err
}

func (c *fakeCatalog) GetProduct(_ context.Context, id string) (*model.Product, error) {
	for _, p := range c.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, errors.New("not found")
}

func (c *fakeCatalog) SearchText(_ context.Context, query string, limit int) ([]model.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []model.Product
	for _, p := range c.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func testConfig() model.RetrievalConfig {
	return model.RetrievalConfig{ScoreThreshold: 0.5, OverFetch: 2, Boost: 0.1, DefaultLimit: 5, Currency: "₽"}
}

func hit(id string, score float64) model.CandidateItem {
	return model.CandidateItem{Product: model.Product{ID: id, Name: "Item " + id}, Score: score}
}

func ids(items []model.CandidateItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Product.ID)
	}
	return out
}

func TestRetrieveDropsBelowThreshold(t *testing.T) {
	idx := &fakeIndex{items: []model.CandidateItem{hit("a", 0.9), hit("b", 0.7), hit("c", 0.4)}}
	p := NewPipeline(idx, nil, testConfig())

	out := p.Retrieve(context.Background(), Query{Text: "gold ring under 500"})

	assert.Equal(t, 2, out.Count)
	assert.Equal(t, []string{"a", "b"}, ids(out.Items))
	assert.False(t, out.Fallback)
	assert.Equal(t, 10, idx.gotLimit)
	assert.Equal(t, "rings", idx.gotFilter.Category)
}

func TestRetrieveTruncatesToLimit(t *testing.T) {
	var items []model.CandidateItem
	for i := 0; i < 10; i++ {
		items = append(items, hit(fmt.Sprint(i), 0.95-float64(i)*0.01))
	}
	p := NewPipeline(&fakeIndex{items: items}, nil, testConfig())

	out := p.Retrieve(context.Background(), Query{Text: "necklace", Limit: 5})

	require.Equal(t, 5, out.Count)
	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, ids(out.Items))
}

func TestRankBoostNeverLowersPosition(t *testing.T) {
	prefs := &model.Preferences{Style: "Minimalist", Materials: []string{"gold"}}
	raw := []model.CandidateItem{
		{Product: model.Product{ID: "plain"}, Score: 0.8},
		{Product: model.Product{ID: "styled", Style: "minimalist", Material: "Gold"}, Score: 0.7},
		{Product: model.Product{ID: "tie"}, Score: 0.8},
	}

	out := Rank(raw, prefs, 5, 0.5, 0.1)

	assert.Equal(t, []string{"styled", "plain", "tie"}, ids(out))
	assert.InDelta(t, 0.9, out[0].Score, 1e-9)
}

func TestRankIsStableForEqualScores(t *testing.T) {
	raw := []model.CandidateItem{hit("x", 0.6), hit("y", 0.6), hit("z", 0.6)}
	assert.Equal(t, []string{"x", "y", "z"}, ids(Rank(raw, nil, 5, 0.5, 0.1)))
}

func TestRetrieveFallsBackToTextSearch(t *testing.T) {
	catalog := &fakeCatalog{products: []model.Product{
		{ID: "1", Name: "Gold Ring"},
		{ID: "2", Name: "Silver Chain"},
		{ID: "3", Name: "Rose Gold Ring"},
	}}
	p := NewPipeline(&fakeIndex{err: errors.New("connection refused")}, catalog, testConfig())

	out := p.Retrieve(context.Background(), Query{Text: "ring", IncludeContext: true})

	assert.True(t, out.Fallback)
	assert.Equal(t, []string{"1", "3"}, ids(out.Items))
	assert.Contains(t, out.LLMContext, "Found 2 relevant products:")
	assert.NotContains(t, out.LLMContext, "Relevance:")
}

func TestRetrieveEmptyWhenEverythingFails(t *testing.T) {
	p := NewPipeline(&fakeIndex{err: errors.New("down")}, &fakeCatalog{err: errors.New("down too")}, testConfig())

	out := p.Retrieve(context.Background(), Query{Text: "ring", IncludeContext: true})

	assert.Equal(t, 0, out.Count)
	assert.Empty(t, out.Items)
	assert.Equal(t, noProducts, out.LLMContext)
}

func TestBuildFilter(t *testing.T) {
	prefs := &model.Preferences{Materials: []string{"gold", " "}, BudgetMax: model.Float(500)}

	f := BuildFilter("Looking for EARRINGS please", prefs)

	assert.Equal(t, "earrings", f.Category)
	assert.Equal(t, []string{"gold"}, f.Materials)
	assert.Nil(t, f.PriceMin)
	require.NotNil(t, f.PriceMax)
	assert.Equal(t, 500.0, *f.PriceMax)

	assert.True(t, BuildFilter("something shiny", nil).IsEmpty())
}

func TestFormatContext(t *testing.T) {
	prefs := &model.Preferences{Style: "classic", BudgetMax: model.Float(300)}
	items := []model.CandidateItem{{
		Product: model.Product{
			Name:          "Pearl Pendant",
			Description:   "Freshwater pearl",
			Category:      "pendants",
			Material:      "silver",
			Price:         120,
			Weight:        3.5,
			DesignDetails: map[string]any{"stone": "pearl", "clasp": "lobster"},
			StockCount:    0,
		},
		Score: 0.812,
	}}

	got := FormatContext(items, prefs, "₽")

	want := "User Preferences:\n" +
		"- Style: classic\n" +
		"- Budget: 0₽ - 300₽\n\n" +
		"Found 1 relevant products:\n\n" +
		"1. Pearl Pendant\n" +
		"   Description: Freshwater pearl\n" +
		"   Category: pendants, Material: silver, Price: 120₽, Weight: 3.5g\n" +
		"   Design: clasp: lobster, stone: pearl\n" +
		"   Availability: Out of stock (0 units)\n" +
		"   Relevance: 0.81"
	assert.Equal(t, want, got)
	assert.Equal(t, "No specific preferences", FormatPreferences(&model.Preferences{}, "₽"))
}
