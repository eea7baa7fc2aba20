package model

import (
	"context"
	"strings"
)

// ProfileStore persists user preference profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpsertProfile(ctx context.Context, userID string, prefs Preferences) (*Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
}

// InteractionStore persists handler interaction logs.
type InteractionStore interface {
	ListInteractionRecords(ctx context.Context, limit int) ([]InteractionRecord, error)
	AppendInteractionRecord(ctx context.Context, record InteractionRecord) error
}

// CatalogStore gives plain access to the product catalog.
type CatalogStore interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	// SearchText returns products whose name, description, category or
	// material contains query, in storage order.
	SearchText(ctx context.Context, query string, limit int) ([]Product, error)
}

// Filter is the structural predicate applied by the similarity index.
type Filter struct {
	Materials []string `json:"materials,omitempty"`
	PriceMin  *float64 `json:"price_min,omitempty"`
	PriceMax  *float64 `json:"price_max,omitempty"`
	Category  string   `json:"category,omitempty"`
}

// SimilarityIndex is the vector similarity collaborator. It returns raw
// similarity results; thresholds and re-ranking belong to the caller.
type SimilarityIndex interface {
	Search(ctx context.Context, query string, limit int, filter Filter) ([]CandidateItem, error)
	Upsert(ctx context.Context, product Product) error
}

// Matches reports whether p satisfies every set field of f.
func (f Filter) Matches(p Product) bool {
	if len(f.Materials) > 0 {
		prefs := Preferences{Materials: f.Materials}
		if !prefs.HasMaterial(p.Material) {
			return false
		}
	}
	if f.PriceMin != nil && p.Price < *f.PriceMin {
		return false
	}
	if f.PriceMax != nil && p.Price > *f.PriceMax {
		return false
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	return true
}

// IsEmpty reports whether f constrains nothing.
func (f Filter) IsEmpty() bool {
	return len(f.Materials) == 0 && f.PriceMin == nil && f.PriceMax == nil && f.Category == ""
}
