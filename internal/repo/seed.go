package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jewelry-concierge/server/internal/agent/model"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// ProductSaver stores catalog rows.
type ProductSaver interface {
	SaveProduct(ctx context.Context, p model.Product) error
}

// LoadCatalogFile reads a JSON array of products.
func LoadCatalogFile(path string) ([]model.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var products []model.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return products, nil
}

// SeedCatalog saves every product and, when index is set, embeds it.
// Indexing failures are logged so the catalog stays searchable by text.
func SeedCatalog(ctx context.Context, products []model.Product, saver ProductSaver, index model.SimilarityIndex) error {
	indexed := 0
	for _, p := range products {
		if p.ID == "" {
			return fmt.Errorf("seed catalog: product %q has no id", p.Name)
		}
		if err := saver.SaveProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
		if index == nil {
			continue
		}
		if err := index.Upsert(ctx, p); err != nil {
			logx.Warn().Err(err).Str("product_id", p.ID).Msg("product not indexed")
			continue
		}
		indexed++
	}
	logx.Info().Int("products", len(products)).Int("indexed", indexed).Msg("catalog seeded")
	return nil
}
