package repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jewelry-concierge/server/internal/agent/model"
	errx "github.com/jewelry-concierge/server/internal/core/error"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

const indexUnavailableMessage = "similarity index unavailable"

var errEmptyQuery = errors.New("empty query")

// PgVectorIndex is the similarity index over the products table. Scores are
// cosine similarities, 1 - (embedding <=> query).
type PgVectorIndex struct {
	db       *gorm.DB
	embedder embedding.Embedder
}

func NewPgVectorIndex(db *gorm.DB, embedder embedding.Embedder) *PgVectorIndex {
	return &PgVectorIndex{db: db, embedder: embedder}
}

type scoredProduct struct {
	ProductEntity
	Similarity float64
}

func (ix *PgVectorIndex) Search(ctx context.Context, query string, limit int, filter model.Filter) ([]model.CandidateItem, error) {
	vec, err := embedQuery(ctx, ix.embedder, query)
	if err != nil {
		return nil, err
	}
	qv := pgvector.NewVector(vec)

	q := ix.db.WithContext(ctx).
		Table(ProductEntity{}.TableName()).
		Select("id, name, description, category, material, style, weight, price, design_details, images, stock_count, 1 - (embedding <=> ?) AS similarity", qv).
		Where("embedding IS NOT NULL")
	q = applyFilter(q, filter)
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []scoredProduct
	q = q.Clauses(clause.OrderBy{Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []any{qv}}})
	if err := q.Scan(&rows).Error; err != nil {
		logx.Error().Err(err).Str("query", query).Msg("vector search failed")
		return nil, errx.Wrap(errx.ErrIndexUnavailable, err, http.StatusBadGateway, indexUnavailableMessage)
	}

	out := make([]model.CandidateItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.CandidateItem{Product: r.ProductEntity.toModel(), Score: r.Similarity})
	}
	return out, nil
}

// Upsert stores product together with the embedding of its text.
func (ix *PgVectorIndex) Upsert(ctx context.Context, product model.Product) error {
	vec, err := embedQuery(ctx, ix.embedder, EmbeddingText(product))
	if err != nil {
		return err
	}
	e := newProductEntity(product)
	v := pgvector.NewVector(vec)
	e.Embedding = &v

	err = ix.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&e).Error
	if err != nil {
		logx.Error().Err(err).Str("product_id", product.ID).Msg("failed to index product")
		return errx.WrapGorm(err)
	}
	return nil
}

func applyFilter(q *gorm.DB, f model.Filter) *gorm.DB {
	if len(f.Materials) > 0 {
		lowered := make([]string, 0, len(f.Materials))
		for _, m := range f.Materials {
			lowered = append(lowered, strings.ToLower(strings.TrimSpace(m)))
		}
		q = q.Where("LOWER(material) IN ?", lowered)
	}
	if f.PriceMin != nil {
		q = q.Where("price >= ?", *f.PriceMin)
	}
	if f.PriceMax != nil {
		q = q.Where("price <= ?", *f.PriceMax)
	}
	if f.Category != "" {
		q = q.Where("LOWER(category) = ?", strings.ToLower(f.Category))
	}
	return q
}

// EmbeddingText is the text a product is embedded from.
func EmbeddingText(p model.Product) string {
	parts := []string{p.Name, p.Description, p.Category, p.Material, p.Style}
	out := parts[:0]
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ". ")
}

func embedQuery(ctx context.Context, embedder embedding.Embedder, text string) ([]float32, error) {
	if embedder == nil {
		return nil, errx.Wrap(errx.ErrIndexUnavailable, errors.New("no embedder configured"), http.StatusServiceUnavailable, indexUnavailableMessage)
	}
	if strings.TrimSpace(text) == "" {
		return nil, errx.Wrap(errx.ErrInvalidInput, errEmptyQuery, http.StatusBadRequest, "query is empty")
	}
	vecs, err := embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, errx.Wrap(errx.ErrIndexUnavailable, err, http.StatusBadGateway, indexUnavailableMessage)
	}
	if len(vecs) == 0 {
		return nil, errx.Wrap(errx.ErrIndexUnavailable, fmt.Errorf("embedder returned no vector"), http.StatusBadGateway, indexUnavailableMessage)
	}
	out := make([]float32, len(vecs[0]))
	for i, v := range vecs[0] {
		out[i] = float32(v)
	}
	return out, nil
}

var _ model.SimilarityIndex = (*PgVectorIndex)(nil)
