package repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jewelry-concierge/server/internal/agent/model"
	errx "github.com/jewelry-concierge/server/internal/core/error"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// Migrate enables pgvector and creates or updates the tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(Entities()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// PostgresStore implements the profile, interaction and catalog stores on
// one gorm connection.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ================ Profiles ================

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var e ProfileEntity
	if err := s.db.WithContext(ctx).First(&e, "user_id = ?", userID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logx.Error().Err(err).Str("user_id", userID).Msg("failed to load profile")
		}
		return nil, errx.WrapGorm(err)
	}
	p := e.toModel()
	return &p, nil
}

// UpsertProfile replaces the stored preferences of userID.
func (s *PostgresStore) UpsertProfile(ctx context.Context, userID string, prefs model.Preferences) (*model.Profile, error) {
	e := ProfileEntity{
		UserID:      userID,
		Preferences: datatypes.NewJSONType(prefs),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"preferences", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		logx.Error().Err(err).Str("user_id", userID).Msg("failed to upsert profile")
		return nil, errx.WrapGorm(err)
	}
	return s.GetProfile(ctx, userID)
}

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	var rows []ProfileEntity
	if err := s.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, errx.WrapGorm(err)
	}
	out := make([]model.Profile, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// ================ Interactions ================

func (s *PostgresStore) AppendInteractionRecord(ctx context.Context, record model.InteractionRecord) error {
	e, err := newInteractionEntity(record)
	if err != nil {
		return errx.Wrap(errx.ErrInvalidInput, err, http.StatusBadRequest, "invalid interaction id")
	}
	if err := s.db.WithContext(ctx).Create(&e).Error; err != nil {
		logx.Error().Err(err).Str("user_id", record.UserID).Msg("failed to append interaction record")
		return errx.WrapGorm(err)
	}
	return nil
}

// ListInteractionRecords returns the newest limit records, newest first.
func (s *PostgresStore) ListInteractionRecords(ctx context.Context, limit int) ([]model.InteractionRecord, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []InteractionEntity
	if err := q.Find(&rows).Error; err != nil {
		return nil, errx.WrapGorm(err)
	}
	out := make([]model.InteractionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// ================ Catalog ================

func (s *PostgresStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	var rows []ProductEntity
	if err := s.db.WithContext(ctx).Omit("embedding").Order("id").Find(&rows).Error; err != nil {
		return nil, errx.WrapGorm(err)
	}
	return productModels(rows), nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var e ProductEntity
	if err := s.db.WithContext(ctx).Omit("embedding").First(&e, "id = ?", id).Error; err != nil {
		return nil, errx.WrapGorm(err)
	}
	p := e.toModel()
	return &p, nil
}

func (s *PostgresStore) SearchText(ctx context.Context, query string, limit int) ([]model.Product, error) {
	q := s.db.WithContext(ctx).Omit("embedding").Order("id")
	if query = strings.TrimSpace(query); query != "" {
		like := "%" + escapeLike(query) + "%"
		q = q.Where("name ILIKE ? OR description ILIKE ? OR category ILIKE ? OR material ILIKE ?", like, like, like, like)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []ProductEntity
	if err := q.Find(&rows).Error; err != nil {
		return nil, errx.WrapGorm(err)
	}
	return productModels(rows), nil
}

// SaveProduct inserts or updates p without touching its embedding.
func (s *PostgresStore) SaveProduct(ctx context.Context, p model.Product) error {
	e := newProductEntity(p)
	err := s.db.WithContext(ctx).Omit("embedding").Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "category", "material", "style", "weight",
			"price", "design_details", "images", "stock_count", "updated_at",
		}),
	}).Create(&e).Error
	return errx.WrapGorm(err)
}

func productModels(rows []ProductEntity) []model.Product {
	out := make([]model.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var (
	_ model.ProfileStore     = (*PostgresStore)(nil)
	_ model.InteractionStore = (*PostgresStore)(nil)
	_ model.CatalogStore     = (*PostgresStore)(nil)
)
