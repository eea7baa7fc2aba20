package repo

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"

	"github.com/jewelry-concierge/server/internal/agent/model"
)

// EmbeddingDimensions matches text-embedding-004.
const EmbeddingDimensions = 768

type ProfileEntity struct {
	UserID              string                                `gorm:"primaryKey;size:128"`
	Preferences         datatypes.JSONType[model.Preferences] `gorm:"type:jsonb"`
	ConsultationHistory datatypes.JSONSlice[string]           `gorm:"type:jsonb"`
	CreatedAt           time.Time                             `gorm:"autoCreateTime"`
	UpdatedAt           time.Time                             `gorm:"autoUpdateTime"`
}

func (ProfileEntity) TableName() string { return "user_profiles" }

func (e ProfileEntity) toModel() model.Profile {
	return model.Profile{
		UserID:              e.UserID,
		Preferences:         e.Preferences.Data(),
		ConsultationHistory: []string(e.ConsultationHistory),
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

type InteractionEntity struct {
	ID                uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	UserID            string                      `gorm:"size:128;index"`
	AgentType         string                      `gorm:"size:32;index"`
	Message           string                      `gorm:"type:text"`
	Response          string                      `gorm:"type:text"`
	Recommendations   datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	PreferenceUpdates datatypes.JSONMap           `gorm:"type:jsonb"`
	CreatedAt         time.Time                   `gorm:"autoCreateTime;index"`
}

func (InteractionEntity) TableName() string { return "agent_interactions" }

func newInteractionEntity(r model.InteractionRecord) (InteractionEntity, error) {
	id := uuid.New()
	if r.ID != "" {
		parsed, err := uuid.Parse(r.ID)
		if err != nil {
			return InteractionEntity{}, err
		}
		id = parsed
	}
	return InteractionEntity{
		ID:                id,
		UserID:            r.UserID,
		AgentType:         string(r.AgentType),
		Message:           r.Message,
		Response:          r.Response,
		Recommendations:   datatypes.JSONSlice[string](r.Recommendations),
		PreferenceUpdates: datatypes.JSONMap(r.PreferenceUpdates),
		CreatedAt:         r.CreatedAt,
	}, nil
}

func (e InteractionEntity) toModel() model.InteractionRecord {
	return model.InteractionRecord{
		ID:                e.ID.String(),
		UserID:            e.UserID,
		AgentType:         model.HandlerID(e.AgentType),
		Message:           e.Message,
		Response:          e.Response,
		Recommendations:   []string(e.Recommendations),
		PreferenceUpdates: map[string]any(e.PreferenceUpdates),
		CreatedAt:         e.CreatedAt,
	}
}

type ProductEntity struct {
	ID            string                      `gorm:"primaryKey;size:64"`
	Name          string                      `gorm:"size:255;not null"`
	Description   string                      `gorm:"type:text"`
	Category      string                      `gorm:"size:64;index"`
	Material      string                      `gorm:"size:64;index"`
	Style         string                      `gorm:"size:64"`
	Weight        float64                     `gorm:"default:0"`
	Price         float64                     `gorm:"index"`
	DesignDetails datatypes.JSONMap           `gorm:"type:jsonb"`
	Images        datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	StockCount    int                         `gorm:"default:0"`
	Embedding     *pgvector.Vector            `gorm:"type:vector(768)"`
	CreatedAt     time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt     time.Time                   `gorm:"autoUpdateTime"`
}

func (ProductEntity) TableName() string { return "products" }

func newProductEntity(p model.Product) ProductEntity {
	return ProductEntity{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Category:      p.Category,
		Material:      p.Material,
		Style:         p.Style,
		Weight:        p.Weight,
		Price:         p.Price,
		DesignDetails: datatypes.JSONMap(p.DesignDetails),
		Images:        datatypes.JSONSlice[string](p.Images),
		StockCount:    p.StockCount,
	}
}

func (e ProductEntity) toModel() model.Product {
	return model.Product{
		ID:            e.ID,
		Name:          e.Name,
		Description:   e.Description,
		Category:      e.Category,
		Material:      e.Material,
		Style:         e.Style,
		Weight:        e.Weight,
		Price:         e.Price,
		DesignDetails: map[string]any(e.DesignDetails),
		Images:        []string(e.Images),
		StockCount:    e.StockCount,
	}
}

// Entities lists every table managed by AutoMigrate.
func Entities() []any {
	return []any{&ProfileEntity{}, &InteractionEntity{}, &ProductEntity{}}
}
