package repo

import (
	"context"
	"math"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jewelry-concierge/server/internal/agent/model"
	errx "github.com/jewelry-concierge/server/internal/core/error"
)

// MemoryStore keeps every collaborator in process. Conversations and quiz
// progress expire after ttl like their Redis counterparts.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]model.Profile
	records  []model.InteractionRecord
	products []model.Product

	sessions *cache.Cache
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &MemoryStore{
		profiles: map[string]model.Profile{},
		sessions: cache.New(ttl, 10*time.Minute),
	}
}

// ================ Profiles ================

func (s *MemoryStore) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, errx.Wrap(errx.ErrNotFound, nil, http.StatusNotFound, errx.StorageNotFoundMessage)
	}
	p.Preferences = p.Preferences.Clone()
	return &p, nil
}

func (s *MemoryStore) UpsertProfile(_ context.Context, userID string, prefs model.Preferences) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	p, ok := s.profiles[userID]
	if !ok {
		p = model.Profile{UserID: userID, CreatedAt: now}
	}
	p.Preferences = prefs.Clone()
	p.UpdatedAt = now
	s.profiles[userID] = p

	out := p
	out.Preferences = p.Preferences.Clone()
	return &out, nil
}

// ListProfiles returns profiles in creation order.
func (s *MemoryStore) ListProfiles(context.Context) ([]model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		p.Preferences = p.Preferences.Clone()
		out = append(out, p)
	}
	slices.SortStableFunc(out, func(a, b model.Profile) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.UserID, b.UserID)
	})
	return out, nil
}

// ================ Interactions ================

func (s *MemoryStore) AppendInteractionRecord(_ context.Context, record model.InteractionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// ListInteractionRecords returns the newest limit records, newest first.
func (s *MemoryStore) ListInteractionRecords(_ context.Context, limit int) ([]model.InteractionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.records)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ================ Catalog ================

// SaveProduct inserts p or replaces the product with the same id.
func (s *MemoryStore) SaveProduct(_ context.Context, p model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.products, func(x model.Product) bool { return x.ID == p.ID }); i >= 0 {
		s.products[i] = p
		return nil
	}
	s.products = append(s.products, p)
	return nil
}

func (s *MemoryStore) ListProducts(context.Context) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.products), nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, errx.Wrap(errx.ErrNotFound, nil, http.StatusNotFound, errx.StorageNotFoundMessage)
}

func (s *MemoryStore) SearchText(_ context.Context, query string, limit int) ([]model.Product, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Product{}
	for _, p := range s.products {
		if limit > 0 && len(out) >= limit {
			break
		}
		if query == "" || containsText(p, query) {
			out = append(out, p)
		}
	}
	return out, nil
}

func containsText(p model.Product, query string) bool {
	for _, field := range []string{p.Name, p.Description, p.Category, p.Material} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// ================ Conversations ================

func (s *MemoryStore) AddMessage(_ context.Context, userID string, message *schema.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := conversationKey(userID)
	var msgs []*schema.Message
	if v, ok := s.sessions.Get(key); ok {
		msgs = v.([]*schema.Message)
	}
	s.sessions.SetDefault(key, append(slices.Clip(msgs), message))
	return nil
}

func (s *MemoryStore) LoadHistory(_ context.Context, userID string, limit int) (*model.ConversationHistory, error) {
	msgs := s.messages(userID)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return &model.ConversationHistory{UserID: userID, Messages: slices.Clone(msgs)}, nil
}

func (s *MemoryStore) ClearHistory(_ context.Context, userID string) error {
	s.sessions.Delete(conversationKey(userID))
	return nil
}

func (s *MemoryStore) GetMessageCount(_ context.Context, userID string) (int, error) {
	return len(s.messages(userID)), nil
}

func (s *MemoryStore) messages(userID string) []*schema.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.sessions.Get(conversationKey(userID)); ok {
		return v.([]*schema.Message)
	}
	return nil
}

// ================ Quiz progress ================

func (s *MemoryStore) LoadQuizProgress(_ context.Context, userID string) (*model.QuizProgress, error) {
	v, ok := s.sessions.Get(quizKey(userID))
	if !ok {
		return nil, errx.Wrap(errx.ErrNotFound, nil, http.StatusNotFound, errx.StorageNotFoundMessage)
	}
	p := v.(model.QuizProgress)
	return &p, nil
}

func (s *MemoryStore) SaveQuizProgress(_ context.Context, userID string, progress model.QuizProgress) error {
	s.sessions.SetDefault(quizKey(userID), progress)
	return nil
}

func (s *MemoryStore) ClearQuizProgress(_ context.Context, userID string) error {
	s.sessions.Delete(quizKey(userID))
	return nil
}

// MemoryIndex is an exact cosine similarity index over embedded products.
type MemoryIndex struct {
	embedder embedding.Embedder

	mu      sync.RWMutex
	entries []indexEntry
}

type indexEntry struct {
	product model.Product
	vector  []float32
}

func NewMemoryIndex(embedder embedding.Embedder) *MemoryIndex {
	return &MemoryIndex{embedder: embedder}
}

func (ix *MemoryIndex) Upsert(ctx context.Context, product model.Product) error {
	vec, err := embedQuery(ctx, ix.embedder, EmbeddingText(product))
	if err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	e := indexEntry{product: product, vector: vec}
	if i := slices.IndexFunc(ix.entries, func(x indexEntry) bool { return x.product.ID == product.ID }); i >= 0 {
		ix.entries[i] = e
		return nil
	}
	ix.entries = append(ix.entries, e)
	return nil
}

func (ix *MemoryIndex) Search(ctx context.Context, query string, limit int, filter model.Filter) ([]model.CandidateItem, error) {
	vec, err := embedQuery(ctx, ix.embedder, query)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	out := make([]model.CandidateItem, 0, len(ix.entries))
	for _, e := range ix.entries {
		if !filter.Matches(e.product) {
			continue
		}
		out = append(out, model.CandidateItem{Product: e.product, Score: Cosine(vec, e.vector)})
	}
	ix.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b model.CandidateItem) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Cosine is the cosine similarity of a and b; zero vectors score 0.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := range n {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var (
	_ model.ProfileStore           = (*MemoryStore)(nil)
	_ model.InteractionStore       = (*MemoryStore)(nil)
	_ model.CatalogStore           = (*MemoryStore)(nil)
	_ model.ConversationRepository = (*MemoryStore)(nil)
	_ model.QuizProgressStore      = (*MemoryStore)(nil)
	_ model.SimilarityIndex        = (*MemoryIndex)(nil)
)
