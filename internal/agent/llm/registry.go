package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/patrickmn/go-cache"

	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// Factory builds the provider for one model name.
type Factory func(ctx context.Context, modelName string) (Provider, error)

// Registry is the process-wide cache of provider clients. A provider is
// created lazily on first use and shared by every graph run afterwards.
type Registry struct {
	mu      sync.Mutex
	clients *cache.Cache
	factory Factory
	ttl     time.Duration
}

// NewRegistry creates a registry. A ttl of zero keeps clients forever.
func NewRegistry(factory Factory, ttl time.Duration) *Registry {
	exp := cache.NoExpiration
	if ttl > 0 {
		exp = ttl
	}
	return &Registry{
		clients: cache.New(exp, 10*time.Minute),
		factory: factory,
		ttl:     exp,
	}
}

// Get returns the provider for modelName, creating it once.
func (r *Registry) Get(ctx context.Context, modelName string) (Provider, error) {
	if p, ok := r.clients.Get(modelName); ok {
		return p.(Provider), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.clients.Get(modelName); ok {
		return p.(Provider), nil
	}

	p, err := r.factory(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("create provider %s: %w", modelName, err)
	}
	r.clients.Set(modelName, p, r.ttl)
	logx.Debug().Str("model", modelName).Msg("LLM provider created")
	return p, nil
}

// Lazy returns a Provider that resolves modelName through the registry on
// first call.
func (r *Registry) Lazy(modelName string) Provider {
	return &lazyProvider{registry: r, name: modelName}
}

type lazyProvider struct {
	registry *Registry
	name     string
}

func (l *lazyProvider) Name() string { return l.name }

func (l *lazyProvider) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	p, err := l.registry.Get(ctx, l.name)
	if err != nil {
		return "", err
	}
	return p.Generate(ctx, prompt, opts...)
}

func (l *lazyProvider) GenerateWithTools(ctx context.Context, prompt string, tools []*schema.ToolInfo, opts ...Option) (*ToolReply, error) {
	p, err := l.registry.Get(ctx, l.name)
	if err != nil {
		return nil, err
	}
	return p.GenerateWithTools(ctx, prompt, tools, opts...)
}

var _ Provider = (*lazyProvider)(nil)
