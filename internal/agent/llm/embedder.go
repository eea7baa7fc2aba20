package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/patrickmn/go-cache"
	"google.golang.org/genai"

	errx "github.com/jewelry-concierge/server/internal/core/error"
)

// GeminiEmbedder turns text into vectors with the genai embedding API.
// Vectors are cached per text since catalog queries repeat a lot.
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	maxRetries int
	cache      *cache.Cache
}

// NewGeminiEmbedder creates an embedder for modelName.
func NewGeminiEmbedder(client *genai.Client, modelName string, maxRetries int) *GeminiEmbedder {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &GeminiEmbedder{
		client:     client,
		model:      modelName,
		maxRetries: maxRetries,
		cache:      cache.New(time.Hour, 10*time.Minute),
	}
}

// EmbedStrings implements embedding.Embedder.
func (e *GeminiEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if v, ok := e.cache.Get(text); ok {
			out[i] = v.([]float64)
			continue
		}
		vec, err := e.embed(ctx, text)
		if err != nil {
			return nil, err
		}
		e.cache.SetDefault(text, vec)
		out[i] = vec
	}
	return out, nil
}

func (e *GeminiEmbedder) embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := backoff.Retry(ctx, func() (*genai.EmbedContentResponse, error) {
		return e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(e.maxRetries)),
	)
	if err != nil {
		return nil, errx.WrapProvider(fmt.Errorf("embed: %w", err))
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errx.WrapProvider(fmt.Errorf("embed: empty response"))
	}
	values := resp.Embeddings[0].Values
	vec := make([]float64, len(values))
	for i, v := range values {
		vec[i] = float64(v)
	}
	return vec, nil
}

var _ embedding.Embedder = (*GeminiEmbedder)(nil)
