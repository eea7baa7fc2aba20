package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/jewelry-concierge/server/internal/agent/model"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// NewGeminiClient creates the genai client shared by chat models and the
// embedder.
func NewGeminiClient(ctx context.Context, cfg model.LLMConfig) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewGeminiFactory returns a Factory building gemini chat models on client.
func NewGeminiFactory(client *genai.Client, cfg model.LLMConfig) Factory {
	return func(ctx context.Context, modelName string) (Provider, error) {
		temperature := cfg.Temperature
		maxTokens := cfg.MaxTokens
		cm, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       modelName,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		})
		if err != nil {
			logx.Error().Err(err).Str("model", modelName).Msg("Error creating chat model")
			return nil, fmt.Errorf("error creating chat model %s: %w", modelName, err)
		}
		return NewChatModelProvider(cm, modelName, WithRetries(cfg.MaxRetries, cfg.RetryBackoff)), nil
	}
}
