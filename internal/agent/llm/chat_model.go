package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	errx "github.com/jewelry-concierge/server/internal/core/error"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// toolBinder is implemented by chat models that can return a tool-enabled
// copy of themselves without mutating the shared instance.
type toolBinder interface {
	WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error)
}

// ChatModelProvider adapts an eino chat model to Provider with bounded
// retries.
type ChatModelProvider struct {
	cm         model.BaseChatModel
	name       string
	maxRetries int
	backoff    time.Duration
	pricing    Pricing
}

// ChatModelOption tunes a ChatModelProvider.
type ChatModelOption func(*ChatModelProvider)

// WithRetries bounds the number of attempts per call.
func WithRetries(n int, wait time.Duration) ChatModelOption {
	return func(p *ChatModelProvider) {
		p.maxRetries = n
		p.backoff = wait
	}
}

// NewChatModelProvider wraps cm.
func NewChatModelProvider(cm model.BaseChatModel, name string, opts ...ChatModelOption) *ChatModelProvider {
	p := &ChatModelProvider{
		cm:         cm,
		name:       name,
		maxRetries: DefaultMaxRetries,
		backoff:    500 * time.Millisecond,
		pricing:    ResolvePricing(name),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxRetries <= 0 {
		p.maxRetries = 1
	}
	return p
}

// DefaultMaxRetries is the attempt budget when none is configured.
const DefaultMaxRetries = 3

func (p *ChatModelProvider) Name() string { return p.name }

func (p *ChatModelProvider) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	o := collect(opts)
	msg, err := p.invoke(ctx, p.cm, buildMessages(prompt, o), o)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(msg.Content), nil
}

func (p *ChatModelProvider) GenerateWithTools(ctx context.Context, prompt string, tools []*schema.ToolInfo, opts ...Option) (*ToolReply, error) {
	o := collect(opts)
	cm := p.cm
	if len(tools) > 0 {
		binder, ok := p.cm.(toolBinder)
		if !ok {
			return nil, errx.WrapProvider(fmt.Errorf("model %s does not support tool calling", p.name))
		}
		bound, err := binder.WithTools(tools)
		if err != nil {
			return nil, errx.WrapProvider(fmt.Errorf("bind tools: %w", err))
		}
		cm = bound
	}
	msg, err := p.invoke(ctx, cm, buildMessages(prompt, o), o)
	if err != nil {
		return nil, err
	}
	return &ToolReply{
		Content:   strings.TrimSpace(msg.Content),
		ToolCalls: msg.ToolCalls,
		Message:   msg,
	}, nil
}

// invoke runs one generation with up to maxRetries attempts. Context
// cancellation stops retrying at once.
func (p *ChatModelProvider) invoke(ctx context.Context, cm model.BaseChatModel, msgs []*schema.Message, o *options) (*schema.Message, error) {
	var callOpts []model.Option
	if o.temperature != nil {
		callOpts = append(callOpts, model.WithTemperature(*o.temperature))
	}

	attempt := 0
	msg, err := backoff.Retry(ctx, func() (*schema.Message, error) {
		attempt++
		out, err := cm.Generate(ctx, msgs, callOpts...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			logx.Warn().Err(err).Str("model", p.name).Int("attempt", attempt).Msg("LLM call failed")
			return nil, err
		}
		if out == nil {
			return nil, errors.New("empty model response")
		}
		return out, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.backoff)),
		backoff.WithMaxTries(uint(p.maxRetries)),
	)
	if err != nil {
		return nil, errx.WrapProvider(fmt.Errorf("%s after %d attempt(s): %w", p.name, attempt, err))
	}

	p.logUsage(msg)
	return msg, nil
}

func (p *ChatModelProvider) logUsage(out *schema.Message) {
	if !CostEnabled() || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	inC, outC, totalC := ComputeCost(usage, p.pricing)
	logx.Debug().
		Str("model", p.name).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}

var _ Provider = (*ChatModelProvider)(nil)
