package llm

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Provider is the language-model collaborator used by the classifier and
// the handlers.
type Provider interface {
	// Generate returns the text reply to prompt.
	Generate(ctx context.Context, prompt string, opts ...Option) (string, error)
	// GenerateWithTools lets the model answer or request tool calls.
	GenerateWithTools(ctx context.Context, prompt string, tools []*schema.ToolInfo, opts ...Option) (*ToolReply, error)
	// Name is the model name, used for logging and pricing.
	Name() string
}

// ToolReply is the outcome of a tool-enabled generation.
type ToolReply struct {
	Content   string
	ToolCalls []schema.ToolCall
	// Message is the raw assistant message, to be echoed back in follow ups.
	Message *schema.Message
}

// HasToolCalls reports whether the model requested any tool.
func (r *ToolReply) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

type options struct {
	system      string
	context     []*schema.Message
	followUp    []*schema.Message
	temperature *float32
}

// Option configures one generation.
type Option func(*options)

// WithSystem sets the system instruction.
func WithSystem(text string) Option {
	return func(o *options) { o.system = text }
}

// WithContext adds prior conversation messages before the prompt.
func WithContext(msgs []*schema.Message) Option {
	return func(o *options) { o.context = append(o.context, msgs...) }
}

// WithFollowUp adds messages after the prompt, e.g. assistant tool calls and
// their tool results during a tool loop.
func WithFollowUp(msgs ...*schema.Message) Option {
	return func(o *options) { o.followUp = append(o.followUp, msgs...) }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float32) Option {
	return func(o *options) { o.temperature = &t }
}

func collect(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// buildMessages lays out system, context, prompt and follow up messages.
func buildMessages(prompt string, o *options) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(o.context)+len(o.followUp)+2)
	if o.system != "" {
		msgs = append(msgs, schema.SystemMessage(o.system))
	}
	for _, m := range o.context {
		if m != nil {
			msgs = append(msgs, m)
		}
	}
	msgs = append(msgs, schema.UserMessage(prompt))
	for _, m := range o.followUp {
		if m != nil {
			msgs = append(msgs, m)
		}
	}
	return msgs
}
