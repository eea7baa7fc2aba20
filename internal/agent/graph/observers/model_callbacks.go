package observers

import (
	"context"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// newModelHandler builds a typed ModelCallbackHandler that logs the prompt
// size, the last user message and token usage around model calls.
func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ev := logx.FromContext(ctx).Debug().Str("component", "model").Str("name", info.Name)
			if input != nil {
				ev = ev.Int("messages", len(input.Messages)).Int("tools", len(input.Tools))
				if um := lastUserContent(input.Messages); um != "" {
					ev = ev.Str("user", truncate(um, 200))
				}
			}
			ev.Msg("model call start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			ev := logx.FromContext(ctx).Debug().Str("component", "model").Str("name", info.Name)
			if output != nil {
				if output.Message != nil {
					ev = ev.Int("tool_calls", len(output.Message.ToolCalls)).
						Str("assistant", truncate(strings.TrimSpace(output.Message.Content), 200))
				}
				if output.TokenUsage != nil {
					ev = ev.Int("prompt_tokens", output.TokenUsage.PromptTokens).
						Int("completion_tokens", output.TokenUsage.CompletionTokens)
				}
			}
			ev.Msg("model call end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.FromContext(ctx).Warn().Err(err).Str("component", "model").Str("name", info.Name).Msg("model call failed")
			return ctx
		},
	}
}

func lastUserContent(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m == nil {
			continue
		}
		if m.Role == schema.User {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
