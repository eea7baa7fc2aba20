package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/prompt"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/jewelry-concierge/server/pkg/logger"
)

func newPromptHandler() *callbackHelper.PromptCallbackHandler {
	return &callbackHelper.PromptCallbackHandler{
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *prompt.CallbackOutput) context.Context {
			if output != nil && len(output.Result) > 0 && output.Result[0] != nil {
				logx.FromContext(ctx).Debug().
					Str("component", "prompt").
					Str("name", info.Name).
					Int("rendered_len", len(output.Result[0].Content)).
					Msg("prompt rendered")
			}
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.FromContext(ctx).Error().Err(err).Str("component", "prompt").Str("name", info.Name).Msg("prompt render failed")
			return ctx
		},
	}
}
