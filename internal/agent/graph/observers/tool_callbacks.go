package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/tool"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/jewelry-concierge/server/pkg/logger"
)

func newToolHandler() *callbackHelper.ToolCallbackHandler {
	return &callbackHelper.ToolCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *tool.CallbackInput) context.Context {
			ev := logx.FromContext(ctx).Debug().Str("component", "tool").Str("name", info.Name)
			if input != nil {
				ev = ev.Str("args", truncate(input.ArgumentsInJSON, 300))
			}
			ev.Msg("tool start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *tool.CallbackOutput) context.Context {
			ev := logx.FromContext(ctx).Debug().Str("component", "tool").Str("name", info.Name)
			if output != nil {
				ev = ev.Str("response", truncate(output.Response, 300))
			}
			ev.Msg("tool end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.FromContext(ctx).Warn().Err(err).Str("component", "tool").Str("name", info.Name).Msg("tool failed")
			return ctx
		},
	}
}
