package observers

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// NewAllCallbacks aggregates the prompt, tool and model observers into one
// callbacks.Handler. Attach it via compose.WithCallbacks when invoking a graph.
func NewAllCallbacks() einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		Tool(newToolHandler()).
		ChatModel(newModelHandler()).
		Prompt(newPromptHandler()).
		Handler()
}

type startKey struct{ name string }

// NewNodeCallbacks logs graph node lifecycle with durations.
func NewNodeCallbacks() einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackInput) context.Context {
			if info == nil {
				return ctx
			}
			return context.WithValue(ctx, startKey{info.Name}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackOutput) context.Context {
			if info == nil {
				return ctx
			}
			ev := logx.FromContext(ctx).Debug().
				Str("node", info.Name).
				Str("component", string(info.Component))
			if started, ok := ctx.Value(startKey{info.Name}).(time.Time); ok {
				ev = ev.Dur("elapsed", time.Since(started))
			}
			ev.Msg("node done")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			name := ""
			if info != nil {
				name = info.Name
			}
			logx.FromContext(ctx).Error().Err(err).Str("node", name).Msg("node failed")
			return ctx
		}).
		Build()
}
