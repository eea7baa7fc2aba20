package nodes

import (
	"context"

	"github.com/jewelry-concierge/server/internal/agent/model"
)

// Observer is notified when a handler node completes, in execution order.
// It is called while the session state is held and must not block; hand
// slow work off to another goroutine.
type Observer interface {
	HandlerCompleted(ctx context.Context, h model.HandlerID, r model.Result)
}

type ObserverFunc func(ctx context.Context, h model.HandlerID, r model.Result)

func (f ObserverFunc) HandlerCompleted(ctx context.Context, h model.HandlerID, r model.Result) {
	f(ctx, h, r)
}

type observerKey struct{}

// WithObserver attaches o to the run started with ctx.
func WithObserver(ctx context.Context, o Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, o)
}

func observerFrom(ctx context.Context) Observer {
	o, _ := ctx.Value(observerKey{}).(Observer)
	return o
}
