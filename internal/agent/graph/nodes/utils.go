package nodes

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/jewelry-concierge/server/internal/agent/model"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// guard runs fn and converts an error or a panic into a failure patch for
// node, so no node ever fails the graph run.
func guard(ctx context.Context, node string, fn func() (model.Patch, error)) (p model.Patch) {
	defer func() {
		if r := recover(); r != nil {
			logx.FromContext(ctx).Error().
				Str("node", node).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("node panicked")
			p = model.Failed(node, fmt.Errorf("%s: internal error", node))
		}
	}()

	p, err := fn()
	if err != nil {
		logx.FromContext(ctx).Error().Err(err).Str("node", node).Msg("node failed")
		return model.Failed(node, fmt.Errorf("%s: %w", node, err))
	}
	p.Node = node
	return p
}

// snapshot reads an immutable view of the run's session state.
func snapshot(ctx context.Context) (model.Snapshot, error) {
	var snap model.Snapshot
	err := processState(ctx, func(s *model.SessionState) error {
		snap = s.Snapshot()
		return nil
	})
	return snap, err
}
