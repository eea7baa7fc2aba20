package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/jewelry-concierge/server/internal/agent/graph/classifier"
	"github.com/jewelry-concierge/server/internal/agent/handlers"
	"github.com/jewelry-concierge/server/internal/agent/model"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

const (
	NodeRoute    = "route"
	NodeFinalize = "finalize"
)

// HandlerNode is the graph node name of handler h.
func HandlerNode(h model.HandlerID) string { return string(h) }

func processState(ctx context.Context, fn func(*model.SessionState) error) error {
	return compose.ProcessState(ctx, func(_ context.Context, s *model.SessionState) error {
		return fn(s)
	})
}

// NewRoutePreHandler seeds the fresh session state with the request.
func NewRoutePreHandler() func(context.Context, model.Request, *model.SessionState) (model.Request, error) {
	return func(ctx context.Context, in model.Request, s *model.SessionState) (model.Request, error) {
		s.Seed(in)
		return in, nil
	}
}

// NewRouteNode classifies the message, unless the caller overrode the task,
// and computes agents_to_run.
func NewRouteNode(c classifier.Classifier) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.Request) (model.Patch, error) {
		return guard(ctx, NodeRoute, func() (model.Patch, error) {
			snap, err := snapshot(ctx)
			if err != nil {
				return model.Patch{}, err
			}

			var cls model.Classification
			if task := snap.TaskType(); task != model.TaskUnset {
				cls = model.Classification{TaskType: task, Confidence: 1, Rationale: "caller override", Strategy: classifier.StrategyOverride}
			} else {
				cls = c.Classify(ctx, snap.Message(), snap.History())
			}

			plan := cls.TaskType.Plan()
			logx.FromContext(ctx).Debug().
				Str("task_type", string(cls.TaskType)).
				Str("strategy", cls.Strategy).
				Float64("confidence", cls.Confidence).
				Interface("agents_to_run", plan).
				Msg("request routed")

			return model.Patch{
				TaskType:       cls.TaskType,
				Classification: &cls,
				AgentsToRun:    plan,
				Status:         model.StatusProcessing,
			}, nil
		}), nil
	})
}

// NewHandlerNode runs h against a snapshot and returns its result slot as a
// patch. A missing handler or a handler error becomes a failure patch.
func NewHandlerNode(id model.HandlerID, h handlers.Handler) *compose.Lambda {
	node := HandlerNode(id)
	return compose.InvokableLambda(func(ctx context.Context, _ model.Patch) (model.Patch, error) {
		return guard(ctx, node, func() (model.Patch, error) {
			if h == nil {
				return model.Patch{}, fmt.Errorf("handler %q is not configured", id)
			}
			snap, err := snapshot(ctx)
			if err != nil {
				return model.Patch{}, err
			}
			res, err := h.Process(ctx, snap)
			if err != nil {
				return model.Patch{}, err
			}
			if res.Status == "" {
				res.Status = model.StatusSuccess
			}
			return model.Patch{Handler: id, Result: &res}, nil
		}), nil
	})
}

// NewApplyPostHandler merges the node's patch into the session state and
// tells the run observer about completed handlers. A patch that violates a
// state invariant is recorded as a failure of that node.
func NewApplyPostHandler() func(context.Context, model.Patch, *model.SessionState) (model.Patch, error) {
	return func(ctx context.Context, p model.Patch, s *model.SessionState) (model.Patch, error) {
		if err := s.Apply(p); err != nil {
			logx.FromContext(ctx).Error().Err(err).Str("node", p.Node).Msg("patch rejected")
			_ = s.Apply(model.Failed(p.Node, err))
			return p, nil
		}
		if p.Result != nil {
			if o := observerFrom(ctx); o != nil {
				o.HandlerCompleted(ctx, p.Handler, *p.Result)
			}
		}
		return p, nil
	}
}

// NewNextCondition picks the node after current: the next pending handler
// in priority order, or finalize. A recorded error ends the run early.
func NewNextCondition(current model.HandlerID) func(context.Context, model.Patch) (string, error) {
	return func(ctx context.Context, _ model.Patch) (string, error) {
		snap, err := snapshot(ctx)
		if err != nil {
			return NodeFinalize, nil
		}
		if snap.Status() == model.StatusError {
			return NodeFinalize, nil
		}
		if next, ok := model.NextPending(snap.AgentsToRun(), current); ok {
			return HandlerNode(next), nil
		}
		return NodeFinalize, nil
	}
}

// NewFinalizeNode collects the completed result slots, sets the terminal
// status and builds the response.
func NewFinalizeNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.Patch) (model.Response, error) {
		var resp model.Response
		err := processState(ctx, func(s *model.SessionState) error {
			snap := s.Snapshot()
			p := model.Patch{Node: NodeFinalize, FinalResult: snap.CollectResults(), Status: snap.TerminalStatus()}
			if err := s.Apply(p); err != nil {
				return err
			}
			resp = BuildResponse(s.Snapshot())
			return nil
		})
		if err != nil {
			return model.Response{}, fmt.Errorf("finalize: %w", err)
		}
		return resp, nil
	})
}

// BuildResponse renders the batch response of a finalized state.
func BuildResponse(snap model.Snapshot) model.Response {
	st := snap.State()
	results := st.FinalResult
	if results == nil {
		results = map[model.HandlerID]model.Result{}
	}
	completed := snap.CompletedAgents()
	if completed == nil {
		completed = []model.HandlerID{}
	}
	return model.Response{
		Status:          st.Status,
		TaskType:        st.TaskType,
		Result:          results,
		Error:           st.Error,
		CompletedAgents: completed,
	}
}
