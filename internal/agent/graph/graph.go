package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	"github.com/jewelry-concierge/server/internal/agent/graph/classifier"
	"github.com/jewelry-concierge/server/internal/agent/graph/conversations"
	"github.com/jewelry-concierge/server/internal/agent/graph/nodes"
	"github.com/jewelry-concierge/server/internal/agent/graph/observers"
	"github.com/jewelry-concierge/server/internal/agent/handlers"
	"github.com/jewelry-concierge/server/internal/agent/model"
	errx "github.com/jewelry-concierge/server/internal/core/error"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// Runner executes one workflow run per request.
type Runner interface {
	Run(ctx context.Context, req model.Request) model.Response
	Stream(ctx context.Context, req model.Request) <-chan model.Event
}

// Config holds everything needed to compose the orchestrator graph.
type Config struct {
	Classifier classifier.Classifier
	Handlers   handlers.Set
	// Conversations is optional; without it requests run on the history
	// they carry.
	Conversations *conversations.Manager
	Graph         model.GraphConfig
	Stream        model.StreamConfig
}

// GraphBuilder handles the construction of the orchestrator graph.
type GraphBuilder struct {
	config *Config
	graph  *compose.Graph[model.Request, model.Response]
}

// Orchestrator is the compiled workflow graph plus its run policy.
type Orchestrator struct {
	runnable      compose.Runnable[model.Request, model.Response]
	conversations *conversations.Manager
	cfg           Config
}

// New builds and compiles the orchestrator graph.
func New(ctx context.Context, cfg Config) (*Orchestrator, error) {
	runnable, err := BuildGraph(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Stream.ChunkSize <= 0 {
		cfg.Stream.ChunkSize = 3
	}
	if cfg.Stream.Buffer <= 0 {
		cfg.Stream.Buffer = 32
	}
	logx.Debug().Msg("orchestrator graph built successfully")
	return &Orchestrator{runnable: runnable, conversations: cfg.Conversations, cfg: cfg}, nil
}

// BuildGraph constructs and returns the compiled orchestrator graph.
func BuildGraph(ctx context.Context, config *Config) (compose.Runnable[model.Request, model.Response], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Classifier == nil {
		config.Classifier = classifier.RuleBased{}
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.Request, model.Response](
			compose.WithGenLocalState(func(ctx context.Context) *model.SessionState {
				return model.NewSessionState()
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}
	return builder.compile(ctx)
}

// addNodes adds route, one node per handler and finalize.
func (b *GraphBuilder) addNodes() error {
	if err := b.graph.AddLambdaNode(nodes.NodeRoute,
		nodes.NewRouteNode(b.config.Classifier),
		compose.WithStatePreHandler(nodes.NewRoutePreHandler()),
		compose.WithStatePostHandler(nodes.NewApplyPostHandler()),
		compose.WithNodeName(nodes.NodeRoute),
	); err != nil {
		return fmt.Errorf("add route node: %w", err)
	}

	for _, id := range model.HandlerPriority {
		name := nodes.HandlerNode(id)
		if err := b.graph.AddLambdaNode(name,
			nodes.NewHandlerNode(id, b.config.Handlers[id]),
			compose.WithStatePostHandler(nodes.NewApplyPostHandler()),
			compose.WithNodeName(name),
		); err != nil {
			return fmt.Errorf("add %s node: %w", name, err)
		}
	}

	if err := b.graph.AddLambdaNode(nodes.NodeFinalize, nodes.NewFinalizeNode(),
		compose.WithNodeName(nodes.NodeFinalize)); err != nil {
		return fmt.Errorf("add finalize node: %w", err)
	}
	return nil
}

// addEdges creates the unconditional connections: terminal handlers go
// straight to finalize.
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeRoute},
		{nodes.NodeFinalize, compose.END},
	}
	for _, id := range model.HandlerPriority {
		if id.Terminal() {
			edges = append(edges, [2]string{nodes.HandlerNode(id), nodes.NodeFinalize})
		}
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches routes from route and from every non-terminal handler to the
// next pending handler or finalize.
func (b *GraphBuilder) addBranches() error {
	sources := []model.HandlerID{""}
	for _, id := range model.HandlerPriority {
		if !id.Terminal() {
			sources = append(sources, id)
		}
	}

	for _, current := range sources {
		from := nodes.NodeRoute
		if current != "" {
			from = nodes.HandlerNode(current)
		}
		ends := map[string]bool{nodes.NodeFinalize: true}
		for _, id := range handlersAfter(current) {
			ends[nodes.HandlerNode(id)] = true
		}
		branch := compose.NewGraphBranch(nodes.NewNextCondition(current), ends)
		if err := b.graph.AddBranch(from, branch); err != nil {
			logx.Error().Err(err).Str("from", from).Msg("Error adding branch")
			return fmt.Errorf("add branch after %s: %w", from, err)
		}
	}
	return nil
}

// handlersAfter lists the handlers that follow current in priority order;
// an empty current yields all of them.
func handlersAfter(current model.HandlerID) []model.HandlerID {
	if current == "" {
		return model.HandlerPriority
	}
	for i, h := range model.HandlerPriority {
		if h == current {
			return model.HandlerPriority[i+1:]
		}
	}
	return nil
}

// compile finalizes and compiles the graph.
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.Request, model.Response], error) {
	// route + every handler + finalize, with headroom
	maxSteps := b.config.Graph.MaxRunSteps
	if minSteps := len(model.HandlerPriority) + 4; maxSteps < minSteps {
		maxSteps = minSteps
	}

	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("orchestrator"),
		compose.WithMaxRunSteps(maxSteps),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

// Run executes the graph once and always returns a well formed response.
// An expired run returns an error response without partial results.
func (o *Orchestrator) Run(ctx context.Context, req model.Request) model.Response {
	ctx = o.runContext(ctx, req)
	req = o.conversations.Prepare(ctx, req)

	resp, _ := o.invoke(ctx, req)
	if resp.Status != model.StatusError {
		o.conversations.Record(ctx, req, resp)
	}
	return resp
}

func (o *Orchestrator) runContext(ctx context.Context, req model.Request) context.Context {
	return logx.WithContext(ctx, map[string]any{
		"request_id": uuid.NewString(),
		"user_id":    req.UserID,
	})
}

// invoke runs the graph under the run timeout. finished reports whether the
// graph reached finalize.
func (o *Orchestrator) invoke(ctx context.Context, req model.Request) (resp model.Response, finished bool) {
	task, _ := model.ParseTaskType(req.TaskOverride)
	timeout := o.cfg.Graph.RunTimeout

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type outcome struct {
		resp model.Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := o.runnable.Invoke(runCtx, req,
			compose.WithCallbacks(observers.NewAllCallbacks(), observers.NewNodeCallbacks()))
		done <- outcome{resp, err}
	}()

	log := logx.FromContext(ctx)
	select {
	case out := <-done:
		if err := runCtx.Err(); err != nil {
			return o.expired(ctx, task, err), false
		}
		if out.err != nil {
			log.Error().Err(out.err).Msg("workflow run failed")
			return model.ErrorResponse(task, errx.SystemErrorMessage), false
		}
		log.Info().
			Str("status", string(out.resp.Status)).
			Str("task_type", string(out.resp.TaskType)).
			Interface("completed_agents", out.resp.CompletedAgents).
			Msg("workflow run finished")
		return out.resp, true
	case <-runCtx.Done():
		return o.expired(ctx, task, runCtx.Err()), false
	}
}

func (o *Orchestrator) expired(ctx context.Context, task model.TaskType, err error) model.Response {
	if errors.Is(err, context.DeadlineExceeded) {
		logx.FromContext(ctx).Warn().Err(errx.Timeout(err)).Dur("timeout", o.cfg.Graph.RunTimeout).Msg("workflow run timed out")
		return model.ErrorResponse(task, errx.TimeoutMessage)
	}
	logx.FromContext(ctx).Warn().Err(err).Msg("workflow run cancelled")
	return model.ErrorResponse(task, "request cancelled")
}

var _ Runner = (*Orchestrator)(nil)
