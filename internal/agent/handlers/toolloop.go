package handlers

import (
	"context"
	"slices"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/jewelry-concierge/server/internal/agent/graph/tools"
	"github.com/jewelry-concierge/server/internal/agent/llm"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

type toolOutput struct {
	Name   string
	Output string
}

type loopResult struct {
	Content   string
	Outputs   []toolOutput
	Exhausted bool
}

// ToolsUsed lists the called tool names in call order.
func (r loopResult) ToolsUsed() []string {
	names := make([]string, 0, len(r.Outputs))
	for _, o := range r.Outputs {
		names = append(names, o.Name)
	}
	return names
}

// runToolLoop lets the model call tools until it answers in plain text or
// maxIter generations have run. Tool failures are fed back to the model as
// the tool result.
func runToolLoop(ctx context.Context, p llm.Provider, box *tools.Toolbox, prompt string, maxIter int, opts ...llm.Option) (loopResult, error) {
	var (
		res    loopResult
		follow []*schema.Message
	)
	for i := 0; i < maxIter; i++ {
		callOpts := append(slices.Clone(opts), llm.WithFollowUp(follow...))
		reply, err := p.GenerateWithTools(ctx, prompt, box.Infos(), callOpts...)
		if err != nil {
			return res, err
		}

		if !reply.HasToolCalls() {
			res.Content = strings.TrimSpace(reply.Content)
			if res.Content == "" && len(res.Outputs) > 0 {
				res.Content = joinOutputs(res.Outputs)
			}
			return res, nil
		}

		msg := reply.Message
		if msg == nil {
			msg = schema.AssistantMessage(reply.Content, reply.ToolCalls)
		}
		follow = append(follow, msg)
		for _, call := range reply.ToolCalls {
			out, err := box.Run(ctx, call)
			if err != nil {
				logx.FromContext(ctx).Warn().Err(err).Str("tool", call.Function.Name).Msg("tool call failed")
				out = "error: " + err.Error()
			}
			res.Outputs = append(res.Outputs, toolOutput{Name: call.Function.Name, Output: out})
			follow = append(follow, schema.ToolMessage(out, call.ID))
		}
	}
	res.Exhausted = true
	return res, nil
}

func joinOutputs(outs []toolOutput) string {
	parts := make([]string, 0, len(outs))
	for _, o := range outs {
		parts = append(parts, o.Output)
	}
	return strings.Join(parts, "\n\n")
}
