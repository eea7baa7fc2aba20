package tools

import (
	"context"
	"fmt"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Tool names exposed to the language model.
const (
	ToolSearchProducts    = "search_products"
	ToolGetProductDetails = "get_product_details"
	ToolDetectZodiacSign  = "detect_zodiac_sign"
	ToolGetHoroscope      = "get_horoscope"
	ToolGetNextQuestion   = "get_next_question"
	ToolAnalyzeProfile    = "analyze_taste_profile"
)

// Toolbox dispatches model tool calls to invokable tools by name.
type Toolbox struct {
	tools map[string]tool.InvokableTool
	infos []*schema.ToolInfo
}

// NewToolbox collects the infos of ts. Duplicate names are rejected.
func NewToolbox(ctx context.Context, ts ...tool.InvokableTool) (*Toolbox, error) {
	b := &Toolbox{tools: make(map[string]tool.InvokableTool, len(ts))}
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		if _, dup := b.tools[info.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", info.Name)
		}
		b.tools[info.Name] = t
		b.infos = append(b.infos, info)
	}
	return b, nil
}

// Infos returns the tool descriptions in registration order.
func (b *Toolbox) Infos() []*schema.ToolInfo {
	return b.infos
}

// Run executes one tool call and fires tool callbacks around it.
func (b *Toolbox) Run(ctx context.Context, call schema.ToolCall) (string, error) {
	name := call.Function.Name
	t, ok := b.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	args := call.Function.Arguments
	if args == "" {
		args = "{}"
	}

	ctx = einocb.EnsureRunInfo(ctx, name, components.ComponentOfTool)
	ctx = einocb.OnStart(ctx, &tool.CallbackInput{ArgumentsInJSON: args})
	out, err := t.InvokableRun(ctx, args)
	if err != nil {
		einocb.OnError(ctx, err)
		return "", fmt.Errorf("tool %s: %w", name, err)
	}
	einocb.OnEnd(ctx, &tool.CallbackOutput{Response: out})
	return out, nil
}
