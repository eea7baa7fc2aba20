// Package llmtest provides scripted language-model providers for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/jewelry-concierge/server/internal/agent/llm"
)

// ErrScriptExhausted is returned when a Scripted provider runs out of replies.
var ErrScriptExhausted = errors.New("llmtest: no scripted reply left")

// Reply is one scripted answer.
type Reply struct {
	Content   string
	ToolCalls []schema.ToolCall
	Err       error
}

// Scripted replays replies in order and records every prompt it received.
// When Fallback is set it answers every call once the script is exhausted.
type Scripted struct {
	mu       sync.Mutex
	replies  []Reply
	Fallback *Reply
	Prompts  []string
	Tools    [][]*schema.ToolInfo
}

// NewScripted creates a provider answering with replies in order.
func NewScripted(replies ...Reply) *Scripted {
	return &Scripted{replies: replies}
}

// Text is a shortcut for a provider that always answers content.
func Text(content string) *Scripted {
	return &Scripted{Fallback: &Reply{Content: content}}
}

// Failing is a provider whose every call returns err.
func Failing(err error) *Scripted {
	return &Scripted{Fallback: &Reply{Err: err}}
}

func (s *Scripted) Name() string { return "scripted" }

func (s *Scripted) next(prompt string, tools []*schema.ToolInfo) Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts = append(s.Prompts, prompt)
	s.Tools = append(s.Tools, tools)
	if len(s.replies) > 0 {
		r := s.replies[0]
		s.replies = s.replies[1:]
		return r
	}
	if s.Fallback != nil {
		return *s.Fallback
	}
	return Reply{Err: ErrScriptExhausted}
}

// Calls returns the number of calls made so far.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Prompts)
}

func (s *Scripted) Generate(ctx context.Context, prompt string, _ ...llm.Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r := s.next(prompt, nil)
	return r.Content, r.Err
}

func (s *Scripted) GenerateWithTools(ctx context.Context, prompt string, tools []*schema.ToolInfo, _ ...llm.Option) (*llm.ToolReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := s.next(prompt, tools)
	if r.Err != nil {
		return nil, r.Err
	}
	msg := schema.AssistantMessage(r.Content, r.ToolCalls)
	return &llm.ToolReply{Content: r.Content, ToolCalls: r.ToolCalls, Message: msg}, nil
}

// ToolCall builds a tool call for scripting.
func ToolCall(id, name, args string) schema.ToolCall {
	return schema.ToolCall{ID: id, Type: "function", Function: schema.FunctionCall{Name: name, Arguments: args}}
}

var _ llm.Provider = (*Scripted)(nil)
