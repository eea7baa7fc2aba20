package conversations

import (
	"context"
	"errors"
	"maps"

	"github.com/cloudwego/eino/schema"

	"github.com/jewelry-concierge/server/internal/agent/handlers"
	"github.com/jewelry-concierge/server/internal/agent/model"
	errx "github.com/jewelry-concierge/server/internal/core/error"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// Manager fills requests from stored conversations and records finished
// runs. A nil Manager, or one without stores, leaves requests untouched.
// Storage failures are logged and never fail a run.
type Manager struct {
	repo     model.ConversationRepository
	quiz     model.QuizProgressStore
	maxTurns int
}

func NewManager(repo model.ConversationRepository, quiz model.QuizProgressStore, cfg model.ConversationConfig) *Manager {
	return &Manager{repo: repo, quiz: quiz, maxTurns: cfg.MaxTurns}
}

// Prepare loads the stored history when the request carries none, and the
// saved quiz position when the request starts from scratch. A message that
// asks for the quiz starts it over, so no position is restored for it.
func (m *Manager) Prepare(ctx context.Context, req model.Request) model.Request {
	if m == nil {
		return req
	}
	log := logx.FromContext(ctx)

	if m.repo != nil && len(req.History) == 0 {
		h, err := m.repo.LoadHistory(ctx, req.UserID, m.maxTurns)
		if err != nil {
			log.Warn().Err(err).Msg("failed to load conversation history")
		} else {
			req.History = h.Turns()
		}
	}

	if m.quiz != nil && req.Answers == nil && req.CurrentQuestionIndex == 0 && !handlers.OpensQuiz(req.Message) {
		p, err := m.quiz.LoadQuizProgress(ctx, req.UserID)
		switch {
		case errors.Is(err, errx.ErrNotFound):
		case err != nil:
			log.Warn().Err(err).Msg("failed to load quiz progress")
		case p != nil:
			req.CurrentQuestionIndex = p.Index
			req.Answers = maps.Clone(p.Answers)
		}
	}
	return req
}

// Record appends the user message and the primary reply to the history
// and keeps the quiz position in sync with the quiz result.
func (m *Manager) Record(ctx context.Context, req model.Request, resp model.Response) {
	if m == nil {
		return
	}
	log := logx.FromContext(ctx)

	if m.repo != nil {
		msgs := []*schema.Message{}
		if req.Message != "" {
			msgs = append(msgs, schema.UserMessage(req.Message))
		}
		if reply := PrimaryReply(resp); reply != "" {
			msgs = append(msgs, schema.AssistantMessage(reply, nil))
		}
		for _, msg := range msgs {
			if err := m.repo.AddMessage(ctx, req.UserID, msg); err != nil {
				log.Warn().Err(err).Str("role", string(msg.Role)).Msg("failed to save conversation message")
				break
			}
		}
	}

	if m.quiz != nil {
		m.recordQuiz(ctx, req.UserID, resp)
	}
}

func (m *Manager) recordQuiz(ctx context.Context, userID string, resp model.Response) {
	res, ok := resp.Result[model.HandlerQuiz]
	if !ok {
		return
	}
	log := logx.FromContext(ctx)

	if action, _ := res.Data["action"].(string); action == handlers.ActionAnalyzeProfile {
		if err := m.quiz.ClearQuizProgress(ctx, userID); err != nil {
			log.Warn().Err(err).Msg("failed to clear quiz progress")
		}
		return
	}

	index, _ := res.Data["question_index"].(int)
	answers, _ := res.Data["answers"].(map[string]string)
	if err := m.quiz.SaveQuizProgress(ctx, userID, model.QuizProgress{Index: index, Answers: answers}); err != nil {
		log.Warn().Err(err).Msg("failed to save quiz progress")
	}
}

// PrimaryReply is the reply of the first completed handler.
func PrimaryReply(resp model.Response) string {
	for _, id := range resp.CompletedAgents {
		if r, ok := resp.Result[id]; ok && r.Reply != "" {
			return r.Reply
		}
	}
	return ""
}
