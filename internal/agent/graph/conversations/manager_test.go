package conversations

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelry-concierge/server/internal/agent/handlers"
	"github.com/jewelry-concierge/server/internal/agent/model"
	errx "github.com/jewelry-concierge/server/internal/core/error"
)

type memoryRepo struct {
	msgs    map[string][]*schema.Message
	loadErr error
	limit   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{msgs: map[string][]*schema.Message{}}
}

func (r *memoryRepo) AddMessage(_ context.Context, userID string, m *schema.Message) error {
	r.msgs[userID] = append(r.msgs[userID], m)
	return nil
}

func (r *memoryRepo) LoadHistory(_ context.Context, userID string, limit int) (*model.ConversationHistory, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	r.limit = limit
	msgs := r.msgs[userID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return &model.ConversationHistory{UserID: userID, Messages: msgs}, nil
}

func (r *memoryRepo) ClearHistory(_ context.Context, userID string) error {
	delete(r.msgs, userID)
	return nil
}

func (r *memoryRepo) GetMessageCount(_ context.Context, userID string) (int, error) {
	return len(r.msgs[userID]), nil
}

type memoryQuiz struct {
	progress map[string]model.QuizProgress
	cleared  []string
}

func (q *memoryQuiz) LoadQuizProgress(_ context.Context, userID string) (*model.QuizProgress, error) {
	p, ok := q.progress[userID]
	if !ok {
		return nil, errx.ErrNotFound
	}
	return &p, nil
}

func (q *memoryQuiz) SaveQuizProgress(_ context.Context, userID string, p model.QuizProgress) error {
	q.progress[userID] = p
	return nil
}

func (q *memoryQuiz) ClearQuizProgress(_ context.Context, userID string) error {
	delete(q.progress, userID)
	q.cleared = append(q.cleared, userID)
	return nil
}

func TestNilManagerIsNoop(t *testing.T) {
	var m *Manager
	req := model.Request{UserID: "u1", Message: "hi"}
	assert.Equal(t, req, m.Prepare(context.Background(), req))
	m.Record(context.Background(), req, model.Response{})
}

func TestPrepareLoadsHistoryOnlyWhenMissing(t *testing.T) {
	repo := newMemoryRepo()
	repo.msgs["u1"] = []*schema.Message{
		schema.UserMessage("one"),
		schema.AssistantMessage("two", nil),
		schema.UserMessage("three"),
	}
	m := NewManager(repo, nil, model.ConversationConfig{MaxTurns: 2})

	req := m.Prepare(context.Background(), model.Request{UserID: "u1"})
	assert.Equal(t, 2, repo.limit)
	assert.Equal(t, []model.Turn{{Role: "assistant", Content: "two"}, {Role: "user", Content: "three"}}, req.History)

	own := []model.Turn{{Role: "user", Content: "mine"}}
	req = m.Prepare(context.Background(), model.Request{UserID: "u1", History: own})
	assert.Equal(t, own, req.History)
}

func TestPrepareIgnoresStorageFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.loadErr = errors.New("redis down")
	m := NewManager(repo, nil, model.ConversationConfig{MaxTurns: 10})

	req := m.Prepare(context.Background(), model.Request{UserID: "u1", Message: "hi"})
	assert.Empty(t, req.History)
	assert.Equal(t, "hi", req.Message)
}

func TestPrepareRestoresQuizProgress(t *testing.T) {
	quiz := &memoryQuiz{progress: map[string]model.QuizProgress{
		"u1": {Index: 2, Answers: map[string]string{"style": "modern", "metal": "gold"}},
	}}
	m := NewManager(nil, quiz, model.ConversationConfig{})

	req := m.Prepare(context.Background(), model.Request{UserID: "u1"})
	assert.Equal(t, 2, req.CurrentQuestionIndex)
	assert.Equal(t, "modern", req.Answers["style"])

	req = m.Prepare(context.Background(), model.Request{UserID: "u2"})
	assert.Zero(t, req.CurrentQuestionIndex)
	assert.Nil(t, req.Answers)

	explicit := m.Prepare(context.Background(), model.Request{UserID: "u1", CurrentQuestionIndex: 1, Answers: map[string]string{"style": "classic"}})
	assert.Equal(t, 1, explicit.CurrentQuestionIndex)
	assert.Equal(t, "classic", explicit.Answers["style"])
}

func TestQuizRequestStartsOverInsteadOfResuming(t *testing.T) {
	stale := map[string]string{
		"favorite_metal": "gold", "jewelry_type": "rings",
		"stone_preference": "diamond", "style_preference": "classic",
	}
	quiz := &memoryQuiz{progress: map[string]model.QuizProgress{"u1": {Index: 4, Answers: stale}}}
	m := NewManager(nil, quiz, model.ConversationConfig{})

	req := m.Prepare(context.Background(), model.Request{UserID: "u1", Message: "I want to take the quiz"})
	assert.Zero(t, req.CurrentQuestionIndex)
	assert.Nil(t, req.Answers)

	step := handlers.Advance(req.Message, req.CurrentQuestionIndex, req.Answers)
	resp := model.Response{
		CompletedAgents: []model.HandlerID{model.HandlerQuiz},
		Result: map[model.HandlerID]model.Result{
			model.HandlerQuiz: {Data: map[string]any{
				"action":         step.Action,
				"question_index": step.Index,
				"answers":        step.Answers,
			}},
		},
	}
	m.Record(context.Background(), req, resp)
	assert.Equal(t, model.QuizProgress{Index: 0, Answers: map[string]string{}}, quiz.progress["u1"])

	resumed := m.Prepare(context.Background(), model.Request{UserID: "u1", Message: "silver"})
	assert.Zero(t, resumed.CurrentQuestionIndex)
	assert.Empty(t, resumed.Answers)
}

func TestRecordSavesMessagesAndQuizProgress(t *testing.T) {
	repo := newMemoryRepo()
	quiz := &memoryQuiz{progress: map[string]model.QuizProgress{}}
	m := NewManager(repo, quiz, model.ConversationConfig{MaxTurns: 10})

	resp := model.Response{
		Status:          model.StatusSuccess,
		CompletedAgents: []model.HandlerID{model.HandlerQuiz},
		Result: map[model.HandlerID]model.Result{
			model.HandlerQuiz: {
				Reply: "Question 2 of 5: which metal?",
				Data: map[string]any{
					"action":         handlers.ActionAskNextQuestion,
					"question_index": 1,
					"answers":        map[string]string{"style": "modern"},
				},
			},
		},
	}
	m.Record(context.Background(), model.Request{UserID: "u1", Message: "modern"}, resp)

	require.Len(t, repo.msgs["u1"], 2)
	assert.Equal(t, schema.User, repo.msgs["u1"][0].Role)
	assert.Equal(t, "Question 2 of 5: which metal?", repo.msgs["u1"][1].Content)
	assert.Equal(t, model.QuizProgress{Index: 1, Answers: map[string]string{"style": "modern"}}, quiz.progress["u1"])

	resp.Result[model.HandlerQuiz] = model.Result{
		Reply: "Your profile",
		Data:  map[string]any{"action": handlers.ActionAnalyzeProfile},
	}
	m.Record(context.Background(), model.Request{UserID: "u1", Message: "silver"}, resp)
	assert.NotContains(t, quiz.progress, "u1")
	assert.Equal(t, []string{"u1"}, quiz.cleared)
}

func TestPrimaryReply(t *testing.T) {
	resp := model.Response{
		CompletedAgents: []model.HandlerID{model.HandlerAnalytics, model.HandlerTrend},
		Result: map[model.HandlerID]model.Result{
			model.HandlerAnalytics: {Reply: "report"},
			model.HandlerTrend:     {Reply: "trends"},
		},
	}
	assert.Equal(t, "report", PrimaryReply(resp))
	assert.Empty(t, PrimaryReply(model.Response{}))
}
