package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelry-concierge/server/internal/agent/graph/conversations"
	"github.com/jewelry-concierge/server/internal/agent/handlers"
	"github.com/jewelry-concierge/server/internal/agent/model"
	errx "github.com/jewelry-concierge/server/internal/core/error"
)

type recorder struct {
	mu    sync.Mutex
	order []model.HandlerID
}

func (r *recorder) add(id model.HandlerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, id)
}

func (r *recorder) list() []model.HandlerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.HandlerID(nil), r.order...)
}

type stubHandler struct {
	id     model.HandlerID
	reply  string
	meta   map[string]any
	status model.Status
	err    error
	panics bool
	block  bool
	rec    *recorder
}

func (h *stubHandler) ID() model.HandlerID { return h.id }

func (h *stubHandler) Process(ctx context.Context, snap model.Snapshot) (model.Result, error) {
	if h.rec != nil {
		h.rec.add(h.id)
	}
	if h.panics {
		panic("boom")
	}
	if h.block {
		<-ctx.Done()
		return model.Result{}, ctx.Err()
	}
	if h.err != nil {
		return model.Result{}, h.err
	}
	return model.Result{
		Reply:  h.reply,
		Data:   map[string]any{"message": snap.Message()},
		Meta:   h.meta,
		Status: h.status,
	}, nil
}

type fixedClassifier model.TaskType

func (c fixedClassifier) Classify(context.Context, string, []model.Turn) model.Classification {
	return model.Classification{TaskType: model.TaskType(c), Confidence: 0.9, Strategy: "fixed"}
}

func stubSet(rec *recorder, overrides ...*stubHandler) handlers.Set {
	set := handlers.Set{}
	for _, id := range model.HandlerPriority {
		set[id] = &stubHandler{id: id, reply: string(id) + " reply", rec: rec}
	}
	for _, h := range overrides {
		h.rec = rec
		set[h.id] = h
	}
	return set
}

func newOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	o, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return o
}

func TestRunHybridRunsHandlersInPriorityOrder(t *testing.T) {
	rec := &recorder{}
	o := newOrchestrator(t, Config{Handlers: stubSet(rec)})

	resp := o.Run(context.Background(), model.Request{UserID: "u1", Message: "report", TaskOverride: "hybrid"})

	assert.Equal(t, model.StatusSuccess, resp.Status)
	assert.Equal(t, model.TaskHybrid, resp.TaskType)
	assert.Equal(t, []model.HandlerID{model.HandlerAnalytics, model.HandlerTrend}, rec.list())
	assert.Equal(t, []model.HandlerID{model.HandlerAnalytics, model.HandlerTrend}, resp.CompletedAgents)
	require.Len(t, resp.Result, 2)
	assert.Equal(t, "trend reply", resp.Result[model.HandlerTrend].Reply)
	assert.Empty(t, resp.Error)
}

func TestRunIsDeterministic(t *testing.T) {
	o := newOrchestrator(t, Config{Classifier: fixedClassifier(model.HandlerCompanion), Handlers: stubSet(nil)})

	first := o.Run(context.Background(), model.Request{UserID: "u1", Message: "hi"})
	for range 5 {
		again := o.Run(context.Background(), model.Request{UserID: "u1", Message: "hi"})
		assert.Equal(t, first, again)
	}
	assert.Equal(t, []model.HandlerID{model.HandlerCompanion}, first.CompletedAgents)
	assert.Equal(t, "hi", first.Result[model.HandlerCompanion].Data["message"])
}

func TestRunOverrideBeatsClassifier(t *testing.T) {
	rec := &recorder{}
	o := newOrchestrator(t, Config{Classifier: fixedClassifier(model.HandlerCompanion), Handlers: stubSet(rec)})

	resp := o.Run(context.Background(), model.Request{UserID: "u1", Message: "hi", TaskOverride: "quiz"})
	assert.Equal(t, model.TaskType(model.HandlerQuiz), resp.TaskType)
	assert.Equal(t, []model.HandlerID{model.HandlerQuiz}, rec.list())
}

func TestRunAllNoDataIsNoData(t *testing.T) {
	o := newOrchestrator(t, Config{Handlers: stubSet(nil,
		&stubHandler{id: model.HandlerTrend, reply: "nothing", status: model.StatusNoData},
	)})

	resp := o.Run(context.Background(), model.Request{UserID: "u1", TaskOverride: "trend"})
	assert.Equal(t, model.StatusNoData, resp.Status)
	assert.Contains(t, resp.Result, model.HandlerTrend)
}

func TestRunHandlerErrorStopsAtFinalize(t *testing.T) {
	rec := &recorder{}
	o := newOrchestrator(t, Config{Handlers: stubSet(rec,
		&stubHandler{id: model.HandlerAnalytics, err: errors.New("database offline")},
	)})

	resp := o.Run(context.Background(), model.Request{UserID: "u1", TaskOverride: "hybrid"})

	assert.Equal(t, model.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "analytics")
	assert.Contains(t, resp.Error, "database offline")
	assert.Equal(t, []model.HandlerID{model.HandlerAnalytics}, rec.list())
	assert.Empty(t, resp.CompletedAgents)
	assert.Empty(t, resp.Result)
}

func TestRunRecoversHandlerPanic(t *testing.T) {
	o := newOrchestrator(t, Config{Handlers: stubSet(nil,
		&stubHandler{id: model.HandlerCompanion, panics: true},
	)})

	resp := o.Run(context.Background(), model.Request{UserID: "u1", TaskOverride: "companion"})
	assert.Equal(t, model.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "internal error")
	assert.NotNil(t, resp.Result)
	assert.NotNil(t, resp.CompletedAgents)
}

func TestRunMissingHandlerFails(t *testing.T) {
	set := stubSet(nil)
	delete(set, model.HandlerConsultant)
	o := newOrchestrator(t, Config{Handlers: set})

	resp := o.Run(context.Background(), model.Request{UserID: "u1", TaskOverride: "consultant"})
	assert.Equal(t, model.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "not configured")
}

func TestRunTimeoutReturnsErrorWithoutPartials(t *testing.T) {
	o := newOrchestrator(t, Config{
		Handlers: stubSet(nil, &stubHandler{id: model.HandlerTrend, block: true}),
		Graph:    model.GraphConfig{RunTimeout: 50 * time.Millisecond},
	})

	resp := o.Run(context.Background(), model.Request{UserID: "u1", TaskOverride: "hybrid"})
	assert.Equal(t, model.StatusError, resp.Status)
	assert.Equal(t, errx.TimeoutMessage, resp.Error)
	assert.Empty(t, resp.Result)
	assert.Empty(t, resp.CompletedAgents)
}

func collect(t *testing.T, ch <-chan model.Event) []model.Event {
	t.Helper()
	var out []model.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not close")
			return out
		}
	}
}

func terminalCount(events []model.Event) int {
	n := 0
	for _, ev := range events {
		if ev.Terminal() {
			n++
		}
	}
	return n
}

func TestStreamEmitsStatusTokensMetadataDone(t *testing.T) {
	o := newOrchestrator(t, Config{
		Handlers: stubSet(nil, &stubHandler{
			id:    model.HandlerCompanion,
			reply: "hello world",
			meta:  map[string]any{"zodiac_sign": "leo"},
		}),
		Stream: model.StreamConfig{ChunkSize: 3},
	})

	events := collect(t, o.Stream(context.Background(), model.Request{UserID: "u1", TaskOverride: "companion"}))

	require.Len(t, events, 7)
	assert.Equal(t, model.EventStatus, events[0].Type)
	assert.Equal(t, model.HandlerCompanion.Label(), events[0].Content)

	var text string
	for _, ev := range events[1:5] {
		assert.Equal(t, model.EventToken, ev.Type)
		assert.Equal(t, model.HandlerCompanion, ev.Handler)
		text += ev.Content
	}
	assert.Equal(t, "hello world", text)
	assert.Equal(t, "hel", events[1].Content)

	meta := events[5]
	assert.Equal(t, model.EventMetadata, meta.Type)
	assert.Equal(t, "leo", meta.Data["zodiac_sign"])
	assert.Equal(t, []model.HandlerID{model.HandlerCompanion}, meta.Data["completed_agents"])

	assert.Equal(t, model.EventDone, events[6].Type)
	assert.Equal(t, 1, terminalCount(events))
}

func TestStreamHybridOrdersHandlers(t *testing.T) {
	o := newOrchestrator(t, Config{Handlers: stubSet(nil), Stream: model.StreamConfig{ChunkSize: 100}})

	events := collect(t, o.Stream(context.Background(), model.Request{UserID: "u1", TaskOverride: "hybrid"}))

	var statuses []model.HandlerID
	for _, ev := range events {
		if ev.Type == model.EventStatus {
			statuses = append(statuses, ev.Handler)
		}
	}
	assert.Equal(t, []model.HandlerID{model.HandlerAnalytics, model.HandlerTrend}, statuses)
	assert.Equal(t, model.EventDone, events[len(events)-1].Type)
	assert.Equal(t, 1, terminalCount(events))
}

func TestStreamHandlerErrorEndsWithError(t *testing.T) {
	o := newOrchestrator(t, Config{Handlers: stubSet(nil,
		&stubHandler{id: model.HandlerQuiz, err: errors.New("bad answers")},
	)})

	events := collect(t, o.Stream(context.Background(), model.Request{UserID: "u1", TaskOverride: "quiz"}))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, model.EventError, last.Type)
	assert.Contains(t, last.Content, "bad answers")
	assert.Equal(t, 1, terminalCount(events))
	for _, ev := range events {
		assert.NotEqual(t, model.EventToken, ev.Type)
	}
}

func TestStreamTimeoutEmitsOnlyError(t *testing.T) {
	o := newOrchestrator(t, Config{
		Handlers: stubSet(nil, &stubHandler{id: model.HandlerCompanion, block: true}),
		Graph:    model.GraphConfig{RunTimeout: 50 * time.Millisecond},
	})

	events := collect(t, o.Stream(context.Background(), model.Request{UserID: "u1", TaskOverride: "companion"}))
	require.Len(t, events, 1)
	assert.Equal(t, model.EventError, events[0].Type)
	assert.Equal(t, errx.TimeoutMessage, events[0].Content)
}

func TestEmitterDoesNotBlockOnSlowConsumer(t *testing.T) {
	out := make(chan model.Event)
	em := newEmitter(context.Background(), out, 1)
	reply := strings.Repeat("x", 500)

	returned := make(chan struct{})
	go func() {
		em.HandlerCompleted(context.Background(), model.HandlerConsultant, model.Result{Reply: reply})
		em.finish(model.Response{Status: model.StatusSuccess, CompletedAgents: []model.HandlerID{model.HandlerConsultant}}, true)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("emitter blocked while nobody was reading")
	}

	events := collect(t, out)
	require.Len(t, events, 1+500+2)
	assert.Equal(t, model.EventStatus, events[0].Type)
	assert.Equal(t, model.EventMetadata, events[501].Type)
	assert.Equal(t, model.EventDone, events[502].Type)

	em.HandlerCompleted(context.Background(), model.HandlerTrend, model.Result{Reply: "late"})
}

func TestEmitterStopsWhenConsumerLeaves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan model.Event)
	em := newEmitter(ctx, out, 3)

	em.HandlerCompleted(ctx, model.HandlerCompanion, model.Result{Reply: "nobody listens"})
	cancel()

	select {
	case _, ok := <-out:
		for ok {
			_, ok = <-out
		}
	case <-time.After(time.Second):
		t.Fatal("stream was not closed after cancellation")
	}
	em.finish(model.Response{Status: model.StatusSuccess}, true)
}

func TestChunks(t *testing.T) {
	assert.Equal(t, []string{"ab", "cd", "e"}, Chunks("abcde", 2))
	assert.Equal(t, []string{"кол", "ьцо"}, Chunks("кольцо", 3))
	assert.Empty(t, Chunks("", 3))
	assert.Equal(t, []string{"a", "b"}, Chunks("ab", 0))
}

type memoryRepo struct {
	mu   sync.Mutex
	msgs []*schema.Message
}

func (r *memoryRepo) AddMessage(_ context.Context, _ string, m *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *memoryRepo) LoadHistory(_ context.Context, userID string, _ int) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &model.ConversationHistory{UserID: userID, Messages: append([]*schema.Message(nil), r.msgs...)}, nil
}

func (r *memoryRepo) ClearHistory(context.Context, string) error { return nil }

func (r *memoryRepo) GetMessageCount(context.Context, string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs), nil
}

type historyProbe struct {
	stubHandler
	seen []model.Turn
}

func (h *historyProbe) Process(ctx context.Context, snap model.Snapshot) (model.Result, error) {
	h.seen = snap.History()
	return h.stubHandler.Process(ctx, snap)
}

func TestRunRecordsConversation(t *testing.T) {
	repo := &memoryRepo{}
	probe := &historyProbe{stubHandler: stubHandler{id: model.HandlerCompanion, reply: "hi there"}}
	set := stubSet(nil)
	set[model.HandlerCompanion] = probe

	o := newOrchestrator(t, Config{
		Handlers:      set,
		Conversations: conversations.NewManager(repo, nil, model.ConversationConfig{MaxTurns: 10}),
	})

	o.Run(context.Background(), model.Request{UserID: "u1", Message: "hello", TaskOverride: "companion"})
	require.Len(t, repo.msgs, 2)
	assert.Equal(t, "hi there", repo.msgs[1].Content)

	o.Run(context.Background(), model.Request{UserID: "u1", Message: "again", TaskOverride: "companion"})
	assert.Equal(t, []model.Turn{{Role: "user", Content: "hello"}, {Role: "assistant", Content: "hi there"}}, probe.seen)
}
