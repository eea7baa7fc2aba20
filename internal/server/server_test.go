package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelry-concierge/server/internal/agent/model"
	"github.com/jewelry-concierge/server/internal/agent/retrieval"
)

type fakeRunner struct {
	got    model.Request
	resp   model.Response
	events []model.Event
}

func (f *fakeRunner) Run(_ context.Context, req model.Request) model.Response {
	f.got = req
	return f.resp
}

func (f *fakeRunner) Stream(_ context.Context, req model.Request) <-chan model.Event {
	f.got = req
	ch := make(chan model.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch
}

type fakeRetriever struct{ got retrieval.Query }

func (f *fakeRetriever) Retrieve(_ context.Context, q retrieval.Query) model.Retrieval {
	f.got = q
	return model.Retrieval{
		Items: []model.CandidateItem{{Product: model.Product{ID: "p1", Name: "Ring"}, Score: 0.8}},
		Count: 1,
		Query: q.Text,
	}
}

func post(t *testing.T, s *Server, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	s := New(Config{}, &fakeRunner{}, nil)
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOrchestrateMapsRequest(t *testing.T) {
	runner := &fakeRunner{resp: model.Response{
		Status:          model.StatusSuccess,
		TaskType:        model.TaskType(model.HandlerCompanion),
		Result:          map[model.HandlerID]model.Result{model.HandlerCompanion: {Reply: "hi"}},
		CompletedAgents: []model.HandlerID{model.HandlerCompanion},
	}}
	s := New(Config{}, runner, nil)

	resp := post(t, s, "/api/orchestrator/u42", `{
		"message": "  hello  ",
		"task_type_override": "girlfriend",
		"conversation_history": [{"role": "user", "content": "earlier"}],
		"current_question_index": 2
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "u42", runner.got.UserID)
	assert.Equal(t, "hello", runner.got.Message)
	assert.Equal(t, "girlfriend", runner.got.TaskOverride)
	assert.Equal(t, 2, runner.got.CurrentQuestionIndex)
	require.Len(t, runner.got.History, 1)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, []any{"companion"}, out["completed_agents"])
}

func TestOrchestrateRejectsInvalidInput(t *testing.T) {
	s := New(Config{}, &fakeRunner{}, nil)

	cases := map[string]string{
		"unknown task":   `{"message": "hi", "task_type_override": "astrology"}`,
		"negative index": `{"current_question_index": -1}`,
		"bad role":       `{"conversation_history": [{"role": "system", "content": "x"}]}`,
		"malformed":      `{"message": `,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := post(t, s, "/api/orchestrator/u1", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	long := strings.Repeat("x", 129)
	resp := post(t, s, "/api/orchestrator/"+long, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStreamWritesSSEFrames(t *testing.T) {
	runner := &fakeRunner{events: []model.Event{
		{Type: model.EventStatus, Handler: model.HandlerTrend, Content: "Analyzing market trends"},
		{Type: model.EventToken, Handler: model.HandlerTrend, Content: "abc"},
		{Type: model.EventDone, Data: map[string]any{"status": "success"}},
	}}
	s := New(Config{}, runner, nil)

	resp := post(t, s, "/api/orchestrator/u1/stream", `{"message": "trends?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	frames := strings.Split(strings.TrimSuffix(string(raw), "\n\n"), "\n\n")
	require.Len(t, frames, 3)

	var last model.Event
	require.True(t, strings.HasPrefix(frames[2], "data: "))
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[2], "data: ")), &last))
	assert.Equal(t, model.EventDone, last.Type)
	assert.Contains(t, frames[1], `"agent":"trend"`)
}

func TestSearchProducts(t *testing.T) {
	ret := &fakeRetriever{}
	s := New(Config{}, &fakeRunner{}, ret)

	resp := post(t, s, "/api/products/search", `{"query": "gold ring", "limit": 3, "preferences": {"style_preference": "vintage"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gold ring", ret.got.Text)
	assert.Equal(t, 3, ret.got.Limit)
	assert.Equal(t, "vintage", ret.got.Preferences.Style)

	var out model.Retrieval
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, "p1", out.Items[0].Product.ID)

	resp = post(t, s, "/api/products/search", `{"query": ""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchProductsDisabled(t *testing.T) {
	s := New(Config{}, &fakeRunner{}, nil)
	resp := post(t, s, "/api/products/search", `{"query": "ring"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
