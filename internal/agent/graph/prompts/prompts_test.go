package prompts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelry-concierge/server/internal/agent/model"
)

func TestRenderConsultantSystem(t *testing.T) {
	out, err := RenderConsultantSystem(context.Background(), ConsultantVars{
		Currency:    "₽",
		Preferences: "- Style: classic",
		Catalog:     "Found 1 relevant products:",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "our jewelry store")
	assert.Contains(t, out, "Known customer preferences:\n- Style: classic")
	assert.Contains(t, out, "Catalog:\nFound 1 relevant products:")
}

func TestRenderConsultantSystemWithoutPreferences(t *testing.T) {
	out, err := RenderConsultantSystem(context.Background(), ConsultantVars{Catalog: "none"})
	require.NoError(t, err)
	assert.NotContains(t, out, "Known customer preferences")
}

func TestRenderQuizSystemActions(t *testing.T) {
	ask, err := RenderQuizSystem(context.Background(), QuizVars{
		Action: "ask_next_question", Total: 10, Answered: 2, Number: 3, Question: "Which stones?",
	})
	require.NoError(t, err)
	assert.Contains(t, ask, "ask question #3:\nWhich stones?")

	analyze, err := RenderQuizSystem(context.Background(), QuizVars{
		Action: "analyze_profile", Total: 10, Answered: 10, AnalyzeTool: "analyze_taste_profile",
	})
	require.NoError(t, err)
	assert.Contains(t, analyze, "Call analyze_taste_profile")
	assert.NotContains(t, analyze, "ask question")
}

func TestClassifierSystemKeepsJSONExample(t *testing.T) {
	out, err := RenderClassifierSystem(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, `{"task_type": "<handler>"`)
}

func TestUserPrompt(t *testing.T) {
	assert.Equal(t, "hi", UserPrompt(nil, "hi"))

	got := UserPrompt([]model.Turn{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hey"},
		{Role: "system", Content: "ignored"},
	}, "ring?")
	assert.Equal(t, "Conversation so far:\nCustomer: hello\nAssistant: hey\n\nCustomer: ring?", got)
}
