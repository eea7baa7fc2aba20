package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTaskType(t *testing.T) {
	cases := map[string]TaskType{
		"consultation": TaskType(HandlerConsultant),
		" Girlfriend ": TaskType(HandlerCompanion),
		"taste":        TaskType(HandlerQuiz),
		"ANALYSIS":     TaskType(HandlerAnalytics),
		"trend":        TaskType(HandlerTrend),
		"hybrid":       TaskHybrid,
	}
	for in, want := range cases {
		got, ok := ParseTaskType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseTaskType("weather")
	assert.False(t, ok)
}

func TestPlan(t *testing.T) {
	assert.Equal(t, []HandlerID{HandlerAnalytics, HandlerTrend}, TaskHybrid.Plan())
	assert.Equal(t, []HandlerID{HandlerQuiz}, TaskType(HandlerQuiz).Plan())
	assert.Equal(t, []HandlerID{DefaultHandler}, TaskUnset.Plan())
}

func TestNextPending(t *testing.T) {
	plan := []HandlerID{HandlerConsultant, HandlerTrend, HandlerAnalytics, HandlerTrend}

	next, ok := NextPending(plan, "")
	assert.True(t, ok)
	assert.Equal(t, HandlerAnalytics, next)

	next, ok = NextPending(plan, HandlerAnalytics)
	assert.True(t, ok)
	assert.Equal(t, HandlerTrend, next)

	next, ok = NextPending(plan, HandlerTrend)
	assert.True(t, ok)
	assert.Equal(t, HandlerConsultant, next)

	_, ok = NextPending(plan, HandlerConsultant)
	assert.False(t, ok)
}

func TestHandlerTerminal(t *testing.T) {
	assert.True(t, HandlerCompanion.Terminal())
	assert.True(t, HandlerQuiz.Terminal())
	assert.False(t, HandlerTrend.Terminal())
	assert.False(t, HandlerID("nope").Valid())
}
