package model

import "strings"

// HandlerID names one of the specialized response handlers.
type HandlerID string

const (
	HandlerConsultant HandlerID = "consultant"
	HandlerCompanion  HandlerID = "companion"
	HandlerQuiz       HandlerID = "quiz"
	HandlerAnalytics  HandlerID = "analytics"
	HandlerTrend      HandlerID = "trend"
)

// HandlerPriority is the fixed routing order: conversational and terminal
// intents run before informational ones.
var HandlerPriority = []HandlerID{
	HandlerCompanion,
	HandlerQuiz,
	HandlerAnalytics,
	HandlerTrend,
	HandlerConsultant,
}

// DefaultHandler runs when nothing else matches.
const DefaultHandler = HandlerConsultant

// Valid reports whether h is one of the known handlers.
func (h HandlerID) Valid() bool {
	return priorityIndex(h) >= 0
}

// Terminal reports whether the handler always edges straight to finalize.
func (h HandlerID) Terminal() bool {
	return h == HandlerCompanion || h == HandlerQuiz
}

// Label is the human readable progress label used by the stream.
func (h HandlerID) Label() string {
	switch h {
	case HandlerConsultant:
		return "Searching the catalog and preparing recommendations"
	case HandlerCompanion:
		return "Thinking about what to say"
	case HandlerQuiz:
		return "Updating your taste profile"
	case HandlerAnalytics:
		return "Analyzing customer data"
	case HandlerTrend:
		return "Analyzing market trends"
	}
	return "Processing"
}

func priorityIndex(h HandlerID) int {
	for i, p := range HandlerPriority {
		if p == h {
			return i
		}
	}
	return -1
}

// TaskType is what the classifier (or an override) decided to run.
// It is either a handler identifier or TaskHybrid.
type TaskType string

const (
	TaskUnset  TaskType = ""
	TaskHybrid TaskType = "hybrid"
)

var taskAliases = map[string]TaskType{
	"consultant":   TaskType(HandlerConsultant),
	"consultation": TaskType(HandlerConsultant),
	"companion":    TaskType(HandlerCompanion),
	"girlfriend":   TaskType(HandlerCompanion),
	"chat":         TaskType(HandlerCompanion),
	"quiz":         TaskType(HandlerQuiz),
	"taste":        TaskType(HandlerQuiz),
	"analytics":    TaskType(HandlerAnalytics),
	"analysis":     TaskType(HandlerAnalytics),
	"trend":        TaskType(HandlerTrend),
	"trends":       TaskType(HandlerTrend),
	"hybrid":       TaskHybrid,
}

// ParseTaskType normalizes a caller or model supplied task name.
func ParseTaskType(s string) (TaskType, bool) {
	t, ok := taskAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// Plan returns the handlers a task schedules, in priority order.
func (t TaskType) Plan() []HandlerID {
	if t == TaskHybrid {
		return OrderByPriority([]HandlerID{HandlerAnalytics, HandlerTrend})
	}
	h := HandlerID(t)
	if !h.Valid() {
		return []HandlerID{DefaultHandler}
	}
	return []HandlerID{h}
}

// OrderByPriority returns the valid, de-duplicated handlers of ids sorted by
// HandlerPriority.
func OrderByPriority(ids []HandlerID) []HandlerID {
	seen := make(map[HandlerID]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	out := make([]HandlerID, 0, len(seen))
	for _, p := range HandlerPriority {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out
}

// NextPending returns the first handler of plan that comes after current in
// priority order. An empty current yields the first handler of plan.
func NextPending(plan []HandlerID, current HandlerID) (HandlerID, bool) {
	from := -1
	if current != "" {
		from = priorityIndex(current)
	}
	for _, h := range OrderByPriority(plan) {
		if priorityIndex(h) > from {
			return h, true
		}
	}
	return "", false
}

// Classification is the outcome of the task classifier.
type Classification struct {
	TaskType   TaskType `json:"task_type"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
	Strategy   string   `json:"strategy"`
}
