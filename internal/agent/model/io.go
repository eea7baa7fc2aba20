package model

// Request is one inbound message handed to the orchestrator.
type Request struct {
	UserID               string            `json:"user_id" validate:"required,max=128"`
	Message              string            `json:"message" validate:"max=10000"`
	History              []Turn            `json:"conversation_history,omitempty"`
	TaskOverride         string            `json:"task_type_override,omitempty"`
	Content              string            `json:"content,omitempty"`
	Answers              map[string]string `json:"answers,omitempty"`
	CurrentQuestionIndex int               `json:"current_question_index,omitempty" validate:"gte=0"`
	Preferences          *Preferences      `json:"preferences,omitempty"`
}

// Response is the batch output of a workflow run.
type Response struct {
	Status          Status               `json:"status"`
	TaskType        TaskType             `json:"task_type"`
	Result          map[HandlerID]Result `json:"result"`
	Error           string               `json:"error,omitempty"`
	CompletedAgents []HandlerID          `json:"completed_agents"`
}

// ErrorResponse builds a well formed response for a failed run. It never
// carries partial results.
func ErrorResponse(task TaskType, msg string) Response {
	return Response{
		Status:          StatusError,
		TaskType:        task,
		Result:          map[HandlerID]Result{},
		Error:           msg,
		CompletedAgents: []HandlerID{},
	}
}

// EventType enumerates the streamed event kinds.
type EventType string

const (
	EventStatus   EventType = "status"
	EventToken    EventType = "token"
	EventMetadata EventType = "metadata"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// Event is one streamed output element.
type Event struct {
	Type    EventType      `json:"type"`
	Handler HandlerID      `json:"agent,omitempty"`
	Content string         `json:"content,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Terminal reports whether e ends a stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}
