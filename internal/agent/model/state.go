package model

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Status is the lifecycle status of a workflow run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusNoData     Status = "no_data"
	StatusError      Status = "error"
)

// Terminal reports whether s is one of the final statuses.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusNoData || s == StatusError
}

// Turn is one entry of the conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is the output slot of one handler.
type Result struct {
	// Reply is the textual answer streamed as token events.
	Reply string `json:"response"`
	// Data holds the handler specific payload.
	Data map[string]any `json:"data,omitempty"`
	// Meta is the non-text part accumulated into the stream metadata event.
	Meta map[string]any `json:"metadata,omitempty"`
	// Status lets a handler report no_data instead of success.
	Status Status `json:"status,omitempty"`
}

func (r Result) clone() Result {
	r.Data = maps.Clone(r.Data)
	r.Meta = maps.Clone(r.Meta)
	return r
}

// SessionState stores per-invocation state for the workflow graph.
// Concurrency model:
//   - It is registered as graph local state via compose.WithGenLocalState.
//   - Nodes never write it directly. They read a Snapshot and return a Patch,
//     which the node's state post-handler merges with Apply.
//   - Eino serializes access inside state handlers and compose.ProcessState.
type SessionState struct {
	UserID   string
	TaskType TaskType

	Message              string
	History              []Turn
	Content              string
	Answers              map[string]string
	CurrentQuestionIndex int
	Preferences          *Preferences

	Results map[HandlerID]Result

	Status          Status
	Error           string
	AgentsToRun     []HandlerID
	CompletedAgents []HandlerID
	Step            string

	FinalResult    map[HandlerID]Result
	Classification *Classification
}

// NewSessionState creates a fresh state for one request.
func NewSessionState() *SessionState {
	return &SessionState{
		Status:  StatusPending,
		Results: map[HandlerID]Result{},
		Answers: map[string]string{},
	}
}

// Seed copies the request fields into a pending state.
func (s *SessionState) Seed(req Request) {
	s.UserID = req.UserID
	s.Message = req.Message
	s.History = slices.Clone(req.History)
	s.Content = req.Content
	s.Answers = maps.Clone(req.Answers)
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
	s.CurrentQuestionIndex = req.CurrentQuestionIndex
	if req.Preferences != nil {
		p := req.Preferences.Clone()
		s.Preferences = &p
	}
	if t, ok := ParseTaskType(req.TaskOverride); ok {
		s.TaskType = t
	}
}

// Snapshot returns a deep copy safe to read outside state handlers.
func (s *SessionState) Snapshot() Snapshot {
	cp := *s
	cp.History = slices.Clone(s.History)
	cp.Answers = maps.Clone(s.Answers)
	cp.AgentsToRun = slices.Clone(s.AgentsToRun)
	cp.CompletedAgents = slices.Clone(s.CompletedAgents)
	cp.Results = make(map[HandlerID]Result, len(s.Results))
	for k, v := range s.Results {
		cp.Results[k] = v.clone()
	}
	if s.FinalResult != nil {
		cp.FinalResult = make(map[HandlerID]Result, len(s.FinalResult))
		for k, v := range s.FinalResult {
			cp.FinalResult[k] = v.clone()
		}
	}
	if s.Preferences != nil {
		p := s.Preferences.Clone()
		cp.Preferences = &p
	}
	if s.Classification != nil {
		c := *s.Classification
		cp.Classification = &c
	}
	return Snapshot{state: cp}
}

// Snapshot is an immutable view of the session state handed to nodes.
type Snapshot struct {
	state SessionState
}

// State returns a copy of the underlying state.
func (s Snapshot) State() SessionState { return s.state }

func (s Snapshot) UserID() string               { return s.state.UserID }
func (s Snapshot) Message() string              { return s.state.Message }
func (s Snapshot) Content() string              { return s.state.Content }
func (s Snapshot) TaskType() TaskType           { return s.state.TaskType }
func (s Snapshot) Status() Status               { return s.state.Status }
func (s Snapshot) Error() string                { return s.state.Error }
func (s Snapshot) CurrentQuestionIndex() int    { return s.state.CurrentQuestionIndex }
func (s Snapshot) History() []Turn              { return slices.Clone(s.state.History) }
func (s Snapshot) Answers() map[string]string   { return maps.Clone(s.state.Answers) }
func (s Snapshot) AgentsToRun() []HandlerID     { return slices.Clone(s.state.AgentsToRun) }
func (s Snapshot) CompletedAgents() []HandlerID { return slices.Clone(s.state.CompletedAgents) }

// Preferences returns the caller supplied preferences, or nil.
func (s Snapshot) Preferences() *Preferences {
	if s.state.Preferences == nil {
		return nil
	}
	p := s.state.Preferences.Clone()
	return &p
}

// Result returns the slot of h.
func (s Snapshot) Result(h HandlerID) (Result, bool) {
	r, ok := s.state.Results[h]
	if !ok {
		return Result{}, false
	}
	return r.clone(), true
}

// RecentHistory returns at most n trailing turns.
func (s Snapshot) RecentHistory(n int) []Turn {
	h := s.state.History
	if n >= 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	return slices.Clone(h)
}

// Patch holds the fields one node changed. The engine merges it into the
// session state; a node never mutates the state itself.
type Patch struct {
	Node string

	TaskType       TaskType
	Classification *Classification
	AgentsToRun    []HandlerID

	// Handler and Result set the handler's slot and mark it completed.
	Handler HandlerID
	Result  *Result

	Status Status
	Err    string

	FinalResult map[HandlerID]Result
}

// Failed builds the patch recorded when a node fails.
func Failed(node string, err error) Patch {
	return Patch{Node: node, Status: StatusError, Err: err.Error()}
}

// Apply merges p into s. It refuses patches that would break the state
// invariants: agents_to_run is written once, completed agents only grow,
// and a result slot exists only for completed handlers.
func (s *SessionState) Apply(p Patch) error {
	if p.Node != "" {
		s.Step = p.Node
	}
	if p.TaskType != TaskUnset {
		s.TaskType = p.TaskType
	}
	if p.Classification != nil {
		c := *p.Classification
		s.Classification = &c
	}
	if p.AgentsToRun != nil {
		if s.AgentsToRun != nil {
			return fmt.Errorf("node %q: agents_to_run is already set", p.Node)
		}
		s.AgentsToRun = slices.Clone(p.AgentsToRun)
	}
	if p.Result != nil {
		if !p.Handler.Valid() {
			return fmt.Errorf("node %q: result for unknown handler %q", p.Node, p.Handler)
		}
		if slices.Contains(s.CompletedAgents, p.Handler) {
			return fmt.Errorf("node %q: handler %q already completed", p.Node, p.Handler)
		}
		s.Results[p.Handler] = p.Result.clone()
		s.CompletedAgents = append(s.CompletedAgents, p.Handler)
	}
	if p.Err != "" {
		if s.Error == "" {
			s.Error = p.Err
		} else if !strings.Contains(s.Error, p.Err) {
			s.Error = s.Error + "; " + p.Err
		}
	}
	switch {
	case p.Status == "":
	case s.Status == StatusError:
		// error is sticky
	default:
		s.Status = p.Status
	}
	if p.FinalResult != nil {
		s.FinalResult = make(map[HandlerID]Result, len(p.FinalResult))
		for k, v := range p.FinalResult {
			s.FinalResult[k] = v.clone()
		}
	}
	return nil
}

// TerminalStatus derives the final status from the recorded results.
func (s Snapshot) TerminalStatus() Status {
	if s.state.Status == StatusError || s.state.Error != "" {
		return StatusError
	}
	if len(s.state.CompletedAgents) == 0 {
		return StatusNoData
	}
	for _, h := range s.state.CompletedAgents {
		if s.state.Results[h].Status != StatusNoData {
			return StatusSuccess
		}
	}
	return StatusNoData
}

// CollectResults returns exactly the slots of the completed handlers.
func (s Snapshot) CollectResults() map[HandlerID]Result {
	out := make(map[HandlerID]Result, len(s.state.CompletedAgents))
	for _, h := range s.state.CompletedAgents {
		if r, ok := s.state.Results[h]; ok {
			out[h] = r.clone()
		}
	}
	return out
}
