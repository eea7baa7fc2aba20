package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

type ConversationRepository interface {
	// AddMessage appends a message to the user's conversation history
	AddMessage(ctx context.Context, userID string, message *schema.Message) error

	// LoadHistory retrieves at most limit trailing messages (limit <= 0 loads all)
	LoadHistory(ctx context.Context, userID string, limit int) (*ConversationHistory, error)

	// ClearHistory removes all conversation history for a user
	ClearHistory(ctx context.Context, userID string) error

	// GetMessageCount returns the number of stored messages
	GetMessageCount(ctx context.Context, userID string) (int, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	UserID   string
	Messages []*schema.Message
}

// Turns converts the loaded messages to history turns, dropping empty ones.
func (h *ConversationHistory) Turns() []Turn {
	if h == nil {
		return nil
	}
	out := make([]Turn, 0, len(h.Messages))
	for _, m := range h.Messages {
		if m == nil || m.Content == "" {
			continue
		}
		out = append(out, Turn{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// Messages converts turns to eino messages, keeping user and assistant roles.
func Messages(turns []Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch schema.RoleType(t.Role) {
		case schema.User:
			out = append(out, schema.UserMessage(t.Content))
		case schema.Assistant:
			out = append(out, schema.AssistantMessage(t.Content, nil))
		}
	}
	return out
}

// QuizProgress is the persisted position of a user in the taste quiz.
type QuizProgress struct {
	Index   int               `json:"current_question_index"`
	Answers map[string]string `json:"answers"`
}

// QuizProgressStore keeps quiz progress between requests.
type QuizProgressStore interface {
	LoadQuizProgress(ctx context.Context, userID string) (*QuizProgress, error)
	SaveQuizProgress(ctx context.Context, userID string, progress QuizProgress) error
	ClearQuizProgress(ctx context.Context, userID string) error
}
