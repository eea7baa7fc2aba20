package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jewelry-concierge/server/internal/agent/model"
	errx "github.com/jewelry-concierge/server/internal/core/error"
)

type TurnDTO struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"max=10000"`
}

type OrchestratorRequest struct {
	Message              string             `json:"message" validate:"max=10000"`
	ConversationHistory  []TurnDTO          `json:"conversation_history" validate:"max=100,dive"`
	TaskTypeOverride     string             `json:"task_type_override" validate:"omitempty,task_type"`
	Content              string             `json:"content" validate:"max=100000"`
	Answers              map[string]string  `json:"answers"`
	CurrentQuestionIndex int                `json:"current_question_index" validate:"gte=0"`
	Preferences          *model.Preferences `json:"preferences"`
}

func (r OrchestratorRequest) toModel(userID string) model.Request {
	var history []model.Turn
	for _, t := range r.ConversationHistory {
		history = append(history, model.Turn{Role: t.Role, Content: t.Content})
	}
	return model.Request{
		UserID:               userID,
		Message:              strings.TrimSpace(r.Message),
		History:              history,
		TaskOverride:         r.TaskTypeOverride,
		Content:              r.Content,
		Answers:              r.Answers,
		CurrentQuestionIndex: r.CurrentQuestionIndex,
		Preferences:          r.Preferences,
	}
}

type SearchRequest struct {
	Query          string             `json:"query" validate:"required,max=1000"`
	Limit          int                `json:"limit" validate:"gte=0,lte=50"`
	Preferences    *model.Preferences `json:"preferences"`
	IncludeContext bool               `json:"include_context"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("task_type", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseTaskType(fl.Field().String())
		return ok
	})
	return v
}

// validateRequest reports the first failing field as an invalid input error.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return errx.Wrap(errx.ErrInvalidInput, err, http.StatusBadRequest,
			fmt.Sprintf("invalid field %s: failed %s", fe.Field(), fe.Tag()))
	}
	return errx.Wrap(errx.ErrInvalidInput, err, http.StatusBadRequest, "invalid request")
}

func validateUserID(userID string) error {
	if err := validate.Var(userID, "required,max=128"); err != nil {
		return errx.Wrap(errx.ErrInvalidInput, err, http.StatusBadRequest, "invalid user_id")
	}
	return nil
}
