package handlers

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jewelry-concierge/server/internal/agent/graph/classifier"
	"github.com/jewelry-concierge/server/internal/agent/graph/prompts"
	"github.com/jewelry-concierge/server/internal/agent/graph/tools"
	"github.com/jewelry-concierge/server/internal/agent/llm"
	"github.com/jewelry-concierge/server/internal/agent/model"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// Quiz actions.
const (
	ActionAskNextQuestion = "ask_next_question"
	ActionAnalyzeProfile  = "analyze_profile"
)

// Quiz walks the customer through the fixed taste questionnaire and builds
// a taste profile once every question is answered.
type Quiz struct {
	provider llm.Provider
	maxIter  int
}

func NewQuiz(provider llm.Provider, cfg model.QuizConfig) *Quiz {
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = 5
	}
	return &Quiz{provider: provider, maxIter: cfg.MaxToolIterations}
}

func (q *Quiz) ID() model.HandlerID { return model.HandlerQuiz }

// QuizStep is the deterministic outcome of one quiz turn.
type QuizStep struct {
	Action   string
	Index    int
	Question tools.Question
	Answers  map[string]string
	Profile  *tools.TasteProfile
}

// Advance records message as the answer to the pending question and decides
// what comes next. A message asking for the quiz is never an answer: it
// starts the questionnaire over, dropping any saved position.
func Advance(message string, index int, answers map[string]string) QuizStep {
	total := tools.QuestionCount()
	answers = maps.Clone(answers)
	if answers == nil {
		answers = map[string]string{}
	}
	index = max(index, 0)

	message = strings.TrimSpace(message)
	switch {
	case index >= total:
	case OpensQuiz(message):
		index, answers = 0, map[string]string{}
	case message != "":
		answers[tools.Questions[index].ID] = message
		index++
	}

	if index >= total {
		p := tools.AnalyzeTasteProfile(answers)
		return QuizStep{Action: ActionAnalyzeProfile, Index: index, Answers: answers, Profile: &p}
	}
	question, _ := tools.QuestionAt(index)
	return QuizStep{Action: ActionAskNextQuestion, Index: index, Question: question, Answers: answers}
}

// OpensQuiz reports whether message asks to take the quiz rather than
// answer a question.
func OpensQuiz(message string) bool {
	if strings.TrimSpace(message) == "" {
		return false
	}
	c := classifier.RuleBased{}.Classify(context.Background(), message, nil)
	return c.TaskType == model.TaskType(model.HandlerQuiz)
}

func (q *Quiz) Process(ctx context.Context, snap model.Snapshot) (model.Result, error) {
	step := Advance(snap.Message(), snap.CurrentQuestionIndex(), snap.Answers())
	total := tools.QuestionCount()
	answered := len(step.Answers)

	reply := q.phrase(ctx, snap.Message(), step)

	data := map[string]any{
		"action":         step.Action,
		"response":       reply,
		"question_index": step.Index,
		"total":          total,
		"answers":        step.Answers,
	}
	if step.Action == ActionAskNextQuestion {
		data["question_id"] = step.Question.ID
		data["question"] = step.Question.Text
	}
	if step.Profile != nil {
		data["profile"] = step.Profile
	}

	return model.Result{
		Reply: reply,
		Data:  data,
		Meta: map[string]any{
			"progress": map[string]int{"answered": answered, "total": total},
		},
		Status: model.StatusSuccess,
	}, nil
}

// phrase lets the model word the turn. Any failure falls back to a
// deterministic text.
func (q *Quiz) phrase(ctx context.Context, message string, step QuizStep) string {
	fallback := quizText(step)
	if q.provider == nil {
		return fallback
	}
	log := logx.FromContext(ctx)

	system, err := prompts.RenderQuizSystem(ctx, prompts.QuizVars{
		Action:       step.Action,
		Total:        tools.QuestionCount(),
		Answered:     len(step.Answers),
		Number:       step.Index + 1,
		Question:     step.Question.Text,
		Answers:      formatAnswers(step.Answers),
		QuestionTool: tools.ToolGetNextQuestion,
		AnalyzeTool:  tools.ToolAnalyzeProfile,
	})
	if err != nil {
		return fallback
	}
	box, err := tools.NewToolbox(ctx, tools.NewNextQuestionTool(), tools.NewAnalyzeProfileTool())
	if err != nil {
		return fallback
	}

	res, err := runToolLoop(ctx, q.provider, box, message, q.maxIter, llm.WithSystem(system))
	if err != nil {
		log.Warn().Err(err).Str("action", step.Action).Msg("quiz phrasing failed; using fallback")
		return fallback
	}
	if res.Exhausted || res.Content == "" {
		return fallback
	}
	if len(res.Outputs) > 0 && res.Content == joinOutputs(res.Outputs) {
		// the model answered with raw tool output only
		return fallback
	}
	return res.Content
}

func quizText(step QuizStep) string {
	total := tools.QuestionCount()
	if step.Action == ActionAskNextQuestion {
		return fmt.Sprintf("Question %d of %d: %s", step.Index+1, total, step.Question.Text)
	}

	p := step.Profile
	var b strings.Builder
	b.WriteString("Thank you! All questions are answered. Here is your taste profile.")
	if p.Summary != "" {
		b.WriteString("\n\n" + p.Summary)
	}
	if len(p.Traits) > 0 {
		b.WriteString("\nTraits: " + strings.Join(p.Traits, ", "))
	}
	if len(p.RecommendedPieces) > 0 {
		b.WriteString("\nPieces you may love: " + strings.Join(p.RecommendedPieces, ", "))
	}
	if p.BrandRecommendation != "" {
		b.WriteString("\nMakers: " + p.BrandRecommendation)
	}
	return b.String()
}

func formatAnswers(answers map[string]string) string {
	ids := slices.Sorted(maps.Keys(answers))
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, "- "+id+": "+answers[id])
	}
	return strings.Join(lines, "\n")
}

var _ Handler = (*Quiz)(nil)
