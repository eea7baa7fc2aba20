package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jewelry-concierge/server/internal/agent/graph/prompts"
	"github.com/jewelry-concierge/server/internal/agent/graph/tools"
	"github.com/jewelry-concierge/server/internal/agent/llm"
	"github.com/jewelry-concierge/server/internal/agent/model"
	errx "github.com/jewelry-concierge/server/internal/core/error"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

const companionFallback = "I'm here with you. Tell me a little more about how your day is going?"

// Companion is the friendly small-talk handler. It can detect a zodiac
// sign from a birth date and fetch the daily horoscope.
type Companion struct {
	provider     llm.Provider
	horoscope    *tools.HoroscopeClient
	maxIter      int
	historyTurns int
}

func NewCompanion(provider llm.Provider, horoscope *tools.HoroscopeClient, cfg model.CompanionConfig, historyTurns int) *Companion {
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = 3
	}
	if historyTurns <= 0 {
		historyTurns = 5
	}
	return &Companion{provider: provider, horoscope: horoscope, maxIter: cfg.MaxToolIterations, historyTurns: historyTurns}
}

func (c *Companion) ID() model.HandlerID { return model.HandlerCompanion }

func (c *Companion) Process(ctx context.Context, snap model.Snapshot) (model.Result, error) {
	if c.provider == nil {
		return model.Result{}, errx.WrapProvider(errNoProvider)
	}

	history := snap.RecentHistory(c.historyTurns)
	known := mentionedSign(snap.Message(), history)

	system, err := prompts.RenderCompanionSystem(ctx, prompts.CompanionVars{
		HoroscopeTool: tools.ToolGetHoroscope,
		ZodiacTool:    tools.ToolDetectZodiacSign,
		ZodiacSign:    known,
	})
	if err != nil {
		return model.Result{}, err
	}

	box, err := c.toolbox(ctx)
	if err != nil {
		return model.Result{}, err
	}

	res, err := runToolLoop(ctx, c.provider, box, snap.Message(), c.maxIter,
		llm.WithSystem(system), llm.WithContext(model.Messages(history)))
	if err != nil {
		return model.Result{}, err
	}

	reply := res.Content
	if res.Exhausted || reply == "" {
		logx.FromContext(ctx).Warn().Int("iterations", c.maxIter).Msg("companion tool loop exhausted")
		reply = companionFallback
	}

	sign := known
	if s := signFromTools(res.Outputs); s != "" {
		sign = s
	}

	data := map[string]any{"tools_used": res.ToolsUsed()}
	if sign != "" {
		data["zodiac_sign"] = sign
	}
	return model.Result{Reply: reply, Data: data, Status: model.StatusSuccess}, nil
}

func (c *Companion) toolbox(ctx context.Context) (*tools.Toolbox, error) {
	if c.horoscope == nil {
		return tools.NewToolbox(ctx, tools.NewDetectZodiacTool())
	}
	return tools.NewToolbox(ctx, tools.NewDetectZodiacTool(), tools.NewHoroscopeTool(c.horoscope))
}

// mentionedSign returns the last zodiac sign named by the customer.
func mentionedSign(message string, history []model.Turn) string {
	texts := []string{message}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			texts = append(texts, history[i].Content)
		}
	}
	for _, text := range texts {
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !(r >= 'a' && r <= 'z')
		})
		for _, w := range words {
			for _, s := range tools.ZodiacSigns {
				if w == s {
					return s
				}
			}
		}
	}
	return ""
}

func signFromTools(outs []toolOutput) string {
	for i := len(outs) - 1; i >= 0; i-- {
		switch outs[i].Name {
		case tools.ToolDetectZodiacSign, tools.ToolGetHoroscope:
			var v struct {
				Sign string `json:"sign"`
			}
			if json.Unmarshal([]byte(outs[i].Output), &v) == nil && v.Sign != "" && v.Sign != tools.UnknownSign {
				return v.Sign
			}
		}
	}
	return ""
}

var _ Handler = (*Companion)(nil)
