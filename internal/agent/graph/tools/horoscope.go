package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/jewelry-concierge/server/internal/agent/model"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// HoroscopeClient fetches daily horoscopes from a public JSON API.
type HoroscopeClient struct {
	baseURL string
	http    *http.Client
}

func NewHoroscopeClient(cfg model.CompanionConfig) *HoroscopeClient {
	return &HoroscopeClient{
		baseURL: strings.TrimRight(cfg.HoroscopeURL, "/"),
		http:    &http.Client{Timeout: cfg.HoroscopeTimeout},
	}
}

type horoscopeReply struct {
	Sign      string `json:"sign"`
	Date      string `json:"date"`
	Horoscope string `json:"horoscope"`
}

// Fetch returns the horoscope text for sign.
func (c *HoroscopeClient) Fetch(ctx context.Context, sign string) (date, text string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+sign+"/", nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("horoscope api returned status %d", resp.StatusCode)
	}

	var out horoscopeReply
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("decode horoscope: %w", err)
	}
	return out.Date, strings.TrimSpace(out.Horoscope), nil
}

type HoroscopeInput struct {
	Sign string `json:"sign"`
	Day  string `json:"day,omitempty"`
}

type HoroscopeOutput struct {
	Sign      string `json:"sign"`
	Day       string `json:"day"`
	Date      string `json:"date,omitempty"`
	Horoscope string `json:"horoscope,omitempty"`
	Message   string `json:"message,omitempty"`
}

// NewHoroscopeTool exposes the client as a tool. Service failures become a
// friendly message in the output so the model can still answer.
func NewHoroscopeTool(client *HoroscopeClient) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetHoroscope,
			Desc: "Get the daily horoscope for a zodiac sign. Never invent horoscope text; always use this tool.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"sign": {
					Type:     schema.String,
					Desc:     "Zodiac sign in English, lowercase",
					Enum:     ZodiacSigns,
					Required: true,
				},
				"day": {
					Type: schema.String,
					Desc: "Day label; the service returns the daily horoscope",
					Enum: []string{"today", "tomorrow", "yesterday"},
				},
			}),
		},
		func(ctx context.Context, in *HoroscopeInput) (*HoroscopeOutput, error) {
			sign := strings.ToLower(strings.TrimSpace(in.Sign))
			day := in.Day
			if day == "" {
				day = "today"
			}
			out := &HoroscopeOutput{Sign: sign, Day: day}
			if !slices.Contains(ZodiacSigns, sign) {
				out.Message = "unknown zodiac sign; ask the user for one of: " + strings.Join(ZodiacSigns, ", ")
				return out, nil
			}

			started := time.Now()
			date, text, err := client.Fetch(ctx, sign)
			if err != nil {
				logx.FromContext(ctx).Warn().Err(err).Str("sign", sign).Dur("elapsed", time.Since(started)).Msg("horoscope fetch failed")
				out.Message = "the horoscope service is unavailable right now"
				return out, nil
			}
			if text == "" {
				out.Message = "the horoscope service returned an empty text"
				return out, nil
			}
			out.Date, out.Horoscope = date, text
			return out, nil
		},
	)
}
