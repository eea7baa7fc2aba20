package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelry-concierge/server/internal/agent/model"
)

func TestDetectZodiacSign(t *testing.T) {
	cases := map[string]string{
		"03/21":      "aries",
		"04/19":      "aries",
		"1990-07-23": "leo",
		"12/21":      "sagittarius",
		"12/22":      "capricorn",
		"01/05":      "capricorn",
		"01-20":      "aquarius",
		"02/29":      "pisces",
		"13/01":      UnknownSign,
		"yesterday":  UnknownSign,
	}
	for in, want := range cases {
		assert.Equal(t, want, DetectZodiacSign(in), in)
	}
}

func TestToolboxRunsByName(t *testing.T) {
	ctx := context.Background()
	box, err := NewToolbox(ctx, NewDetectZodiacTool(), NewNextQuestionTool())
	require.NoError(t, err)
	require.Len(t, box.Infos(), 2)

	out, err := box.Run(ctx, schema.ToolCall{Function: schema.FunctionCall{Name: ToolDetectZodiacSign, Arguments: `{"birthdate":"08/01"}`}})
	require.NoError(t, err)
	assert.Contains(t, out, `"leo"`)

	out, err = box.Run(ctx, schema.ToolCall{Function: schema.FunctionCall{Name: ToolGetNextQuestion, Arguments: `{"current_index":10}`}})
	require.NoError(t, err)
	assert.Contains(t, out, `"complete"`)

	_, err = box.Run(ctx, schema.ToolCall{Function: schema.FunctionCall{Name: "nope"}})
	assert.Error(t, err)

	_, err = NewToolbox(ctx, NewDetectZodiacTool(), NewDetectZodiacTool())
	assert.Error(t, err)
}

func TestHoroscopeTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/leo/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sign":"leo","date":"2026-10-15","horoscope":"  Shine bright.  "}`))
	}))
	defer srv.Close()

	client := NewHoroscopeClient(model.CompanionConfig{HoroscopeURL: srv.URL + "/", HoroscopeTimeout: time.Second})
	box, err := NewToolbox(context.Background(), NewHoroscopeTool(client))
	require.NoError(t, err)

	out, err := box.Run(context.Background(), schema.ToolCall{Function: schema.FunctionCall{Name: ToolGetHoroscope, Arguments: `{"sign":"Leo"}`}})
	require.NoError(t, err)
	assert.Contains(t, out, "Shine bright.")
	assert.Contains(t, out, "2026-10-15")

	out, err = box.Run(context.Background(), schema.ToolCall{Function: schema.FunctionCall{Name: ToolGetHoroscope, Arguments: `{"sign":"virgo"}`}})
	require.NoError(t, err)
	assert.Contains(t, out, "unavailable")

	out, err = box.Run(context.Background(), schema.ToolCall{Function: schema.FunctionCall{Name: ToolGetHoroscope, Arguments: `{"sign":"dragon"}`}})
	require.NoError(t, err)
	assert.Contains(t, out, "unknown zodiac sign")
}

func TestAnalyzeTasteProfile(t *testing.T) {
	p := AnalyzeTasteProfile(map[string]string{
		"favorite_metal":      "Rose gold",
		"stone_preference":    "pearls",
		"style_preference":    "minimalist",
		"statement_vs_subtle": "delicate",
		"brand_attitude":      "handmade please",
	})

	assert.Equal(t, []string{"Rose gold"}, p.Metals)
	assert.Equal(t, "Minimalist", p.StyleCategory)
	assert.Equal(t, "Delicate, refined", p.OverallStyle)
	assert.Equal(t, "Handmade makers and signature pieces", p.BrandRecommendation)
	assert.Contains(t, p.Traits, "romantic, feminine")
	assert.Contains(t, p.RecommendedPieces, "Delicate heart pendants")
	assert.Contains(t, p.RecommendedPieces, "Geometric pieces")
	assert.Equal(t, "Metal: Rose gold | Style: Minimalist | Presence: Delicate, refined", p.Summary)
}

func TestQuestionAt(t *testing.T) {
	assert.Equal(t, 10, QuestionCount())
	q, ok := QuestionAt(0)
	assert.True(t, ok)
	assert.Equal(t, "favorite_metal", q.ID)
	_, ok = QuestionAt(QuestionCount())
	assert.False(t, ok)
}
