package tools

import (
	"context"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

// UnknownSign is returned for dates that cannot be parsed.
const UnknownSign = "unknown"

var ZodiacSigns = []string{
	"aries", "taurus", "gemini", "cancer", "leo", "virgo",
	"libra", "scorpio", "sagittarius", "capricorn", "aquarius", "pisces",
}

// signStarts lists the first day of every sign within the calendar year,
// starting from capricorn's January tail.
var signStarts = []struct {
	month, day int
	sign       string
}{
	{1, 20, "aquarius"},
	{2, 19, "pisces"},
	{3, 21, "aries"},
	{4, 20, "taurus"},
	{5, 21, "gemini"},
	{6, 21, "cancer"},
	{7, 23, "leo"},
	{8, 23, "virgo"},
	{9, 23, "libra"},
	{10, 23, "scorpio"},
	{11, 22, "sagittarius"},
	{12, 22, "capricorn"},
}

// DetectZodiacSign returns the sign for a birth date given as MM/DD or
// YYYY-MM-DD, or UnknownSign.
func DetectZodiacSign(birthdate string) string {
	month, day, ok := parseMonthDay(strings.TrimSpace(birthdate))
	if !ok {
		return UnknownSign
	}
	sign := "capricorn"
	for _, s := range signStarts {
		if month > s.month || (month == s.month && day >= s.day) {
			sign = s.sign
		}
	}
	return sign
}

func parseMonthDay(s string) (int, int, bool) {
	var parts []string
	switch {
	case strings.Contains(s, "-"):
		parts = strings.Split(s, "-")
		if len(parts) == 3 {
			parts = parts[1:]
		}
	case strings.Contains(s, "/"):
		parts = strings.Split(s, "/")
	}
	if len(parts) != 2 {
		return 0, 0, false
	}
	month, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	day, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, false
	}
	return month, day, true
}

type DetectZodiacInput struct {
	Birthdate string `json:"birthdate"`
}

type DetectZodiacOutput struct {
	Sign string `json:"sign"`
}

func NewDetectZodiacTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolDetectZodiacSign,
			Desc: "Detect the zodiac sign from a birth date.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"birthdate": {
					Type:     schema.String,
					Desc:     "Birth date as MM/DD or YYYY-MM-DD",
					Required: true,
				},
			}),
		},
		func(_ context.Context, in *DetectZodiacInput) (*DetectZodiacOutput, error) {
			return &DetectZodiacOutput{Sign: DetectZodiacSign(in.Birthdate)}, nil
		},
	)
}
