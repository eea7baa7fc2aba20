package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	errx "github.com/jewelry-concierge/server/internal/core/error"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200
)

var (
	thinkBlock = regexp.MustCompile(`(?is)\[think\].*?\[/think\]|<think>.*?</think>`)
	thinkOpen  = regexp.MustCompile(`(?is)(\[think\]|<think>).*$`)
	fenceOpen  = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*")
	fenceClose = regexp.MustCompile("(?s)\\s*```\\s*$")
)

// StripThinking removes reasoning blocks some models emit before the answer.
// An unterminated block drops everything from its opening tag.
func StripThinking(s string) string {
	s = thinkBlock.ReplaceAllString(s, "")
	s = thinkOpen.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// StripFences removes an optional markdown code fence around s.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ExtractObject returns the outermost JSON object found in s.
func ExtractObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no json object")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated json object")
}

// DecodeJSON parses a model reply into T: it strips reasoning blocks and code
// fences, locates the JSON object, unmarshals it and checks that every key
// in required is present. Failures are reported as errx.ErrParse.
func DecodeJSON[T any](raw string, required ...string) (out T, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "json_parser").Msgf("panic recovered: %v", r)
			err = parseErr(fmt.Errorf("json parser panic: %v", r))
		}
	}()

	if len(raw) > maxContentLen {
		logx.Warn().
			Str("component", "json_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(raw)).
			Msg("content truncated due to size limit")
		raw = raw[:maxContentLen]
	}
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "")
	}

	body, err := ExtractObject(StripFences(StripThinking(raw)))
	if err != nil {
		return out, parseErr(fmt.Errorf("%w: %q", err, safeSnippet(raw)))
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &keys); err != nil {
		return out, parseErr(fmt.Errorf("invalid json: %w", err))
	}
	for _, k := range required {
		v, ok := keys[k]
		if !ok || string(v) == "null" {
			return out, parseErr(fmt.Errorf("missing key %q", k))
		}
	}

	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return out, parseErr(fmt.Errorf("decode: %w", err))
	}
	return out, nil
}

// DecodeOr returns the decoded value or fallback on any parse failure.
func DecodeOr[T any](raw string, fallback T, required ...string) (T, bool) {
	v, err := DecodeJSON[T](raw, required...)
	if err != nil {
		logx.Debug().Err(err).Str("component", "json_parser").Msg("using fallback value")
		return fallback, false
	}
	return v, true
}

func parseErr(err error) error {
	return errx.Wrap(errx.ErrParse, err, http.StatusUnprocessableEntity, "could not parse model output")
}

// --- helpers ---

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
