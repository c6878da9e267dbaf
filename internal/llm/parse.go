package llm

import (
	"encoding/json"
	"strings"
)

// ParseResult is the outcome of best-effort JSON extraction from free-form
// provider text. It is either Ok with the raw object, or a fallback with a
// reason. Extraction never fails with an error; call sites branch on OK.
type ParseResult struct {
	OK     bool
	Raw    json.RawMessage
	Reason string
}

// ExtractJSON finds the first balanced JSON object embedded in text and
// verifies it parses. Providers wrap JSON in prose or markdown fences more
// often than not, so nothing is assumed about the surrounding text.
func ExtractJSON(text string) ParseResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return ParseResult{Reason: "empty response"}
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ParseResult{Reason: "no JSON object in response"}
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				candidate := text[start : i+1]
				if !json.Valid([]byte(candidate)) {
					return ParseResult{Reason: "malformed JSON object"}
				}
				return ParseResult{OK: true, Raw: json.RawMessage(candidate)}
			}
		}
	}
	return ParseResult{Reason: "unbalanced JSON object"}
}
