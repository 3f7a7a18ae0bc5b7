package extract

import (
	"encoding/json"
	"strings"
)

// Result is a decoded model reply. When the reply is not valid JSON,
// JSON holds the cleaned reply text and Parsed is false.
type Result struct {
	JSON   any
	Raw    string
	Parsed bool
}

// StripCodeFence removes a leading ``` or ```json marker and a trailing ```
// from a model reply.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeJSON cleans a reply and parses it, falling back to the cleaned text.
func DecodeJSON(reply string) Result {
	cleaned := StripCodeFence(reply)
	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return Result{JSON: cleaned, Raw: cleaned}
	}
	return Result{JSON: v, Raw: cleaned, Parsed: true}
}
