package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/claimcheck/internal/resilience"
)

// DecodeJSON unmarshals the first JSON object found in text into out.
// Models sometimes wrap JSON in markdown fences or add a sentence around it,
// so everything outside the outermost braces is ignored.
func DecodeJSON(text string, out any) error {
	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return resilience.Malformed(fmt.Errorf("no JSON object in response: %q", truncate(text, 120)))
	}

	if err := json.Unmarshal([]byte(body[start:end+1]), out); err != nil {
		return resilience.Malformed(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
