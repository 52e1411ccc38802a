package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// aiPayload is the JSON object every provider is instructed to return.
type aiPayload struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// unmarshalAIJSON parses a model reply into an aiPayload. Some models wrap
// the object in markdown code fences despite instructions, so fences are
// stripped before decoding.
func unmarshalAIJSON(raw string) (aiPayload, error) {
	var payload aiPayload

	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```JSON")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if err := json.Unmarshal([]byte(text), &payload); err == nil {
		return payload, nil
	}

	// Last resort: pull the outermost object out of surrounding prose.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err == nil {
			return payload, nil
		}
	}

	return aiPayload{}, fmt.Errorf("invalid model output")
}

// truncateText caps prompt material so oversized hints cannot blow the
// request budget.
func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
