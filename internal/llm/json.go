package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeFenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// parseJSON decodes model output into T. It accepts bare JSON, JSON inside a
// code fence, and a JSON object surrounded by prose.
func parseJSON[T any](text string) (T, error) {
	var out T
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return out, fmt.Errorf("empty model response")
	}

	candidates := []string{trimmed}
	if m := codeFenceRegex.FindStringSubmatch(trimmed); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start >= 0 && end > start {
		candidates = append(candidates, trimmed[start:end+1])
	}

	var lastErr error
	for _, c := range candidates {
		var v T
		if lastErr = json.Unmarshal([]byte(c), &v); lastErr == nil {
			return v, nil
		}
	}
	return out, fmt.Errorf("parse model JSON: %w", lastErr)
}
