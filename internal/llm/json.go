package llm

import (
	"encoding/json"
	"log"
	"strings"
)

// StripCodeFences removes a surrounding markdown code fence from an
// LLM response, if present.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	endIdx := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}

// ParseJSONObject parses an LLM response as a JSON object, tolerating
// markdown code fences. Returns nil if the response is not an object.
func ParseJSONObject(text string) map[string]any {
	text = StripCodeFences(text)
	if text == "" {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		log.Printf("Failed to parse LLM response as JSON object: %v", err)
		return nil
	}
	return result
}

// ParseJSONArray parses an LLM response as a JSON array, tolerating
// markdown code fences. Returns nil if the response is not an array.
func ParseJSONArray(text string) []any {
	text = StripCodeFences(text)
	if text == "" {
		return nil
	}

	var result []any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		log.Printf("Failed to parse LLM response as JSON array: %v", err)
		return nil
	}
	return result
}
