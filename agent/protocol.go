package agent

import (
	"encoding/json"
	"strconv"
	"strings"
)

// step is the JSON object the model must emit on every loop turn.
// Exactly one of Action or Final is set.
type step struct {
	Thought string      `json:"thought"`
	Action  *stepAction `json:"action,omitempty"`
	Final   string      `json:"final,omitempty"`
}

type stepAction struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// parseStep extracts the step object from a model reply. Models often
// wrap JSON in code fences or prose, so the parser scans for the first
// balanced object. A reply with no parsable object returns ok=false;
// the loop feeds that back as an observation rather than failing.
func parseStep(text string) (step, bool) {
	candidate := extractJSONObject(text)
	if candidate == "" {
		return step{}, false
	}

	var s step
	if err := json.Unmarshal([]byte(candidate), &s); err != nil {
		return step{}, false
	}
	if s.Action == nil && s.Final == "" {
		return step{}, false
	}
	return s, true
}

// extractJSONObject returns the first balanced top-level JSON object in
// text, respecting string literals and escapes.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
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
				return text[start : i+1]
			}
		}
	}
	return ""
}

// parseConfidence reads a trailing "confidence: <0..1>" line from a
// model reply and returns the remaining text. A missing or unparsable
// line yields confidence 1.0, treating silence as full confidence.
func parseConfidence(text string) (string, float64) {
	trimmed := strings.TrimRight(text, " \t\n")
	idx := strings.LastIndexByte(trimmed, '\n')
	last := trimmed
	if idx >= 0 {
		last = trimmed[idx+1:]
	}

	lower := strings.ToLower(strings.TrimSpace(last))
	if !strings.HasPrefix(lower, "confidence:") {
		return text, 1.0
	}

	value := strings.TrimSpace(lower[len("confidence:"):])
	conf, err := strconv.ParseFloat(value, 64)
	if err != nil || conf < 0 || conf > 1 {
		return text, 1.0
	}

	if idx < 0 {
		return "", conf
	}
	return strings.TrimRight(trimmed[:idx], " \t\n"), conf
}
