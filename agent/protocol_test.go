package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStepAction(t *testing.T) {
	s, ok := parseStep(`{"thought": "need data", "action": {"name": "memory", "args": {"operation": "search", "query": "acme"}}}`)
	require.True(t, ok)
	assert.Equal(t, "need data", s.Thought)
	require.NotNil(t, s.Action)
	assert.Equal(t, "memory", s.Action.Name)
	assert.Equal(t, "search", s.Action.Args["operation"])
}

func TestParseStepFinal(t *testing.T) {
	s, ok := parseStep(`{"thought": "done", "final": "the answer"}`)
	require.True(t, ok)
	assert.Equal(t, "the answer", s.Final)
	assert.Nil(t, s.Action)
}

func TestParseStepWrappedInProse(t *testing.T) {
	text := "Sure, here is my step:\n```json\n{\"thought\": \"ok\", \"final\": \"42\"}\n```\nHope that helps."
	s, ok := parseStep(text)
	require.True(t, ok)
	assert.Equal(t, "42", s.Final)
}

func TestParseStepHandlesBracesInStrings(t *testing.T) {
	s, ok := parseStep(`{"thought": "object looks like {\"a\": 1}", "final": "x"}`)
	require.True(t, ok)
	assert.Equal(t, "x", s.Final)
}

func TestParseStepRejectsGarbage(t *testing.T) {
	for _, text := range []string{
		"just plain prose with no json",
		"{unbalanced",
		`{"thought": "neither action nor final"}`,
		`{"thought": 12, "final": []}`,
	} {
		_, ok := parseStep(text)
		assert.False(t, ok, "input: %s", text)
	}
}

func TestParseConfidence(t *testing.T) {
	text, conf := parseConfidence("The plan is sound.\nconfidence: 0.8")
	assert.Equal(t, "The plan is sound.", text)
	assert.Equal(t, 0.8, conf)

	text, conf = parseConfidence("Confidence: 0.25")
	assert.Equal(t, "", text)
	assert.Equal(t, 0.25, conf)
}

func TestParseConfidenceDefaultsToFull(t *testing.T) {
	text, conf := parseConfidence("No trailing marker here.")
	assert.Equal(t, "No trailing marker here.", text)
	assert.Equal(t, 1.0, conf)

	// Out-of-range or unparsable values are ignored, not clamped.
	_, conf = parseConfidence("answer\nconfidence: 1.7")
	assert.Equal(t, 1.0, conf)
	_, conf = parseConfidence("answer\nconfidence: high")
	assert.Equal(t, 1.0, conf)
}
