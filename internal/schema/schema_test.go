package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchArgs struct {
	Query string  `json:"query" description:"Search query"`
	Limit int     `json:"limit,omitempty"`
	Score float64 `json:"score,omitempty"`
	Safe  bool    `json:"safe,omitempty"`
}

func TestFromStruct(t *testing.T) {
	s := FromStruct(searchArgs{})

	assert.Equal(t, "object", s["type"])

	props, ok := s["properties"].(map[string]any)
	require.True(t, ok)
	query, ok := props["query"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "Search query", query["description"])

	required, ok := s["required"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"query"}, required)
}

func TestValidateAcceptsMatchingArgs(t *testing.T) {
	s := FromStruct(searchArgs{})

	err := Validate(map[string]any{
		"query": "golang",
		"limit": 5.0,
		"score": 0.5,
		"safe":  true,
	}, s)
	assert.NoError(t, err)
}

func TestValidateMissingRequired(t *testing.T) {
	s := FromStruct(searchArgs{})

	err := Validate(map[string]any{"limit": 5.0}, s)
	require.Error(t, err)

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestValidateTypeMismatch(t *testing.T) {
	s := FromStruct(searchArgs{})

	assert.Error(t, Validate(map[string]any{"query": 42}, s))
	// Integer fields reject fractional values.
	assert.Error(t, Validate(map[string]any{"query": "x", "limit": 1.5}, s))
	// But accept integral float64 as produced by JSON decoding.
	assert.NoError(t, Validate(map[string]any{"query": "x", "limit": 2.0}, s))
}
