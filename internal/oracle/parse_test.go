package oracle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, true},
		{"prose wrapped", `Sure! Here is the JSON you asked for: {"a": 1} Hope it helps.`, `{"a": 1}`, true},
		{"nested braces", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`, true},
		{"brace inside string", `{"a": "closing } brace"}`, `{"a": "closing } brace"}`, true},
		{"escaped quote in string", `{"a": "quote \" then } brace"}`, `{"a": "quote \" then } brace"}`, true},
		{"unbalanced", `{"a": 1`, "", false},
		{"no object", `just text`, "", false},
		{"balanced but invalid", `{not json}`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseScoreVector(t *testing.T) {
	scores, ok := parseScoreVector(`Scores: [0.2, 0.9, 0.5]`, 3)
	require.True(t, ok)
	assert.Equal(t, []float64{0.2, 0.9, 0.5}, scores)
}

func TestParseScoreVectorClampsOutOfRange(t *testing.T) {
	scores, ok := parseScoreVector(`[-0.5, 1.5, 0.3]`, 3)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1, 0.3}, scores)
}

func TestParseScoreVectorLengthMismatch(t *testing.T) {
	_, ok := parseScoreVector(`[0.2, 0.9]`, 3)
	assert.False(t, ok)
}

func TestParseScoreVectorGarbage(t *testing.T) {
	for _, raw := range []string{"", "no array here", `["a", "b"]`, `[0.2, 0.9`} {
		_, ok := parseScoreVector(raw, 2)
		assert.False(t, ok, "raw %q should not parse", raw)
	}
}

func TestNonEmptyLines(t *testing.T) {
	lines := nonEmptyLines("- First Topic\n\n  * Second Topic  \n\"Third Topic\"\n")
	assert.Equal(t, []string{"First Topic", "Second Topic", "Third Topic"}, lines)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(math.NaN()))
	assert.Equal(t, 0.0, clamp01(-3))
	assert.Equal(t, 1.0, clamp01(42))
	assert.Equal(t, 0.5, clamp01(0.5))
}
