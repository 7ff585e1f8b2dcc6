package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawParams(t *testing.T, s string) json.RawMessage {
	t.Helper()
	require.True(t, json.Valid([]byte(s)))
	return json.RawMessage(s)
}

func TestParseCallsValidCalls(t *testing.T) {
	calls := ParseCalls(map[string]json.RawMessage{
		"get_topic":      rawParams(t, `{"topic_id": 3}`),
		"search_entries": rawParams(t, `{"query": "lisbon"}`),
		"get_all_topics": rawParams(t, `{}`),
	})
	require.Len(t, calls, 3)

	// Registry order, not map order.
	assert.Equal(t, GetTopicCall{TopicID: 3}, calls[0])
	assert.Equal(t, SearchEntriesCall{Query: "lisbon"}, calls[1])
	assert.Equal(t, GetAllTopicsCall{}, calls[2])
}

func TestParseCallsDropsUnknownTools(t *testing.T) {
	calls := ParseCalls(map[string]json.RawMessage{
		"delete_everything": rawParams(t, `{}`),
		"get_topic":         rawParams(t, `{"topic_id": 1}`),
	})
	require.Len(t, calls, 1)
	assert.Equal(t, KindGetTopic, calls[0].Kind())
}

func TestParseCallsDropsMissingRequiredParams(t *testing.T) {
	calls := ParseCalls(map[string]json.RawMessage{
		"get_topic":      rawParams(t, `{}`),
		"search_entries": rawParams(t, `{"query": ""}`),
	})
	assert.Empty(t, calls)
}

func TestParseCallsStripsExtraParams(t *testing.T) {
	calls := ParseCalls(map[string]json.RawMessage{
		"get_entries": rawParams(t, `{"topic_id": 2, "surprise": true, "limit": 7}`),
	})
	require.Len(t, calls, 1)
	assert.Equal(t, GetEntriesCall{TopicID: 2, Limit: 7}, calls[0])
}

func TestParseCallsGetEntriesDefaultLimit(t *testing.T) {
	calls := ParseCalls(map[string]json.RawMessage{
		"get_entries": rawParams(t, `{"topic_id": 2, "limit": -1}`),
	})
	require.Len(t, calls, 1)
	assert.Equal(t, GetEntriesCall{TopicID: 2, Limit: 5}, calls[0])
}

func TestParseCallsUnparseableParams(t *testing.T) {
	calls := ParseCalls(map[string]json.RawMessage{
		"get_topic": json.RawMessage(`{"topic_id": "three"}`),
	})
	assert.Empty(t, calls)
}

func TestRegistryIsClosed(t *testing.T) {
	seen := make(map[Kind]bool)
	for _, spec := range Registry {
		assert.False(t, seen[spec.Kind], "duplicate tool %s", spec.Kind)
		seen[spec.Kind] = true
		assert.NotEmpty(t, spec.Description)
	}
	assert.Len(t, Registry, 5)
}
