// Package tools holds the fixed set of read-only data queries the chat
// orchestrator advertises to the oracle. The set is a closed enumeration:
// each tool has a typed call struct and a static description, and dispatch
// is a switch, so a hallucinated tool name can never reach storage.
package tools

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
)

type Kind string

const (
	KindGetTopic      Kind = "get_topic"
	KindGetEntries    Kind = "get_entries"
	KindSearchEntries Kind = "search_entries"
	KindGetTopicStats Kind = "get_topic_stats"
	KindGetAllTopics  Kind = "get_all_topics"
)

// Spec describes one tool to the oracle. Description is sent verbatim.
type Spec struct {
	Kind        Kind
	Description string
	Required    []string
	Optional    []string
}

// Registry is the fixed, ordered tool set.
var Registry = []Spec{
	{
		Kind:        KindGetTopic,
		Description: "get_topic(topic_id): fetch one topic's id, name and creation date. Use topic_id 0 for the virtual Uncategorized topic.",
		Required:    []string{"topic_id"},
	},
	{
		Kind:        KindGetEntries,
		Description: "get_entries(topic_id, limit): fetch the most recent entries in a topic, newest first. limit defaults to 5. Use topic_id 0 for uncategorized entries.",
		Required:    []string{"topic_id"},
		Optional:    []string{"limit"},
	},
	{
		Kind:        KindSearchEntries,
		Description: "search_entries(query): find entries whose content contains the query text, case-insensitive.",
		Required:    []string{"query"},
	},
	{
		Kind:        KindGetTopicStats,
		Description: "get_topic_stats(topic_id): entry count and most recent entry timestamp for a topic.",
		Required:    []string{"topic_id"},
	},
	{
		Kind:        KindGetAllTopics,
		Description: "get_all_topics(): every topic the user has, with entry counts and a preview of the latest entry.",
	},
}

func specFor(kind Kind) (Spec, bool) {
	for _, s := range Registry {
		if s.Kind == kind {
			return s, true
		}
	}
	return Spec{}, false
}

// Call is one validated tool invocation. Exactly one variant per Kind.
type Call interface {
	Kind() Kind
}

type GetTopicCall struct{ TopicID int64 }
type GetEntriesCall struct {
	TopicID int64
	Limit   int
}
type SearchEntriesCall struct{ Query string }
type GetTopicStatsCall struct{ TopicID int64 }
type GetAllTopicsCall struct{}

func (GetTopicCall) Kind() Kind      { return KindGetTopic }
func (GetEntriesCall) Kind() Kind    { return KindGetEntries }
func (SearchEntriesCall) Kind() Kind { return KindSearchEntries }
func (GetTopicStatsCall) Kind() Kind { return KindGetTopicStats }
func (GetAllTopicsCall) Kind() Kind  { return KindGetAllTopics }

// ParseCalls validates a raw name → params mapping from the oracle into
// typed calls. Unknown tool names are dropped; calls missing a required
// parameter are dropped with a logged reason; unrecognized parameters are
// stripped by construction (only known fields are read).
func ParseCalls(raw map[string]json.RawMessage) []Call {
	var calls []Call
	// Iterate the registry, not the map, so call order is deterministic.
	for _, spec := range Registry {
		params, ok := raw[string(spec.Kind)]
		if !ok {
			continue
		}
		call, err := parseCall(spec, params)
		if err != nil {
			log.Warnf("tools: dropping %s call: %v", spec.Kind, err)
			continue
		}
		calls = append(calls, call)
	}
	for name := range raw {
		if _, ok := specFor(Kind(name)); !ok {
			log.Warnf("tools: dropping unknown tool %q requested by oracle", name)
		}
	}
	return calls
}

func parseCall(spec Spec, params json.RawMessage) (Call, error) {
	var fields struct {
		TopicID *int64  `json:"topic_id"`
		Limit   *int    `json:"limit"`
		Query   *string `json:"query"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &fields); err != nil {
			return nil, fmt.Errorf("unparseable params: %v", err)
		}
	}

	for _, req := range spec.Required {
		missing := false
		switch req {
		case "topic_id":
			missing = fields.TopicID == nil
		case "query":
			missing = fields.Query == nil || *fields.Query == ""
		}
		if missing {
			return nil, fmt.Errorf("missing required parameter %q", req)
		}
	}

	switch spec.Kind {
	case KindGetTopic:
		return GetTopicCall{TopicID: *fields.TopicID}, nil
	case KindGetEntries:
		limit := 5
		if fields.Limit != nil && *fields.Limit > 0 {
			limit = *fields.Limit
		}
		return GetEntriesCall{TopicID: *fields.TopicID, Limit: limit}, nil
	case KindSearchEntries:
		return SearchEntriesCall{Query: *fields.Query}, nil
	case KindGetTopicStats:
		return GetTopicStatsCall{TopicID: *fields.TopicID}, nil
	case KindGetAllTopics:
		return GetAllTopicsCall{}, nil
	}
	return nil, fmt.Errorf("unhandled tool kind %q", spec.Kind)
}
