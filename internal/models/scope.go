package models

import (
	"encoding/json"
	"fmt"
)

// ScopeKind discriminates the three topic-filter states. "All" and
// "Uncategorized" are distinct and must never collapse into one value on
// the wire.
type ScopeKind string

const (
	ScopeSpecific      ScopeKind = "topic"
	ScopeAll           ScopeKind = "all"
	ScopeUncategorized ScopeKind = "uncategorized"
)

// TopicScope is a tagged union: Specific(id) | All | Uncategorized.
// TopicID is meaningful only when Kind == ScopeSpecific.
type TopicScope struct {
	Kind    ScopeKind
	TopicID int64
}

func ScopeTopic(id int64) TopicScope { return TopicScope{Kind: ScopeSpecific, TopicID: id} }

var (
	AllTopics         = TopicScope{Kind: ScopeAll}
	UncategorizedOnly = TopicScope{Kind: ScopeUncategorized}
)

// Zero value decodes/encodes as uncategorized so an omitted scope behaves
// like the original "no topic" default.
func (s TopicScope) kindOrDefault() ScopeKind {
	if s.Kind == "" {
		return ScopeUncategorized
	}
	return s.Kind
}

type scopeJSON struct {
	Kind    ScopeKind `json:"kind"`
	TopicID *int64    `json:"topic_id,omitempty"`
}

func (s TopicScope) MarshalJSON() ([]byte, error) {
	out := scopeJSON{Kind: s.kindOrDefault()}
	if out.Kind == ScopeSpecific {
		id := s.TopicID
		out.TopicID = &id
	}
	return json.Marshal(out)
}

func (s *TopicScope) UnmarshalJSON(data []byte) error {
	var in scopeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case ScopeAll:
		*s = AllTopics
	case ScopeUncategorized, "":
		*s = UncategorizedOnly
	case ScopeSpecific:
		if in.TopicID == nil {
			return fmt.Errorf("%w: topic scope kind %q requires topic_id", ErrValidation, in.Kind)
		}
		*s = ScopeTopic(*in.TopicID)
	default:
		return fmt.Errorf("%w: unknown topic scope kind %q", ErrValidation, in.Kind)
	}
	return nil
}

// String is used in prompts and logs.
func (s TopicScope) String() string {
	switch s.kindOrDefault() {
	case ScopeAll:
		return "all topics"
	case ScopeSpecific:
		return fmt.Sprintf("topic %d", s.TopicID)
	default:
		return "uncategorized entries"
	}
}
