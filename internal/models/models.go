package models

import (
	"time"
)

// User is an account row. The password hash never leaves the store layer
// except through the auth service.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Topic groups entries. The virtual "Uncategorized" topic (UncategorizedTopicID)
// is synthesized at read time and never persisted.
type Topic struct {
	ID        int64     `db:"id" json:"id"`
	OwnerID   int64     `db:"owner_id" json:"owner_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UncategorizedTopicID is the reserved id of the virtual topic holding
// entries with no topic assignment.
const UncategorizedTopicID int64 = 0

// UncategorizedTopicName is the display name of the virtual topic.
const UncategorizedTopicName = "Uncategorized"

// Entry is a free-form text note. TopicID nil means uncategorized.
type Entry struct {
	ID        int64     `db:"id" json:"id"`
	OwnerID   int64     `db:"owner_id" json:"owner_id"`
	TopicID   *int64    `db:"topic_id" json:"topic_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ThreadStatus is the lifecycle state of a chat thread.
type ThreadStatus string

const (
	ThreadStatusActive   ThreadStatus = "active"
	ThreadStatusArchived ThreadStatus = "archived"
)

// ChatThread is the unit of conversational context.
type ChatThread struct {
	ID             int64        `db:"id" json:"id"`
	OwnerID        int64        `db:"owner_id" json:"owner_id"`
	Scope          TopicScope   `db:"-" json:"topic_scope"`
	Title          string       `db:"title" json:"title"`
	Status         ThreadStatus `db:"status" json:"status"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	LastActivityAt time.Time    `db:"last_activity_at" json:"last_activity_at"`
}

// MessageRole is the author role of a chat message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// ChatMessage is append-only within a thread; only user messages may be
// deleted afterwards.
type ChatMessage struct {
	ID        int64       `db:"id" json:"id"`
	ThreadID  int64       `db:"thread_id" json:"thread_id"`
	OwnerID   int64       `db:"owner_id" json:"owner_id"`
	Role      MessageRole `db:"role" json:"role"`
	Content   string      `db:"content" json:"content"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// --- Categorization proposal (transient, never persisted) ---

// ProposedEntry places one input entry under a proposed topic.
type ProposedEntry struct {
	EntryID        int64   `json:"entry_id"`
	CurrentTopicID *int64  `json:"current_topic_id"`
	Confidence     float64 `json:"confidence"`
}

// ProposedTopic is one bucket of a CategorizationProposal. TopicID is nil
// when IsNew is true; the apply step fills it in at creation time.
type ProposedTopic struct {
	TopicID    *int64          `json:"topic_id"`
	Name       string          `json:"name"`
	IsNew      bool            `json:"is_new"`
	Entries    []ProposedEntry `json:"entries"`
	Confidence float64         `json:"topic_confidence"`
}

// CategorizationProposal is the output of the categorization engine. The
// entry ids across Topics and UncategorizedEntries partition the input
// entry set exactly.
type CategorizationProposal struct {
	Topics               []ProposedTopic `json:"proposed_topics"`
	UncategorizedEntries []int64         `json:"uncategorized_entries"`
}

// EntryIDs returns every entry id mentioned by the proposal, topics first.
func (p *CategorizationProposal) EntryIDs() []int64 {
	var ids []int64
	for _, t := range p.Topics {
		for _, e := range t.Entries {
			ids = append(ids, e.EntryID)
		}
	}
	ids = append(ids, p.UncategorizedEntries...)
	return ids
}

// LabelScore is one ranked suggestion from the categorization engine.
type LabelScore struct {
	TopicID *int64  `json:"topic_id"`
	Label   string  `json:"label"`
	Score   float64 `json:"score"`
	IsNew   bool    `json:"is_new"`
}

// EntrySuggestion is a per-entry ranked suggestion list from quick
// categorization.
type EntrySuggestion struct {
	EntryID     int64        `json:"entry_id"`
	Suggestions []LabelScore `json:"suggestions"`
}

// TopicStats is the aggregate view a data tool reports for one topic.
type TopicStats struct {
	TopicID     int64      `json:"topic_id"`
	Name        string     `json:"name"`
	EntryCount  int        `json:"entry_count"`
	LatestEntry *time.Time `json:"latest_entry_at"`
}

// TopicOverview is one row of the get_all_topics tool result.
type TopicOverview struct {
	Topic
	EntryCount    int    `json:"entry_count"`
	LatestPreview string `json:"latest_preview,omitempty"`
}
