package store

import (
	"context"

	"muninn/internal/models"

	"github.com/hibiken/asynq"
)

// --- Job Client ---

type JobClient interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error
	EnqueueThreadTitleJob(ctx context.Context, ownerID, threadID int64) error
	Close() error
}

// --- User Store ---

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// --- Topic Store ---

type TopicStore interface {
	CreateTopic(ctx context.Context, topic *models.Topic) error
	GetTopic(ctx context.Context, ownerID, id int64) (*models.Topic, error)
	ListTopics(ctx context.Context, ownerID int64) ([]*models.Topic, error)
	UpdateTopic(ctx context.Context, topic *models.Topic) error
	DeleteTopic(ctx context.Context, ownerID, id int64) error
	// ListTopicOverviews returns every topic the owner has, with entry counts
	// and the most recent entry's content for previews.
	ListTopicOverviews(ctx context.Context, ownerID int64) ([]*models.TopicOverview, error)
	GetTopicStats(ctx context.Context, ownerID, topicID int64) (*models.TopicStats, error)
}

// --- Entry Store ---

// EntryFilter narrows ListEntries. Scope defaults to all topics when
// unset by callers that pass the zero value explicitly through ScopeAll.
type EntryFilter struct {
	Scope  models.TopicScope
	Limit  int
	Offset int
}

type EntryStore interface {
	CreateEntry(ctx context.Context, entry *models.Entry) error
	GetEntry(ctx context.Context, ownerID, id int64) (*models.Entry, error)
	GetEntriesByIDs(ctx context.Context, ownerID int64, ids []int64) ([]*models.Entry, error)
	ListEntries(ctx context.Context, ownerID int64, filter EntryFilter) ([]*models.Entry, error)
	UpdateEntry(ctx context.Context, entry *models.Entry) error
	DeleteEntry(ctx context.Context, ownerID, id int64) error
	// SearchEntries matches content case-insensitively by substring.
	SearchEntries(ctx context.Context, ownerID int64, query string, limit int) ([]*models.Entry, error)
	// SetEntryTopic reassigns (or clears, topicID nil) an entry's topic.
	SetEntryTopic(ctx context.Context, ownerID, entryID int64, topicID *int64) error
}

// --- Chat Store ---

type ThreadFilter struct {
	Status *models.ThreadStatus
	Scope  *models.TopicScope
	Limit  int
	Offset int
}

type ChatStore interface {
	CreateThread(ctx context.Context, thread *models.ChatThread) error
	GetThread(ctx context.Context, ownerID, id int64) (*models.ChatThread, error)
	ListThreads(ctx context.Context, ownerID int64, filter ThreadFilter) ([]*models.ChatThread, error)
	UpdateThread(ctx context.Context, thread *models.ChatThread) error
	// SearchThreads matches thread title or any contained message body,
	// case-insensitive, distinct threads ordered by recency.
	SearchThreads(ctx context.Context, ownerID int64, query string, limit, offset int) ([]*models.ChatThread, error)
	// TouchThread advances last_activity_at, never moving it backwards.
	TouchThread(ctx context.Context, ownerID, threadID int64) error

	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	GetMessage(ctx context.Context, ownerID, threadID, messageID int64) (*models.ChatMessage, error)
	ListMessages(ctx context.Context, ownerID, threadID int64, limit, offset int) ([]*models.ChatMessage, error)
	// RecentMessages returns the newest limit messages in chronological order.
	RecentMessages(ctx context.Context, ownerID, threadID int64, limit int) ([]*models.ChatMessage, error)
	DeleteMessage(ctx context.Context, ownerID, threadID, messageID int64) error
	CountMessages(ctx context.Context, ownerID, threadID int64) (int, error)
}

// --- Transactions ---

// TxRunner executes fn inside one storage transaction; store methods called
// with the ctx it passes to fn join that transaction. Nested calls are not
// supported.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
