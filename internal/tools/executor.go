package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"muninn/internal/models"
	"muninn/internal/store"
	"muninn/internal/textutil"
)

// Executor runs validated tool calls against storage. Every query is
// owner-scoped; tools are read-only and side-effect-free.
type Executor struct {
	topics  store.TopicStore
	entries store.EntryStore
}

func NewExecutor(topics store.TopicStore, entries store.EntryStore) *Executor {
	return &Executor{topics: topics, entries: entries}
}

// entryView is how an entry appears in tool results: trimmed to a preview
// so the response-generation prompt stays bounded.
type entryView struct {
	ID        int64     `json:"id"`
	TopicID   *int64    `json:"topic_id"`
	Preview   string    `json:"preview"`
	CreatedAt time.Time `json:"created_at"`
}

func toEntryViews(entries []*models.Entry) []entryView {
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView{
			ID:        e.ID,
			TopicID:   e.TopicID,
			Preview:   textutil.Snippet(e.Content, 2, 280),
			CreatedAt: e.CreatedAt,
		})
	}
	return views
}

// Execute dispatches one call. NotFound/Forbidden conditions come back as
// errors for the caller to fold into the result set.
func (x *Executor) Execute(ctx context.Context, ownerID int64, call Call) (interface{}, error) {
	switch c := call.(type) {
	case GetTopicCall:
		if c.TopicID == models.UncategorizedTopicID {
			return &models.Topic{ID: models.UncategorizedTopicID, OwnerID: ownerID, Name: models.UncategorizedTopicName}, nil
		}
		topic, err := x.topics.GetTopic(ctx, ownerID, c.TopicID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("topic %d: %w", c.TopicID, models.ErrNotFound)
		}
		return topic, err

	case GetEntriesCall:
		scope := models.ScopeTopic(c.TopicID)
		if c.TopicID == models.UncategorizedTopicID {
			scope = models.UncategorizedOnly
		} else if _, err := x.topics.GetTopic(ctx, ownerID, c.TopicID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("topic %d: %w", c.TopicID, models.ErrNotFound)
			}
			return nil, err
		}
		entries, err := x.entries.ListEntries(ctx, ownerID, store.EntryFilter{Scope: scope, Limit: c.Limit})
		if err != nil {
			return nil, err
		}
		return toEntryViews(entries), nil

	case SearchEntriesCall:
		entries, err := x.entries.SearchEntries(ctx, ownerID, c.Query, 20)
		if err != nil {
			return nil, err
		}
		return toEntryViews(entries), nil

	case GetTopicStatsCall:
		stats, err := x.topics.GetTopicStats(ctx, ownerID, c.TopicID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("topic %d: %w", c.TopicID, models.ErrNotFound)
		}
		return stats, err

	case GetAllTopicsCall:
		overviews, err := x.topics.ListTopicOverviews(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		for _, o := range overviews {
			o.LatestPreview = textutil.Snippet(o.LatestPreview, 1, 120)
		}
		// The virtual Uncategorized bucket is always listed, even when empty.
		uncat, err := x.topics.GetTopicStats(ctx, ownerID, models.UncategorizedTopicID)
		if err != nil {
			return nil, err
		}
		overviews = append(overviews, &models.TopicOverview{
			Topic:      models.Topic{ID: models.UncategorizedTopicID, OwnerID: ownerID, Name: models.UncategorizedTopicName},
			EntryCount: uncat.EntryCount,
		})
		return overviews, nil
	}
	return nil, fmt.Errorf("unhandled tool call %T", call)
}
