package services

import (
	"context"
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"

	"muninn/internal/models"
	"muninn/internal/store"
)

// TopicCache is a short-TTL cache of per-owner topic lists, shared by the
// categorization paths that re-read the label set on every call. Writers
// must invalidate after any topic mutation.
type TopicCache struct {
	topics store.TopicStore
	c      *cache.Cache
}

func NewTopicCache(topics store.TopicStore) *TopicCache {
	return &TopicCache{
		topics: topics,
		c:      cache.New(30*time.Second, time.Minute),
	}
}

func ownerKey(ownerID int64) string { return fmt.Sprintf("topics:%d", ownerID) }

// Get returns the owner's topics, from cache when fresh.
func (tc *TopicCache) Get(ctx context.Context, ownerID int64) ([]*models.Topic, error) {
	if v, ok := tc.c.Get(ownerKey(ownerID)); ok {
		return v.([]*models.Topic), nil
	}
	topics, err := tc.topics.ListTopics(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	tc.c.SetDefault(ownerKey(ownerID), topics)
	return topics, nil
}

// Invalidate drops the owner's cached topic list.
func (tc *TopicCache) Invalidate(ownerID int64) {
	tc.c.Delete(ownerKey(ownerID))
}
