package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"muninn/internal/models"
	"muninn/internal/store"
)

// TopicService is the conventional CRUD surface over topics. Every write
// invalidates the per-owner label cache the categorization engine reads.
type TopicService struct {
	topics store.TopicStore
	cache  *TopicCache
}

func NewTopicService(topics store.TopicStore, cache *TopicCache) *TopicService {
	return &TopicService{topics: topics, cache: cache}
}

func (s *TopicService) CreateTopic(ctx context.Context, ownerID int64, name string) (*models.Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: topic name must not be empty", models.ErrValidation)
	}
	if strings.EqualFold(name, models.UncategorizedTopicName) {
		return nil, fmt.Errorf("%w: %q is a reserved topic name", models.ErrValidation, models.UncategorizedTopicName)
	}

	topic := &models.Topic{OwnerID: ownerID, Name: name}
	if err := s.topics.CreateTopic(ctx, topic); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: topic %q already exists", models.ErrValidation, name)
		}
		return nil, fmt.Errorf("create topic: %w", err)
	}
	s.cache.Invalidate(ownerID)
	return topic, nil
}

func (s *TopicService) GetTopic(ctx context.Context, ownerID, id int64) (*models.Topic, error) {
	if id == models.UncategorizedTopicID {
		return &models.Topic{ID: models.UncategorizedTopicID, OwnerID: ownerID, Name: models.UncategorizedTopicName}, nil
	}
	topic, err := s.topics.GetTopic(ctx, ownerID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: topic %d", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return topic, nil
}

func (s *TopicService) ListTopics(ctx context.Context, ownerID int64) ([]*models.Topic, error) {
	topics, err := s.topics.ListTopics(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

func (s *TopicService) ListOverviews(ctx context.Context, ownerID int64) ([]*models.TopicOverview, error) {
	overviews, err := s.topics.ListTopicOverviews(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list topic overviews: %w", err)
	}
	return overviews, nil
}

func (s *TopicService) RenameTopic(ctx context.Context, ownerID, id int64, name string) (*models.Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: topic name must not be empty", models.ErrValidation)
	}
	if id == models.UncategorizedTopicID {
		return nil, fmt.Errorf("%w: the %s topic cannot be renamed", models.ErrValidation, models.UncategorizedTopicName)
	}
	if strings.EqualFold(name, models.UncategorizedTopicName) {
		return nil, fmt.Errorf("%w: %q is a reserved topic name", models.ErrValidation, models.UncategorizedTopicName)
	}
	topic, err := s.GetTopic(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	topic.Name = name
	if err := s.topics.UpdateTopic(ctx, topic); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: topic %q already exists", models.ErrValidation, name)
		}
		return nil, fmt.Errorf("rename topic: %w", err)
	}
	s.cache.Invalidate(ownerID)
	return topic, nil
}

// DeleteTopic removes a topic; its entries survive and become
// uncategorized (the schema clears topic_id on delete).
func (s *TopicService) DeleteTopic(ctx context.Context, ownerID, id int64) error {
	if id == models.UncategorizedTopicID {
		return fmt.Errorf("%w: the %s topic cannot be deleted", models.ErrValidation, models.UncategorizedTopicName)
	}
	err := s.topics.DeleteTopic(ctx, ownerID, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: topic %d", models.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	s.cache.Invalidate(ownerID)
	return nil
}
