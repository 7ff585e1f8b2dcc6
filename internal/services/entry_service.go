package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"muninn/internal/models"
	"muninn/internal/store"
)

// EntryService is the conventional CRUD surface over entries.
type EntryService struct {
	entries store.EntryStore
	topics  store.TopicStore
}

func NewEntryService(entries store.EntryStore, topics store.TopicStore) *EntryService {
	return &EntryService{entries: entries, topics: topics}
}

// verifyTopic checks that a non-nil topic id names a topic the owner has.
func (s *EntryService) verifyTopic(ctx context.Context, ownerID int64, topicID *int64) error {
	if topicID == nil {
		return nil
	}
	if *topicID == models.UncategorizedTopicID {
		return fmt.Errorf("%w: use a null topic for uncategorized entries", models.ErrValidation)
	}
	if _, err := s.topics.GetTopic(ctx, ownerID, *topicID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: topic %d", models.ErrNotFound, *topicID)
		}
		return fmt.Errorf("verify topic: %w", err)
	}
	return nil
}

func (s *EntryService) CreateEntry(ctx context.Context, ownerID int64, content string, topicID *int64) (*models.Entry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: entry content must not be empty", models.ErrValidation)
	}
	if err := s.verifyTopic(ctx, ownerID, topicID); err != nil {
		return nil, err
	}

	entry := &models.Entry{OwnerID: ownerID, TopicID: topicID, Content: content}
	if err := s.entries.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}
	return entry, nil
}

func (s *EntryService) GetEntry(ctx context.Context, ownerID, id int64) (*models.Entry, error) {
	entry, err := s.entries.GetEntry(ctx, ownerID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: entry %d", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

func (s *EntryService) ListEntries(ctx context.Context, ownerID int64, filter store.EntryFilter) ([]*models.Entry, error) {
	if filter.Scope.Kind == models.ScopeSpecific {
		id := filter.Scope.TopicID
		if err := s.verifyTopic(ctx, ownerID, &id); err != nil {
			return nil, err
		}
	}
	entries, err := s.entries.ListEntries(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (s *EntryService) SearchEntries(ctx context.Context, ownerID int64, query string, limit int) ([]*models.Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query must not be empty", models.ErrValidation)
	}
	entries, err := s.entries.SearchEntries(ctx, ownerID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	return entries, nil
}

func (s *EntryService) UpdateEntry(ctx context.Context, ownerID, id int64, content string, topicID *int64) (*models.Entry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: entry content must not be empty", models.ErrValidation)
	}
	if err := s.verifyTopic(ctx, ownerID, topicID); err != nil {
		return nil, err
	}
	entry, err := s.GetEntry(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	entry.Content = content
	entry.TopicID = topicID
	if err := s.entries.UpdateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	return entry, nil
}

func (s *EntryService) DeleteEntry(ctx context.Context, ownerID, id int64) error {
	err := s.entries.DeleteEntry(ctx, ownerID, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: entry %d", models.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}
