package primary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"muninn/internal/models"
	"muninn/internal/store"
)

func (s *StoreImpl) CreateTopic(ctx context.Context, topic *models.Topic) error {
	query := `
		INSERT INTO topics (owner_id, name, created_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := s.q(ctx).QueryRow(ctx, query,
		topic.OwnerID, topic.Name, time.Now(),
	).Scan(&topic.ID, &topic.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert topic: %w", mapPgError(err))
	}
	return nil
}

func (s *StoreImpl) GetTopic(ctx context.Context, ownerID, id int64) (*models.Topic, error) {
	query := `SELECT id, owner_id, name, created_at FROM topics WHERE id = $1 AND owner_id = $2`
	t := &models.Topic{}
	err := s.q(ctx).QueryRow(ctx, query, id, ownerID).Scan(&t.ID, &t.OwnerID, &t.Name, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get topic by id %d: %w", id, err)
	}
	return t, nil
}

func (s *StoreImpl) ListTopics(ctx context.Context, ownerID int64) ([]*models.Topic, error) {
	query := `SELECT id, owner_id, name, created_at FROM topics WHERE owner_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := s.q(ctx).Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	var topics []*models.Topic
	for rows.Next() {
		t := &models.Topic{}
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan topic row: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (s *StoreImpl) UpdateTopic(ctx context.Context, topic *models.Topic) error {
	query := `UPDATE topics SET name = $1 WHERE id = $2 AND owner_id = $3`
	tag, err := s.q(ctx).Exec(ctx, query, topic.Name, topic.ID, topic.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to update topic %d: %w", topic.ID, mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *StoreImpl) DeleteTopic(ctx context.Context, ownerID, id int64) error {
	query := `DELETE FROM topics WHERE id = $1 AND owner_id = $2`
	tag, err := s.q(ctx).Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete topic %d: %w", id, mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *StoreImpl) ListTopicOverviews(ctx context.Context, ownerID int64) ([]*models.TopicOverview, error) {
	query := `
		SELECT t.id, t.owner_id, t.name, t.created_at,
		       COUNT(e.id) AS entry_count,
		       COALESCE((SELECT e2.content FROM entries e2
		                 WHERE e2.topic_id = t.id
		                 ORDER BY e2.created_at DESC, e2.id DESC LIMIT 1), '') AS latest
		FROM topics t
		LEFT JOIN entries e ON e.topic_id = t.id
		WHERE t.owner_id = $1
		GROUP BY t.id
		ORDER BY t.created_at ASC, t.id ASC`

	rows, err := s.q(ctx).Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list topic overviews: %w", err)
	}
	defer rows.Close()

	var out []*models.TopicOverview
	for rows.Next() {
		o := &models.TopicOverview{}
		if err := rows.Scan(&o.ID, &o.OwnerID, &o.Name, &o.CreatedAt, &o.EntryCount, &o.LatestPreview); err != nil {
			return nil, fmt.Errorf("failed to scan topic overview row: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *StoreImpl) GetTopicStats(ctx context.Context, ownerID, topicID int64) (*models.TopicStats, error) {
	// Topic id 0 is the virtual "Uncategorized" bucket.
	if topicID == models.UncategorizedTopicID {
		query := `SELECT COUNT(id), MAX(created_at) FROM entries WHERE owner_id = $1 AND topic_id IS NULL`
		st := &models.TopicStats{TopicID: models.UncategorizedTopicID, Name: models.UncategorizedTopicName}
		if err := s.q(ctx).QueryRow(ctx, query, ownerID).Scan(&st.EntryCount, &st.LatestEntry); err != nil {
			return nil, fmt.Errorf("failed to get uncategorized stats: %w", err)
		}
		return st, nil
	}

	topic, err := s.GetTopic(ctx, ownerID, topicID)
	if err != nil {
		return nil, err
	}
	query := `SELECT COUNT(id), MAX(created_at) FROM entries WHERE owner_id = $1 AND topic_id = $2`
	st := &models.TopicStats{TopicID: topic.ID, Name: topic.Name}
	if err := s.q(ctx).QueryRow(ctx, query, ownerID, topicID).Scan(&st.EntryCount, &st.LatestEntry); err != nil {
		return nil, fmt.Errorf("failed to get stats for topic %d: %w", topicID, err)
	}
	return st, nil
}

var _ store.TopicStore = (*StoreImpl)(nil)
