package primary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"muninn/internal/models"
	"muninn/internal/store"
)

func (s *StoreImpl) CreateEntry(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO entries (owner_id, topic_id, content, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := s.q(ctx).QueryRow(ctx, query,
		entry.OwnerID, entry.TopicID, entry.Content, time.Now(),
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", mapPgError(err))
	}
	return nil
}

func (s *StoreImpl) GetEntry(ctx context.Context, ownerID, id int64) (*models.Entry, error) {
	query := `SELECT id, owner_id, topic_id, content, created_at FROM entries WHERE id = $1 AND owner_id = $2`
	e := &models.Entry{}
	err := s.q(ctx).QueryRow(ctx, query, id, ownerID).Scan(&e.ID, &e.OwnerID, &e.TopicID, &e.Content, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entry by id %d: %w", id, err)
	}
	return e, nil
}

func (s *StoreImpl) GetEntriesByIDs(ctx context.Context, ownerID int64, ids []int64) ([]*models.Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, owner_id, topic_id, content, created_at FROM entries WHERE owner_id = $1 AND id = ANY($2) ORDER BY id ASC`
	rows, err := s.q(ctx).Query(ctx, query, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries by ids: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *StoreImpl) ListEntries(ctx context.Context, ownerID int64, filter store.EntryFilter) ([]*models.Entry, error) {
	var where []string
	args := []interface{}{ownerID}
	where = append(where, "owner_id = $1")
	argID := 2

	switch filter.Scope.Kind {
	case models.ScopeSpecific:
		where = append(where, fmt.Sprintf("topic_id = $%d", argID))
		args = append(args, filter.Scope.TopicID)
		argID++
	case models.ScopeUncategorized:
		where = append(where, "topic_id IS NULL")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT id, owner_id, topic_id, content, created_at FROM entries
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, strings.Join(where, " AND "), argID, argID+1)
	args = append(args, limit, offset)

	rows, err := s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *StoreImpl) UpdateEntry(ctx context.Context, entry *models.Entry) error {
	query := `UPDATE entries SET content = $1, topic_id = $2 WHERE id = $3 AND owner_id = $4`
	tag, err := s.q(ctx).Exec(ctx, query, entry.Content, entry.TopicID, entry.ID, entry.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to update entry %d: %w", entry.ID, mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *StoreImpl) DeleteEntry(ctx context.Context, ownerID, id int64) error {
	query := `DELETE FROM entries WHERE id = $1 AND owner_id = $2`
	tag, err := s.q(ctx).Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete entry %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *StoreImpl) SearchEntries(ctx context.Context, ownerID int64, query string, limit int) ([]*models.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := `
		SELECT id, owner_id, topic_id, content, created_at FROM entries
		WHERE owner_id = $1 AND content ILIKE '%' || $2 || '%'
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	rows, err := s.q(ctx).Query(ctx, sql, ownerID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *StoreImpl) SetEntryTopic(ctx context.Context, ownerID, entryID int64, topicID *int64) error {
	query := `UPDATE entries SET topic_id = $1 WHERE id = $2 AND owner_id = $3`
	tag, err := s.q(ctx).Exec(ctx, query, topicID, entryID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to set topic for entry %d: %w", entryID, mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanEntries(rows pgx.Rows) ([]*models.Entry, error) {
	var entries []*models.Entry
	for rows.Next() {
		e := &models.Entry{}
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.TopicID, &e.Content, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ store.EntryStore = (*StoreImpl)(nil)
