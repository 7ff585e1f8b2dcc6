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

// scopeColumns splits a TopicScope into the scope_kind/topic_id pair the
// chat_threads table stores.
func scopeColumns(scope models.TopicScope) (string, *int64) {
	switch scope.Kind {
	case models.ScopeSpecific:
		id := scope.TopicID
		return string(models.ScopeSpecific), &id
	case models.ScopeAll:
		return string(models.ScopeAll), nil
	default:
		return string(models.ScopeUncategorized), nil
	}
}

func scopeFromColumns(kind string, topicID *int64) models.TopicScope {
	switch models.ScopeKind(kind) {
	case models.ScopeSpecific:
		if topicID != nil {
			return models.ScopeTopic(*topicID)
		}
		return models.UncategorizedOnly // topic deleted out from under the thread
	case models.ScopeAll:
		return models.AllTopics
	default:
		return models.UncategorizedOnly
	}
}

func (s *StoreImpl) CreateThread(ctx context.Context, thread *models.ChatThread) error {
	kind, topicID := scopeColumns(thread.Scope)
	if thread.Status == "" {
		thread.Status = models.ThreadStatusActive
	}
	query := `
		INSERT INTO chat_threads (owner_id, scope_kind, topic_id, title, status, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, last_activity_at`

	err := s.q(ctx).QueryRow(ctx, query,
		thread.OwnerID, kind, topicID, thread.Title, thread.Status, time.Now(),
	).Scan(&thread.ID, &thread.CreatedAt, &thread.LastActivityAt)
	if err != nil {
		return fmt.Errorf("failed to insert chat thread: %w", mapPgError(err))
	}
	return nil
}

const threadColumns = `id, owner_id, scope_kind, topic_id, title, status, created_at, last_activity_at`

func scanThread(row pgx.Row) (*models.ChatThread, error) {
	t := &models.ChatThread{}
	var kind string
	var topicID *int64
	if err := row.Scan(&t.ID, &t.OwnerID, &kind, &topicID, &t.Title, &t.Status, &t.CreatedAt, &t.LastActivityAt); err != nil {
		return nil, err
	}
	t.Scope = scopeFromColumns(kind, topicID)
	return t, nil
}

func (s *StoreImpl) GetThread(ctx context.Context, ownerID, id int64) (*models.ChatThread, error) {
	query := `SELECT ` + threadColumns + ` FROM chat_threads WHERE id = $1 AND owner_id = $2`
	t, err := scanThread(s.q(ctx).QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat thread by id %d: %w", id, err)
	}
	return t, nil
}

func (s *StoreImpl) ListThreads(ctx context.Context, ownerID int64, filter store.ThreadFilter) ([]*models.ChatThread, error) {
	where := []string{"owner_id = $1"}
	args := []interface{}{ownerID}
	argID := 2

	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argID))
		args = append(args, *filter.Status)
		argID++
	}
	if filter.Scope != nil {
		kind, topicID := scopeColumns(*filter.Scope)
		where = append(where, fmt.Sprintf("scope_kind = $%d", argID))
		args = append(args, kind)
		argID++
		if topicID != nil {
			where = append(where, fmt.Sprintf("topic_id = $%d", argID))
			args = append(args, *topicID)
			argID++
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM chat_threads WHERE %s ORDER BY last_activity_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		threadColumns, strings.Join(where, " AND "), argID, argID+1)
	args = append(args, limit, offset)

	rows, err := s.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat threads: %w", err)
	}
	defer rows.Close()

	var threads []*models.ChatThread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat thread row: %w", err)
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

func (s *StoreImpl) UpdateThread(ctx context.Context, thread *models.ChatThread) error {
	kind, topicID := scopeColumns(thread.Scope)
	query := `
		UPDATE chat_threads
		SET title = $1, status = $2, scope_kind = $3, topic_id = $4
		WHERE id = $5 AND owner_id = $6`

	tag, err := s.q(ctx).Exec(ctx, query, thread.Title, thread.Status, kind, topicID, thread.ID, thread.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to update chat thread %d: %w", thread.ID, mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *StoreImpl) SearchThreads(ctx context.Context, ownerID int64, query string, limit, offset int) ([]*models.ChatThread, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	sql := `
		SELECT DISTINCT t.id, t.owner_id, t.scope_kind, t.topic_id, t.title, t.status, t.created_at, t.last_activity_at
		FROM chat_threads t
		LEFT JOIN chat_messages m ON m.thread_id = t.id
		WHERE t.owner_id = $1
		  AND (t.title ILIKE '%' || $2 || '%' OR m.content ILIKE '%' || $2 || '%')
		ORDER BY t.last_activity_at DESC, t.id DESC
		LIMIT $3 OFFSET $4`

	rows, err := s.q(ctx).Query(ctx, sql, ownerID, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search chat threads: %w", err)
	}
	defer rows.Close()

	var threads []*models.ChatThread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat thread row: %w", err)
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

func (s *StoreImpl) TouchThread(ctx context.Context, ownerID, threadID int64) error {
	// GREATEST keeps last_activity_at monotonic under concurrent writers.
	query := `
		UPDATE chat_threads
		SET last_activity_at = GREATEST(last_activity_at, now())
		WHERE id = $1 AND owner_id = $2`

	tag, err := s.q(ctx).Exec(ctx, query, threadID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to touch chat thread %d: %w", threadID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Messages ---

func (s *StoreImpl) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (thread_id, owner_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := s.q(ctx).QueryRow(ctx, query,
		msg.ThreadID, msg.OwnerID, msg.Role, msg.Content, time.Now(),
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", mapPgError(err))
	}
	return nil
}

func (s *StoreImpl) GetMessage(ctx context.Context, ownerID, threadID, messageID int64) (*models.ChatMessage, error) {
	query := `
		SELECT id, thread_id, owner_id, role, content, created_at FROM chat_messages
		WHERE id = $1 AND thread_id = $2 AND owner_id = $3`

	m := &models.ChatMessage{}
	err := s.q(ctx).QueryRow(ctx, query, messageID, threadID, ownerID).Scan(
		&m.ID, &m.ThreadID, &m.OwnerID, &m.Role, &m.Content, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat message %d: %w", messageID, err)
	}
	return m, nil
}

func (s *StoreImpl) ListMessages(ctx context.Context, ownerID, threadID int64, limit, offset int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `
		SELECT id, thread_id, owner_id, role, content, created_at FROM chat_messages
		WHERE thread_id = $1 AND owner_id = $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3 OFFSET $4`

	rows, err := s.q(ctx).Query(ctx, query, threadID, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *StoreImpl) RecentMessages(ctx context.Context, ownerID, threadID int64, limit int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	// Newest N rows, then flipped back to chronological order.
	query := `
		SELECT id, thread_id, owner_id, role, content, created_at FROM (
			SELECT id, thread_id, owner_id, role, content, created_at FROM chat_messages
			WHERE thread_id = $1 AND owner_id = $2
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC, id ASC`

	rows, err := s.q(ctx).Query(ctx, query, threadID, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent chat messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *StoreImpl) DeleteMessage(ctx context.Context, ownerID, threadID, messageID int64) error {
	query := `DELETE FROM chat_messages WHERE id = $1 AND thread_id = $2 AND owner_id = $3`
	tag, err := s.q(ctx).Exec(ctx, query, messageID, threadID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete chat message %d: %w", messageID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *StoreImpl) CountMessages(ctx context.Context, ownerID, threadID int64) (int, error) {
	query := `SELECT COUNT(id) FROM chat_messages WHERE thread_id = $1 AND owner_id = $2`
	var n int
	if err := s.q(ctx).QueryRow(ctx, query, threadID, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chat messages: %w", err)
	}
	return n, nil
}

func scanMessages(rows pgx.Rows) ([]*models.ChatMessage, error) {
	var msgs []*models.ChatMessage
	for rows.Next() {
		m := &models.ChatMessage{}
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.OwnerID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

var _ store.ChatStore = (*StoreImpl)(nil)
