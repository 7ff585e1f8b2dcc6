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

func (s *StoreImpl) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, created_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := s.q(ctx).QueryRow(ctx, query,
		user.Email, user.PasswordHash, time.Now(),
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if mapped := mapPgError(err); errors.Is(mapped, store.ErrDuplicate) {
			return fmt.Errorf("user with email '%s' already exists: %w", user.Email, store.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *StoreImpl) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`
	u := &models.User{}
	err := s.q(ctx).QueryRow(ctx, query, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

func (s *StoreImpl) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`
	u := &models.User{}
	err := s.q(ctx).QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id %d: %w", id, err)
	}
	return u, nil
}

var _ store.UserStore = (*StoreImpl)(nil)
