package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrUserNotFound is returned for an unknown admin account.
var ErrUserNotFound = errors.New("database: user not found")

// UserByUsername returns an admin account by name.
func (s *Store) UserByUsername(ctx context.Context, username string) (*AuthUser, error) {
	var u AuthUser
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM auth_users WHERE username = ?",
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts an admin account with a pre-hashed password.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO auth_users (username, password_hash) VALUES (?, ?)",
		username, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("failed to create user %s: %w", username, err)
	}
	return res.LastInsertId()
}

// UserCount reports how many admin accounts exist. Zero means first-run
// setup has not happened yet.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM auth_users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
