package database

import (
	"context"
	"fmt"
)

// HasExistingWebhook reports whether a notification for this (user,
// title) pair has already gone out.
func (s *Store) HasExistingWebhook(ctx context.Context, userID int64, title string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notification_records WHERE user_id = ? AND title = ?",
		userID, title).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check notification record: %w", err)
	}
	return count > 0, nil
}

// RecordNotification marks a (user, title) pair as notified. Replays
// are absorbed by the unique constraint.
func (s *Store) RecordNotification(ctx context.Context, userID int64, title string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_records (user_id, title)
		VALUES (?, ?)
		ON CONFLICT (user_id, title) DO NOTHING`,
		userID, title)
	if err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}
