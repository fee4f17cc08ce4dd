package database

import (
	"context"
	"fmt"

	"github.com/relayarr/relayarr/internal/arr"
)

// JunctionsForService returns every (item, instance) link for one
// service type.
func (s *Store) JunctionsForService(ctx context.Context, service arr.ServiceType) ([]JunctionRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT watchlist_id, instance_id FROM watchlist_instance_junctions WHERE service = ?", service)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s junctions: %w", service, err)
	}
	defer rows.Close()

	var out []JunctionRow
	for rows.Next() {
		var j JunctionRow
		if err := rows.Scan(&j.WatchlistID, &j.InstanceID); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// InsertJunctions adds links in one transaction. Existing links are
// left alone, so replaying the same set is harmless.
func (s *Store) InsertJunctions(ctx context.Context, service arr.ServiceType, links []JunctionRow) error {
	if len(links) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, j := range links {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO watchlist_instance_junctions (watchlist_id, instance_id, service)
			VALUES (?, ?, ?)
			ON CONFLICT (watchlist_id, instance_id, service) DO NOTHING`,
			j.WatchlistID, j.InstanceID, service); err != nil {
			return fmt.Errorf("failed to insert junction (%d, %d): %w", j.WatchlistID, j.InstanceID, err)
		}
	}
	return tx.Commit()
}

// DeleteJunctions removes links in one transaction.
func (s *Store) DeleteJunctions(ctx context.Context, service arr.ServiceType, links []JunctionRow) error {
	if len(links) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, j := range links {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM watchlist_instance_junctions
			WHERE watchlist_id = ? AND instance_id = ? AND service = ?`,
			j.WatchlistID, j.InstanceID, service); err != nil {
			return fmt.Errorf("failed to delete junction (%d, %d): %w", j.WatchlistID, j.InstanceID, err)
		}
	}
	return tx.Commit()
}
