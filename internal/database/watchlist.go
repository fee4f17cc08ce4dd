package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/relayarr/relayarr/internal/arr"
)

// ErrItemNotFound is returned for an unknown watchlist row.
var ErrItemNotFound = errors.New("database: watchlist item not found")

const itemColumns = `id, user_id, key, title, type, guids, genres, status,
	movie_status, series_status, sync_status, radarr_instance_id, sonarr_instance_id,
	created_at, updated_at`

func scanItem(row interface{ Scan(dest ...any) error }) (WatchlistItem, error) {
	var (
		item   WatchlistItem
		guids  string
		genres string
	)
	err := row.Scan(&item.ID, &item.UserID, &item.Key, &item.Title, &item.Type,
		&guids, &genres, &item.Status, &item.MovieStatus, &item.SeriesStatus,
		&item.SyncStatus, &item.RadarrInstanceID, &item.SonarrInstanceID,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return WatchlistItem{}, err
	}
	item.Guids = decodeStrings(guids)
	item.Genres = decodeStrings(genres)
	return item, nil
}

// CreateWatchlistItem inserts a row, or refreshes title/guids/genres if
// the (user, key) pair already exists. Status fields are never reset by
// a re-insert.
func (s *Store) CreateWatchlistItem(ctx context.Context, item WatchlistItem) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO watchlist_items (user_id, key, title, type, guids, genres, status, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, key) DO UPDATE SET
			title = excluded.title,
			guids = excluded.guids,
			genres = excluded.genres,
			updated_at = CURRENT_TIMESTAMP`,
		item.UserID, item.Key, item.Title, item.Type,
		encodeJSON(item.Guids), encodeJSON(item.Genres),
		orDefault(item.Status, StatusPending), orDefault(item.SyncStatus, SyncPending))
	if err != nil {
		return 0, fmt.Errorf("failed to upsert watchlist item %q: %w", item.Key, err)
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		return id, nil
	}
	existing, err := s.GetWatchlistItem(ctx, item.UserID, item.Key)
	if err != nil {
		return 0, err
	}
	return existing.ID, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// GetWatchlistItem looks up a row by its logical identity.
func (s *Store) GetWatchlistItem(ctx context.Context, userID int64, key string) (*WatchlistItem, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM watchlist_items WHERE user_id = ? AND key = ?", userID, key)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d key %q", ErrItemNotFound, userID, key)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// WatchlistItemByID looks up a row by primary key.
func (s *Store) WatchlistItemByID(ctx context.Context, id int64) (*WatchlistItem, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM watchlist_items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrItemNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) itemsByType(ctx context.Context, mediaType string) ([]WatchlistItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM watchlist_items WHERE type = ? ORDER BY id", mediaType)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s watchlist items: %w", mediaType, err)
	}
	defer rows.Close()

	var out []WatchlistItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// GetAllMovieWatchlistItems returns every movie row.
func (s *Store) GetAllMovieWatchlistItems(ctx context.Context) ([]WatchlistItem, error) {
	return s.itemsByType(ctx, "movie")
}

// GetAllShowWatchlistItems returns every show row.
func (s *Store) GetAllShowWatchlistItems(ctx context.Context) ([]WatchlistItem, error) {
	return s.itemsByType(ctx, "show")
}

// buildItemUpdate turns a patch into a SET clause and argument list.
func buildItemUpdate(p ItemPatch) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.MovieStatus != nil {
		add("movie_status", *p.MovieStatus)
	}
	if p.SeriesStatus != nil {
		add("series_status", *p.SeriesStatus)
	}
	if p.SyncStatus != nil {
		add("sync_status", *p.SyncStatus)
	}
	if p.RadarrInstanceID != nil {
		add("radarr_instance_id", *p.RadarrInstanceID)
	}
	if p.SonarrInstanceID != nil {
		add("sonarr_instance_id", *p.SonarrInstanceID)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	return strings.Join(sets, ", "), args
}

// UpdateWatchlistItem applies a partial update to one row. An empty
// patch is a no-op.
func (s *Store) UpdateWatchlistItem(ctx context.Context, id int64, patch ItemPatch) error {
	if patch.Empty() {
		return nil
	}
	sets, args := buildItemUpdate(patch)
	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE watchlist_items SET "+sets+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update watchlist item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrItemNotFound, id)
	}
	return nil
}

// BulkUpdateItems applies many patches in one transaction. Empty
// patches are skipped; a missing row aborts the batch.
func (s *Store) BulkUpdateItems(ctx context.Context, updates []BulkUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, u := range updates {
		if u.Patch.Empty() {
			continue
		}
		sets, args := buildItemUpdate(u.Patch)
		args = append(args, u.ID)
		if _, err := tx.ExecContext(ctx,
			"UPDATE watchlist_items SET "+sets+" WHERE id = ?", args...); err != nil {
			return fmt.Errorf("failed to bulk-update watchlist item %d: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

// SetItemInstance records the instance that now owns an item. Routing
// identifies items by (user, key), so the lookup happens here rather
// than forcing callers to carry row ids.
func (s *Store) SetItemInstance(ctx context.Context, userID int64, itemKey string, service arr.ServiceType, instanceID int64) error {
	column := "radarr_instance_id"
	if service == arr.ServiceSonarr {
		column = "sonarr_instance_id"
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE watchlist_items SET "+column+" = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ? AND key = ?",
		instanceID, userID, itemKey)
	if err != nil {
		return fmt.Errorf("failed to set %s instance for item %q: %w", service, itemKey, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %d key %q", ErrItemNotFound, userID, itemKey)
	}
	return nil
}

// DeleteWatchlistItem removes one row; junction rows cascade.
func (s *Store) DeleteWatchlistItem(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM watchlist_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete watchlist item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrItemNotFound, id)
	}
	return nil
}
