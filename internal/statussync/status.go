package statussync

import (
	"context"
	"fmt"

	"github.com/relayarr/relayarr/internal/arr"
	"github.com/relayarr/relayarr/internal/database"
)

// StatusConfig parameterizes the generic status diff for one service
// type: where to fetch the live items, which local rows to diff them
// against, and how an item maps onto a row patch. Fetch also reports
// the instance ids that were successfully consulted; the junction pass
// needs that set to keep unreachable instances' links intact.
type StatusConfig struct {
	Service arr.ServiceType
	Fetch   func(ctx context.Context) ([]Item, []int64, error)
	Load    func(ctx context.Context) ([]database.WatchlistItem, error)
	Diff    func(row database.WatchlistItem, item Item) database.ItemPatch
}

// statusRank orders the acquisition status progression. Sync only ever
// moves a row forward; notified is terminal.
var statusRank = map[string]int{
	database.StatusPending:   0,
	database.StatusRequested: 1,
	database.StatusGrabbed:   2,
	database.StatusNotified:  3,
}

// advanceStatus returns the forward-only status transition implied by a
// fetched item, or "" when the row is already at or past it.
func advanceStatus(current string, item Item) string {
	next := database.StatusRequested
	if item.Available {
		next = database.StatusGrabbed
	}
	if statusRank[next] > statusRank[current] {
		return next
	}
	return ""
}

// RadarrStatusConfig builds the movie status-sync config.
func RadarrStatusConfig(store Store, radarr MovieSource) StatusConfig {
	return StatusConfig{
		Service: arr.ServiceRadarr,
		Fetch: func(ctx context.Context) ([]Item, []int64, error) {
			movies, observed, err := radarr.FetchAllMovies(ctx)
			if err != nil {
				return nil, nil, err
			}
			return fromMovies(movies), observed, nil
		},
		Load: store.GetAllMovieWatchlistItems,
		Diff: func(row database.WatchlistItem, item Item) database.ItemPatch {
			var patch database.ItemPatch
			if next := advanceStatus(row.Status, item); next != "" {
				patch.Status = &next
			}
			if row.MovieStatus == nil || *row.MovieStatus != item.Detail {
				detail := item.Detail
				patch.MovieStatus = &detail
			}
			return patch
		},
	}
}

// SonarrStatusConfig builds the series status-sync config.
func SonarrStatusConfig(store Store, sonarr SeriesSource) StatusConfig {
	return StatusConfig{
		Service: arr.ServiceSonarr,
		Fetch: func(ctx context.Context) ([]Item, []int64, error) {
			series, observed, err := sonarr.FetchAllSeries(ctx)
			if err != nil {
				return nil, nil, err
			}
			return fromAllSeries(series), observed, nil
		},
		Load: store.GetAllShowWatchlistItems,
		Diff: func(row database.WatchlistItem, item Item) database.ItemPatch {
			var patch database.ItemPatch
			if next := advanceStatus(row.Status, item); next != "" {
				patch.Status = &next
			}
			if row.SeriesStatus == nil || *row.SeriesStatus != item.Detail {
				detail := item.Detail
				patch.SeriesStatus = &detail
			}
			return patch
		},
	}
}

// SyncStatuses runs one status-sync pass. It is a pure diff over the
// fetched items: unchanged rows never reach the database, and the
// returned count is the number of rows that did.
func (e *Engine) SyncStatuses(ctx context.Context, cfg StatusConfig) (int, error) {
	items, _, err := cfg.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s items: %w", cfg.Service, err)
	}
	rows, err := cfg.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load %s watchlist rows: %w", cfg.Service, err)
	}

	var updates []database.BulkUpdate
	for _, row := range rows {
		item, ok := bestMatch(row.Guids, items)
		if !ok {
			continue
		}
		patch := cfg.Diff(row, item)
		if patch.Empty() {
			continue
		}
		updates = append(updates, database.BulkUpdate{ID: row.ID, Patch: patch})
	}

	if len(updates) == 0 {
		return 0, nil
	}
	if err := e.store.BulkUpdateItems(ctx, updates); err != nil {
		return 0, fmt.Errorf("failed to write %s status updates: %w", cfg.Service, err)
	}
	e.logger.Debug().Str("service", string(cfg.Service)).Int("updated", len(updates)).
		Msg("status sync pass complete")
	return len(updates), nil
}
