package statussync

import (
	"context"
	"fmt"

	"github.com/relayarr/relayarr/internal/arr"
	"github.com/relayarr/relayarr/internal/database"
	"github.com/relayarr/relayarr/internal/guid"
)

// systemUserID owns rows discovered during instance reconciliation
// rather than through a user's watchlist.
const systemUserID int64 = 0

// SyncRadarrInstance reconciles one Radarr instance's library into the
// watchlist: matched items get a junction link, unknown items become
// new rows. Returns the number of rows copied in.
func (e *Engine) SyncRadarrInstance(ctx context.Context, instanceID int64) (int, error) {
	movies, err := e.radarr.MoviesForInstance(ctx, instanceID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch movies from instance %d: %w", instanceID, err)
	}
	rows, err := e.store.GetAllMovieWatchlistItems(ctx)
	if err != nil {
		return 0, err
	}
	return e.syncInstanceItems(ctx, arr.ServiceRadarr, instanceID, fromMovies(movies), rows, "movie")
}

// SyncSonarrInstance reconciles one Sonarr instance's library into the
// watchlist.
func (e *Engine) SyncSonarrInstance(ctx context.Context, instanceID int64) (int, error) {
	series, err := e.sonarr.SeriesForInstance(ctx, instanceID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch series from instance %d: %w", instanceID, err)
	}
	rows, err := e.store.GetAllShowWatchlistItems(ctx)
	if err != nil {
		return 0, err
	}
	return e.syncInstanceItems(ctx, arr.ServiceSonarr, instanceID, fromAllSeries(series), rows, "show")
}

func (e *Engine) syncInstanceItems(ctx context.Context, service arr.ServiceType, instanceID int64,
	items []Item, rows []database.WatchlistItem, mediaType string) (int, error) {

	copied := 0
	var links []database.JunctionRow

	for _, item := range items {
		// Best local match wins; anything without identifier overlap
		// is treated as new content.
		var (
			best      *database.WatchlistItem
			bestScore int
		)
		for i := range rows {
			score := guid.MatchScore(item.Guids, rows[i].Guids)
			if score > bestScore {
				best, bestScore = &rows[i], score
			}
		}

		if best != nil {
			links = append(links, database.JunctionRow{WatchlistID: best.ID, InstanceID: instanceID})
			continue
		}

		if len(item.Guids) == 0 {
			e.logger.Warn().Str("title", item.Title).Int64("instanceId", instanceID).
				Msg("instance item has no identifiers, skipping")
			continue
		}

		newRow := database.WatchlistItem{
			UserID: systemUserID,
			Key:    item.Guids[0],
			Title:  item.Title,
			Type:   mediaType,
			Guids:  item.Guids,
			Status: database.StatusRequested,
		}
		id, err := e.store.CreateWatchlistItem(ctx, newRow)
		if err != nil {
			return copied, fmt.Errorf("failed to copy %q from instance %d: %w", item.Title, instanceID, err)
		}
		rows = append(rows, database.WatchlistItem{ID: id, UserID: systemUserID, Key: newRow.Key,
			Title: newRow.Title, Type: mediaType, Guids: item.Guids, Status: newRow.Status})
		links = append(links, database.JunctionRow{WatchlistID: id, InstanceID: instanceID})
		copied++
	}

	if err := e.store.InsertJunctions(ctx, service, links); err != nil {
		return copied, fmt.Errorf("failed to record junctions for instance %d: %w", instanceID, err)
	}

	e.logger.Info().Str("service", string(service)).Int64("instanceId", instanceID).
		Int("items", len(items)).Int("copied", copied).Msg("instance sync complete")
	return copied, nil
}
