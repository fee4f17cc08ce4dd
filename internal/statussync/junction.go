package statussync

import (
	"context"
	"fmt"

	"github.com/relayarr/relayarr/internal/arr"
	"github.com/relayarr/relayarr/internal/database"
	"github.com/relayarr/relayarr/internal/guid"
)

// JunctionConfig parameterizes the junction diff for one service type.
type JunctionConfig struct {
	Service arr.ServiceType
	Fetch   func(ctx context.Context) ([]Item, []int64, error)
	Load    func(ctx context.Context) ([]database.WatchlistItem, error)
}

// RadarrJunctionConfig builds the movie junction-sync config.
func RadarrJunctionConfig(store Store, radarr MovieSource) JunctionConfig {
	status := RadarrStatusConfig(store, radarr)
	return JunctionConfig{Service: arr.ServiceRadarr, Fetch: status.Fetch, Load: status.Load}
}

// SonarrJunctionConfig builds the series junction-sync config.
func SonarrJunctionConfig(store Store, sonarr SeriesSource) JunctionConfig {
	status := SonarrStatusConfig(store, sonarr)
	return JunctionConfig{Service: arr.ServiceSonarr, Fetch: status.Fetch, Load: status.Load}
}

type junctionKey struct {
	watchlistID int64
	instanceID  int64
}

// SyncJunctions reconciles the recorded (item, instance) links with the
// links observable in the fetched data. The pass is idempotent and
// order-independent: a second run over the same input writes nothing.
// Links are only removed for instances that actually responded to the
// fetch; an unreachable instance keeps its links untouched.
func (e *Engine) SyncJunctions(ctx context.Context, cfg JunctionConfig) (added, removed int, err error) {
	items, observedIDs, err := cfg.Fetch(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch %s items: %w", cfg.Service, err)
	}
	observed := make(map[int64]bool, len(observedIDs))
	for _, id := range observedIDs {
		observed[id] = true
	}
	rows, err := cfg.Load(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load %s watchlist rows: %w", cfg.Service, err)
	}

	// An item is linked to every instance holding any matching copy,
	// not just the primary routing target.
	byInstance := make(map[int64][]Item)
	for _, item := range items {
		byInstance[item.InstanceID] = append(byInstance[item.InstanceID], item)
	}

	desired := make(map[junctionKey]bool)
	for _, row := range rows {
		for instanceID, instanceItems := range byInstance {
			for _, item := range instanceItems {
				if guid.MatchScore(row.Guids, item.Guids) > 0 {
					desired[junctionKey{watchlistID: row.ID, instanceID: instanceID}] = true
					break
				}
			}
		}
	}

	existingRows, err := e.store.JunctionsForService(ctx, cfg.Service)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load %s junctions: %w", cfg.Service, err)
	}
	existing := make(map[junctionKey]bool, len(existingRows))
	for _, j := range existingRows {
		existing[junctionKey{watchlistID: j.WatchlistID, instanceID: j.InstanceID}] = true
	}

	var inserts, deletes []database.JunctionRow
	for key := range desired {
		if !existing[key] {
			inserts = append(inserts, database.JunctionRow{WatchlistID: key.watchlistID, InstanceID: key.instanceID})
		}
	}
	for key := range existing {
		if !desired[key] && observed[key.instanceID] {
			deletes = append(deletes, database.JunctionRow{WatchlistID: key.watchlistID, InstanceID: key.instanceID})
		}
	}

	if err := e.store.InsertJunctions(ctx, cfg.Service, inserts); err != nil {
		return 0, 0, fmt.Errorf("failed to insert %s junctions: %w", cfg.Service, err)
	}
	if err := e.store.DeleteJunctions(ctx, cfg.Service, deletes); err != nil {
		return len(inserts), 0, fmt.Errorf("failed to delete %s junctions: %w", cfg.Service, err)
	}

	if len(inserts) > 0 || len(deletes) > 0 {
		e.logger.Debug().Str("service", string(cfg.Service)).
			Int("added", len(inserts)).Int("removed", len(deletes)).
			Msg("junction sync pass complete")
	}
	return len(inserts), len(deletes), nil
}
