// Package statussync reconciles locally stored watchlist rows with the
// live state of the configured Radarr and Sonarr instances. Status sync
// diffs externally observable fields into minimal bulk updates; junction
// sync maintains the many-to-many record of which instances hold which
// item; per-instance full sync copies an instance's unknown items into
// the watchlist.
package statussync

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/relayarr/relayarr/internal/arr"
	"github.com/relayarr/relayarr/internal/database"
)

// Store is the persistence surface the sync passes read and write
// through.
type Store interface {
	GetAllMovieWatchlistItems(ctx context.Context) ([]database.WatchlistItem, error)
	GetAllShowWatchlistItems(ctx context.Context) ([]database.WatchlistItem, error)
	BulkUpdateItems(ctx context.Context, updates []database.BulkUpdate) error
	CreateWatchlistItem(ctx context.Context, item database.WatchlistItem) (int64, error)
	JunctionsForService(ctx context.Context, service arr.ServiceType) ([]database.JunctionRow, error)
	InsertJunctions(ctx context.Context, service arr.ServiceType, links []database.JunctionRow) error
	DeleteJunctions(ctx context.Context, service arr.ServiceType, links []database.JunctionRow) error
}

// MovieSource is the Radarr manager surface the sync passes need. The
// fleet fetch reports which instance ids actually responded; an
// unreachable instance is absent from that set, never conflated with an
// instance that holds no items.
type MovieSource interface {
	FetchAllMovies(ctx context.Context) ([]arr.Movie, []int64, error)
	MoviesForInstance(ctx context.Context, instanceID int64) ([]arr.Movie, error)
}

// SeriesSource is the Sonarr manager surface the sync passes need.
type SeriesSource interface {
	FetchAllSeries(ctx context.Context) ([]arr.Series, []int64, error)
	SeriesForInstance(ctx context.Context, instanceID int64) ([]arr.Series, error)
}

// Engine runs the sync passes. It holds no per-pass state; every entry
// point is safe to call concurrently.
type Engine struct {
	store  Store
	radarr MovieSource
	sonarr SeriesSource
	logger zerolog.Logger
}

// NewEngine creates a sync engine.
func NewEngine(store Store, radarr MovieSource, sonarr SeriesSource, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		radarr: radarr,
		sonarr: sonarr,
		logger: logger.With().Str("component", "statussync").Logger(),
	}
}
