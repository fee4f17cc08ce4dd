package arr

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RadarrManager owns the live Radarr clients and movie-level operations.
type RadarrManager struct {
	*manager
}

// NewRadarrManager creates a Radarr instance manager.
func NewRadarrManager(store InstanceStore, timeout time.Duration, logger zerolog.Logger) *RadarrManager {
	return &RadarrManager{manager: newManager(ServiceRadarr, store, timeout, logger)}
}

// FetchAllMovies fetches the movie library of every initialized instance.
// A failing instance is logged and skipped; the returned ids are the
// instances that actually responded, so callers can tell "instance had
// no items" apart from "instance was unreachable".
func (m *RadarrManager) FetchAllMovies(ctx context.Context) ([]Movie, []int64, error) {
	var all []Movie
	var observed []int64
	for id, client := range m.liveClients() {
		movies, err := client.Movies(ctx)
		if err != nil {
			m.logger.Warn().Err(err).Int64("instanceId", id).Msg("failed to fetch movies from instance")
			continue
		}
		all = append(all, movies...)
		observed = append(observed, id)
	}
	return all, observed, nil
}

// MoviesForInstance fetches the movie library of a single instance.
func (m *RadarrManager) MoviesForInstance(ctx context.Context, instanceID int64) ([]Movie, error) {
	client, err := m.Client(instanceID)
	if err != nil {
		return nil, err
	}
	return client.Movies(ctx)
}

// MovieExistsByTmdbID checks whether one instance already has a movie.
// Checked=false means the instance could not be consulted.
func (m *RadarrManager) MovieExistsByTmdbID(ctx context.Context, instanceID, tmdbID int64) ExistsResult {
	client, err := m.Client(instanceID)
	if err != nil {
		return ExistsResult{Err: err}
	}
	movie, err := client.MovieByTmdbID(ctx, tmdbID)
	if err != nil {
		return ExistsResult{Err: err}
	}
	return ExistsResult{Checked: true, Found: movie != nil}
}

// AddToRadarr adds a movie to an instance, filling root folder and
// quality profile from the instance configuration when unset.
func (m *RadarrManager) AddToRadarr(ctx context.Context, instanceID int64, input AddMovieInput) error {
	client, err := m.Client(instanceID)
	if err != nil {
		return err
	}

	if input.RootFolderPath == "" || input.QualityProfileID == 0 {
		inst, err := m.Instance(ctx, instanceID)
		if err != nil {
			return err
		}
		if input.RootFolderPath == "" {
			input.RootFolderPath = inst.RootFolder
		}
		if input.QualityProfileID == 0 {
			name := input.QualityProfileName
			if name == "" {
				name = inst.QualityProfile
			}
			input.QualityProfileID, err = m.resolveProfile(ctx, client, name)
			if err != nil {
				return err
			}
		}
	}

	_, err = client.AddMovie(ctx, input)
	return err
}

// resolveProfile maps a configured profile name to the instance's
// profile id, falling back to the first available profile.
func (m *manager) resolveProfile(ctx context.Context, client *Client, name string) (int64, error) {
	profiles, err := client.QualityProfiles(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range profiles {
		if p.Name == name {
			return p.ID, nil
		}
	}
	if len(profiles) > 0 {
		return profiles[0].ID, nil
	}
	return 0, fmt.Errorf("instance has no quality profiles")
}
