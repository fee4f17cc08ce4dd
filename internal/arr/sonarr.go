package arr

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SonarrManager owns the live Sonarr clients and series-level operations.
type SonarrManager struct {
	*manager
}

// NewSonarrManager creates a Sonarr instance manager.
func NewSonarrManager(store InstanceStore, timeout time.Duration, logger zerolog.Logger) *SonarrManager {
	return &SonarrManager{manager: newManager(ServiceSonarr, store, timeout, logger)}
}

// FetchAllSeries fetches the series library of every initialized
// instance. A failing instance is logged and skipped; the returned ids
// are the instances that actually responded.
func (m *SonarrManager) FetchAllSeries(ctx context.Context) ([]Series, []int64, error) {
	var all []Series
	var observed []int64
	for id, client := range m.liveClients() {
		series, err := client.Series(ctx)
		if err != nil {
			m.logger.Warn().Err(err).Int64("instanceId", id).Msg("failed to fetch series from instance")
			continue
		}
		all = append(all, series...)
		observed = append(observed, id)
	}
	return all, observed, nil
}

// SeriesForInstance fetches the series library of a single instance.
func (m *SonarrManager) SeriesForInstance(ctx context.Context, instanceID int64) ([]Series, error) {
	client, err := m.Client(instanceID)
	if err != nil {
		return nil, err
	}
	return client.Series(ctx)
}

// SeriesExistsByTvdbID checks whether one instance already has a series.
// Checked=false means the instance could not be consulted.
func (m *SonarrManager) SeriesExistsByTvdbID(ctx context.Context, instanceID, tvdbID int64) ExistsResult {
	client, err := m.Client(instanceID)
	if err != nil {
		return ExistsResult{Err: err}
	}
	series, err := client.SeriesByTvdbID(ctx, tvdbID)
	if err != nil {
		return ExistsResult{Err: err}
	}
	return ExistsResult{Checked: true, Found: series != nil}
}

// AddToSonarr adds a series to an instance, filling root folder and
// quality profile from the instance configuration when unset.
func (m *SonarrManager) AddToSonarr(ctx context.Context, instanceID int64, input AddSeriesInput) error {
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

	_, err = client.AddSeries(ctx, input)
	return err
}
