// Package status orchestrates fleet-wide synchronization: concurrent
// Radarr/Sonarr status passes and batched per-instance reconciliation
// across every configured non-default instance.
package status

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relayarr/relayarr/internal/arr"
	"github.com/relayarr/relayarr/internal/progress"
	"github.com/relayarr/relayarr/internal/statussync"
)

// defaultBatchSize bounds concurrent outbound API load during fleet
// sync. Backpressure against slow instances, not a correctness knob.
const defaultBatchSize = 3

// InstanceLister supplies the configured instances per service type.
type InstanceLister interface {
	AllInstances(ctx context.Context, service arr.ServiceType) ([]arr.Instance, error)
}

// Progress is the optional event sink for coarse progress reporting.
// Emission must never block or fail the sync; *progress.Manager
// satisfies this by construction.
type Progress interface {
	Start(id string, activityType progress.ActivityType, title string)
	Update(id string, message string, percent int)
	Complete(id string, message string)
	Fail(id string, message string)
}

// Counts summarizes one full status-sync pass.
type Counts struct {
	Shows  int `json:"shows"`
	Movies int `json:"movies"`
}

// InstanceResult is one instance's slot in a fleet sync. Error is a
// string so the result serializes cleanly; an empty string means
// success.
type InstanceResult struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Service     arr.ServiceType `json:"service"`
	ItemsCopied int             `json:"itemsCopied"`
	Error       string          `json:"error,omitempty"`
}

// Service is the top-level sync orchestrator.
type Service struct {
	engine    *statussync.Engine
	store     statussync.Store
	instances InstanceLister
	radarr    statussync.MovieSource
	sonarr    statussync.SeriesSource
	progress  Progress
	logger    zerolog.Logger
	batchSize int
}

// NewService creates the orchestrator. progress may be nil.
func NewService(engine *statussync.Engine, store statussync.Store, instances InstanceLister,
	radarr statussync.MovieSource, sonarr statussync.SeriesSource,
	prog Progress, logger zerolog.Logger) *Service {
	return &Service{
		engine:    engine,
		store:     store,
		instances: instances,
		radarr:    radarr,
		sonarr:    sonarr,
		progress:  prog,
		logger:    logger.With().Str("component", "status").Logger(),
		batchSize: defaultBatchSize,
	}
}

// SetBatchSize overrides the fleet-sync batch size. Values below 1 are
// ignored.
func (s *Service) SetBatchSize(n int) {
	if n >= 1 {
		s.batchSize = n
	}
}

// SyncAllStatuses runs the Radarr and Sonarr status and junction passes
// concurrently. A failing service is logged and reported as zero; the
// other service still syncs.
func (s *Service) SyncAllStatuses(ctx context.Context) (Counts, error) {
	var (
		counts Counts
		wg     sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		counts.Movies = s.syncService(ctx,
			statussync.RadarrStatusConfig(s.store, s.radarr),
			statussync.RadarrJunctionConfig(s.store, s.radarr))
	}()
	go func() {
		defer wg.Done()
		counts.Shows = s.syncService(ctx,
			statussync.SonarrStatusConfig(s.store, s.sonarr),
			statussync.SonarrJunctionConfig(s.store, s.sonarr))
	}()
	wg.Wait()

	s.logger.Info().Int("movies", counts.Movies).Int("shows", counts.Shows).
		Msg("status sync complete")
	return counts, nil
}

func (s *Service) syncService(ctx context.Context, statusCfg statussync.StatusConfig, junctionCfg statussync.JunctionConfig) int {
	updated, err := s.engine.SyncStatuses(ctx, statusCfg)
	if err != nil {
		s.logger.Error().Err(err).Str("service", string(statusCfg.Service)).
			Msg("status sync pass failed")
	}
	if _, _, err := s.engine.SyncJunctions(ctx, junctionCfg); err != nil {
		s.logger.Error().Err(err).Str("service", string(junctionCfg.Service)).
			Msg("junction sync pass failed")
	}
	return updated
}

// SyncAllConfiguredInstances reconciles every non-default instance's
// library into the watchlist, batched to cap concurrent API calls. A
// failing instance occupies its result slot with the error attached;
// the rest of the fleet still syncs.
func (s *Service) SyncAllConfiguredInstances(ctx context.Context) ([]InstanceResult, error) {
	targets, err := s.nonDefaultInstances(ctx)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, nil
	}

	operationID := "instance-sync-" + uuid.NewString()
	s.emitStart(operationID, fmt.Sprintf("Syncing %d instances", len(targets)))

	results := make([]InstanceResult, len(targets))
	done := 0
	for start := 0; start < len(targets); start += s.batchSize {
		end := start + s.batchSize
		if end > len(targets) {
			end = len(targets)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(slot int, inst arr.Instance) {
				defer wg.Done()
				results[slot] = s.syncOne(ctx, inst)
			}(i, targets[i])
		}
		wg.Wait()

		done = end
		percent := done * 100 / len(targets)
		s.emitUpdate(operationID, fmt.Sprintf("Synced %d of %d instances", done, len(targets)), percent)
	}

	s.emitComplete(operationID, "Instance sync complete")
	return results, nil
}

func (s *Service) syncOne(ctx context.Context, inst arr.Instance) InstanceResult {
	result := InstanceResult{ID: inst.ID, Name: inst.Name, Service: inst.Service}

	var (
		copied int
		err    error
	)
	switch inst.Service {
	case arr.ServiceRadarr:
		copied, err = s.engine.SyncRadarrInstance(ctx, inst.ID)
	case arr.ServiceSonarr:
		copied, err = s.engine.SyncSonarrInstance(ctx, inst.ID)
	default:
		err = fmt.Errorf("unknown service type %q", inst.Service)
	}

	result.ItemsCopied = copied
	if err != nil {
		s.logger.Error().Err(err).Int64("instanceId", inst.ID).Str("name", inst.Name).
			Msg("instance sync failed")
		result.Error = err.Error()
	}
	return result
}

// nonDefaultInstances lists every configured instance except the
// defaults. The default instances are the routing source of truth;
// reconciliation copies content from the satellites.
func (s *Service) nonDefaultInstances(ctx context.Context) ([]arr.Instance, error) {
	var out []arr.Instance
	for _, service := range []arr.ServiceType{arr.ServiceRadarr, arr.ServiceSonarr} {
		instances, err := s.instances.AllInstances(ctx, service)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s instances: %w", service, err)
		}
		for _, inst := range instances {
			if !inst.IsDefault {
				out = append(out, inst)
			}
		}
	}
	return out, nil
}

func (s *Service) emitStart(id, title string) {
	if s.progress != nil {
		s.progress.Start(id, progress.ActivityTypeInstanceSync, title)
	}
}

func (s *Service) emitUpdate(id, message string, percent int) {
	if s.progress != nil {
		s.progress.Update(id, message, percent)
	}
}

func (s *Service) emitComplete(id, message string) {
	if s.progress != nil {
		s.progress.Complete(id, message)
	}
}
