// Package dispatch performs idempotent, existence-checked acquisition
// against the instances the router resolves for a content item. Every
// skip path is a typed reason, never an error; errors are reserved for
// faults that left the item unrouted with no explanation.
package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/relayarr/relayarr/internal/arr"
	"github.com/relayarr/relayarr/internal/guid"
	"github.com/relayarr/relayarr/internal/routing"
)

// SkipReason enumerates the terminal non-routed outcomes. These are
// expected, frequent conditions, not faults.
type SkipReason string

const (
	SkipNoValidID            SkipReason = "no-valid-id"
	SkipNoTarget             SkipReason = "no-target"
	SkipExistsInTarget       SkipReason = "exists-in-target"
	SkipExistsOnPlex         SkipReason = "exists-on-plex"
	SkipNoInstancesAvailable SkipReason = "no-instances-available"
)

// Result is the outcome of one routing attempt. When Routed is false,
// SkippedReason is always set.
type Result struct {
	Routed        bool       `json:"routed"`
	SkippedReason SkipReason `json:"skippedReason,omitempty"`
}

func skipped(reason SkipReason) Result {
	return Result{SkippedReason: reason}
}

// Router resolves target instances for an item.
type Router interface {
	Route(ctx context.Context, item routing.ContentItem, rctx routing.Context) ([]routing.Decision, error)
}

// RadarrTargets is the movie-side instance manager surface.
type RadarrTargets interface {
	MovieExistsByTmdbID(ctx context.Context, instanceID, tmdbID int64) arr.ExistsResult
	AddToRadarr(ctx context.Context, instanceID int64, input arr.AddMovieInput) error
}

// SonarrTargets is the series-side instance manager surface.
type SonarrTargets interface {
	SeriesExistsByTvdbID(ctx context.Context, instanceID, tvdbID int64) arr.ExistsResult
	AddToSonarr(ctx context.Context, instanceID int64, input arr.AddSeriesInput) error
}

// Store is the watchlist persistence surface dispatch needs: recording
// the owning instance after a successful route, and the existing-
// notification lookup that keeps notifications exactly-once.
type Store interface {
	SetItemInstance(ctx context.Context, userID int64, itemKey string, service arr.ServiceType, instanceID int64) error
	HasExistingWebhook(ctx context.Context, userID int64, title string) (bool, error)
}

// PlexChecker reports whether content is already available on an
// accessible Plex server.
type PlexChecker interface {
	CheckExistenceAcrossServers(ctx context.Context, itemKey string, contentType routing.MediaType, primaryUser bool) (bool, error)
}

// Notifier is the fire-and-forget notification sink.
type Notifier interface {
	SendWatchlistNotification(userID int64, userName, title string, contentType routing.MediaType)
}

// Options tunes one routing call. A non-nil ExistingMovies/ExistingSeries
// slice selects bulk existence-check mode (reconciliation); otherwise
// each target instance is queried live.
type Options struct {
	ExistingMovies []arr.Movie
	ExistingSeries []arr.Series
	CheckPlex      bool
	PrimaryUser    bool
	SearchOnAdd    bool
}

// Service routes content items to target instances.
type Service struct {
	router   Router
	radarr   RadarrTargets
	sonarr   SonarrTargets
	store    Store
	plex     PlexChecker
	notifier Notifier
	logger   zerolog.Logger
}

// NewService creates a dispatch service. plex and notifier may be nil;
// the corresponding steps are skipped.
func NewService(
	router Router,
	radarr RadarrTargets,
	sonarr SonarrTargets,
	store Store,
	plex PlexChecker,
	notifier Notifier,
	logger zerolog.Logger,
) *Service {
	return &Service{
		router:   router,
		radarr:   radarr,
		sonarr:   sonarr,
		store:    store,
		plex:     plex,
		notifier: notifier,
		logger:   logger.With().Str("component", "dispatch").Logger(),
	}
}

// RouteMovie routes one movie. Re-routing a known item is a no-op skip,
// not an error; the identifier gate guarantees no external call is made
// without a tmdb id.
func (s *Service) RouteMovie(ctx context.Context, item routing.ContentItem, rctx routing.Context, opts Options) (Result, error) {
	tmdbID := guid.TmdbID(item.Guids)
	if tmdbID <= 0 {
		return skipped(SkipNoValidID), nil
	}

	decisions, err := s.router.Route(ctx, item, rctx)
	if err != nil {
		return Result{}, fmt.Errorf("routing %q failed: %w", item.Title, err)
	}
	if len(decisions) == 0 {
		return skipped(SkipNoTarget), nil
	}

	targets := targetSet(decisions)
	if opts.ExistingMovies != nil {
		if movieInBulk(item, opts.ExistingMovies, targets) {
			return skipped(SkipExistsInTarget), nil
		}
	} else {
		reason, done := s.checkMovieTargetsLive(ctx, item, tmdbID, decisions)
		if done {
			return skipped(reason), nil
		}
	}

	if reason, done := s.checkPlex(ctx, item, rctx, opts); done {
		return skipped(reason), nil
	}

	var routedTo int64
	for _, d := range decisions {
		input := arr.AddMovieInput{
			Title:       item.Title,
			TmdbID:      tmdbID,
			SearchOnAdd: opts.SearchOnAdd,
		}
		if d.QualityProfile != nil {
			input.QualityProfileName = *d.QualityProfile
		}
		if d.RootFolder != nil {
			input.RootFolderPath = *d.RootFolder
		}
		if err := s.radarr.AddToRadarr(ctx, d.InstanceID, input); err != nil {
			s.logger.Error().Err(err).Int64("instanceId", d.InstanceID).Str("title", item.Title).
				Msg("failed to add movie to instance")
			continue
		}
		if routedTo == 0 {
			routedTo = d.InstanceID
		}
	}
	if routedTo == 0 {
		return Result{}, fmt.Errorf("all %d add attempts failed for %q", len(decisions), item.Title)
	}

	if err := s.store.SetItemInstance(ctx, rctx.UserID, rctx.ItemKey, arr.ServiceRadarr, routedTo); err != nil {
		s.logger.Error().Err(err).Str("itemKey", rctx.ItemKey).Msg("failed to record owning radarr instance")
	}

	s.notify(ctx, item, rctx)
	return Result{Routed: true}, nil
}

// RouteShow routes one show; the required identifier is a tvdb id.
func (s *Service) RouteShow(ctx context.Context, item routing.ContentItem, rctx routing.Context, opts Options) (Result, error) {
	tvdbID := guid.TvdbID(item.Guids)
	if tvdbID <= 0 {
		return skipped(SkipNoValidID), nil
	}

	decisions, err := s.router.Route(ctx, item, rctx)
	if err != nil {
		return Result{}, fmt.Errorf("routing %q failed: %w", item.Title, err)
	}
	if len(decisions) == 0 {
		return skipped(SkipNoTarget), nil
	}

	targets := targetSet(decisions)
	if opts.ExistingSeries != nil {
		if seriesInBulk(item, opts.ExistingSeries, targets) {
			return skipped(SkipExistsInTarget), nil
		}
	} else {
		reason, done := s.checkSeriesTargetsLive(ctx, item, tvdbID, decisions)
		if done {
			return skipped(reason), nil
		}
	}

	if reason, done := s.checkPlex(ctx, item, rctx, opts); done {
		return skipped(reason), nil
	}

	var routedTo int64
	for _, d := range decisions {
		input := arr.AddSeriesInput{
			Title:       item.Title,
			TvdbID:      tvdbID,
			SearchOnAdd: opts.SearchOnAdd,
		}
		if d.QualityProfile != nil {
			input.QualityProfileName = *d.QualityProfile
		}
		if d.RootFolder != nil {
			input.RootFolderPath = *d.RootFolder
		}
		if err := s.sonarr.AddToSonarr(ctx, d.InstanceID, input); err != nil {
			s.logger.Error().Err(err).Int64("instanceId", d.InstanceID).Str("title", item.Title).
				Msg("failed to add series to instance")
			continue
		}
		if routedTo == 0 {
			routedTo = d.InstanceID
		}
	}
	if routedTo == 0 {
		return Result{}, fmt.Errorf("all %d add attempts failed for %q", len(decisions), item.Title)
	}

	if err := s.store.SetItemInstance(ctx, rctx.UserID, rctx.ItemKey, arr.ServiceSonarr, routedTo); err != nil {
		s.logger.Error().Err(err).Str("itemKey", rctx.ItemKey).Msg("failed to record owning sonarr instance")
	}

	s.notify(ctx, item, rctx)
	return Result{Routed: true}, nil
}

// checkMovieTargetsLive queries each target instance in sequence,
// continuing past unreachable instances. It fails closed: when not a
// single instance could be checked, absence must not be assumed.
func (s *Service) checkMovieTargetsLive(ctx context.Context, item routing.ContentItem, tmdbID int64, decisions []routing.Decision) (SkipReason, bool) {
	checkedAny := false
	for _, d := range decisions {
		res := s.radarr.MovieExistsByTmdbID(ctx, d.InstanceID, tmdbID)
		if !res.Checked {
			s.logger.Warn().Err(res.Err).Int64("instanceId", d.InstanceID).Str("title", item.Title).
				Msg("instance unreachable during existence check, continuing")
			continue
		}
		checkedAny = true
		if res.Found {
			return SkipExistsInTarget, true
		}
	}
	if !checkedAny {
		return SkipNoInstancesAvailable, true
	}
	return "", false
}

func (s *Service) checkSeriesTargetsLive(ctx context.Context, item routing.ContentItem, tvdbID int64, decisions []routing.Decision) (SkipReason, bool) {
	checkedAny := false
	for _, d := range decisions {
		res := s.sonarr.SeriesExistsByTvdbID(ctx, d.InstanceID, tvdbID)
		if !res.Checked {
			s.logger.Warn().Err(res.Err).Int64("instanceId", d.InstanceID).Str("title", item.Title).
				Msg("instance unreachable during existence check, continuing")
			continue
		}
		checkedAny = true
		if res.Found {
			return SkipExistsInTarget, true
		}
	}
	if !checkedAny {
		return SkipNoInstancesAvailable, true
	}
	return "", false
}

// checkPlex short-circuits when the content is already available on an
// accessible Plex server. A failing check is logged and treated as
// "not found"; Plex availability is an optimization, not a gate.
func (s *Service) checkPlex(ctx context.Context, item routing.ContentItem, rctx routing.Context, opts Options) (SkipReason, bool) {
	if s.plex == nil || !opts.CheckPlex {
		return "", false
	}
	found, err := s.plex.CheckExistenceAcrossServers(ctx, rctx.ItemKey, item.Type, opts.PrimaryUser)
	if err != nil {
		s.logger.Warn().Err(err).Str("title", item.Title).Msg("plex existence check failed, continuing with route")
		return "", false
	}
	if found {
		return SkipExistsOnPlex, true
	}
	return "", false
}

// notify sends at most one notification per (user, title). The
// existing-webhook lookup keeps it exactly-once under at-least-once
// delivery upstream.
func (s *Service) notify(ctx context.Context, item routing.ContentItem, rctx routing.Context) {
	if s.notifier == nil {
		return
	}
	already, err := s.store.HasExistingWebhook(ctx, rctx.UserID, item.Title)
	if err != nil {
		s.logger.Warn().Err(err).Str("title", item.Title).Msg("webhook dedup lookup failed, skipping notification")
		return
	}
	if already {
		return
	}
	s.notifier.SendWatchlistNotification(rctx.UserID, rctx.UserName, item.Title, item.Type)
}

func targetSet(decisions []routing.Decision) map[int64]struct{} {
	set := make(map[int64]struct{}, len(decisions))
	for _, d := range decisions {
		set[d.InstanceID] = struct{}{}
	}
	return set
}

// movieInBulk reports whether the item already exists, by GUID overlap,
// in any of the target instances' pre-fetched libraries.
func movieInBulk(item routing.ContentItem, existing []arr.Movie, targets map[int64]struct{}) bool {
	for _, m := range existing {
		if _, ok := targets[m.InstanceID]; !ok {
			continue
		}
		if guid.MatchScore(item.Guids, m.Guids()) > 0 {
			return true
		}
	}
	return false
}

func seriesInBulk(item routing.ContentItem, existing []arr.Series, targets map[int64]struct{}) bool {
	for _, sr := range existing {
		if _, ok := targets[sr.InstanceID]; !ok {
			continue
		}
		if guid.MatchScore(item.Guids, sr.Guids()) > 0 {
			return true
		}
	}
	return false
}
