package status_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayarr/relayarr/internal/arr"
	"github.com/relayarr/relayarr/internal/database"
	"github.com/relayarr/relayarr/internal/progress"
	"github.com/relayarr/relayarr/internal/status"
	"github.com/relayarr/relayarr/internal/statussync"
	"github.com/relayarr/relayarr/internal/testutil"
)

type fakeMovies struct {
	byInstance map[int64][]arr.Movie
	fetchErr   error
}

func (f *fakeMovies) FetchAllMovies(ctx context.Context) ([]arr.Movie, []int64, error) {
	if f.fetchErr != nil {
		return nil, nil, f.fetchErr
	}
	var all []arr.Movie
	var observed []int64
	for id, movies := range f.byInstance {
		observed = append(observed, id)
		for _, m := range movies {
			m.InstanceID = id
			all = append(all, m)
		}
	}
	return all, observed, nil
}

func (f *fakeMovies) MoviesForInstance(ctx context.Context, instanceID int64) ([]arr.Movie, error) {
	movies, ok := f.byInstance[instanceID]
	if !ok {
		return nil, fmt.Errorf("instance %d unreachable", instanceID)
	}
	out := make([]arr.Movie, len(movies))
	for i, m := range movies {
		m.InstanceID = instanceID
		out[i] = m
	}
	return out, nil
}

type fakeSeries struct {
	byInstance map[int64][]arr.Series
}

func (f *fakeSeries) FetchAllSeries(ctx context.Context) ([]arr.Series, []int64, error) {
	var all []arr.Series
	var observed []int64
	for id, series := range f.byInstance {
		observed = append(observed, id)
		for _, s := range series {
			s.InstanceID = id
			all = append(all, s)
		}
	}
	return all, observed, nil
}

func (f *fakeSeries) SeriesForInstance(ctx context.Context, instanceID int64) ([]arr.Series, error) {
	series, ok := f.byInstance[instanceID]
	if !ok {
		return nil, fmt.Errorf("instance %d unreachable", instanceID)
	}
	out := make([]arr.Series, len(series))
	for i, s := range series {
		s.InstanceID = instanceID
		out[i] = s
	}
	return out, nil
}

type progressRecorder struct {
	mu     sync.Mutex
	events []string
}

func (p *progressRecorder) record(event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *progressRecorder) Start(id string, _ progress.ActivityType, _ string) { p.record("start") }
func (p *progressRecorder) Update(id, message string, percent int) {
	p.record(fmt.Sprintf("update:%d", percent))
}
func (p *progressRecorder) Complete(id, message string) { p.record("complete") }
func (p *progressRecorder) Fail(id, message string)     { p.record("fail") }

func (p *progressRecorder) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func newService(t *testing.T, radarr *fakeMovies, sonarr *fakeSeries, prog status.Progress) (*status.Service, *database.Store, func()) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	if radarr == nil {
		radarr = &fakeMovies{}
	}
	if sonarr == nil {
		sonarr = &fakeSeries{}
	}
	engine := statussync.NewEngine(tdb.Store, radarr, sonarr, tdb.Logger)
	svc := status.NewService(engine, tdb.Store, tdb.Store, radarr, sonarr, prog, tdb.Logger)
	return svc, tdb.Store, tdb.Close
}

func TestSyncAllStatusesCountsBothServices(t *testing.T) {
	radarr := &fakeMovies{byInstance: map[int64][]arr.Movie{
		1: {{Title: "Movie", TmdbID: 10, HasFile: true, Status: "released"}},
	}}
	sonarr := &fakeSeries{byInstance: map[int64][]arr.Series{
		1: {{Title: "Show", TvdbID: 100, Status: "continuing"}},
	}}
	svc, store, cleanup := newService(t, radarr, sonarr, nil)
	defer cleanup()
	ctx := context.Background()

	_, err := store.CreateWatchlistItem(ctx, database.WatchlistItem{
		UserID: 1, Key: "m1", Title: "Movie", Type: "movie", Guids: []string{"tmdb:10"},
	})
	require.NoError(t, err)
	_, err = store.CreateWatchlistItem(ctx, database.WatchlistItem{
		UserID: 1, Key: "s1", Title: "Show", Type: "show", Guids: []string{"tvdb:100"},
	})
	require.NoError(t, err)

	counts, err := svc.SyncAllStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Movies)
	assert.Equal(t, 1, counts.Shows)

	// Junctions are maintained in the same pass.
	movieLinks, err := store.JunctionsForService(ctx, arr.ServiceRadarr)
	require.NoError(t, err)
	assert.Len(t, movieLinks, 1)
}

func TestSyncAllStatusesIsolatesServiceFailure(t *testing.T) {
	radarr := &fakeMovies{fetchErr: fmt.Errorf("radarr fleet down")}
	sonarr := &fakeSeries{byInstance: map[int64][]arr.Series{
		1: {{Title: "Show", TvdbID: 100, Status: "continuing"}},
	}}
	svc, store, cleanup := newService(t, radarr, sonarr, nil)
	defer cleanup()
	ctx := context.Background()

	_, err := store.CreateWatchlistItem(ctx, database.WatchlistItem{
		UserID: 1, Key: "s1", Title: "Show", Type: "show", Guids: []string{"tvdb:100"},
	})
	require.NoError(t, err)

	counts, err := svc.SyncAllStatuses(ctx)
	require.NoError(t, err, "a failing service must not surface as a hard error")
	assert.Zero(t, counts.Movies)
	assert.Equal(t, 1, counts.Shows)
}

func TestSyncAllConfiguredInstancesSkipsDefaults(t *testing.T) {
	radarr := &fakeMovies{byInstance: map[int64][]arr.Movie{
		2: {{Title: "Satellite Movie", TmdbID: 50}},
	}}
	sonarr := &fakeSeries{byInstance: map[int64][]arr.Series{
		4: {{Title: "Satellite Show", TvdbID: 60}},
	}}
	prog := &progressRecorder{}
	svc, store, cleanup := newService(t, radarr, sonarr, prog)
	defer cleanup()
	ctx := context.Background()

	mustCreate := func(inst arr.Instance) int64 {
		id, err := store.CreateInstance(ctx, inst)
		require.NoError(t, err)
		return id
	}
	mustCreate(arr.Instance{Name: "radarr-main", BaseURL: "http://r1", Service: arr.ServiceRadarr, IsDefault: true})
	satRadarr := mustCreate(arr.Instance{Name: "radarr-4k", BaseURL: "http://r2", Service: arr.ServiceRadarr})
	mustCreate(arr.Instance{Name: "sonarr-main", BaseURL: "http://s1", Service: arr.ServiceSonarr, IsDefault: true})
	satSonarr := mustCreate(arr.Instance{Name: "sonarr-anime", BaseURL: "http://s2", Service: arr.ServiceSonarr})

	// Point the fakes at the real satellite ids.
	radarr.byInstance = map[int64][]arr.Movie{satRadarr: {{Title: "Satellite Movie", TmdbID: 50}}}
	sonarr.byInstance = map[int64][]arr.Series{satSonarr: {{Title: "Satellite Show", TvdbID: 60}}}

	results, err := svc.SyncAllConfiguredInstances(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2, "defaults are excluded from fleet sync")

	byID := make(map[int64]status.InstanceResult)
	for _, r := range results {
		byID[r.ID] = r
	}
	assert.Equal(t, 1, byID[satRadarr].ItemsCopied)
	assert.Equal(t, 1, byID[satSonarr].ItemsCopied)
	assert.Empty(t, byID[satRadarr].Error)

	events := prog.snapshot()
	assert.Equal(t, "start", events[0])
	assert.Equal(t, "complete", events[len(events)-1])
	assert.Contains(t, events, "update:100")
}

func TestSyncAllConfiguredInstancesIsolatesFailure(t *testing.T) {
	radarr := &fakeMovies{byInstance: map[int64][]arr.Movie{}}
	svc, store, cleanup := newService(t, radarr, nil, nil)
	defer cleanup()
	ctx := context.Background()

	_, err := store.CreateInstance(ctx, arr.Instance{Name: "main", BaseURL: "http://r1", Service: arr.ServiceRadarr, IsDefault: true})
	require.NoError(t, err)
	deadID, err := store.CreateInstance(ctx, arr.Instance{Name: "dead", BaseURL: "http://r2", Service: arr.ServiceRadarr})
	require.NoError(t, err)

	results, err := svc.SyncAllConfiguredInstances(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, deadID, results[0].ID)
	assert.Zero(t, results[0].ItemsCopied)
	assert.NotEmpty(t, results[0].Error, "failure lands in the result slot, not the return error")
}

func TestSyncAllConfiguredInstancesNoSatellites(t *testing.T) {
	svc, store, cleanup := newService(t, nil, nil, nil)
	defer cleanup()
	ctx := context.Background()

	_, err := store.CreateInstance(ctx, arr.Instance{Name: "main", BaseURL: "http://r1", Service: arr.ServiceRadarr, IsDefault: true})
	require.NoError(t, err)

	results, err := svc.SyncAllConfiguredInstances(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBatchSizeBoundsConcurrency(t *testing.T) {
	// Three satellites with batch size 1 must sync strictly in
	// sequence; the progress percentages grow monotonically.
	radarr := &fakeMovies{byInstance: map[int64][]arr.Movie{}}
	prog := &progressRecorder{}
	svc, store, cleanup := newService(t, radarr, nil, prog)
	defer cleanup()
	ctx := context.Background()

	_, err := store.CreateInstance(ctx, arr.Instance{Name: "main", BaseURL: "http://r0", Service: arr.ServiceRadarr, IsDefault: true})
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		id, err := store.CreateInstance(ctx, arr.Instance{
			Name: fmt.Sprintf("sat-%d", i), BaseURL: fmt.Sprintf("http://r%d", i), Service: arr.ServiceRadarr,
		})
		require.NoError(t, err)
		radarr.byInstance[id] = nil
	}

	svc.SetBatchSize(1)
	results, err := svc.SyncAllConfiguredInstances(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	var percents []string
	for _, e := range prog.snapshot() {
		if len(e) > 7 && e[:7] == "update:" {
			percents = append(percents, e)
		}
	}
	assert.Equal(t, []string{"update:33", "update:66", "update:100"}, percents)
}
