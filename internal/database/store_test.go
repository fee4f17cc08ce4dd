package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayarr/relayarr/internal/arr"
	"github.com/relayarr/relayarr/internal/database"
	"github.com/relayarr/relayarr/internal/routing"
	"github.com/relayarr/relayarr/internal/testutil"
)

func newStore(t *testing.T) (*database.Store, func()) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	return tdb.Store, tdb.Close
}

func TestInstanceSingleDefault(t *testing.T) {
	store, cleanup := newStore(t)
	defer cleanup()
	ctx := context.Background()

	id1, err := store.CreateInstance(ctx, arr.Instance{
		Name: "main", BaseURL: "http://radarr-1:7878", Service: arr.ServiceRadarr, IsDefault: true,
	})
	require.NoError(t, err)

	id2, err := store.CreateInstance(ctx, arr.Instance{
		Name: "4k", BaseURL: "http://radarr-2:7878", Service: arr.ServiceRadarr, IsDefault: true,
	})
	require.NoError(t, err)

	def, err := store.DefaultInstance(ctx, arr.ServiceRadarr)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, id2, def.ID)

	first, err := store.GetInstance(ctx, arr.ServiceRadarr, id1)
	require.NoError(t, err)
	assert.False(t, first.IsDefault, "creating a second default must demote the first")

	// Promoting via update demotes the current default too.
	first.IsDefault = true
	require.NoError(t, store.UpdateInstance(ctx, *first))

	def, err = store.DefaultInstance(ctx, arr.ServiceRadarr)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, id1, def.ID)
}

func TestDefaultInstanceScopedByService(t *testing.T) {
	store, cleanup := newStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.CreateInstance(ctx, arr.Instance{
		Name: "radarr", BaseURL: "http://radarr:7878", Service: arr.ServiceRadarr, IsDefault: true,
	})
	require.NoError(t, err)

	def, err := store.DefaultInstance(ctx, arr.ServiceSonarr)
	require.NoError(t, err)
	assert.Nil(t, def, "radarr default must not leak into sonarr lookups")
}

func TestDeleteInstanceCleansReferences(t *testing.T) {
	store, cleanup := newStore(t)
	defer cleanup()
	ctx := context.Background()

	id1, err := store.CreateInstance(ctx, arr.Instance{
		Name: "main", BaseURL: "http://sonarr-1:8989", Service: arr.ServiceSonarr, IsDefault: true,
	})
	require.NoError(t, err)
	id2, err := store.CreateInstance(ctx, arr.Instance{
		Name: "anime", BaseURL: "http://sonarr-2:8989", Service: arr.ServiceSonarr,
		SyncedInstances: []int64{id1},
	})
	require.NoError(t, err)

	itemID, err := store.CreateWatchlistItem(ctx, database.WatchlistItem{
		UserID: 1, Key: "item-1", Title: "Show", Type: "show",
	})
	require.NoError(t, err)
	require.NoError(t, store.SetItemInstance(ctx, 1, "item-1", arr.ServiceSonarr, id1))
	require.NoError(t, store.InsertJunctions(ctx, arr.ServiceSonarr, []database.JunctionRow{
		{WatchlistID: itemID, InstanceID: id1},
	}))

	require.NoError(t, store.DeleteInstance(ctx, arr.ServiceSonarr, id1))

	_, err = store.GetInstance(ctx, arr.ServiceSonarr, id1)
	assert.ErrorIs(t, err, arr.ErrInstanceNotFound)

	item, err := store.WatchlistItemByID(ctx, itemID)
	require.NoError(t, err)
	assert.Nil(t, item.SonarrInstanceID, "deleted instance must be unlinked from items")

	junctions, err := store.JunctionsForService(ctx, arr.ServiceSonarr)
	require.NoError(t, err)
	assert.Empty(t, junctions)

	sibling, err := store.GetInstance(ctx, arr.ServiceSonarr, id2)
	require.NoError(t, err)
	assert.Empty(t, sibling.SyncedInstances, "deleted id must leave synced lists")
}

func TestWatchlistUpsertKeepsStatus(t *testing.T) {
	store, cleanup := newStore(t)
	defer cleanup()
	ctx := context.Background()

	id, err := store.CreateWatchlistItem(ctx, database.WatchlistItem{
		UserID: 7, Key: "movie-1", Title: "Old Title", Type: "movie",
		Guids: []string{"tmdb:42"},
	})
	require.NoError(t, err)

	status := database.StatusRequested
	require.NoError(t, store.UpdateWatchlistItem(ctx, id, database.ItemPatch{Status: &status}))

	// Re-inserting the same (user, key) refreshes metadata only.
	again, err := store.CreateWatchlistItem(ctx, database.WatchlistItem{
		UserID: 7, Key: "movie-1", Title: "New Title", Type: "movie",
		Guids: []string{"tmdb:42", "imdb:tt0042"},
	})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	item, err := store.WatchlistItemByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "New Title", item.Title)
	assert.Equal(t, []string{"tmdb:42", "imdb:tt0042"}, item.Guids)
	assert.Equal(t, database.StatusRequested, item.Status)
}

func TestBulkUpdateItems(t *testing.T) {
	store, cleanup := newStore(t)
	defer cleanup()
	ctx := context.Background()

	id1, err := store.CreateWatchlistItem(ctx, database.WatchlistItem{UserID: 1, Key: "a", Title: "A", Type: "movie"})
	require.NoError(t, err)
	id2, err := store.CreateWatchlistItem(ctx, database.WatchlistItem{UserID: 1, Key: "b", Title: "B", Type: "movie"})
	require.NoError(t, err)

	grabbed := database.StatusGrabbed
	synced := database.SyncSynced
	require.NoError(t, store.BulkUpdateItems(ctx, []database.BulkUpdate{
		{ID: id1, Patch: database.ItemPatch{Status: &grabbed}},
		{ID: id2, Patch: database.ItemPatch{SyncStatus: &synced}},
	}))

	first, err := store.WatchlistItemByID(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, database.StatusGrabbed, first.Status)

	second, err := store.WatchlistItemByID(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, database.SyncSynced, second.SyncStatus)
	assert.Equal(t, database.StatusPending, second.Status)
}

func TestRuleCriteriaEnvelopeRoundTrip(t *testing.T) {
	store, cleanup := newStore(t)
	defer cleanup()
	ctx := context.Background()

	id, err := store.CreateRouterRule(ctx, routing.RouterRule{
		Name: "anime to sonarr-2",
		Type: routing.RuleGenre,
		Criteria: routing.Condition{
			Field:    "genre",
			Operator: routing.OpIn,
			Value:    routing.StringListValue("Anime", "Animation"),
		},
		TargetType:       arr.ServiceSonarr,
		TargetInstanceID: 2,
		Order:            1,
		Enabled:          true,
	})
	require.NoError(t, err)

	rules, err := store.RouterRulesByType(ctx, routing.RuleGenre)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, id, rules[0].ID)
	assert.Equal(t, routing.OpIn, rules[0].Criteria.Operator)
	assert.Equal(t, []string{"Anime", "Animation"}, rules[0].Criteria.Value.StrList)
}

func TestRuleLegacyCriteriaTranslation(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	// Rows as written by releases that predate the condition envelope.
	legacy := []struct {
		ruleType string
		criteria string
	}{
		{"genre", `{"genre":"Anime"}`},
		{"year", `{"min":1990,"max":1999}`},
		{"language", `{"language":"Japanese"}`},
		{"certification", `{"certification":"R"}`},
		{"user", `{"user":"alice"}`},
	}
	for i, row := range legacy {
		_, err := tdb.Conn.ExecContext(ctx, `
			INSERT INTO router_rules (name, type, criteria, target_type, target_instance_id, rule_order, enabled)
			VALUES (?, ?, ?, 'sonarr', 1, ?, 1)`,
			row.ruleType, row.ruleType, row.criteria, i)
		require.NoError(t, err)
	}

	store := tdb.Store

	genre, err := store.RouterRulesByType(ctx, routing.RuleGenre)
	require.NoError(t, err)
	require.Len(t, genre, 1)
	assert.Equal(t, routing.Condition{
		Field: "genre", Operator: routing.OpEquals, Value: routing.StringValue("Anime"),
	}, genre[0].Criteria)

	year, err := store.RouterRulesByType(ctx, routing.RuleYear)
	require.NoError(t, err)
	require.Len(t, year, 1)
	assert.Equal(t, routing.OpBetween, year[0].Criteria.Operator)
	assert.Equal(t, int64(1990), year[0].Criteria.Value.Min)
	assert.Equal(t, int64(1999), year[0].Criteria.Value.Max)

	user, err := store.RouterRulesByType(ctx, routing.RuleUser)
	require.NoError(t, err)
	require.Len(t, user, 1)
	assert.Equal(t, routing.StringValue("alice"), user[0].Criteria.Value)
}

func TestRuleUndecodableCriteriaSkipped(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	_, err := tdb.Conn.ExecContext(ctx, `
		INSERT INTO router_rules (name, type, criteria, target_type, target_instance_id, enabled)
		VALUES ('broken', 'genre', 'not json', 'radarr', 1, 1)`)
	require.NoError(t, err)

	_, err = tdb.Store.CreateRouterRule(ctx, routing.RouterRule{
		Name:             "good",
		Type:             routing.RuleGenre,
		Criteria:         routing.Condition{Field: "genre", Operator: routing.OpEquals, Value: routing.StringValue("Horror")},
		TargetType:       arr.ServiceRadarr,
		TargetInstanceID: 1,
		Enabled:          true,
	})
	require.NoError(t, err)

	rules, err := tdb.Store.RouterRulesByType(ctx, routing.RuleGenre)
	require.NoError(t, err)
	require.Len(t, rules, 1, "broken row must be skipped, not fail the listing")
	assert.Equal(t, "good", rules[0].Name)
}

func TestRuleValidation(t *testing.T) {
	store, cleanup := newStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.CreateRouterRule(ctx, routing.RouterRule{
		Type:             routing.RuleType("bogus"),
		Criteria:         routing.Condition{Field: "genre", Operator: routing.OpEquals, Value: routing.StringValue("x")},
		TargetType:       arr.ServiceRadarr,
		TargetInstanceID: 1,
	})
	assert.Error(t, err)

	_, err = store.CreateRouterRule(ctx, routing.RouterRule{
		Type:             routing.RuleGenre,
		Criteria:         routing.Condition{},
		TargetType:       arr.ServiceRadarr,
		TargetInstanceID: 1,
	})
	assert.Error(t, err)
}

func TestJunctionInsertIdempotent(t *testing.T) {
	store, cleanup := newStore(t)
	defer cleanup()
	ctx := context.Background()

	itemID, err := store.CreateWatchlistItem(ctx, database.WatchlistItem{UserID: 1, Key: "k", Title: "T", Type: "show"})
	require.NoError(t, err)

	links := []database.JunctionRow{{WatchlistID: itemID, InstanceID: 5}}
	require.NoError(t, store.InsertJunctions(ctx, arr.ServiceSonarr, links))
	require.NoError(t, store.InsertJunctions(ctx, arr.ServiceSonarr, links))

	got, err := store.JunctionsForService(ctx, arr.ServiceSonarr)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, store.DeleteJunctions(ctx, arr.ServiceSonarr, links))
	got, err = store.JunctionsForService(ctx, arr.ServiceSonarr)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNotificationRecordDedup(t *testing.T) {
	store, cleanup := newStore(t)
	defer cleanup()
	ctx := context.Background()

	sent, err := store.HasExistingWebhook(ctx, 3, "Some Movie")
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, store.RecordNotification(ctx, 3, "Some Movie"))
	require.NoError(t, store.RecordNotification(ctx, 3, "Some Movie"))

	sent, err = store.HasExistingWebhook(ctx, 3, "Some Movie")
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = store.HasExistingWebhook(ctx, 4, "Some Movie")
	require.NoError(t, err)
	assert.False(t, sent, "records are per user")
}

func TestLegacySingleGuidString(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	ctx := context.Background()

	// Early rows stored a single GUID as a bare string instead of an array.
	_, err := tdb.Conn.ExecContext(ctx, `
		INSERT INTO watchlist_items (user_id, key, title, type, guids)
		VALUES (1, 'old', 'Old Row', 'movie', 'tmdb:99')`)
	require.NoError(t, err)

	item, err := tdb.Store.GetWatchlistItem(ctx, 1, "old")
	require.NoError(t, err)
	assert.Equal(t, []string{"tmdb:99"}, item.Guids)
}
