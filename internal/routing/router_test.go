package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/relayarr/relayarr/internal/arr"
)

// memInstanceSource serves a default instance per service type.
type memInstanceSource struct {
	radarr *arr.Instance
	sonarr *arr.Instance
}

func (s *memInstanceSource) DefaultInstance(_ context.Context, service arr.ServiceType) (*arr.Instance, error) {
	if service == arr.ServiceRadarr {
		return s.radarr, nil
	}
	return s.sonarr, nil
}

func TestRouter_FallbackFanOut(t *testing.T) {
	source := &memInstanceSource{radarr: &arr.Instance{
		ID: 1, Name: "default", Service: arr.ServiceRadarr, IsDefault: true,
		SyncedInstances: []int64{2, 3},
	}}
	router := NewRouter(&memRuleStore{}, source, zerolog.Nop())

	ids, err := router.TargetInstances(context.Background(), movieItem("Foo", nil, nil), movieCtx())
	if err != nil {
		t.Fatalf("TargetInstances error = %v", err)
	}

	// Set equality: order between default and synced instances carries
	// no meaning.
	want := map[int64]bool{1: true, 2: true, 3: true}
	if len(ids) != len(want) {
		t.Fatalf("TargetInstances = %v, want exactly default + 2 synced", ids)
	}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("unexpected instance id %d", id)
		}
	}
}

func TestRouter_NoDefaultNoTargets(t *testing.T) {
	router := NewRouter(&memRuleStore{}, &memInstanceSource{}, zerolog.Nop())

	ids, err := router.TargetInstances(context.Background(), movieItem("Foo", nil, nil), movieCtx())
	if err != nil {
		t.Fatalf("TargetInstances error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("TargetInstances = %v, want empty without rules or a default", ids)
	}
}

func TestRouter_HigherEvaluatorPriorityWins(t *testing.T) {
	// A user rule (priority 75) and a genre rule (priority 50) target the
	// same instance with different profiles; the user decision must win.
	userProfile := "user-profile"
	genreProfile := "genre-profile"
	store := &memRuleStore{rules: []RouterRule{
		{ID: 1, Type: RuleUser, Enabled: true, TargetType: arr.ServiceRadarr, TargetInstanceID: 5,
			QualityProfile: &userProfile,
			Criteria:       Condition{Field: "user", Operator: OpEquals, Value: StringValue("alice")}},
		{ID: 2, Type: RuleGenre, Enabled: true, TargetType: arr.ServiceRadarr, TargetInstanceID: 5,
			QualityProfile: &genreProfile,
			Criteria:       Condition{Field: "genre", Operator: OpEquals, Value: StringValue("Action")}},
	}}
	router := NewRouter(store, &memInstanceSource{}, zerolog.Nop())

	decisions, err := router.Route(context.Background(), movieItem("Foo", []string{"Action"}, nil), movieCtx())
	if err != nil {
		t.Fatalf("Route error = %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("Route = %+v, want one decision after conflict resolution", decisions)
	}
	if decisions[0].Priority != PriorityUser {
		t.Errorf("winning priority = %d, want user evaluator's %d", decisions[0].Priority, PriorityUser)
	}
	if decisions[0].QualityProfile == nil || *decisions[0].QualityProfile != userProfile {
		t.Errorf("winning profile = %v, want %q", decisions[0].QualityProfile, userProfile)
	}
}

func TestRouter_EqualPriorityLowerOrderWins(t *testing.T) {
	first := "first"
	second := "second"
	store := &memRuleStore{rules: []RouterRule{
		{ID: 1, Type: RuleGenre, Enabled: true, TargetType: arr.ServiceRadarr, TargetInstanceID: 5, Order: 20,
			QualityProfile: &second,
			Criteria:       Condition{Field: "genre", Operator: OpEquals, Value: StringValue("Action")}},
		{ID: 2, Type: RuleGenre, Enabled: true, TargetType: arr.ServiceRadarr, TargetInstanceID: 5, Order: 10,
			QualityProfile: &first,
			Criteria:       Condition{Field: "genre", Operator: OpEquals, Value: StringValue("Action")}},
	}}
	router := NewRouter(store, &memInstanceSource{}, zerolog.Nop())

	decisions, err := router.Route(context.Background(), movieItem("Foo", []string{"Action"}, nil), movieCtx())
	if err != nil {
		t.Fatalf("Route error = %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("Route = %+v, want one decision", decisions)
	}
	if decisions[0].QualityProfile == nil || *decisions[0].QualityProfile != first {
		t.Errorf("winner = %v, want rule with smaller order", decisions[0].QualityProfile)
	}
}

func TestRouter_DifferentInstancesBothKept(t *testing.T) {
	store := &memRuleStore{rules: []RouterRule{
		{ID: 1, Type: RuleUser, Enabled: true, TargetType: arr.ServiceRadarr, TargetInstanceID: 5,
			Criteria: Condition{Field: "user", Operator: OpEquals, Value: StringValue("alice")}},
		{ID: 2, Type: RuleGenre, Enabled: true, TargetType: arr.ServiceRadarr, TargetInstanceID: 6,
			Criteria: Condition{Field: "genre", Operator: OpEquals, Value: StringValue("Action")}},
	}}
	router := NewRouter(store, &memInstanceSource{}, zerolog.Nop())

	ids, err := router.TargetInstances(context.Background(), movieItem("Foo", []string{"Action"}, nil), movieCtx())
	if err != nil {
		t.Fatalf("TargetInstances error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("TargetInstances = %v, want both rule targets", ids)
	}
}

func TestRouter_GenreRuleBypassesDefaultFanOut(t *testing.T) {
	// Genre rule Anime -> instance 2, default instance 1 with no synced
	// instances. The rule target must be the only target.
	store := &memRuleStore{rules: []RouterRule{{
		ID: 1, Type: RuleGenre, Enabled: true, TargetType: arr.ServiceSonarr, TargetInstanceID: 2,
		Criteria: Condition{Field: "genre", Operator: OpEquals, Value: StringValue("Anime")},
	}}}
	source := &memInstanceSource{sonarr: &arr.Instance{ID: 1, Service: arr.ServiceSonarr, IsDefault: true}}
	router := NewRouter(store, source, zerolog.Nop())

	item := ContentItem{Title: "Foo", Type: MediaTypeShow, Guids: []string{"tvdb:100"}, Genres: []string{"Anime"}}
	rctx := Context{UserID: 1, ItemKey: "k", ContentType: MediaTypeShow}

	ids, err := router.TargetInstances(context.Background(), item, rctx)
	if err != nil {
		t.Fatalf("TargetInstances error = %v", err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("TargetInstances = %v, want only instance 2 (genre match bypasses default)", ids)
	}
}

// failingEvaluator always errors from Evaluate.
type failingEvaluator struct{}

func (failingEvaluator) Name() string                          { return "failing" }
func (failingEvaluator) Priority() int                         { return 99 }
func (failingEvaluator) CanEvaluate(ContentItem, Context) bool { return true }
func (failingEvaluator) CanEvaluateConditionField(string) bool { return false }
func (failingEvaluator) Evaluate(context.Context, ContentItem, Context) ([]Decision, error) {
	return nil, errors.New("boom")
}
func (failingEvaluator) EvaluateCondition(context.Context, Condition, ContentItem, Context) (bool, error) {
	return false, errors.New("boom")
}

func TestRouter_EvaluatorFailureIsolated(t *testing.T) {
	store := &memRuleStore{rules: []RouterRule{{
		ID: 1, Type: RuleGenre, Enabled: true, TargetType: arr.ServiceRadarr, TargetInstanceID: 3,
		Criteria: Condition{Field: "genre", Operator: OpEquals, Value: StringValue("Action")},
	}}}
	evaluators := []Evaluator{failingEvaluator{}, NewGenreEvaluator(store, zerolog.Nop())}
	router := NewRouterWithEvaluators(evaluators, &memInstanceSource{}, zerolog.Nop())

	ids, err := router.TargetInstances(context.Background(), movieItem("Foo", []string{"Action"}, nil), movieCtx())
	if err != nil {
		t.Fatalf("TargetInstances error = %v, want failing evaluator isolated", err)
	}
	if len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("TargetInstances = %v, want genre decision despite failing evaluator", ids)
	}
}
