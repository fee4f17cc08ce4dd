package routing

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/relayarr/relayarr/internal/arr"
)

// memRuleStore serves rules from memory.
type memRuleStore struct {
	rules []RouterRule
}

func (s *memRuleStore) RouterRulesByType(_ context.Context, ruleType RuleType) ([]RouterRule, error) {
	var out []RouterRule
	for _, r := range s.rules {
		if r.Type == ruleType {
			out = append(out, r)
		}
	}
	return out, nil
}

func movieItem(title string, genres []string, meta *Metadata) ContentItem {
	return ContentItem{Title: title, Type: MediaTypeMovie, Genres: genres, Metadata: meta}
}

func movieCtx() Context {
	return Context{UserID: 1, UserName: "alice", ItemKey: "key-1", ContentType: MediaTypeMovie}
}

func radarrMeta(m arr.Movie) *Metadata {
	return &Metadata{Source: MetadataRadarr, Radarr: &m}
}

func TestGenreEvaluator_Match(t *testing.T) {
	store := &memRuleStore{rules: []RouterRule{{
		ID: 1, Name: "anime to 2", Type: RuleGenre, Enabled: true,
		TargetType: arr.ServiceRadarr, TargetInstanceID: 2, Order: 10,
		Criteria: Condition{Field: "genre", Operator: OpEquals, Value: StringValue("Anime")},
	}}}
	e := NewGenreEvaluator(store, zerolog.Nop())

	item := movieItem("Foo", []string{"Anime"}, nil)
	rctx := movieCtx()

	if !e.CanEvaluate(item, rctx) {
		t.Fatal("CanEvaluate should be true for an item with genres")
	}

	decisions, err := e.Evaluate(context.Background(), item, rctx)
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if len(decisions) != 1 || decisions[0].InstanceID != 2 {
		t.Fatalf("Evaluate = %+v, want one decision for instance 2", decisions)
	}
	if decisions[0].Priority != PriorityGenre {
		t.Errorf("Priority = %d, want %d", decisions[0].Priority, PriorityGenre)
	}
}

func TestGenreEvaluator_NoGenresNoOpinion(t *testing.T) {
	e := NewGenreEvaluator(&memRuleStore{}, zerolog.Nop())
	if e.CanEvaluate(movieItem("Foo", nil, nil), movieCtx()) {
		t.Error("CanEvaluate must be false without genre data")
	}
}

func TestEvaluators_RejectTypeMismatch(t *testing.T) {
	// A show context paired with a movie item must be rejected, not
	// guessed at.
	store := &memRuleStore{}
	item := movieItem("Foo", []string{"Anime"}, radarrMeta(arr.Movie{Year: 2020, Certification: "PG-13", OriginalLanguage: arr.Language{Name: "English"}}))
	rctx := movieCtx()
	rctx.ContentType = MediaTypeShow

	evaluators := []Evaluator{
		NewGenreEvaluator(store, zerolog.Nop()),
		NewYearEvaluator(store, zerolog.Nop()),
		NewLanguageEvaluator(store, zerolog.Nop()),
		NewCertificationEvaluator(store, zerolog.Nop()),
		NewUserEvaluator(store, zerolog.Nop()),
		NewConditionalEvaluator(store, nil, zerolog.Nop()),
	}
	for _, e := range evaluators {
		if e.CanEvaluate(item, rctx) {
			t.Errorf("%s.CanEvaluate should reject item/context type mismatch", e.Name())
		}
	}
}

func TestEvaluator_DisabledAndWrongTargetRulesSkipped(t *testing.T) {
	store := &memRuleStore{rules: []RouterRule{
		{ID: 1, Type: RuleGenre, Enabled: false, TargetType: arr.ServiceRadarr, TargetInstanceID: 2,
			Criteria: Condition{Field: "genre", Operator: OpEquals, Value: StringValue("Anime")}},
		{ID: 2, Type: RuleGenre, Enabled: true, TargetType: arr.ServiceSonarr, TargetInstanceID: 3,
			Criteria: Condition{Field: "genre", Operator: OpEquals, Value: StringValue("Anime")}},
	}}
	e := NewGenreEvaluator(store, zerolog.Nop())

	decisions, err := e.Evaluate(context.Background(), movieItem("Foo", []string{"Anime"}, nil), movieCtx())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if decisions != nil {
		t.Errorf("Evaluate = %+v, want nil (disabled rule and sonarr target skipped for a movie)", decisions)
	}
}

func TestYearEvaluator_Between(t *testing.T) {
	store := &memRuleStore{rules: []RouterRule{{
		ID: 1, Type: RuleYear, Enabled: true, TargetType: arr.ServiceRadarr, TargetInstanceID: 4,
		Criteria: Condition{Field: "year", Operator: OpBetween, Value: RangeValue(1990, 1999)},
	}}}
	e := NewYearEvaluator(store, zerolog.Nop())

	item := movieItem("The Matrix", nil, radarrMeta(arr.Movie{Year: 1999}))
	decisions, err := e.Evaluate(context.Background(), item, movieCtx())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if len(decisions) != 1 || decisions[0].InstanceID != 4 {
		t.Fatalf("Evaluate = %+v, want instance 4", decisions)
	}

	if e.CanEvaluate(movieItem("No meta", nil, nil), movieCtx()) {
		t.Error("CanEvaluate must be false without year metadata")
	}
}

func TestCertificationEvaluator_CaseInsensitive(t *testing.T) {
	store := &memRuleStore{rules: []RouterRule{{
		ID: 1, Type: RuleCertification, Enabled: true, TargetType: arr.ServiceRadarr, TargetInstanceID: 5,
		Criteria: Condition{Field: "certification", Operator: OpEquals, Value: StringValue("pg-13")},
	}}}
	e := NewCertificationEvaluator(store, zerolog.Nop())

	item := movieItem("Foo", nil, radarrMeta(arr.Movie{Certification: "PG-13"}))
	decisions, err := e.Evaluate(context.Background(), item, movieCtx())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if len(decisions) != 1 {
		t.Fatal("certification comparison must be case-insensitive")
	}
}

func TestUserEvaluator_NameAndID(t *testing.T) {
	store := &memRuleStore{rules: []RouterRule{
		{ID: 1, Type: RuleUser, Enabled: true, TargetType: arr.ServiceRadarr, TargetInstanceID: 6,
			Criteria: Condition{Field: "user", Operator: OpEquals, Value: StringValue("alice")}},
		{ID: 2, Type: RuleUser, Enabled: true, TargetType: arr.ServiceRadarr, TargetInstanceID: 7,
			Criteria: Condition{Field: "userId", Operator: OpEquals, Value: IntValue(1)}},
	}}
	e := NewUserEvaluator(store, zerolog.Nop())

	decisions, err := e.Evaluate(context.Background(), movieItem("Foo", nil, nil), movieCtx())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("Evaluate = %+v, want matches by both name and id", decisions)
	}
}

func TestConditionalEvaluator_DelegatesByField(t *testing.T) {
	store := &memRuleStore{rules: []RouterRule{{
		ID: 1, Type: RuleConditional, Enabled: true, TargetType: arr.ServiceRadarr, TargetInstanceID: 8,
		Criteria: Condition{Field: "genre", Operator: OpContains, Value: StringValue("Horror")},
	}}}

	delegates := []Evaluator{
		NewGenreEvaluator(store, zerolog.Nop()),
		NewYearEvaluator(store, zerolog.Nop()),
	}
	e := NewConditionalEvaluator(store, delegates, zerolog.Nop())

	item := movieItem("Foo", []string{"Horror"}, nil)
	decisions, err := e.Evaluate(context.Background(), item, movieCtx())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if len(decisions) != 1 || decisions[0].InstanceID != 8 {
		t.Fatalf("Evaluate = %+v, want instance 8 via genre delegate", decisions)
	}
	if decisions[0].Priority != PriorityConditional {
		t.Errorf("Priority = %d, want conditional's own priority", decisions[0].Priority)
	}
}

func TestConditionalEvaluator_NegatedCondition(t *testing.T) {
	store := &memRuleStore{rules: []RouterRule{{
		ID: 1, Type: RuleConditional, Enabled: true, TargetType: arr.ServiceRadarr, TargetInstanceID: 9,
		Criteria: Condition{Field: "genre", Operator: OpEquals, Value: StringValue("Documentary"), Negate: true},
	}}}
	delegates := []Evaluator{NewGenreEvaluator(store, zerolog.Nop())}
	e := NewConditionalEvaluator(store, delegates, zerolog.Nop())

	item := movieItem("Foo", []string{"Action"}, nil)
	decisions, err := e.Evaluate(context.Background(), item, movieCtx())
	if err != nil {
		t.Fatalf("Evaluate error = %v", err)
	}
	if len(decisions) != 1 {
		t.Fatal("negated non-match should produce a decision")
	}
}

func TestConditionalEvaluator_UnknownFieldSkipsRule(t *testing.T) {
	store := &memRuleStore{rules: []RouterRule{{
		ID: 1, Name: "bogus", Type: RuleConditional, Enabled: true,
		TargetType: arr.ServiceRadarr, TargetInstanceID: 9,
		Criteria: Condition{Field: "studio", Operator: OpEquals, Value: StringValue("A24")},
	}}}
	e := NewConditionalEvaluator(store, []Evaluator{NewGenreEvaluator(store, zerolog.Nop())}, zerolog.Nop())

	decisions, err := e.Evaluate(context.Background(), movieItem("Foo", []string{"Drama"}, nil), movieCtx())
	if err != nil {
		t.Fatalf("Evaluate error = %v (rule failures are logged and skipped)", err)
	}
	if decisions != nil {
		t.Errorf("Evaluate = %+v, want nil with the unknown-field rule skipped", decisions)
	}
}

func TestEvaluator_InvalidRegexSkippedNotThrown(t *testing.T) {
	store := &memRuleStore{rules: []RouterRule{
		{ID: 1, Name: "bad regex", Type: RuleGenre, Enabled: true, TargetType: arr.ServiceRadarr, TargetInstanceID: 2,
			Criteria: Condition{Field: "genre", Operator: OpRegex, Value: StringValue("([")}},
		{ID: 2, Name: "good", Type: RuleGenre, Enabled: true, TargetType: arr.ServiceRadarr, TargetInstanceID: 3,
			Criteria: Condition{Field: "genre", Operator: OpEquals, Value: StringValue("Action")}},
	}}
	e := NewGenreEvaluator(store, zerolog.Nop())

	decisions, err := e.Evaluate(context.Background(), movieItem("Foo", []string{"Action"}, nil), movieCtx())
	if err != nil {
		t.Fatalf("Evaluate error = %v, want bad-regex rule skipped", err)
	}
	if len(decisions) != 1 || decisions[0].InstanceID != 3 {
		t.Fatalf("Evaluate = %+v, want only the valid rule's decision", decisions)
	}
}
