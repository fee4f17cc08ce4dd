package routing

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
)

// GenreEvaluator matches rules against the item's genre list.
type GenreEvaluator struct {
	store  RuleStore
	logger zerolog.Logger
}

// NewGenreEvaluator creates a genre evaluator.
func NewGenreEvaluator(store RuleStore, logger zerolog.Logger) *GenreEvaluator {
	return &GenreEvaluator{store: store, logger: logger.With().Str("evaluator", "genre").Logger()}
}

func (e *GenreEvaluator) Name() string  { return "genre" }
func (e *GenreEvaluator) Priority() int { return PriorityGenre }

func (e *GenreEvaluator) CanEvaluate(item ContentItem, rctx Context) bool {
	return typesAgree(item, rctx) && len(item.Genres) > 0
}

func (e *GenreEvaluator) Evaluate(ctx context.Context, item ContentItem, rctx Context) ([]Decision, error) {
	return evaluateRules(ctx, e, e.store, RuleGenre, item, rctx, e.logger)
}

func (e *GenreEvaluator) CanEvaluateConditionField(field string) bool {
	return field == "genre" || field == "genres"
}

func (e *GenreEvaluator) EvaluateCondition(_ context.Context, cond Condition, item ContentItem, _ Context) (bool, error) {
	matched, err := matchStringList(cond, item.Genres)
	if err != nil {
		return false, err
	}
	return applyNegate(cond, matched), nil
}

// YearEvaluator matches rules against the item's release year from
// provider metadata.
type YearEvaluator struct {
	store  RuleStore
	logger zerolog.Logger
}

// NewYearEvaluator creates a year evaluator.
func NewYearEvaluator(store RuleStore, logger zerolog.Logger) *YearEvaluator {
	return &YearEvaluator{store: store, logger: logger.With().Str("evaluator", "year").Logger()}
}

func (e *YearEvaluator) Name() string  { return "year" }
func (e *YearEvaluator) Priority() int { return PriorityYear }

func (e *YearEvaluator) CanEvaluate(item ContentItem, rctx Context) bool {
	if !typesAgree(item, rctx) {
		return false
	}
	_, ok := item.Metadata.Year()
	return ok
}

func (e *YearEvaluator) Evaluate(ctx context.Context, item ContentItem, rctx Context) ([]Decision, error) {
	return evaluateRules(ctx, e, e.store, RuleYear, item, rctx, e.logger)
}

func (e *YearEvaluator) CanEvaluateConditionField(field string) bool {
	return field == "year"
}

func (e *YearEvaluator) EvaluateCondition(_ context.Context, cond Condition, item ContentItem, _ Context) (bool, error) {
	year, ok := item.Metadata.Year()
	if !ok {
		return false, fmt.Errorf("item %q has no year metadata", item.Title)
	}
	matched, err := matchInt(cond, int64(year))
	if err != nil {
		return false, err
	}
	return applyNegate(cond, matched), nil
}

// LanguageEvaluator matches rules against the original language from
// provider metadata.
type LanguageEvaluator struct {
	store  RuleStore
	logger zerolog.Logger
}

// NewLanguageEvaluator creates a language evaluator.
func NewLanguageEvaluator(store RuleStore, logger zerolog.Logger) *LanguageEvaluator {
	return &LanguageEvaluator{store: store, logger: logger.With().Str("evaluator", "language").Logger()}
}

func (e *LanguageEvaluator) Name() string  { return "language" }
func (e *LanguageEvaluator) Priority() int { return PriorityLanguage }

func (e *LanguageEvaluator) CanEvaluate(item ContentItem, rctx Context) bool {
	if !typesAgree(item, rctx) {
		return false
	}
	_, ok := item.Metadata.Language()
	return ok
}

func (e *LanguageEvaluator) Evaluate(ctx context.Context, item ContentItem, rctx Context) ([]Decision, error) {
	return evaluateRules(ctx, e, e.store, RuleLanguage, item, rctx, e.logger)
}

func (e *LanguageEvaluator) CanEvaluateConditionField(field string) bool {
	return field == "language" || field == "originalLanguage"
}

func (e *LanguageEvaluator) EvaluateCondition(_ context.Context, cond Condition, item ContentItem, _ Context) (bool, error) {
	language, ok := item.Metadata.Language()
	if !ok {
		return false, fmt.Errorf("item %q has no language metadata", item.Title)
	}
	matched, err := matchString(cond, language, false)
	if err != nil {
		return false, err
	}
	return applyNegate(cond, matched), nil
}

// CertificationEvaluator matches rules against the content rating.
// Comparisons are case-insensitive: "pg-13" and "PG-13" are the same
// certification.
type CertificationEvaluator struct {
	store  RuleStore
	logger zerolog.Logger
}

// NewCertificationEvaluator creates a certification evaluator.
func NewCertificationEvaluator(store RuleStore, logger zerolog.Logger) *CertificationEvaluator {
	return &CertificationEvaluator{store: store, logger: logger.With().Str("evaluator", "certification").Logger()}
}

func (e *CertificationEvaluator) Name() string  { return "certification" }
func (e *CertificationEvaluator) Priority() int { return PriorityCertification }

func (e *CertificationEvaluator) CanEvaluate(item ContentItem, rctx Context) bool {
	if !typesAgree(item, rctx) {
		return false
	}
	_, ok := item.Metadata.Certification()
	return ok
}

func (e *CertificationEvaluator) Evaluate(ctx context.Context, item ContentItem, rctx Context) ([]Decision, error) {
	return evaluateRules(ctx, e, e.store, RuleCertification, item, rctx, e.logger)
}

func (e *CertificationEvaluator) CanEvaluateConditionField(field string) bool {
	return field == "certification"
}

func (e *CertificationEvaluator) EvaluateCondition(_ context.Context, cond Condition, item ContentItem, _ Context) (bool, error) {
	certification, ok := item.Metadata.Certification()
	if !ok {
		return false, fmt.Errorf("item %q has no certification metadata", item.Title)
	}
	matched, err := matchString(cond, certification, true)
	if err != nil {
		return false, err
	}
	return applyNegate(cond, matched), nil
}

// UserEvaluator matches rules against the requesting user. String
// values compare against the user name; numeric values compare against
// the user id.
type UserEvaluator struct {
	store  RuleStore
	logger zerolog.Logger
}

// NewUserEvaluator creates a user evaluator.
func NewUserEvaluator(store RuleStore, logger zerolog.Logger) *UserEvaluator {
	return &UserEvaluator{store: store, logger: logger.With().Str("evaluator", "user").Logger()}
}

func (e *UserEvaluator) Name() string  { return "user" }
func (e *UserEvaluator) Priority() int { return PriorityUser }

func (e *UserEvaluator) CanEvaluate(item ContentItem, rctx Context) bool {
	return typesAgree(item, rctx) && (rctx.UserID > 0 || rctx.UserName != "")
}

func (e *UserEvaluator) Evaluate(ctx context.Context, item ContentItem, rctx Context) ([]Decision, error) {
	return evaluateRules(ctx, e, e.store, RuleUser, item, rctx, e.logger)
}

func (e *UserEvaluator) CanEvaluateConditionField(field string) bool {
	return field == "user" || field == "userId" || field == "userName"
}

func (e *UserEvaluator) EvaluateCondition(_ context.Context, cond Condition, _ ContentItem, rctx Context) (bool, error) {
	var matched bool
	var err error
	switch {
	case cond.Field == "userId" || cond.Value.Kind == ValueInt:
		matched, err = matchInt(cond, rctx.UserID)
	case cond.Value.Kind == ValueString && isNumeric(cond.Value.Str):
		matched, err = matchInt(cond, rctx.UserID)
	default:
		matched, err = matchString(cond, rctx.UserName, false)
	}
	if err != nil {
		return false, err
	}
	return applyNegate(cond, matched), nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// ConditionalEvaluator handles the generic conditional rule type by
// delegating field matching to whichever evaluator owns the condition's
// field, so the conditional type reuses genre/year/language/
// certification/user logic without duplicating it.
type ConditionalEvaluator struct {
	store     RuleStore
	delegates []Evaluator
	logger    zerolog.Logger
}

// NewConditionalEvaluator creates a conditional evaluator over the
// given delegates.
func NewConditionalEvaluator(store RuleStore, delegates []Evaluator, logger zerolog.Logger) *ConditionalEvaluator {
	return &ConditionalEvaluator{
		store:     store,
		delegates: delegates,
		logger:    logger.With().Str("evaluator", "conditional").Logger(),
	}
}

func (e *ConditionalEvaluator) Name() string  { return "conditional" }
func (e *ConditionalEvaluator) Priority() int { return PriorityConditional }

func (e *ConditionalEvaluator) CanEvaluate(item ContentItem, rctx Context) bool {
	return typesAgree(item, rctx)
}

func (e *ConditionalEvaluator) Evaluate(ctx context.Context, item ContentItem, rctx Context) ([]Decision, error) {
	return evaluateRules(ctx, e, e.store, RuleConditional, item, rctx, e.logger)
}

// CanEvaluateConditionField is false for every field: the conditional
// evaluator never delegates to itself.
func (e *ConditionalEvaluator) CanEvaluateConditionField(string) bool { return false }

func (e *ConditionalEvaluator) EvaluateCondition(ctx context.Context, cond Condition, item ContentItem, rctx Context) (bool, error) {
	for _, delegate := range e.delegates {
		if !delegate.CanEvaluateConditionField(cond.Field) {
			continue
		}
		if !delegate.CanEvaluate(item, rctx) {
			// Field owner exists but the item lacks the data; a
			// condition over absent data cannot match.
			return applyNegate(cond, false), nil
		}
		return delegate.EvaluateCondition(ctx, cond, item, rctx)
	}
	return false, fmt.Errorf("no evaluator handles condition field %q", cond.Field)
}
