package routing

import (
	"context"

	"github.com/rs/zerolog"
)

// Evaluator priorities. The only hard requirement is a stable total
// order for breaking ties when multiple evaluators produce decisions
// for overlapping instances.
const (
	PriorityUser          = 75
	PriorityLanguage      = 65
	PriorityCertification = 60
	PriorityGenre         = 50
	PriorityYear          = 45
	PriorityConditional   = 40
)

// RuleStore reads persisted router rules. Implemented by the database
// store; evaluators only ever read rules.
type RuleStore interface {
	RouterRulesByType(ctx context.Context, ruleType RuleType) ([]RouterRule, error)
}

// Evaluator is one pluggable routing rule unit. Evaluate returning nil
// means "no opinion"; evaluators never return a non-nil empty slice.
// The condition methods form the secondary interface the conditional
// evaluator delegates field-specific matching through.
type Evaluator interface {
	Name() string
	Priority() int
	CanEvaluate(item ContentItem, rctx Context) bool
	Evaluate(ctx context.Context, item ContentItem, rctx Context) ([]Decision, error)
	CanEvaluateConditionField(field string) bool
	EvaluateCondition(ctx context.Context, cond Condition, item ContentItem, rctx Context) (bool, error)
}

// typesAgree rejects item/context content type mismatches. Evaluators
// must refuse to guess when the two disagree.
func typesAgree(item ContentItem, rctx Context) bool {
	if item.Type != MediaTypeMovie && item.Type != MediaTypeShow {
		return false
	}
	return item.Type == rctx.ContentType
}

// evaluateRules runs the shared rule loop for one evaluator: load
// enabled rules of its type targeting the item's service, apply the
// evaluator's condition matching, and emit one decision per matching
// rule. A rule that fails to evaluate (bad regex, malformed criteria)
// is logged and skipped; it never aborts the remaining rules.
func evaluateRules(
	ctx context.Context,
	e Evaluator,
	store RuleStore,
	ruleType RuleType,
	item ContentItem,
	rctx Context,
	logger zerolog.Logger,
) ([]Decision, error) {
	rules, err := store.RouterRulesByType(ctx, ruleType)
	if err != nil {
		return nil, err
	}

	service := item.Type.Service()
	var decisions []Decision
	for _, rule := range rules {
		if !rule.Enabled || rule.TargetType != service {
			continue
		}

		matched, err := e.EvaluateCondition(ctx, rule.Criteria, item, rctx)
		if err != nil {
			logger.Warn().Err(err).
				Int64("ruleId", rule.ID).
				Str("rule", rule.Name).
				Str("evaluator", e.Name()).
				Msg("rule evaluation failed, skipping rule")
			continue
		}
		if !matched {
			continue
		}

		decisions = append(decisions, Decision{
			InstanceID:     rule.TargetInstanceID,
			QualityProfile: rule.QualityProfile,
			RootFolder:     rule.RootFolder,
			Priority:       e.Priority(),
			RuleOrder:      rule.Order,
		})
	}

	if len(decisions) == 0 {
		return nil, nil
	}
	return decisions, nil
}
