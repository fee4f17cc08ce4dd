package routing

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/relayarr/relayarr/internal/arr"
)

// InstanceSource supplies the fallback default instance per service
// type. Implemented by the database store.
type InstanceSource interface {
	DefaultInstance(ctx context.Context, service arr.ServiceType) (*arr.Instance, error)
}

// Router orders the evaluators by priority, aggregates their decisions,
// and falls back to the default instance plus its synced instances when
// no rule matches.
type Router struct {
	evaluators []Evaluator
	instances  InstanceSource
	logger     zerolog.Logger
}

// NewRouter builds a router over the standard evaluator set. The
// conditional evaluator delegates field matching to the others.
func NewRouter(store RuleStore, instances InstanceSource, logger zerolog.Logger) *Router {
	delegates := []Evaluator{
		NewUserEvaluator(store, logger),
		NewLanguageEvaluator(store, logger),
		NewCertificationEvaluator(store, logger),
		NewGenreEvaluator(store, logger),
		NewYearEvaluator(store, logger),
	}
	evaluators := append([]Evaluator{}, delegates...)
	evaluators = append(evaluators, NewConditionalEvaluator(store, delegates, logger))

	return NewRouterWithEvaluators(evaluators, instances, logger)
}

// NewRouterWithEvaluators builds a router over an explicit evaluator
// set, sorted by priority descending.
func NewRouterWithEvaluators(evaluators []Evaluator, instances InstanceSource, logger zerolog.Logger) *Router {
	sorted := append([]Evaluator{}, evaluators...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &Router{
		evaluators: sorted,
		instances:  instances,
		logger:     logger.With().Str("component", "router").Logger(),
	}
}

// Route runs every applicable evaluator and returns one decision per
// target instance. Per-instance conflicts keep the highest-priority
// decision, ties broken by smaller rule order. An individual
// evaluator's failure never aborts routing for the others.
func (r *Router) Route(ctx context.Context, item ContentItem, rctx Context) ([]Decision, error) {
	var collected []Decision
	for _, e := range r.evaluators {
		if !e.CanEvaluate(item, rctx) {
			continue
		}
		decisions, err := e.Evaluate(ctx, item, rctx)
		if err != nil {
			r.logger.Warn().Err(err).
				Str("evaluator", e.Name()).
				Str("title", item.Title).
				Msg("evaluator failed, continuing with remaining evaluators")
			continue
		}
		collected = append(collected, decisions...)
	}

	if len(collected) > 0 {
		return resolveConflicts(collected), nil
	}
	return r.fallback(ctx, item)
}

// TargetInstances returns just the resolved instance ids.
func (r *Router) TargetInstances(ctx context.Context, item ContentItem, rctx Context) ([]int64, error) {
	decisions, err := r.Route(ctx, item, rctx)
	if err != nil {
		return nil, err
	}
	return InstanceIDs(decisions), nil
}

// resolveConflicts keeps, per instance, the decision with the highest
// priority; equal priorities are broken by smaller rule order.
func resolveConflicts(decisions []Decision) []Decision {
	best := make(map[int64]Decision, len(decisions))
	var order []int64
	for _, d := range decisions {
		current, seen := best[d.InstanceID]
		if !seen {
			best[d.InstanceID] = d
			order = append(order, d.InstanceID)
			continue
		}
		if d.Priority > current.Priority ||
			(d.Priority == current.Priority && d.RuleOrder < current.RuleOrder) {
			best[d.InstanceID] = d
		}
	}

	out := make([]Decision, 0, len(best))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

// fallback addresses the default instance and all of its synced
// instances. Unreachable instances are not excluded here; dispatch's
// existence checks own that concern. Routing always returns the
// best-effort address list.
func (r *Router) fallback(ctx context.Context, item ContentItem) ([]Decision, error) {
	def, err := r.instances.DefaultInstance(ctx, item.Type.Service())
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, nil
	}

	seen := map[int64]struct{}{def.ID: {}}
	decisions := []Decision{{InstanceID: def.ID}}
	for _, synced := range def.SyncedInstances {
		if _, dup := seen[synced]; dup {
			continue
		}
		seen[synced] = struct{}{}
		decisions = append(decisions, Decision{InstanceID: synced})
	}
	return decisions, nil
}

// InstanceIDs extracts the instance ids from a decision set.
func InstanceIDs(decisions []Decision) []int64 {
	ids := make([]int64, 0, len(decisions))
	for _, d := range decisions {
		ids = append(ids, d.InstanceID)
	}
	return ids
}
