package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/relayarr/relayarr/internal/arr"
	"github.com/relayarr/relayarr/internal/routing"
)

// ErrRuleNotFound is returned for an unknown router rule id.
var ErrRuleNotFound = errors.New("database: router rule not found")

// storedCriteria is the canonical on-disk criteria envelope.
type storedCriteria struct {
	Condition routing.Condition `json:"condition"`
}

func encodeCriteria(cond routing.Condition) (string, error) {
	data, err := json.Marshal(storedCriteria{Condition: cond})
	if err != nil {
		return "", fmt.Errorf("failed to encode rule criteria: %w", err)
	}
	return string(data), nil
}

// decodeCriteria reads a criteria column into the canonical condition.
// Rows written by earlier releases stored flat per-type shapes like
// {"genre":"Anime"} or {"min":1990,"max":1999}; those are translated
// here so the rest of the system only ever sees the envelope.
func decodeCriteria(ruleType routing.RuleType, raw string) (routing.Condition, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return routing.Condition{}, fmt.Errorf("invalid criteria for %s rule: %w", ruleType, err)
	}

	if inner, ok := fields["condition"]; ok {
		var cond routing.Condition
		if err := json.Unmarshal(inner, &cond); err != nil {
			return routing.Condition{}, fmt.Errorf("invalid condition envelope for %s rule: %w", ruleType, err)
		}
		return cond, nil
	}

	return translateLegacyCriteria(ruleType, fields)
}

func translateLegacyCriteria(ruleType routing.RuleType, fields map[string]json.RawMessage) (routing.Condition, error) {
	switch ruleType {
	case routing.RuleGenre:
		raw, ok := fields["genre"]
		if !ok {
			raw, ok = fields["genres"]
		}
		if !ok {
			return routing.Condition{}, fmt.Errorf("legacy genre criteria missing genre field")
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil {
			return routing.Condition{Field: "genre", Operator: routing.OpIn, Value: routing.StringListValue(list...)}, nil
		}
		var one string
		if err := json.Unmarshal(raw, &one); err != nil {
			return routing.Condition{}, fmt.Errorf("legacy genre criteria has unusable value")
		}
		return routing.Condition{Field: "genre", Operator: routing.OpEquals, Value: routing.StringValue(one)}, nil

	case routing.RuleYear:
		if raw, ok := fields["year"]; ok {
			var year int64
			if err := json.Unmarshal(raw, &year); err != nil {
				return routing.Condition{}, fmt.Errorf("legacy year criteria has unusable value")
			}
			return routing.Condition{Field: "year", Operator: routing.OpEquals, Value: routing.IntValue(year)}, nil
		}
		var min, max int64
		if raw, ok := fields["min"]; ok {
			if err := json.Unmarshal(raw, &min); err != nil {
				return routing.Condition{}, fmt.Errorf("legacy year criteria has unusable min")
			}
		}
		if raw, ok := fields["max"]; ok {
			if err := json.Unmarshal(raw, &max); err != nil {
				return routing.Condition{}, fmt.Errorf("legacy year criteria has unusable max")
			}
		}
		if min == 0 && max == 0 {
			return routing.Condition{}, fmt.Errorf("legacy year criteria missing year or min/max")
		}
		return routing.Condition{Field: "year", Operator: routing.OpBetween, Value: routing.RangeValue(min, max)}, nil

	case routing.RuleLanguage:
		return legacyStringCondition(fields, "language", "language")

	case routing.RuleCertification:
		return legacyStringCondition(fields, "certification", "certification")

	case routing.RuleUser:
		cond, err := legacyStringCondition(fields, "user", "user")
		if err == nil {
			return cond, nil
		}
		if raw, ok := fields["userId"]; ok {
			var id int64
			if err := json.Unmarshal(raw, &id); err != nil {
				return routing.Condition{}, fmt.Errorf("legacy user criteria has unusable userId")
			}
			return routing.Condition{Field: "user", Operator: routing.OpEquals, Value: routing.IntValue(id)}, nil
		}
		return routing.Condition{}, err

	case routing.RuleConditional:
		// Conditional rules postdate the flat shapes; they are only
		// ever written as envelopes.
		return routing.Condition{}, fmt.Errorf("conditional rule criteria must carry a condition envelope")

	default:
		return routing.Condition{}, fmt.Errorf("unknown rule type %q", ruleType)
	}
}

func legacyStringCondition(fields map[string]json.RawMessage, key, field string) (routing.Condition, error) {
	raw, ok := fields[key]
	if !ok {
		return routing.Condition{}, fmt.Errorf("legacy %s criteria missing %s field", field, key)
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return routing.Condition{Field: field, Operator: routing.OpEquals, Value: routing.StringValue(one)}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return routing.Condition{Field: field, Operator: routing.OpIn, Value: routing.StringListValue(list...)}, nil
	}
	return routing.Condition{}, fmt.Errorf("legacy %s criteria has unusable value", field)
}

const ruleColumns = "id, name, type, criteria, target_type, target_instance_id, quality_profile, root_folder, rule_order, enabled"

func (s *Store) scanRule(row interface{ Scan(dest ...any) error }) (routing.RouterRule, error) {
	var (
		rule     routing.RouterRule
		criteria string
	)
	err := row.Scan(&rule.ID, &rule.Name, &rule.Type, &criteria, &rule.TargetType,
		&rule.TargetInstanceID, &rule.QualityProfile, &rule.RootFolder, &rule.Order, &rule.Enabled)
	if err != nil {
		return routing.RouterRule{}, err
	}
	cond, err := decodeCriteria(rule.Type, criteria)
	if err != nil {
		return routing.RouterRule{}, fmt.Errorf("rule %d: %w", rule.ID, err)
	}
	rule.Criteria = cond
	return rule, nil
}

// RouterRulesByType returns rules of one type ordered by rule_order,
// translating legacy criteria as they are read. A row whose criteria
// cannot be decoded is skipped with a warning rather than poisoning
// every routing call.
func (s *Store) RouterRulesByType(ctx context.Context, ruleType routing.RuleType) ([]routing.RouterRule, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ruleColumns+" FROM router_rules WHERE type = ? ORDER BY rule_order, id", ruleType)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s rules: %w", ruleType, err)
	}
	defer rows.Close()

	var out []routing.RouterRule
	for rows.Next() {
		rule, err := s.scanRule(rows)
		if err != nil {
			s.logger.Warn().Err(err).Str("ruleType", string(ruleType)).Msg("skipping undecodable router rule")
			continue
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// AllRouterRules returns every rule across all types, ordered by type
// then rule_order.
func (s *Store) AllRouterRules(ctx context.Context) ([]routing.RouterRule, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ruleColumns+" FROM router_rules ORDER BY type, rule_order, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list router rules: %w", err)
	}
	defer rows.Close()

	var out []routing.RouterRule
	for rows.Next() {
		rule, err := s.scanRule(rows)
		if err != nil {
			s.logger.Warn().Err(err).Msg("skipping undecodable router rule")
			continue
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// GetRouterRule returns one rule by id.
func (s *Store) GetRouterRule(ctx context.Context, id int64) (*routing.RouterRule, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+ruleColumns+" FROM router_rules WHERE id = ?", id)
	rule, err := s.scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRuleNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// CreateRouterRule inserts a rule, always in the canonical criteria
// shape regardless of what the caller was handed.
func (s *Store) CreateRouterRule(ctx context.Context, rule routing.RouterRule) (int64, error) {
	if err := validateRule(rule); err != nil {
		return 0, err
	}
	criteria, err := encodeCriteria(rule.Criteria)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO router_rules (name, type, criteria, target_type, target_instance_id, quality_profile, root_folder, rule_order, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.Name, rule.Type, criteria, rule.TargetType, rule.TargetInstanceID,
		rule.QualityProfile, rule.RootFolder, rule.Order, rule.Enabled)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s rule: %w", rule.Type, err)
	}
	return res.LastInsertId()
}

// UpdateRouterRule replaces every mutable field of a rule.
func (s *Store) UpdateRouterRule(ctx context.Context, rule routing.RouterRule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	criteria, err := encodeCriteria(rule.Criteria)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE router_rules
		SET name = ?, type = ?, criteria = ?, target_type = ?, target_instance_id = ?,
		    quality_profile = ?, root_folder = ?, rule_order = ?, enabled = ?
		WHERE id = ?`,
		rule.Name, rule.Type, criteria, rule.TargetType, rule.TargetInstanceID,
		rule.QualityProfile, rule.RootFolder, rule.Order, rule.Enabled, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule %d: %w", rule.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrRuleNotFound, rule.ID)
	}
	return nil
}

// DeleteRouterRule removes a rule by id.
func (s *Store) DeleteRouterRule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM router_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrRuleNotFound, id)
	}
	return nil
}

func validateRule(rule routing.RouterRule) error {
	valid := false
	for _, t := range routing.RuleTypes() {
		if rule.Type == t {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("invalid rule type %q", rule.Type)
	}
	if rule.TargetType != arr.ServiceRadarr && rule.TargetType != arr.ServiceSonarr {
		return fmt.Errorf("invalid rule target type %q", rule.TargetType)
	}
	if rule.TargetInstanceID <= 0 {
		return fmt.Errorf("rule target instance id must be set")
	}
	if rule.Criteria.Field == "" || rule.Criteria.Operator == "" {
		return fmt.Errorf("rule criteria must carry a field and operator")
	}
	return nil
}
