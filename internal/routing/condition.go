package routing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Operator enumerates the condition operators.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "notContains"
	OpIn          Operator = "in"
	OpNotIn       Operator = "notIn"
	OpRegex       Operator = "regex"
	OpBetween     Operator = "between"
)

// ValueKind tags the closed set of condition value shapes.
type ValueKind string

const (
	ValueString     ValueKind = "string"
	ValueStringList ValueKind = "stringList"
	ValueInt        ValueKind = "int"
	ValueIntRange   ValueKind = "intRange"
)

// ConditionValue is a tagged union over the value shapes a condition can
// carry. Exactly one payload field is meaningful, selected by Kind.
type ConditionValue struct {
	Kind    ValueKind
	Str     string
	StrList []string
	Int     int64
	Min     int64
	Max     int64
}

// StringValue builds a string-kind value.
func StringValue(s string) ConditionValue {
	return ConditionValue{Kind: ValueString, Str: s}
}

// StringListValue builds a stringList-kind value.
func StringListValue(items ...string) ConditionValue {
	return ConditionValue{Kind: ValueStringList, StrList: items}
}

// IntValue builds an int-kind value.
func IntValue(n int64) ConditionValue {
	return ConditionValue{Kind: ValueInt, Int: n}
}

// RangeValue builds an intRange-kind value for the between operator.
func RangeValue(min, max int64) ConditionValue {
	return ConditionValue{Kind: ValueIntRange, Min: min, Max: max}
}

// MarshalJSON writes the natural JSON shape for each kind: a bare
// string, array, number, or {min,max} object.
func (v ConditionValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueString:
		return json.Marshal(v.Str)
	case ValueStringList:
		return json.Marshal(v.StrList)
	case ValueInt:
		return json.Marshal(v.Int)
	case ValueIntRange:
		return json.Marshal(map[string]int64{"min": v.Min, "max": v.Max})
	default:
		return nil, fmt.Errorf("unknown condition value kind %q", v.Kind)
	}
}

// UnmarshalJSON accepts any of the natural shapes and tags the kind.
func (v *ConditionValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(trimmed, `"`):
		if err := json.Unmarshal(data, &v.Str); err != nil {
			return err
		}
		v.Kind = ValueString
	case strings.HasPrefix(trimmed, "["):
		list, err := decodeStringList(data)
		if err != nil {
			return err
		}
		v.StrList = list
		v.Kind = ValueStringList
	case strings.HasPrefix(trimmed, "{"):
		var r struct {
			Min int64 `json:"min"`
			Max int64 `json:"max"`
		}
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		v.Kind, v.Min, v.Max = ValueIntRange, r.Min, r.Max
	default:
		if err := json.Unmarshal(data, &v.Int); err != nil {
			return err
		}
		v.Kind = ValueInt
	}
	return nil
}

// decodeStringList accepts string and numeric array elements, coercing
// numbers to their literal form so `[1990, 2000]` and `["1990",
// "2000"]` produce the same list.
func decodeStringList(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(raw))
	for _, elem := range raw {
		switch e := elem.(type) {
		case string:
			out = append(out, e)
		case json.Number:
			out = append(out, e.String())
		default:
			return nil, fmt.Errorf("list condition values must be strings or numbers, got %T", elem)
		}
	}
	return out, nil
}

// Condition is the canonical criteria envelope for every rule type.
type Condition struct {
	Field    string         `json:"field"`
	Operator Operator       `json:"operator"`
	Value    ConditionValue `json:"value"`
	Negate   bool           `json:"negate,omitempty"`
}

// matchString applies the condition to a scalar string field value.
// fold selects case-insensitive comparison (used for certifications).
func matchString(cond Condition, value string, fold bool) (bool, error) {
	eq := func(a, b string) bool {
		if fold {
			return strings.EqualFold(a, b)
		}
		return a == b
	}

	switch cond.Operator {
	case OpEquals:
		return eq(value, cond.Value.Str), nil
	case OpNotEquals:
		return !eq(value, cond.Value.Str), nil
	case OpContains:
		if fold {
			return strings.Contains(strings.ToLower(value), strings.ToLower(cond.Value.Str)), nil
		}
		return strings.Contains(value, cond.Value.Str), nil
	case OpNotContains:
		matched, err := matchString(withOperator(cond, OpContains), value, fold)
		return !matched, err
	case OpIn:
		for _, candidate := range cond.Value.StrList {
			if eq(value, candidate) {
				return true, nil
			}
		}
		return false, nil
	case OpNotIn:
		matched, err := matchString(withOperator(cond, OpIn), value, fold)
		return !matched, err
	case OpRegex:
		return safeRegexMatch(cond.Value.Str, value)
	default:
		return false, fmt.Errorf("operator %q not applicable to string field %q", cond.Operator, cond.Field)
	}
}

// matchInt applies the condition to a numeric field value.
func matchInt(cond Condition, value int64) (bool, error) {
	switch cond.Operator {
	case OpEquals:
		return value == conditionInt(cond.Value), nil
	case OpNotEquals:
		return value != conditionInt(cond.Value), nil
	case OpIn:
		for _, candidate := range cond.Value.StrList {
			if n, err := strconv.ParseInt(candidate, 10, 64); err == nil && n == value {
				return true, nil
			}
		}
		return false, nil
	case OpNotIn:
		matched, err := matchInt(withOperator(cond, OpIn), value)
		return !matched, err
	case OpBetween:
		if cond.Value.Kind != ValueIntRange {
			return false, fmt.Errorf("between operator requires a {min,max} value")
		}
		return value >= cond.Value.Min && value <= cond.Value.Max, nil
	default:
		return false, fmt.Errorf("operator %q not applicable to numeric field %q", cond.Operator, cond.Field)
	}
}

// matchStringList applies the condition to a multi-valued string field
// (genres): the condition matches if any element satisfies it.
func matchStringList(cond Condition, values []string) (bool, error) {
	switch cond.Operator {
	case OpNotEquals, OpNotContains, OpNotIn:
		// Negative operators over a list mean "no element matches".
		positive := withOperator(cond, invertOperator(cond.Operator))
		matched, err := matchStringList(positive, values)
		return !matched, err
	default:
	}

	for _, v := range values {
		matched, err := matchString(cond, v, false)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

func withOperator(cond Condition, op Operator) Condition {
	cond.Operator = op
	return cond
}

func invertOperator(op Operator) Operator {
	switch op {
	case OpNotEquals:
		return OpEquals
	case OpNotContains:
		return OpContains
	case OpNotIn:
		return OpIn
	default:
		return op
	}
}

func conditionInt(v ConditionValue) int64 {
	if v.Kind == ValueInt {
		return v.Int
	}
	if v.Kind == ValueString {
		if n, err := strconv.ParseInt(v.Str, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// applyNegate inverts the raw match result when the condition's negate
// flag is set.
func applyNegate(cond Condition, matched bool) bool {
	if cond.Negate {
		return !matched
	}
	return matched
}
