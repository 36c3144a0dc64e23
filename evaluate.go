package condfilter

import (
	"strings"

	"github.com/samber/lo"
)

// EvaluateRule reports whether the item matches the rule.
// Disabled rules are not consulted here; callers filter them out.
func (e *Engine) EvaluateRule(item map[string]any, rule *Rule) bool {
	if rule == nil {
		return true
	}
	return e.evaluate(item, rule)
}

// EvaluateGroup combines the enabled rules of the group with the group logic.
// An empty or all-disabled group passes.
func (e *Engine) EvaluateGroup(item map[string]any, group *Group) bool {
	if group == nil {
		return true
	}
	rules := group.EnabledRules()
	if len(rules) == 0 {
		return true
	}
	results := make([]bool, len(rules))
	for i := range rules {
		results[i] = e.evaluate(item, &rules[i])
	}
	return combine(results, group.Logic)
}

func combine(results []bool, logic Logic) bool {
	if len(results) == 0 {
		return true
	}
	if logic.OrDefault() == LogicOr {
		return lo.Contains(results, true)
	}
	return !lo.Contains(results, false)
}

func (e *Engine) evaluateBuiltin(item map[string]any, rule *Rule) bool {
	fieldValue, found := Lookup(item, rule.Field)

	switch rule.Operator {
	case OperatorEquals:
		return matchEquals(fieldValue, found, rule.Value)
	case OperatorNotEquals:
		return !matchEquals(fieldValue, found, rule.Value)
	case OperatorContains:
		return matchContains(fieldValue, rule.Value)
	case OperatorNotContains:
		return !matchContains(fieldValue, rule.Value)
	case OperatorIn:
		list, ok := rule.Value.List()
		return ok && found && listContains(list, fieldValue)
	case OperatorNotIn:
		list, ok := rule.Value.List()
		return ok && !(found && listContains(list, fieldValue))
	case OperatorRange:
		bounds, ok := rule.Value.Bounds()
		if !ok || !found {
			return false
		}
		n, ok := toNumber(fieldValue)
		return ok && bounds.Contains(n)
	case OperatorExists:
		return found && fieldValue != nil && fieldValue != ""
	default:
		if e.unknownOperator == UnknownOperatorFail {
			e.logger.Error("rejecting item for unknown filter operator",
				"rule_id", rule.ID, "field", rule.Field, "operator", string(rule.Operator))
			return false
		}
		e.logger.Warn("unknown filter operator, passing item",
			"rule_id", rule.ID, "field", rule.Field, "operator", string(rule.Operator))
		return true
	}
}

// a missing field never equals anything, null included
func matchEquals(fieldValue any, found bool, want Value) bool {
	if !found {
		return false
	}
	switch want.Kind() {
	case KindNull:
		return fieldValue == nil
	case KindScalar:
		scalar, _ := want.Scalar()
		return valuesEqual(fieldValue, scalar)
	default:
		return false
	}
}

func matchContains(fieldValue any, want Value) bool {
	s, ok := fieldValue.(string)
	if !ok {
		return false
	}
	scalar, _ := want.Scalar()
	needle, ok := scalar.(string)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(needle))
}

func listContains(list []any, v any) bool {
	return lo.ContainsBy(list, func(item any) bool {
		return valuesEqual(v, item)
	})
}
