package condfilter

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
)

// operatorSelectivity ranks operators so that cheap, selective predicates run first.
var operatorSelectivity = map[Operator]int{
	OperatorEquals:      10,
	OperatorNotEquals:   9,
	OperatorIn:          8,
	OperatorNotIn:       7,
	OperatorExists:      6,
	OperatorRange:       5,
	OperatorContains:    3,
	OperatorNotContains: 2,
}

// Selectivity returns the static selectivity score of an operator, 0 if unknown.
func Selectivity(op Operator) int {
	return operatorSelectivity[op]
}

// OptimizeRules deduplicates, consolidates and reorders the top-level rules.
// Groups are left untouched. The stages must run in this order.
func (e *Engine) OptimizeRules(state *State) *OptimizationResult {
	var original []Rule
	logic := LogicAnd
	if state != nil {
		original = append([]Rule{}, state.Rules...)
		logic = state.GlobalLogic.OrDefault()
	}

	deduped := deduplicateRules(original)
	consolidated, notes := e.consolidateRules(deduped, logic)
	optimized := reorderRules(consolidated)

	gain := 0
	if len(original) > 0 {
		gain = int(math.Round(float64(len(original)-len(optimized)) / float64(len(original)) * 100))
	}

	return &OptimizationResult{
		OriginalRules:   original,
		OptimizedRules:  optimized,
		Conflicts:       append(e.DetectConflicts(state), notes...),
		PerformanceGain: gain,
	}
}

func deduplicateRules(rules []Rule) []Rule {
	seen := map[string]bool{}
	result := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.IsEnabled() {
			key := ruleKey(r)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		result = append(result, r)
	}
	return result
}

// consolidateRules merges `in` rules on the same field into one rule holding
// the union of their values. The union only preserves meaning when the rules
// are OR-combined, so under AND the rules are kept and an inefficiency is reported.
func (e *Engine) consolidateRules(rules []Rule, logic Logic) ([]Rule, []Conflict) {
	type fieldOp struct {
		field string
		op    Operator
	}
	buckets := map[fieldOp][]int{}
	for i, r := range rules {
		if !r.IsEnabled() || r.Operator != OperatorIn {
			continue
		}
		if _, ok := r.Value.List(); !ok {
			continue
		}
		k := fieldOp{r.Field, r.Operator}
		buckets[k] = append(buckets[k], i)
	}

	var notes []Conflict
	merged := map[int]Rule{}
	dropped := map[int]bool{}
	for first, r := range rules {
		k := fieldOp{r.Field, r.Operator}
		members := buckets[k]
		if len(members) < 2 || members[0] != first {
			continue
		}

		if logic != LogicOr {
			notes = append(notes, Conflict{
				RuleIDs:     lo.Map(members, func(i int, _ int) string { return rules[i].ID }),
				Type:        ConflictInefficiency,
				Description: fmt.Sprintf("%d in rules on %q are AND-combined", len(members), k.field),
				Severity:    SeverityLow,
				Suggestion:  "Replace them with a single in rule holding the intersection of their values",
			})
			continue
		}

		seen := map[string]bool{}
		var union []any
		for _, i := range members {
			list, _ := rules[i].Value.List()
			for _, v := range list {
				key := mustCanonicalKey(Scalar(v))
				if seen[key] {
					continue
				}
				seen[key] = true
				union = append(union, v)
			}
			dropped[i] = true
		}
		merged[first] = Rule{
			ID:       e.newID("consolidated"),
			Field:    k.field,
			Operator: OperatorIn,
			Value:    List(union...),
			Logic:    rules[first].Logic,
		}
	}

	result := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if m, ok := merged[i]; ok {
			result = append(result, m)
			continue
		}
		if dropped[i] {
			continue
		}
		result = append(result, r)
	}
	return result, notes
}

func reorderRules(rules []Rule) []Rule {
	result := append([]Rule{}, rules...)
	sort.SliceStable(result, func(i, j int) bool {
		return Selectivity(result[i].Operator) > Selectivity(result[j].Operator)
	})
	return result
}
