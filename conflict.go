package condfilter

import (
	"fmt"
	"unicode/utf8"

	"github.com/samber/lo"
)

// DetectConflicts runs the contradiction, redundancy and inefficiency detectors
// over all active rules. Detectors are independent, so one pair of rules may
// produce several conflicts.
func (e *Engine) DetectConflicts(state *State) []Conflict {
	rules := state.ActiveRules()

	conflicts := []Conflict{}
	conflicts = append(conflicts, detectContradictions(rules)...)
	conflicts = append(conflicts, detectRedundancies(rules)...)
	conflicts = append(conflicts, detectInefficiencies(rules)...)
	return conflicts
}

func detectContradictions(rules []Rule) []Conflict {
	var conflicts []Conflict
	for i := 0; i < len(rules); i++ {
		for j := i + 1; j < len(rules); j++ {
			a, b := rules[i], rules[j]
			if a.Field != b.Field || !contradicts(a, b) {
				continue
			}
			conflicts = append(conflicts, Conflict{
				RuleIDs:     []string{a.ID, b.ID},
				Type:        ConflictContradiction,
				Description: fmt.Sprintf("rules on %q require %s and %s of the same value %s", a.Field, a.Operator, b.Operator, a.Value),
				Severity:    SeverityHigh,
				Suggestion:  "Remove one of the contradicting rules",
			})
		}
	}
	return conflicts
}

func contradicts(a, b Rule) bool {
	pair := func(x, y Operator) bool {
		return (a.Operator == x && b.Operator == y) || (a.Operator == y && b.Operator == x)
	}
	switch {
	case pair(OperatorEquals, OperatorNotEquals):
		av, aok := a.Value.Scalar()
		bv, bok := b.Value.Scalar()
		if aok && bok {
			return valuesEqual(av, bv)
		}
		return mustCanonicalKey(a.Value) == mustCanonicalKey(b.Value)
	case pair(OperatorIn, OperatorNotIn):
		return mustCanonicalKey(a.Value) == mustCanonicalKey(b.Value)
	}
	return false
}

func detectRedundancies(rules []Rule) []Conflict {
	groups := lo.GroupBy(rules, ruleKey)

	var conflicts []Conflict
	for _, key := range lo.Uniq(lo.Map(rules, func(r Rule, _ int) string { return ruleKey(r) })) {
		dups := groups[key]
		if len(dups) < 2 {
			continue
		}
		first := dups[0]
		conflicts = append(conflicts, Conflict{
			RuleIDs:     lo.Map(dups, func(r Rule, _ int) string { return r.ID }),
			Type:        ConflictRedundancy,
			Description: fmt.Sprintf("%d identical %s rules on %q", len(dups), first.Operator, first.Field),
			Severity:    SeverityMedium,
			Suggestion:  "Remove the duplicate rules",
		})
	}
	return conflicts
}

func detectInefficiencies(rules []Rule) []Conflict {
	var conflicts []Conflict
	for _, r := range rules {
		if r.Operator != OperatorContains && r.Operator != OperatorNotContains {
			continue
		}
		scalar, _ := r.Value.Scalar()
		s, ok := scalar.(string)
		if !ok || utf8.RuneCountInString(s) >= 2 {
			continue
		}
		conflicts = append(conflicts, Conflict{
			RuleIDs:     []string{r.ID},
			Type:        ConflictInefficiency,
			Description: fmt.Sprintf("%s rule on %q with a search term shorter than 2 characters matches almost everything", r.Operator, r.Field),
			Severity:    SeverityLow,
			Suggestion:  "Use a search term of at least 2 characters",
		})
	}
	return conflicts
}
