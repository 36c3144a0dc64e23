package validation

import (
	"github.com/pkg/errors"

	"github.com/theplant/condfilter"
)

// ComplexityLimits defines limits for filter state complexity.
// A value of 0 means no limit for that metric.
type ComplexityLimits struct {
	MaxPathDepth     int // Maximum number of segments in a rule field path
	MaxTotalRules    int // Maximum number of active rules, group members included
	MaxGroups        int // Maximum number of enabled groups
	MaxRulesPerGroup int // Maximum number of enabled rules in a single group
	MaxOrBranches    int // Maximum branches combined by a single OR
}

// ComplexityResult contains the calculated complexity metrics of a filter state.
type ComplexityResult struct {
	PathDepth     int // Deepest field path
	TotalRules    int // Total number of active rules
	Groups        int // Number of enabled groups
	RulesPerGroup int // Largest enabled group
	OrBranches    int // Maximum branches found in any OR
}

// Predefined complexity limits
var (
	// DefaultLimits provides reasonable defaults for most use cases.
	DefaultLimits = &ComplexityLimits{
		MaxPathDepth:     3,
		MaxTotalRules:    20,
		MaxGroups:        5,
		MaxRulesPerGroup: 10,
		MaxOrBranches:    10,
	}

	// StrictLimits provides tighter limits for states coming from untrusted clients.
	StrictLimits = &ComplexityLimits{
		MaxPathDepth:     2,
		MaxTotalRules:    10,
		MaxGroups:        3,
		MaxRulesPerGroup: 5,
		MaxOrBranches:    5,
	}

	// RelaxedLimits provides looser limits for saved and internal filters.
	RelaxedLimits = &ComplexityLimits{
		MaxPathDepth:     5,
		MaxTotalRules:    50,
		MaxGroups:        10,
		MaxRulesPerGroup: 20,
		MaxOrBranches:    20,
	}
)

// CheckComplexity validates that a filter state doesn't exceed the specified limits.
// Returns an error describing which limit was exceeded, or nil if within limits.
// If limits is nil, no validation is performed.
func CheckComplexity(state *condfilter.State, limits *ComplexityLimits) error {
	if limits == nil {
		return nil
	}

	result := CalculateComplexity(state)

	if limits.MaxPathDepth > 0 && result.PathDepth > limits.MaxPathDepth {
		return errors.Errorf("field path depth %d exceeds limit %d", result.PathDepth, limits.MaxPathDepth)
	}
	if limits.MaxTotalRules > 0 && result.TotalRules > limits.MaxTotalRules {
		return errors.Errorf("active rule count %d exceeds limit %d", result.TotalRules, limits.MaxTotalRules)
	}
	if limits.MaxGroups > 0 && result.Groups > limits.MaxGroups {
		return errors.Errorf("group count %d exceeds limit %d", result.Groups, limits.MaxGroups)
	}
	if limits.MaxRulesPerGroup > 0 && result.RulesPerGroup > limits.MaxRulesPerGroup {
		return errors.Errorf("group rule count %d exceeds limit %d", result.RulesPerGroup, limits.MaxRulesPerGroup)
	}
	if limits.MaxOrBranches > 0 && result.OrBranches > limits.MaxOrBranches {
		return errors.Errorf("OR branches %d exceeds limit %d", result.OrBranches, limits.MaxOrBranches)
	}

	return nil
}

// CalculateComplexity analyzes the enabled parts of a filter state.
func CalculateComplexity(state *condfilter.State) *ComplexityResult {
	result := &ComplexityResult{}

	rules := state.EnabledRules()
	groups := state.EnabledGroups()
	result.Groups = len(groups)

	countRules(rules, result)
	if state != nil && state.GlobalLogic == condfilter.LogicOr {
		result.OrBranches = len(rules) + len(groups)
	}

	for _, g := range groups {
		members := g.EnabledRules()
		countRules(members, result)
		if len(members) > result.RulesPerGroup {
			result.RulesPerGroup = len(members)
		}
		if g.Logic == condfilter.LogicOr && len(members) > result.OrBranches {
			result.OrBranches = len(members)
		}
	}
	return result
}

func countRules(rules []condfilter.Rule, result *ComplexityResult) {
	for _, r := range rules {
		result.TotalRules++
		if depth := condfilter.PathDepth(r.Field); depth > result.PathDepth {
			result.PathDepth = depth
		}
	}
}
