package validation

import (
	"math"
	"time"

	"github.com/theplant/condfilter"
)

const MaxComplexityScore = 100

const (
	baseExecutionTime     = 2 * time.Millisecond
	executionTimePerPoint = 500 * time.Microsecond
)

// extra cost of an operator on top of the per-rule cost
var operatorWeights = map[condfilter.Operator]float64{
	condfilter.OperatorContains:    3,
	condfilter.OperatorNotContains: 3,
	condfilter.OperatorRange:       2,
	condfilter.OperatorIn:          1,
	condfilter.OperatorNotIn:       1,
}

type PerformanceEstimate struct {
	ComplexityScore        int               `json:"complexityScore"`
	EstimatedExecutionTime time.Duration     `json:"estimatedExecutionTime"`
	Complexity             *ComplexityResult `json:"complexity"`
}

// EstimatePerformance scores the enabled parts of a state from 0 to MaxComplexityScore
// and derives a linear execution time estimate from the score.
func EstimatePerformance(state *condfilter.State) *PerformanceEstimate {
	var score float64

	rules := state.EnabledRules()
	score += float64(len(rules)) * 2
	for _, r := range rules {
		score += ruleCost(r)
	}

	for _, g := range state.EnabledGroups() {
		members := g.EnabledRules()
		score += float64(len(members)) * 1.5
		if g.Logic == condfilter.LogicOr {
			score += 2
		}
		for _, r := range members {
			score += ruleCost(r)
		}
	}

	s := int(math.Min(math.Round(score), MaxComplexityScore))
	return &PerformanceEstimate{
		ComplexityScore:        s,
		EstimatedExecutionTime: baseExecutionTime + time.Duration(s)*executionTimePerPoint,
		Complexity:             CalculateComplexity(state),
	}
}

// every path segment after the first costs one point
func ruleCost(r condfilter.Rule) float64 {
	return operatorWeights[r.Operator] + float64(max(0, condfilter.PathDepth(r.Field)-1))
}
