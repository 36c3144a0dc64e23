package condfilter

import (
	"log/slog"

	"github.com/pkg/errors"
)

// Engine evaluates, projects, analyses and optimizes filter states.
// It holds configuration only and is safe for concurrent use.
type Engine struct {
	logger          *slog.Logger
	unknownOperator UnknownOperatorPolicy
	evaluate        EvaluateFunc
	newID           func(prefix string) string
}

func New(opts ...Option) *Engine {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	e := &Engine{
		logger:          o.logger,
		unknownOperator: o.unknownOperator,
		newID:           o.newID,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.newID == nil {
		e.newID = NewID
	}
	e.evaluate = e.evaluateBuiltin
	if o.evaluateHook != nil {
		e.evaluate = o.evaluateHook(e.evaluate)
	}
	return e
}

var defaultEngine = New()

func EvaluateRule(item map[string]any, rule *Rule) bool {
	return defaultEngine.EvaluateRule(item, rule)
}

func EvaluateGroup(item map[string]any, group *Group) bool {
	return defaultEngine.EvaluateGroup(item, group)
}

func EvaluateRules(items []map[string]any, state *State) []map[string]any {
	return defaultEngine.EvaluateRules(items, state)
}

func BuildQuery(state *State) *Query {
	return defaultEngine.BuildQuery(state)
}

func DetectConflicts(state *State) []Conflict {
	return defaultEngine.DetectConflicts(state)
}

func OptimizeRules(state *State) *OptimizationResult {
	return defaultEngine.OptimizeRules(state)
}

func ValidateFilterState(state *State) *ValidationResult {
	return defaultEngine.ValidateFilterState(state)
}

// Matches reports whether a single item passes the state.
func (e *Engine) Matches(item map[string]any, state *State) bool {
	rules := state.EnabledRules()
	groups := state.EnabledGroups()
	if len(rules) == 0 && len(groups) == 0 {
		return true
	}

	results := make([]bool, 0, len(rules)+len(groups))
	for i := range rules {
		results = append(results, e.evaluate(item, &rules[i]))
	}
	for i := range groups {
		results = append(results, e.EvaluateGroup(item, &groups[i]))
	}
	return combine(results, state.GlobalLogic)
}

// EvaluateRules returns the items that pass the state, in input order.
// Items are returned as given, never copied or modified.
func (e *Engine) EvaluateRules(items []map[string]any, state *State) []map[string]any {
	if len(items) == 0 {
		return []map[string]any{}
	}
	if len(state.EnabledRules()) == 0 && len(state.EnabledGroups()) == 0 {
		return items
	}

	result := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if e.Matches(item, state) {
			result = append(result, item)
		}
	}
	return result
}

// FilterItems filters arbitrary JSON-serializable items, matching field paths
// against their JSON representation.
func FilterItems[T any](e *Engine, items []T, state *State) ([]T, error) {
	if e == nil {
		e = defaultEngine
	}
	result := make([]T, 0, len(items))
	if len(items) == 0 {
		return result, nil
	}
	if len(state.EnabledRules()) == 0 && len(state.EnabledGroups()) == 0 {
		return append(result, items...), nil
	}

	for i, item := range items {
		m, err := ToMap(item)
		if err != nil {
			return nil, errors.Wrapf(err, "item %d", i)
		}
		if e.Matches(m, state) {
			result = append(result, item)
		}
	}
	return result, nil
}

// BuildQuery projects the enabled rules into flat conditions. Rules inside a
// group carry the logic of the group rather than their own.
func (e *Engine) BuildQuery(state *State) *Query {
	q := &Query{
		Conditions: []Condition{},
	}
	if state == nil {
		q.GlobalLogic = LogicAnd
		return q
	}
	q.GlobalLogic = state.GlobalLogic.OrDefault()

	for _, r := range state.EnabledRules() {
		q.Conditions = append(q.Conditions, Condition{
			Field:    r.Field,
			Operator: r.Operator,
			Value:    r.Value,
			Logic:    r.Logic.OrDefault(),
		})
	}
	for _, g := range state.EnabledGroups() {
		for _, r := range g.EnabledRules() {
			q.Conditions = append(q.Conditions, Condition{
				Field:    r.Field,
				Operator: r.Operator,
				Value:    r.Value,
				Logic:    g.Logic.OrDefault(),
				GroupID:  g.ID,
			})
		}
	}
	return q
}
