package condfilter

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
)

type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "not_contains"
	OperatorIn          Operator = "in"
	OperatorNotIn       Operator = "not_in"
	OperatorRange       Operator = "range"
	OperatorExists      Operator = "exists"
)

// Operators returns all supported operators.
func Operators() []Operator {
	return []Operator{
		OperatorEquals, OperatorNotEquals,
		OperatorContains, OperatorNotContains,
		OperatorIn, OperatorNotIn,
		OperatorRange, OperatorExists,
	}
}

// IsValid reports whether the operator is supported by the evaluator.
func (op Operator) IsValid() bool {
	return lo.Contains(Operators(), op)
}

type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// OrDefault returns LogicAnd for an empty logic.
func (l Logic) OrDefault() Logic {
	if l == "" {
		return LogicAnd
	}
	return l
}

func (l Logic) IsValid() bool {
	return l == LogicAnd || l == LogicOr
}

type Source string

const (
	SourceUser       Source = "user"
	SourceSuggestion Source = "suggestion"
	SourceSaved      Source = "saved"
	SourceMigration  Source = "migration"
)

// Rule is a single field/operator/value predicate.
// The zero value of Disabled means the rule is enabled.
type Rule struct {
	ID       string
	Field    string
	Operator Operator
	Value    Value
	Logic    Logic
	Disabled bool
}

type ruleJSON struct {
	ID       string   `json:"id"`
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    Value    `json:"value"`
	Logic    Logic    `json:"logic,omitempty"`
	Enabled  *bool    `json:"enabled,omitempty"`
}

func (r Rule) IsEnabled() bool {
	return !r.Disabled
}

func (r Rule) MarshalJSON() ([]byte, error) {
	return jsoniterStd.Marshal(ruleJSON{
		ID:       r.ID,
		Field:    r.Field,
		Operator: r.Operator,
		Value:    r.Value,
		Logic:    r.Logic,
		Enabled:  lo.ToPtr(!r.Disabled),
	})
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var v ruleJSON
	if err := jsoniterStd.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Rule{
		ID:       v.ID,
		Field:    v.Field,
		Operator: v.Operator,
		Value:    v.Value,
		Logic:    v.Logic,
		Disabled: v.Enabled != nil && !*v.Enabled,
	}
	return nil
}

// Group bundles rules that are combined with one shared logic and evaluated as a unit.
type Group struct {
	ID       string
	Name     string
	Logic    Logic
	Rules    []Rule
	Disabled bool
}

type groupJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Logic   Logic  `json:"logic,omitempty"`
	Rules   []Rule `json:"rules"`
	Enabled *bool  `json:"enabled,omitempty"`
}

func (g Group) IsEnabled() bool {
	return !g.Disabled
}

// EnabledRules returns the rules of the group that are not disabled.
func (g Group) EnabledRules() []Rule {
	return lo.Filter(g.Rules, func(r Rule, _ int) bool { return r.IsEnabled() })
}

func (g Group) MarshalJSON() ([]byte, error) {
	return jsoniterStd.Marshal(groupJSON{
		ID:      g.ID,
		Name:    g.Name,
		Logic:   g.Logic,
		Rules:   g.Rules,
		Enabled: lo.ToPtr(!g.Disabled),
	})
}

func (g *Group) UnmarshalJSON(data []byte) error {
	var v groupJSON
	if err := jsoniterStd.Unmarshal(data, &v); err != nil {
		return err
	}
	*g = Group{
		ID:       v.ID,
		Name:     v.Name,
		Logic:    v.Logic,
		Rules:    v.Rules,
		Disabled: v.Enabled != nil && !*v.Enabled,
	}
	return nil
}

type Metadata struct {
	LastModified time.Time `json:"lastModified"`
	Source       Source    `json:"source,omitempty"`
	Version      string    `json:"version,omitempty"`
}

// State is the rule-based filter state. An empty state passes every item.
type State struct {
	Rules       []Rule   `json:"rules"`
	Groups      []Group  `json:"groups"`
	GlobalLogic Logic    `json:"globalLogic"`
	Metadata    Metadata `json:"metadata"`
}

// EnabledRules returns the enabled top-level rules.
func (s *State) EnabledRules() []Rule {
	if s == nil {
		return nil
	}
	return lo.Filter(s.Rules, func(r Rule, _ int) bool { return r.IsEnabled() })
}

// EnabledGroups returns the enabled groups.
func (s *State) EnabledGroups() []Group {
	if s == nil {
		return nil
	}
	return lo.Filter(s.Groups, func(g Group, _ int) bool { return g.IsEnabled() })
}

// ActiveRules flattens enabled top-level rules and the enabled rules of enabled groups.
func (s *State) ActiveRules() []Rule {
	rules := s.EnabledRules()
	for _, g := range s.EnabledGroups() {
		rules = append(rules, g.EnabledRules()...)
	}
	return rules
}

type ConflictType string

const (
	ConflictContradiction ConflictType = "contradiction"
	ConflictRedundancy    ConflictType = "redundancy"
	ConflictInefficiency  ConflictType = "inefficiency"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Conflict is a diagnostic about two or more rules. It is never part of a State.
type Conflict struct {
	RuleIDs     []string     `json:"ruleIds"`
	Type        ConflictType `json:"type"`
	Description string       `json:"description"`
	Severity    Severity     `json:"severity"`
	Suggestion  string       `json:"suggestion,omitempty"`
}

// Condition is one projected predicate of a Query.
// GroupID is empty for top-level rules.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    Value    `json:"value"`
	Logic    Logic    `json:"logic"`
	GroupID  string   `json:"groupId,omitempty"`
}

// Query is the flat projection of a State handed to a backend query layer.
type Query struct {
	Conditions  []Condition `json:"conditions"`
	GlobalLogic Logic       `json:"globalLogic"`
}

type OptimizationResult struct {
	OriginalRules   []Rule     `json:"originalRules"`
	OptimizedRules  []Rule     `json:"optimizedRules"`
	Conflicts       []Conflict `json:"conflicts"`
	PerformanceGain int        `json:"performanceGain"`
}

// ValidationIssue describes one error, warning or suggestion.
// Path points at the offending element, e.g. "rules[0]" or "groups[1].rules[2]".
type ValidationIssue struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Path    string   `json:"path,omitempty"`
	RuleIDs []string `json:"ruleIds,omitempty"`
}

type ValidationResult struct {
	IsValid     bool              `json:"isValid"`
	Errors      []ValidationIssue `json:"errors"`
	Warnings    []ValidationIssue `json:"warnings"`
	Suggestions []ValidationIssue `json:"suggestions"`
}

var jsoniterStd = jsoniter.ConfigCompatibleWithStandardLibrary
