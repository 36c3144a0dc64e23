package validation

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/theplant/condfilter"
	"github.com/theplant/condfilter/migration"
)

const (
	CodeMissingState      = "missing_state"
	CodeInvalidPriceMin   = "invalid_price_min"
	CodeInvalidPriceRange = "invalid_price_range"
	CodeInvalidRating     = "invalid_rating"
	CodeShortSearchQuery  = "short_search_query"
	CodeLongSearchQuery   = "long_search_query"
	CodeTooManyFilters    = "too_many_filters"
	CodeDeepFieldPath     = "deep_field_path"
	CodeEmptyGroup        = "empty_group"
	CodeLargeGroup        = "large_group"
	CodeComplexityLimit   = "complexity_limit"
	CodeHighComplexity    = "high_complexity"
)

const (
	DefaultMaxSearchQueryLength = 100
	MaxRating                   = 5
	maxActiveLegacyFilters      = 8
	maxFieldPathDepth           = 3
	maxGroupRules               = 10
	maxActivePredicates         = 10
	highComplexityScore         = 70
)

type Options struct {
	LegacyFields bool
	Rules        bool
	Groups       bool
	Conflicts    bool
	Performance  bool
	// ComplexityLimits is checked with the performance estimate. Nil disables the check.
	ComplexityLimits     *ComplexityLimits
	MaxSearchQueryLength int
	Engine               *condfilter.Engine
	Logger               *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		LegacyFields:         true,
		Rules:                true,
		Groups:               true,
		Conflicts:            true,
		Performance:          true,
		ComplexityLimits:     DefaultLimits,
		MaxSearchQueryLength: DefaultMaxSearchQueryLength,
	}
}

type RecommendationType string

const (
	RecommendationOptimization RecommendationType = "optimization"
	RecommendationCorrectness  RecommendationType = "correctness"
	RecommendationUsability    RecommendationType = "usability"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Recommendation struct {
	Type        RecommendationType `json:"type"`
	Priority    Priority           `json:"priority"`
	Message     string             `json:"message"`
	AutoFixable bool               `json:"autoFixable"`
	RuleIDs     []string           `json:"ruleIds,omitempty"`
}

type Result struct {
	condfilter.ValidationResult

	Performance     *PerformanceEstimate `json:"performance,omitempty"`
	Recommendations []Recommendation     `json:"recommendations"`
}

type validator struct {
	opts   Options
	result *Result
}

func (v *validator) issues() *condfilter.ValidationResult {
	return &v.result.ValidationResult
}

func (v *validator) errorf(code, path, format string, args ...any) {
	v.result.Errors = append(v.result.Errors, condfilter.ValidationIssue{Code: code, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) warnf(code, path, format string, args ...any) {
	v.result.Warnings = append(v.result.Warnings, condfilter.ValidationIssue{Code: code, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) suggestf(code, path string, ruleIDs []string, format string, args ...any) {
	v.result.Suggestions = append(v.result.Suggestions, condfilter.ValidationIssue{Code: code, Path: path, RuleIDs: ruleIDs, Message: fmt.Sprintf(format, args...)})
}

// Validate produces a full diagnostic report for an enhanced filter state. It never
// modifies the state. IsValid is true iff no errors were found.
func Validate(state *migration.EnhancedState, opts Options) *Result {
	if opts.MaxSearchQueryLength <= 0 {
		opts.MaxSearchQueryLength = DefaultMaxSearchQueryLength
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Engine == nil {
		opts.Engine = condfilter.New(condfilter.WithLogger(opts.Logger))
	}

	v := &validator{
		opts: opts,
		result: &Result{
			ValidationResult: condfilter.ValidationResult{
				Errors:      []condfilter.ValidationIssue{},
				Warnings:    []condfilter.ValidationIssue{},
				Suggestions: []condfilter.ValidationIssue{},
			},
			Recommendations: []Recommendation{},
		},
	}

	if state == nil {
		v.errorf(CodeMissingState, "", "filter state is missing")
		return v.finish()
	}
	filterState := state.FilterState()

	if opts.LegacyFields {
		v.validateLegacy(&state.LegacyState)
	}
	if opts.Rules {
		v.validateRules(filterState)
	}
	if opts.Groups {
		v.validateGroups(filterState)
	}

	var conflicts []condfilter.Conflict
	if opts.Conflicts {
		conflicts = opts.Engine.DetectConflicts(filterState)
		v.addConflicts(conflicts)
	}
	if opts.Performance {
		v.estimatePerformance(filterState)
	}

	v.recommend(filterState, conflicts)
	return v.finish()
}

func (v *validator) finish() *Result {
	v.result.IsValid = len(v.result.Errors) == 0
	v.opts.Logger.Debug("validated filter state",
		"valid", v.result.IsValid,
		"errors", len(v.result.Errors),
		"warnings", len(v.result.Warnings),
		"suggestions", len(v.result.Suggestions),
	)
	return v.result
}

// QuickValidate reports structural validity only: groups, conflicts and
// performance are not checked.
func QuickValidate(state *migration.EnhancedState) bool {
	opts := DefaultOptions()
	opts.Groups = false
	opts.Conflicts = false
	opts.Performance = false
	return Validate(state, opts).IsValid
}

func (v *validator) validateLegacy(l *migration.LegacyState) {
	if l.Price.Min < 0 {
		v.errorf(CodeInvalidPriceMin, "price.min", "minimum price %v must not be negative", l.Price.Min)
	}
	if l.Price.Max < l.Price.Min {
		v.errorf(CodeInvalidPriceRange, "price.max", "maximum price %v is below minimum price %v", l.Price.Max, l.Price.Min)
	}
	if r := l.Features.Rating; r != nil && (*r < 0 || *r > MaxRating) {
		v.errorf(CodeInvalidRating, "features.rating", "rating %v must be between 0 and %d", *r, MaxRating)
	}

	query := strings.TrimSpace(l.Search.Query)
	switch n := utf8.RuneCountInString(query); {
	case n == 1:
		v.warnf(CodeShortSearchQuery, "search.query", "search query %q is shorter than 2 characters", query)
	case n > v.opts.MaxSearchQueryLength:
		v.warnf(CodeLongSearchQuery, "search.query", "search query is longer than %d characters", v.opts.MaxSearchQueryLength)
	}

	if n := activeLegacyFilters(l); n > maxActiveLegacyFilters {
		v.warnf(CodeTooManyFilters, "", "%d legacy filters are active, results may be very narrow", n)
	}
}

func activeLegacyFilters(l *migration.LegacyState) int {
	return lo.Count([]bool{
		strings.TrimSpace(l.Search.Query) != "",
		len(l.Location.Cities) > 0,
		len(l.Location.Regions) > 0,
		len(l.Location.Neighborhoods) > 0,
		len(l.Category.Categories) > 0,
		len(l.Category.VenueTypes) > 0,
		len(l.Category.Environments) > 0,
		l.Price.Min > 0 || (l.Price.Max > 0 && l.Price.Max < migration.DefaultMaxPrice),
		len(l.Price.Ranges) > 0,
		l.Features.AllowsMoments != nil,
		l.Features.Rating != nil,
		len(l.Features.Accessibility) > 0,
		len(l.Features.SupportedFormats) > 0,
		len(l.Availability.TimeSlots) > 0,
		len(l.Availability.DaysOfWeek) > 0,
		l.ShowFavoritesOnly,
		l.ShowCircuits != nil && !*l.ShowCircuits,
	}, true)
}

func (v *validator) validateRules(state *condfilter.State) {
	if state.GlobalLogic != "" && !state.GlobalLogic.IsValid() {
		v.errorf(condfilter.CodeInvalidLogic, "globalLogic", "global logic %q must be AND or OR", state.GlobalLogic)
	}
	for i := range state.Rules {
		path := fmt.Sprintf("conditionalRules[%d]", i)
		condfilter.ValidateRule(&state.Rules[i], path, v.issues())
		v.checkPathDepth(state.Rules[i], path)
	}
}

func (v *validator) validateGroups(state *condfilter.State) {
	for i := range state.Groups {
		g := &state.Groups[i]
		path := fmt.Sprintf("filterGroups[%d]", i)
		condfilter.ValidateGroup(g, path, v.issues())

		if g.Rules != nil && len(g.Rules) == 0 {
			v.warnf(CodeEmptyGroup, path, "group %q has no rules and always passes", g.Name)
		}
		if len(g.Rules) > maxGroupRules {
			v.warnf(CodeLargeGroup, path, "group %q has %d rules, more than %d", g.Name, len(g.Rules), maxGroupRules)
		}
		for j, r := range g.Rules {
			v.checkPathDepth(r, fmt.Sprintf("%s.rules[%d]", path, j))
		}
	}
}

func (v *validator) checkPathDepth(r condfilter.Rule, path string) {
	if depth := condfilter.PathDepth(r.Field); depth > maxFieldPathDepth {
		v.suggestf(CodeDeepFieldPath, path, []string{r.ID},
			"field %q is %d levels deep, consider a flatter field", r.Field, depth)
	}
}

func (v *validator) addConflicts(conflicts []condfilter.Conflict) {
	for _, c := range conflicts {
		issue := condfilter.ValidationIssue{
			Code:    "conflict_" + string(c.Type),
			Message: c.Description,
			RuleIDs: c.RuleIDs,
		}
		if c.Suggestion != "" {
			issue.Message = fmt.Sprintf("%s. %s", c.Description, c.Suggestion)
		}
		switch c.Severity {
		case condfilter.SeverityHigh:
			v.result.Errors = append(v.result.Errors, issue)
		case condfilter.SeverityMedium:
			v.result.Warnings = append(v.result.Warnings, issue)
		default:
			v.result.Suggestions = append(v.result.Suggestions, issue)
		}
	}
}

func (v *validator) estimatePerformance(state *condfilter.State) {
	estimate := EstimatePerformance(state)
	v.result.Performance = estimate

	if err := CheckComplexity(state, v.opts.ComplexityLimits); err != nil {
		v.warnf(CodeComplexityLimit, "", "%s", err.Error())
	}
	if estimate.ComplexityScore >= highComplexityScore {
		v.suggestf(CodeHighComplexity, "", nil,
			"complexity score %d is high, consider removing or merging rules", estimate.ComplexityScore)
	}
}

func (v *validator) recommend(state *condfilter.State, conflicts []condfilter.Conflict) {
	redundant := lo.Filter(conflicts, func(c condfilter.Conflict, _ int) bool {
		return c.Type == condfilter.ConflictRedundancy
	})
	if len(redundant) > 0 {
		v.result.Recommendations = append(v.result.Recommendations, Recommendation{
			Type:        RecommendationOptimization,
			Priority:    PriorityMedium,
			Message:     "Remove duplicate rules, rule optimization can do this automatically",
			AutoFixable: true,
			RuleIDs:     lo.Uniq(lo.FlatMap(redundant, func(c condfilter.Conflict, _ int) []string { return c.RuleIDs })),
		})
	}

	high := lo.Filter(conflicts, func(c condfilter.Conflict, _ int) bool {
		return c.Severity == condfilter.SeverityHigh
	})
	if len(high) > 0 {
		v.result.Recommendations = append(v.result.Recommendations, Recommendation{
			Type:     RecommendationCorrectness,
			Priority: PriorityHigh,
			Message:  "Resolve contradicting rules, no item can match them together",
			RuleIDs:  lo.Uniq(lo.FlatMap(high, func(c condfilter.Conflict, _ int) []string { return c.RuleIDs })),
		})
	}

	if n := len(state.ActiveRules()); n > maxActivePredicates {
		v.result.Recommendations = append(v.result.Recommendations, Recommendation{
			Type:     RecommendationUsability,
			Priority: PriorityLow,
			Message:  fmt.Sprintf("%d active rules are hard to review, consider saving part of them as a group", n),
		})
	}
}
