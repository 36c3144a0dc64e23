package condfilter

import (
	"fmt"
	"unicode/utf8"
)

const (
	CodeMissingRuleID       = "missing_rule_id"
	CodeMissingField        = "missing_field"
	CodeMissingOperator     = "missing_operator"
	CodeUnsupportedOperator = "unsupported_operator"
	CodeValueNotArray       = "value_not_array"
	CodeValueNotRange       = "value_not_range"
	CodeNullValue           = "null_value"
	CodeEmptyArray          = "empty_array"
	CodeShortSearchTerm     = "short_search_term"
	CodeMissingGroupID      = "missing_group_id"
	CodeMissingGroupName    = "missing_group_name"
	CodeMissingGroupRules   = "missing_group_rules"
	CodeInvalidLogic        = "invalid_logic"
)

// ValidateFilterState checks the raw shape of rules and groups.
// IsValid is true iff there are no errors; warnings never affect it.
func (e *Engine) ValidateFilterState(state *State) *ValidationResult {
	result := &ValidationResult{
		Errors:      []ValidationIssue{},
		Warnings:    []ValidationIssue{},
		Suggestions: []ValidationIssue{},
	}
	if state == nil {
		result.IsValid = true
		return result
	}

	if state.GlobalLogic != "" && !state.GlobalLogic.IsValid() {
		result.Errors = append(result.Errors, ValidationIssue{
			Code:    CodeInvalidLogic,
			Message: fmt.Sprintf("global logic %q must be AND or OR", state.GlobalLogic),
			Path:    "globalLogic",
		})
	}

	for i := range state.Rules {
		ValidateRule(&state.Rules[i], fmt.Sprintf("rules[%d]", i), result)
	}
	for i := range state.Groups {
		ValidateGroup(&state.Groups[i], fmt.Sprintf("groups[%d]", i), result)
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// ValidateRule appends the structural issues of one rule to result.
func ValidateRule(rule *Rule, path string, result *ValidationResult) {
	ids := []string{rule.ID}
	addError := func(code, msg string) {
		result.Errors = append(result.Errors, ValidationIssue{Code: code, Message: msg, Path: path, RuleIDs: ids})
	}
	addWarning := func(code, msg string) {
		result.Warnings = append(result.Warnings, ValidationIssue{Code: code, Message: msg, Path: path, RuleIDs: ids})
	}

	if rule.ID == "" {
		addError(CodeMissingRuleID, fmt.Sprintf("%s: rule is missing an id", path))
	}
	if rule.Field == "" {
		addError(CodeMissingField, fmt.Sprintf("%s: rule is missing a field", path))
	}
	if rule.Logic != "" && !rule.Logic.IsValid() {
		addError(CodeInvalidLogic, fmt.Sprintf("%s: logic %q must be AND or OR", path, rule.Logic))
	}
	if rule.Operator == "" {
		addError(CodeMissingOperator, fmt.Sprintf("%s: rule is missing an operator", path))
		return
	}
	if !rule.Operator.IsValid() {
		addError(CodeUnsupportedOperator, fmt.Sprintf("%s: unsupported operator %q", path, rule.Operator))
		return
	}

	if rule.Value.IsNull() && rule.Operator != OperatorExists {
		addWarning(CodeNullValue, fmt.Sprintf("%s: operator %q has a null value", path, rule.Operator))
	}

	switch rule.Operator {
	case OperatorIn, OperatorNotIn:
		list, ok := rule.Value.List()
		if !ok {
			addError(CodeValueNotArray, fmt.Sprintf("%s: operator %q requires an array value", path, rule.Operator))
			break
		}
		if len(list) == 0 {
			addWarning(CodeEmptyArray, fmt.Sprintf("%s: operator %q has an empty array", path, rule.Operator))
		}
	case OperatorRange:
		if _, ok := rule.Value.Bounds(); !ok {
			addError(CodeValueNotRange, fmt.Sprintf("%s: operator %q requires an object value with numeric min/max", path, rule.Operator))
		}
	case OperatorContains, OperatorNotContains:
		scalar, _ := rule.Value.Scalar()
		if s, ok := scalar.(string); ok && utf8.RuneCountInString(s) < 2 {
			addWarning(CodeShortSearchTerm, fmt.Sprintf("%s: search term %q is shorter than 2 characters", path, s))
		}
	}
}

// ValidateGroup appends the structural issues of a group and its rules to result.
func ValidateGroup(group *Group, path string, result *ValidationResult) {
	if group.ID == "" {
		result.Errors = append(result.Errors, ValidationIssue{
			Code: CodeMissingGroupID, Message: fmt.Sprintf("%s: group is missing an id", path), Path: path,
		})
	}
	if group.Name == "" {
		result.Errors = append(result.Errors, ValidationIssue{
			Code: CodeMissingGroupName, Message: fmt.Sprintf("%s: group is missing a name", path), Path: path,
		})
	}
	if group.Logic != "" && !group.Logic.IsValid() {
		result.Errors = append(result.Errors, ValidationIssue{
			Code: CodeInvalidLogic, Message: fmt.Sprintf("%s: logic %q must be AND or OR", path, group.Logic), Path: path,
		})
	}
	if group.Rules == nil {
		result.Errors = append(result.Errors, ValidationIssue{
			Code: CodeMissingGroupRules, Message: fmt.Sprintf("%s: group is missing its rules array", path), Path: path,
		})
		return
	}
	for i := range group.Rules {
		ValidateRule(&group.Rules[i], fmt.Sprintf("%s.rules[%d]", path, i), result)
	}
}
