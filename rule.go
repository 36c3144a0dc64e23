package condfilter

import "github.com/samber/lo"

// The constructors below produce rules whose value shape always matches the operator.

func Equals(id, field string, v any) Rule {
	return Rule{ID: id, Field: field, Operator: OperatorEquals, Value: Scalar(v), Logic: LogicAnd}
}

func NotEquals(id, field string, v any) Rule {
	return Rule{ID: id, Field: field, Operator: OperatorNotEquals, Value: Scalar(v), Logic: LogicAnd}
}

func Contains(id, field, s string) Rule {
	return Rule{ID: id, Field: field, Operator: OperatorContains, Value: Scalar(s), Logic: LogicAnd}
}

func NotContains(id, field, s string) Rule {
	return Rule{ID: id, Field: field, Operator: OperatorNotContains, Value: Scalar(s), Logic: LogicAnd}
}

func In[T any](id, field string, vs ...T) Rule {
	return Rule{ID: id, Field: field, Operator: OperatorIn, Value: List(lo.ToAnySlice(vs)...), Logic: LogicAnd}
}

func NotIn[T any](id, field string, vs ...T) Rule {
	return Rule{ID: id, Field: field, Operator: OperatorNotIn, Value: List(lo.ToAnySlice(vs)...), Logic: LogicAnd}
}

func InRange(id, field string, min, max *float64) Rule {
	return Rule{ID: id, Field: field, Operator: OperatorRange, Value: Between(min, max), Logic: LogicAnd}
}

func Exists(id, field string) Rule {
	return Rule{ID: id, Field: field, Operator: OperatorExists, Logic: LogicAnd}
}

// WithLogic returns a copy of the rule using the given logic.
func (r Rule) WithLogic(logic Logic) Rule {
	r.Logic = logic
	return r
}

// WithDisabled returns a copy of the rule with the enabled flag flipped.
func (r Rule) WithDisabled(disabled bool) Rule {
	r.Disabled = disabled
	return r
}
