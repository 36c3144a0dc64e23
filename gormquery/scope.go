package gormquery

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theplant/condfilter"
	"github.com/theplant/condfilter/internal/hook"
)

type options struct {
	columnHook func(next ColumnFunc) ColumnFunc
}

type Option func(*options)

// WithColumnHook wraps column resolution. Hooks are applied in the order they are added.
func WithColumnHook(hooks ...func(next ColumnFunc) ColumnFunc) Option {
	return func(o *options) {
		o.columnHook = hook.Append(o.columnHook, hooks...)
	}
}

// Scope adds the conditions of the query to the statement.
func Scope(query *condfilter.Query, opts ...Option) func(db *gorm.DB) *gorm.DB {
	if query == nil || len(query.Conditions) == 0 {
		return newScope(nil, opts)
	}
	return newScope(func(b *builder) (clause.Expression, error) {
		return b.build(query)
	}, opts)
}

// ScopeState scopes by the enabled rules and groups of the state. An enabled
// group without enabled rules matches every row, as it does in memory.
func ScopeState(state *condfilter.State, opts ...Option) func(db *gorm.DB) *gorm.DB {
	if state == nil || (len(state.EnabledRules()) == 0 && len(state.EnabledGroups()) == 0) {
		return newScope(nil, opts)
	}
	return newScope(func(b *builder) (clause.Expression, error) {
		return b.buildState(state)
	}, opts)
}

// a nil build leaves the statement untouched
func newScope(build func(b *builder) (clause.Expression, error), opts []Option) func(db *gorm.DB) *gorm.DB {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return func(db *gorm.DB) *gorm.DB {
		if db == nil {
			return nil
		}
		if build == nil {
			return db
		}
		fdb, err := addExpr(db, build, o)
		if err != nil {
			db.AddError(err)
			return db
		}
		return fdb
	}
}

func addExpr(db *gorm.DB, build func(b *builder) (clause.Expression, error), o *options) (*gorm.DB, error) {
	model := cmp.Or(db.Statement.Model, db.Statement.Dest)
	if model == nil {
		return nil, errors.New("model is nil")
	}
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, errors.Wrap(err, "parse schema with db")
	}

	b := &builder{stmt: stmt, resolve: resolveColumn}
	if o.columnHook != nil {
		b.resolve = o.columnHook(resolveColumn)
	}

	expr, err := build(b)
	if err != nil {
		return nil, err
	}
	if expr != nil {
		db = db.Where(expr)
	}
	return db, nil
}

type builder struct {
	stmt    *gorm.Statement
	resolve ColumnFunc
}

// build returns nil when the query does not restrict anything.
func (b *builder) build(query *condfilter.Query) (clause.Expression, error) {
	var (
		exprs    []clause.Expression
		groupIDs []string
		groups   = map[string][]clause.Expression{}
		logics   = map[string]condfilter.Logic{}
	)

	for _, c := range query.Conditions {
		expr, err := b.condition(c)
		if err != nil {
			return nil, err
		}
		if c.GroupID == "" {
			exprs = append(exprs, expr)
			continue
		}
		if _, ok := groups[c.GroupID]; !ok {
			groupIDs = append(groupIDs, c.GroupID)
			logics[c.GroupID] = c.Logic
		}
		groups[c.GroupID] = append(groups[c.GroupID], expr)
	}

	for _, id := range groupIDs {
		exprs = append(exprs, combineExprs(logics[id], groups[id]...))
	}
	return combineExprs(query.GlobalLogic, exprs...), nil
}

func (b *builder) buildState(state *condfilter.State) (clause.Expression, error) {
	var exprs []clause.Expression
	for _, r := range state.EnabledRules() {
		expr, err := b.rule(r)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}

	for _, g := range state.EnabledGroups() {
		members := g.EnabledRules()
		if len(members) == 0 {
			exprs = append(exprs, nil)
			continue
		}
		groupExprs := make([]clause.Expression, 0, len(members))
		for _, r := range members {
			expr, err := b.rule(r)
			if err != nil {
				return nil, err
			}
			groupExprs = append(groupExprs, expr)
		}
		exprs = append(exprs, combineExprs(g.Logic, groupExprs...))
	}
	return combineExprs(state.GlobalLogic, exprs...), nil
}

func (b *builder) rule(r condfilter.Rule) (clause.Expression, error) {
	return b.condition(condfilter.Condition{Field: r.Field, Operator: r.Operator, Value: r.Value})
}

// condition returns nil for conditions that match every row.
func (b *builder) condition(c condfilter.Condition) (clause.Expression, error) {
	out, err := b.resolve(&ColumnInput{Statement: b.stmt, Field: c.Field})
	if err != nil {
		return nil, err
	}
	column := out.Column
	isJSON := out.JSONColumn != "" && len(out.JSONKeys) > 0

	switch c.Operator {
	case condfilter.OperatorEquals, condfilter.OperatorNotEquals:
		if c.Value.Kind() != condfilter.KindNull && c.Value.Kind() != condfilter.KindScalar {
			return nil, errors.Errorf("invalid %s value for field %q", opName(c.Operator), c.Field)
		}
		v, _ := c.Value.Scalar()
		if c.Operator == condfilter.OperatorEquals {
			if isJSON && v != nil {
				return datatypes.JSONQuery(out.JSONColumn).Equals(v, out.JSONKeys...), nil
			}
			if isJSON {
				// a missing key never equals null
				return clause.And(
					datatypes.JSONQuery(out.JSONColumn).HasKey(out.JSONKeys...),
					clause.Eq{Column: column, Value: nil},
				), nil
			}
			return clause.Eq{Column: column, Value: compareValue(v, isJSON)}, nil
		}
		if v == nil {
			if isJSON {
				return clause.Or(
					clause.Expr{SQL: "NOT (?)", Vars: []any{datatypes.JSONQuery(out.JSONColumn).HasKey(out.JSONKeys...)}},
					clause.Neq{Column: column, Value: nil},
				), nil
			}
			return clause.Neq{Column: column, Value: nil}, nil
		}
		return orNull(column, clause.Neq{Column: column, Value: compareValue(v, isJSON)}), nil

	case condfilter.OperatorContains, condfilter.OperatorNotContains:
		v, _ := c.Value.Scalar()
		str, ok := v.(string)
		if !ok {
			return nil, errors.Errorf("invalid %s value for field %q", opName(c.Operator), c.Field)
		}
		like := clause.Like{
			Column: clause.Expr{SQL: "LOWER(?)", Vars: []any{column}},
			Value:  "%" + strings.ToLower(str) + "%",
		}
		if c.Operator == condfilter.OperatorContains {
			return like, nil
		}
		return orNull(column, clause.Not(like)), nil

	case condfilter.OperatorIn, condfilter.OperatorNotIn:
		list, ok := c.Value.List()
		if !ok {
			return nil, errors.Errorf("invalid %s values for field %q", opName(c.Operator), c.Field)
		}
		values := lo.Map(list, func(v any, _ int) any { return compareValue(v, isJSON) })
		in := clause.IN{Column: column, Values: values}
		if c.Operator == condfilter.OperatorIn {
			return in, nil
		}
		if len(values) == 0 {
			return nil, nil
		}
		return orNull(column, clause.Not(in)), nil

	case condfilter.OperatorRange:
		bounds, ok := c.Value.Bounds()
		if !ok {
			return nil, errors.Errorf("invalid %s value for field %q", opName(c.Operator), c.Field)
		}
		if isJSON {
			column = clause.Expr{SQL: "CAST(? AS NUMERIC)", Vars: []any{column}}
		}
		var exprs []clause.Expression
		if bounds.Min != nil {
			exprs = append(exprs, clause.Gte{Column: column, Value: *bounds.Min})
		}
		if bounds.Max != nil {
			exprs = append(exprs, clause.Lte{Column: column, Value: *bounds.Max})
		}
		if len(exprs) == 0 {
			return clause.Neq{Column: column, Value: nil}, nil
		}
		return combineExprs(condfilter.LogicAnd, exprs...), nil

	case condfilter.OperatorExists:
		if isJSON {
			return clause.And(
				datatypes.JSONQuery(out.JSONColumn).HasKey(out.JSONKeys...),
				clause.Neq{Column: column, Value: ""},
			), nil
		}
		if out.Text {
			return clause.And(
				clause.Neq{Column: column, Value: nil},
				clause.Neq{Column: column, Value: ""},
			), nil
		}
		return clause.Neq{Column: column, Value: nil}, nil

	default:
		return nil, errors.Errorf("unknown operator %q for field %q", c.Operator, c.Field)
	}
}

// a missing value never equals anything, so negations also match NULL
func orNull(column any, expr clause.Expression) clause.Expression {
	return clause.Or(expr, clause.Eq{Column: column, Value: nil})
}

// JSON keys are compared as extracted text
func compareValue(v any, isJSON bool) any {
	if !isJSON || v == nil {
		return v
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func opName(op condfilter.Operator) string {
	return strings.ToUpper(strings.ReplaceAll(string(op), "_", " "))
}

// combineExprs combines expressions with the logic. A nil expression matches
// every row: it is dropped under AND and makes the whole OR unrestricted.
func combineExprs(logic condfilter.Logic, exprs ...clause.Expression) clause.Expression {
	isNil := func(e clause.Expression) bool { return e == nil }
	if logic.OrDefault() == condfilter.LogicOr && lo.ContainsBy(exprs, isNil) {
		return nil
	}
	exprs = lo.Reject(exprs, func(e clause.Expression, _ int) bool { return isNil(e) })

	switch len(exprs) {
	case 0:
		return nil
	case 1:
		return exprs[0]
	default:
		if logic.OrDefault() == condfilter.LogicOr {
			return clause.Or(exprs...)
		}
		return clause.And(exprs...)
	}
}
