package condfilter

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	item := map[string]any{
		"name": "Screen A",
		"locationDetails": map[string]any{
			"city": "Bogota",
			"geo":  map[string]any{"lat": 4.7},
		},
		"tags":  map[string]string{"env": "indoor"},
		"empty": nil,
	}

	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{path: "name", want: "Screen A", found: true},
		{path: "locationDetails.city", want: "Bogota", found: true},
		{path: "locationDetails.geo.lat", want: 4.7, found: true},
		{path: "tags.env", want: "indoor", found: true},
		{path: "empty", want: nil, found: true},
		{path: "missing", found: false},
		{path: "locationDetails.region", found: false},
		{path: "name.length", found: false},
		{path: "empty.deeper", found: false},
		{path: "", found: false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, found := Lookup(item, tt.path)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}

	_, found := Lookup(nil, "name")
	assert.False(t, found)
}

func TestEvaluateRule(t *testing.T) {
	item := map[string]any{
		"name":     "Downtown Billboard",
		"price":    150.0,
		"priceStr": "150",
		"count":    3,
		"active":   true,
		"empty":    "",
		"nothing":  nil,
		"venue":    map[string]any{"type": "mall"},
	}

	tests := []struct {
		name string
		rule Rule
		want bool
	}{
		{name: "equals string", rule: Equals("r", "name", "Downtown Billboard"), want: true},
		{name: "equals is case sensitive", rule: Equals("r", "name", "downtown billboard"), want: false},
		{name: "equals int vs float", rule: Equals("r", "price", 150), want: true},
		{name: "equals no string/number coercion", rule: Equals("r", "priceStr", 150), want: false},
		{name: "equals bool", rule: Equals("r", "active", true), want: true},
		{name: "equals missing field", rule: Equals("r", "missing", "x"), want: false},
		{name: "equals null on missing field", rule: Equals("r", "missing", nil), want: false},
		{name: "equals null on null field", rule: Equals("r", "nothing", nil), want: true},
		{name: "equals nested", rule: Equals("r", "venue.type", "mall"), want: true},
		{name: "not_equals", rule: NotEquals("r", "name", "Other"), want: true},
		{name: "not_equals same", rule: NotEquals("r", "name", "Downtown Billboard"), want: false},
		{name: "not_equals missing field", rule: NotEquals("r", "missing", "x"), want: true},
		{name: "not_equals null on missing field", rule: NotEquals("r", "missing", nil), want: true},
		{name: "not_equals null on null field", rule: NotEquals("r", "nothing", nil), want: false},
		{name: "contains case insensitive", rule: Contains("r", "name", "BILL"), want: true},
		{name: "contains no match", rule: Contains("r", "name", "mall"), want: false},
		{name: "contains non-string field", rule: Contains("r", "price", "15"), want: false},
		{name: "contains non-string value", rule: Rule{ID: "r", Field: "name", Operator: OperatorContains, Value: Scalar(1)}, want: false},
		{name: "not_contains", rule: NotContains("r", "name", "mall"), want: true},
		{name: "not_contains match", rule: NotContains("r", "name", "down"), want: false},
		{name: "in", rule: In("r", "venue.type", "mall", "airport"), want: true},
		{name: "in miss", rule: In("r", "venue.type", "airport"), want: false},
		{name: "in numbers", rule: In("r", "count", 1.0, 3.0), want: true},
		{name: "in non-array value", rule: Rule{ID: "r", Field: "venue.type", Operator: OperatorIn, Value: Scalar("mall")}, want: false},
		{name: "in missing field", rule: In("r", "missing", "mall"), want: false},
		{name: "not_in", rule: NotIn("r", "venue.type", "airport"), want: true},
		{name: "not_in hit", rule: NotIn("r", "venue.type", "mall"), want: false},
		{name: "not_in non-array value", rule: Rule{ID: "r", Field: "venue.type", Operator: OperatorNotIn, Value: Scalar("x")}, want: false},
		{name: "not_in missing field", rule: NotIn("r", "missing", "mall"), want: true},
		{name: "range inside", rule: InRange("r", "price", lo.ToPtr(100.0), lo.ToPtr(200.0)), want: true},
		{name: "range inclusive", rule: InRange("r", "price", lo.ToPtr(150.0), lo.ToPtr(150.0)), want: true},
		{name: "range below", rule: InRange("r", "price", lo.ToPtr(151.0), nil), want: false},
		{name: "range above", rule: InRange("r", "price", nil, lo.ToPtr(149.0)), want: false},
		{name: "range open", rule: InRange("r", "price", nil, nil), want: true},
		{name: "range numeric string", rule: InRange("r", "priceStr", lo.ToPtr(100.0), nil), want: true},
		{name: "range non-numeric field", rule: InRange("r", "name", lo.ToPtr(0.0), nil), want: false},
		{name: "range missing field", rule: InRange("r", "missing", nil, nil), want: false},
		{name: "range non-range value", rule: Rule{ID: "r", Field: "price", Operator: OperatorRange, Value: Scalar(150)}, want: false},
		{name: "exists", rule: Exists("r", "name"), want: true},
		{name: "exists empty string", rule: Exists("r", "empty"), want: false},
		{name: "exists nil", rule: Exists("r", "nothing"), want: false},
		{name: "exists missing", rule: Exists("r", "missing"), want: false},
		{name: "exists false bool", rule: Exists("r", "active"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateRule(item, &tt.rule))
		})
	}
}

func TestEvaluateUnknownOperator(t *testing.T) {
	item := map[string]any{"name": "x"}
	rule := Rule{ID: "r1", Field: "name", Operator: "starts_with", Value: Scalar("x")}

	t.Run("default passes and warns", func(t *testing.T) {
		var buf bytes.Buffer
		e := New(WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
		require.True(t, e.EvaluateRule(item, &rule))
		require.Contains(t, buf.String(), `"level":"WARN"`)
		require.Contains(t, buf.String(), "starts_with")
	})

	t.Run("strict fails", func(t *testing.T) {
		var buf bytes.Buffer
		e := New(WithStrictOperators(), WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
		require.False(t, e.EvaluateRule(item, &rule))
		require.Contains(t, buf.String(), `"level":"ERROR"`)
	})
}

func TestEvaluateGroup(t *testing.T) {
	item := map[string]any{"city": "NY", "price": 100}

	t.Run("AND", func(t *testing.T) {
		g := Group{ID: "g", Name: "g", Logic: LogicAnd, Rules: []Rule{
			Equals("a", "city", "NY"),
			Equals("b", "price", 200),
		}}
		require.False(t, EvaluateGroup(item, &g))
	})

	t.Run("OR", func(t *testing.T) {
		g := Group{ID: "g", Name: "g", Logic: LogicOr, Rules: []Rule{
			Equals("a", "city", "LA"),
			Equals("b", "price", 100),
		}}
		require.True(t, EvaluateGroup(item, &g))
	})

	t.Run("disabled rules are skipped", func(t *testing.T) {
		g := Group{ID: "g", Name: "g", Logic: LogicAnd, Rules: []Rule{
			Equals("a", "city", "NY"),
			Equals("b", "price", 200).WithDisabled(true),
		}}
		require.True(t, EvaluateGroup(item, &g))
	})

	t.Run("empty and all-disabled groups pass", func(t *testing.T) {
		require.True(t, EvaluateGroup(item, &Group{ID: "g", Logic: LogicOr}))
		g := Group{ID: "g", Logic: LogicOr, Rules: []Rule{Equals("a", "city", "LA").WithDisabled(true)}}
		require.True(t, EvaluateGroup(item, &g))
	})
}

func TestEvaluateHook(t *testing.T) {
	var seen []string
	e := New(WithEvaluateHook(func(next EvaluateFunc) EvaluateFunc {
		return func(item map[string]any, rule *Rule) bool {
			seen = append(seen, rule.ID)
			if rule.Operator == "starts_with" {
				return false
			}
			return next(item, rule)
		}
	}))

	item := map[string]any{"name": "abc"}
	require.False(t, e.EvaluateRule(item, &Rule{ID: "custom", Field: "name", Operator: "starts_with"}))
	require.True(t, e.EvaluateRule(item, lo.ToPtr(Equals("builtin", "name", "abc"))))
	require.Equal(t, []string{"custom", "builtin"}, seen)
}
