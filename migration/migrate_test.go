package migration

import (
	"fmt"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theplant/condfilter"
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func testOptions() Options {
	n := 0
	opts := DefaultOptions()
	opts.NewID = func(prefix string) string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
	opts.Now = func() time.Time { return fixedNow }
	return opts
}

func fullLegacy() *LegacyState {
	return &LegacyState{
		Search:   Search{Query: " billboard "},
		Location: Location{Cities: []string{"Bogota", "Medellin"}, Regions: []string{}, Neighborhoods: []string{"Chapinero"}},
		Category: Category{Categories: []string{"outdoor"}, VenueTypes: []string{"mall"}, Environments: []string{"indoor"}},
		Price:    Price{Min: 100, Max: DefaultMaxPrice, Ranges: []string{"budget", "premium"}},
		Features: Features{
			AllowsMoments:    lo.ToPtr(true),
			Rating:           lo.ToPtr(4.0),
			Accessibility:    []string{"wheelchair"},
			SupportedFormats: []string{"video"},
		},
		Availability:      Availability{TimeSlots: []string{"morning"}, DaysOfWeek: []string{"monday"}},
		Sort:              Sort{Field: "price", Direction: "asc"},
		ShowFavoritesOnly: true,
		ShowCircuits:      lo.ToPtr(false),
	}
}

func TestMigrate(t *testing.T) {
	legacy := fullLegacy()
	result := Migrate(legacy, testOptions())
	require.True(t, result.Success)
	require.Empty(t, result.Errors)

	state := result.State
	require.Equal(t, condfilter.LogicAnd, state.GlobalLogic)
	require.Equal(t, DisplayModeAdvanced, state.DisplayMode)
	require.Equal(t, ViewModeGrid, state.ViewMode)

	type ruleShape struct {
		Field    string
		Operator condfilter.Operator
		Value    any
	}
	shapes := lo.Map(state.ConditionalRules, func(r condfilter.Rule, _ int) ruleShape {
		return ruleShape{Field: r.Field, Operator: r.Operator, Value: r.Value.Interface()}
	})
	require.Equal(t, []ruleShape{
		{FieldName, condfilter.OperatorContains, "billboard"},
		{FieldCity, condfilter.OperatorIn, []any{"Bogota", "Medellin"}},
		{FieldNeighborhood, condfilter.OperatorIn, []any{"Chapinero"}},
		{FieldCategory, condfilter.OperatorIn, []any{"outdoor"}},
		{FieldVenueType, condfilter.OperatorIn, []any{"mall"}},
		{FieldEnvironment, condfilter.OperatorIn, []any{"indoor"}},
		{FieldPrice, condfilter.OperatorRange, map[string]any{"min": 100.0}},
		{FieldAllowMoments, condfilter.OperatorEquals, true},
		{FieldRating, condfilter.OperatorRange, map[string]any{"min": 4.0}},
		{FieldAccessibility, condfilter.OperatorIn, []any{"wheelchair"}},
		{FieldSupportedFormats, condfilter.OperatorIn, []any{"video"}},
		{FieldTimeSlot, condfilter.OperatorIn, []any{"morning"}},
		{FieldDayOfWeek, condfilter.OperatorIn, []any{"monday"}},
		{FieldIsFavorite, condfilter.OperatorEquals, true},
		{FieldIsCircuit, condfilter.OperatorEquals, false},
	}, shapes)

	require.Len(t, state.FilterGroups, 1)
	group := state.FilterGroups[0]
	require.Equal(t, PriceRangesGroupName, group.Name)
	require.Equal(t, condfilter.LogicOr, group.Logic)
	require.Len(t, group.Rules, 2)
	require.Equal(t, FieldPriceRange, group.Rules[1].Field)
	require.Equal(t, []any{"premium"}, group.Rules[1].Value.Interface())

	ids := append(lo.Map(state.ConditionalRules, func(r condfilter.Rule, _ int) string { return r.ID }), group.ID)
	require.Equal(t, ids, lo.Uniq(ids))
	require.Equal(t, "migrated-search-1", state.ConditionalRules[0].ID)

	require.Len(t, result.Warnings, 1)
	require.Contains(t, result.Warnings[0], "isFavorite")
	require.Len(t, result.DataLoss, 1)
	require.Contains(t, result.DataLoss[0], "sort")

	info := state.Metadata.MigrationInfo
	require.Equal(t, condfilter.SourceMigration, state.Metadata.Source)
	require.Equal(t, "1.0", info.FromVersion)
	require.Equal(t, "2.0", info.ToVersion)
	require.Equal(t, fixedNow, info.MigratedAt)
	require.Equal(t, StrategyAutomatic, info.Strategy)
	require.Equal(t, result.Warnings, info.Warnings)

	require.Equal(t, fullLegacy(), legacy, "input must not be modified")
	require.True(t, condfilter.ValidateFilterState(state.FilterState()).IsValid)
}

func TestMigratePriceBounds(t *testing.T) {
	tests := []struct {
		name  string
		price Price
		want  any
	}{
		{name: "unbounded", price: Price{Min: 0, Max: DefaultMaxPrice}, want: nil},
		{name: "unset max", price: Price{}, want: nil},
		{name: "min only", price: Price{Min: 50, Max: DefaultMaxPrice}, want: map[string]any{"min": 50.0}},
		{name: "max only", price: Price{Max: 500}, want: map[string]any{"max": 500.0}},
		{name: "both", price: Price{Min: 50, Max: 500}, want: map[string]any{"min": 50.0, "max": 500.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Migrate(&LegacyState{Price: tt.price}, testOptions())
			require.True(t, result.Success)
			rule, ok := lo.Find(result.State.ConditionalRules, func(r condfilter.Rule) bool { return r.Field == FieldPrice })
			if tt.want == nil {
				require.False(t, ok)
				return
			}
			require.True(t, ok)
			require.Equal(t, tt.want, rule.Value.Interface())
		})
	}

	opts := testOptions()
	opts.MaxPrice = 500
	result := Migrate(&LegacyState{Price: Price{Max: 500}}, opts)
	require.Empty(t, result.State.ConditionalRules)
}

func TestMigrateWithoutRules(t *testing.T) {
	opts := testOptions()
	opts.GenerateConditionalRules = false

	result := Migrate(fullLegacy(), opts)
	require.True(t, result.Success)
	require.NotNil(t, result.State.ConditionalRules)
	require.Empty(t, result.State.ConditionalRules)
	require.Empty(t, result.State.FilterGroups)
	require.Equal(t, DisplayModeSimple, result.State.DisplayMode)
	require.Empty(t, result.Warnings)
	require.False(t, NeedsMigration(result.State))
}

func TestMigrateNil(t *testing.T) {
	result := Migrate(nil, testOptions())
	require.False(t, result.Success)
	require.Nil(t, result.State)
	require.NotEmpty(t, result.Errors)

	fallback := result.StateOrDefault()
	require.Empty(t, fallback.ConditionalRules)
	require.Equal(t, condfilter.LogicAnd, fallback.GlobalLogic)
	require.False(t, NeedsMigration(fallback))
}

func TestConvertToLegacyRoundTrip(t *testing.T) {
	states := []*LegacyState{
		fullLegacy(),
		{},
		lo.ToPtr(DefaultLegacyState()),
		{Search: Search{Query: "x"}, Features: Features{Rating: lo.ToPtr(0.0)}},
	}

	for i, legacy := range states {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			result := Migrate(legacy, testOptions())
			require.True(t, result.Success)
			assert.Equal(t, legacy, ConvertToLegacy(result.State))
		})
	}

	require.Nil(t, ConvertToLegacy(nil))
}

func TestConvertToLegacyDoesNotAlias(t *testing.T) {
	result := Migrate(fullLegacy(), testOptions())
	legacy := ConvertToLegacy(result.State)
	legacy.Location.Cities[0] = "Cali"
	*legacy.Features.Rating = 1
	require.Equal(t, "Bogota", result.State.Location.Cities[0])
	require.Equal(t, 4.0, *result.State.Features.Rating)
}

func TestNeedsMigration(t *testing.T) {
	require.True(t, NeedsMigration(&EnhancedState{LegacyState: *fullLegacy()}))
	require.False(t, NeedsMigration(&EnhancedState{ConditionalRules: []condfilter.Rule{}}))
	require.False(t, NeedsMigration(&EnhancedState{Metadata: &Metadata{Version: "2.0"}}))
	require.False(t, NeedsMigration(nil))
}
