package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theplant/testenv"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/theplant/condfilter"
)

var db *gorm.DB

func TestMain(m *testing.M) {
	env, err := testenv.New().DBEnable(true).SetUp()
	if err != nil {
		panic(err)
	}
	defer env.TearDown()

	db = env.DB
	db.Logger = db.Logger.LogMode(logger.Info)

	m.Run()
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	require.NoError(t, db.Migrator().DropTable(&SavedFilter{}))

	seq := 0
	s := New(db,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func(prefix string) string {
			seq++
			return fmt.Sprintf("%s-%d", prefix, seq)
		}),
	)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testState(logic condfilter.Logic) condfilter.State {
	return condfilter.State{
		GlobalLogic: logic,
		Rules: []condfilter.Rule{
			condfilter.In("r1", "locationDetails.city", "Bogota", "Medellin"),
			condfilter.InRange("r2", "price", nil, lo.ToPtr(500.0)),
		},
		Groups: []condfilter.Group{
			{ID: "g1", Name: "Venue", Logic: condfilter.LogicOr, Rules: []condfilter.Rule{
				condfilter.Equals("g1-r1", "venue.type", "mall"),
				condfilter.Exists("g1-r2", "rating").WithDisabled(true),
			}},
		},
		Metadata: condfilter.Metadata{Source: condfilter.SourceUser, Version: "2.0"},
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	f := &SavedFilter{OwnerID: "u1", Name: "Malls", State: datatypes.NewJSONType(testState(condfilter.LogicAnd))}
	require.NoError(t, s.Save(ctx, f))
	require.Equal(t, "filter-1", f.ID)

	got, err := s.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Malls", got.Name)
	assert.Equal(t, "u1", got.OwnerID)

	state := got.State.Data()
	assert.Equal(t, condfilter.SourceSaved, state.Metadata.Source)
	assert.Equal(t, "2.0", state.Metadata.Version)
	assert.True(t, fixedNow.Equal(state.Metadata.LastModified))

	want := testState(condfilter.LogicAnd)
	require.Len(t, state.Rules, 2)
	assert.Equal(t, want.Rules[0].Field, state.Rules[0].Field)
	assert.Equal(t, []any{"Bogota", "Medellin"}, lo.Must(state.Rules[0].Value.List()))
	bounds, ok := state.Rules[1].Value.Bounds()
	require.True(t, ok)
	assert.Equal(t, 500.0, *bounds.Max)
	require.Len(t, state.Groups, 1)
	assert.True(t, state.Groups[0].Rules[1].Disabled)

	// saving again replaces
	got.Name = "Malls in Bogota"
	require.NoError(t, s.Save(ctx, got))
	got, err = s.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Malls in Bogota", got.Name)

	require.NoError(t, s.Save(ctx, &SavedFilter{OwnerID: "u1", Name: "Any", State: datatypes.NewJSONType(testState(condfilter.LogicOr))}))
	require.NoError(t, s.Save(ctx, &SavedFilter{OwnerID: "u2", Name: "Other", State: datatypes.NewJSONType(condfilter.State{})}))

	list, err := s.List(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"filter-1", "filter-2"}, lo.Map(list, func(f *SavedFilter, _ int) string { return f.ID }))

	list, err = s.List(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.Delete(ctx, f.ID))
	_, err = s.Get(ctx, f.ID)
	require.True(t, errors.Is(err, ErrNotFound))
	err = s.Delete(ctx, f.ID)
	require.True(t, errors.Is(err, ErrNotFound))

	list, err = s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "filter-2", list[0].ID)
}

func TestStoreFind(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Save(ctx, &SavedFilter{OwnerID: "u1", Name: "Malls", State: datatypes.NewJSONType(testState(condfilter.LogicAnd))}))
	require.NoError(t, s.Save(ctx, &SavedFilter{OwnerID: "u1", Name: "Any mall", State: datatypes.NewJSONType(testState(condfilter.LogicOr))}))
	require.NoError(t, s.Save(ctx, &SavedFilter{OwnerID: "u2", Name: "Airports", State: datatypes.NewJSONType(testState(condfilter.LogicOr))}))

	tests := []struct {
		name  string
		state *condfilter.State
		want  []string
	}{
		{
			name: "by owner and name",
			state: &condfilter.State{Rules: []condfilter.Rule{
				condfilter.Equals("r1", "ownerId", "u1"),
				condfilter.Contains("r2", "name", "MALL"),
			}},
			want: []string{"filter-1", "filter-2"},
		},
		{
			name: "by nested state field",
			state: &condfilter.State{Rules: []condfilter.Rule{
				condfilter.Equals("r1", "state.globalLogic", "OR"),
			}},
			want: []string{"filter-2", "filter-3"},
		},
		{
			name:  "empty state",
			state: &condfilter.State{},
			want:  []string{"filter-1", "filter-2", "filter-3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.Find(ctx, tt.state, Page{})
			require.NoError(t, err)
			require.Equal(t, len(tt.want), result.TotalCount)
			require.Equal(t, tt.want, lo.Map(result.Filters, func(f *SavedFilter, _ int) string { return f.ID }))
		})
	}

	t.Run("page", func(t *testing.T) {
		result, err := s.Find(ctx, &condfilter.State{}, Page{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Equal(t, 3, result.TotalCount)
		require.Len(t, result.Filters, 1)
		require.Equal(t, "filter-2", result.Filters[0].ID)

		result, err = s.Find(ctx, &condfilter.State{}, Page{Offset: 5})
		require.NoError(t, err)
		require.Equal(t, 3, result.TotalCount)
		require.Empty(t, result.Filters)
	})

	_, err := s.Find(ctx, &condfilter.State{Rules: []condfilter.Rule{condfilter.Exists("r1", "color")}}, Page{})
	require.ErrorContains(t, err, `missing field "color" in schema`)
}

func TestStoreSaveInvalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name    string
		filter  *SavedFilter
		wantErr string
	}{
		{name: "nil", filter: nil, wantErr: "saved filter is nil"},
		{name: "no owner", filter: &SavedFilter{Name: "x"}, wantErr: "owner id is required"},
		{name: "no name", filter: &SavedFilter{OwnerID: "u1", Name: " "}, wantErr: "name is required"},
		{
			name: "invalid state",
			filter: &SavedFilter{OwnerID: "u1", Name: "Bad", State: datatypes.NewJSONType(condfilter.State{
				Rules: []condfilter.Rule{{ID: "r1", Field: "city", Operator: "starts_with", Value: condfilter.Scalar("B")}},
			})},
			wantErr: `rules[0]: unsupported operator "starts_with"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Save(ctx, tt.filter)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}

	err := s.Save(ctx, &SavedFilter{OwnerID: "u1", Name: "Bad", State: datatypes.NewJSONType(condfilter.State{
		GlobalLogic: "XOR",
	})})
	require.True(t, errors.Is(err, ErrInvalidState))

	list, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, list)
}
