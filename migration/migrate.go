package migration

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/theplant/condfilter"
)

// DefaultMaxPrice is the price max that means "no upper bound".
const DefaultMaxPrice = 1_000_000

const PriceRangesGroupName = "Price Ranges"

// Item fields targeted by generated rules.
const (
	FieldName             = "name"
	FieldCity             = "locationDetails.city"
	FieldRegion           = "locationDetails.region"
	FieldNeighborhood     = "locationDetails.neighborhood"
	FieldCategory         = "category.name"
	FieldVenueType        = "venue.type"
	FieldEnvironment      = "environment"
	FieldPrice            = "price"
	FieldPriceRange       = "priceRange"
	FieldAllowMoments     = "pricing.allowMoments"
	FieldRating           = "rating"
	FieldAccessibility    = "features.accessibility"
	FieldSupportedFormats = "features.supportedFormats"
	FieldTimeSlot         = "availability.timeSlot"
	FieldDayOfWeek        = "availability.dayOfWeek"
	FieldIsFavorite       = "isFavorite"
	FieldIsCircuit        = "isCircuit"
)

type Options struct {
	// GenerateConditionalRules synthesizes rules and groups from the populated legacy fields.
	GenerateConditionalRules bool
	Strategy                 Strategy
	// MaxPrice is the legacy price max that is treated as unbounded.
	MaxPrice float64
	Logger   *slog.Logger
	NewID    func(prefix string) string
	Now      func() time.Time
}

func DefaultOptions() Options {
	return Options{
		GenerateConditionalRules: true,
		Strategy:                 StrategyAutomatic,
	}
}

func (o Options) withDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = StrategyAutomatic
	}
	if o.MaxPrice <= 0 {
		o.MaxPrice = DefaultMaxPrice
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.NewID == nil {
		o.NewID = condfilter.NewID
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Result never carries a Go error: failures are reported in Errors with Success false.
type Result struct {
	Success bool           `json:"success"`
	State   *EnhancedState `json:"migratedState,omitempty"`
	// Document is the migrated raw JSON document, set by MigrateJSON only.
	Document []byte   `json:"-"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	DataLoss []string `json:"dataLoss"`
}

// StateOrDefault returns the migrated state, or DefaultEnhancedState when migration failed.
func (r *Result) StateOrDefault() *EnhancedState {
	if r == nil || !r.Success || r.State == nil {
		return DefaultEnhancedState()
	}
	return r.State
}

func failed(logger *slog.Logger, errs ...string) *Result {
	logger.Warn("legacy filter state migration failed", "errors", errs)
	return &Result{
		Errors:   errs,
		Warnings: []string{},
		DataLoss: []string{},
	}
}

// Migrate converts a legacy state into an enhanced state. The flat fields are
// copied as they are; rules and groups are only added.
func Migrate(legacy *LegacyState, opts Options) *Result {
	opts = opts.withDefaults()
	if legacy == nil {
		return failed(opts.Logger, "legacy filter state is nil")
	}

	b := &ruleBuilder{
		newID:    opts.NewID,
		rules:    []condfilter.Rule{},
		groups:   []condfilter.Group{},
		warnings: []string{},
		dataLoss: []string{},
	}
	if opts.GenerateConditionalRules {
		b.build(legacy, opts.MaxPrice)
	}

	now := opts.Now()
	state := &EnhancedState{
		LegacyState:      legacy.Clone(),
		ConditionalRules: b.rules,
		FilterGroups:     b.groups,
		GlobalLogic:      condfilter.LogicAnd,
		DisplayMode:      DisplayModeSimple,
		ViewMode:         ViewModeGrid,
		Metadata: &Metadata{
			LastModified: now,
			Source:       condfilter.SourceMigration,
			Version:      EnhancedVersion,
			MigrationInfo: &MigrationInfo{
				FromVersion: LegacyVersion,
				ToVersion:   EnhancedVersion,
				MigratedAt:  now,
				Strategy:    opts.Strategy,
				Warnings:    b.warnings,
				DataLoss:    b.dataLoss,
			},
		},
	}
	if len(b.rules) > 0 || len(b.groups) > 0 {
		state.DisplayMode = DisplayModeAdvanced
	}

	opts.Logger.Info("migrated legacy filter state",
		"strategy", string(opts.Strategy),
		"rules", len(b.rules),
		"groups", len(b.groups),
		"warnings", len(b.warnings),
	)

	return &Result{
		Success:  true,
		State:    state,
		Errors:   []string{},
		Warnings: append([]string{}, b.warnings...),
		DataLoss: append([]string{}, b.dataLoss...),
	}
}

type ruleBuilder struct {
	newID    func(prefix string) string
	rules    []condfilter.Rule
	groups   []condfilter.Group
	warnings []string
	dataLoss []string
}

func (b *ruleBuilder) id(name string) string {
	return b.newID("migrated-" + name)
}

func (b *ruleBuilder) add(r condfilter.Rule) {
	b.rules = append(b.rules, r)
}

func (b *ruleBuilder) in(name, field string, values []string) {
	if len(values) == 0 {
		return
	}
	b.add(condfilter.In(b.id(name), field, values...))
}

func (b *ruleBuilder) build(l *LegacyState, maxPrice float64) {
	if q := strings.TrimSpace(l.Search.Query); q != "" {
		b.add(condfilter.Contains(b.id("search"), FieldName, q))
	}

	b.in("cities", FieldCity, l.Location.Cities)
	b.in("regions", FieldRegion, l.Location.Regions)
	b.in("neighborhoods", FieldNeighborhood, l.Location.Neighborhoods)

	b.in("categories", FieldCategory, l.Category.Categories)
	b.in("venue-types", FieldVenueType, l.Category.VenueTypes)
	b.in("environments", FieldEnvironment, l.Category.Environments)

	// a max of 0 is an unset max, not a zero price cap
	var lower, upper *float64
	if l.Price.Min > 0 {
		lower = lo.ToPtr(l.Price.Min)
	}
	if l.Price.Max > 0 && l.Price.Max < maxPrice {
		upper = lo.ToPtr(l.Price.Max)
	}
	if lower != nil || upper != nil {
		b.add(condfilter.InRange(b.id("price"), FieldPrice, lower, upper))
	}

	if len(l.Price.Ranges) > 0 {
		groupID := b.id("price-ranges")
		group := condfilter.Group{
			ID:    groupID,
			Name:  PriceRangesGroupName,
			Logic: condfilter.LogicOr,
			Rules: lo.Map(l.Price.Ranges, func(r string, _ int) condfilter.Rule {
				return condfilter.In(b.id("price-range"), FieldPriceRange, r).WithLogic(condfilter.LogicOr)
			}),
		}
		b.groups = append(b.groups, group)
	}

	if l.Features.AllowsMoments != nil {
		b.add(condfilter.Equals(b.id("moments"), FieldAllowMoments, *l.Features.AllowsMoments))
	}
	if l.Features.Rating != nil {
		b.add(condfilter.InRange(b.id("rating"), FieldRating, lo.ToPtr(*l.Features.Rating), nil))
	}
	b.in("accessibility", FieldAccessibility, l.Features.Accessibility)
	b.in("formats", FieldSupportedFormats, l.Features.SupportedFormats)

	b.in("time-slots", FieldTimeSlot, l.Availability.TimeSlots)
	b.in("days", FieldDayOfWeek, l.Availability.DaysOfWeek)

	if l.ShowFavoritesOnly {
		b.add(condfilter.Equals(b.id("favorites"), FieldIsFavorite, true))
		b.warnings = append(b.warnings,
			"showFavoritesOnly was migrated to an isFavorite rule, items must carry the current user's favorite flag for it to match")
	}
	if l.ShowCircuits != nil && !*l.ShowCircuits {
		b.add(condfilter.Equals(b.id("circuits"), FieldIsCircuit, false))
	}

	if l.Sort.Field != "" {
		b.dataLoss = append(b.dataLoss,
			fmt.Sprintf("sort by %q has no rule equivalent and is only kept in the flat fields", l.Sort.Field))
	}
}

// ConvertToLegacy drops everything the migration added. The flat fields are
// returned as stored, so ConvertToLegacy(Migrate(l).State) equals l.
func ConvertToLegacy(enhanced *EnhancedState) *LegacyState {
	if enhanced == nil {
		return nil
	}
	legacy := enhanced.LegacyState.Clone()
	return &legacy
}

// NeedsMigration reports whether the state still has the legacy shape:
// neither rules nor metadata have been added yet.
func NeedsMigration(state *EnhancedState) bool {
	if state == nil {
		return false
	}
	return state.ConditionalRules == nil && state.Metadata == nil
}
