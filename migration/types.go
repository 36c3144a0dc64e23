package migration

import (
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/theplant/condfilter"
)

const (
	LegacyVersion   = "1.0"
	EnhancedVersion = "2.0"
)

type Search struct {
	Query string `json:"query"`
}

type Location struct {
	Cities        []string `json:"cities"`
	Regions       []string `json:"regions"`
	Neighborhoods []string `json:"neighborhoods"`
}

type Category struct {
	Categories   []string `json:"categories"`
	VenueTypes   []string `json:"venueTypes"`
	Environments []string `json:"environments"`
}

type Price struct {
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	Ranges []string `json:"ranges"`
}

// Features holds the optional screen features. A nil pointer means "any".
type Features struct {
	AllowsMoments    *bool    `json:"allowsMoments"`
	Rating           *float64 `json:"rating"`
	Accessibility    []string `json:"accessibility"`
	SupportedFormats []string `json:"supportedFormats"`
}

type Availability struct {
	TimeSlots  []string `json:"timeSlots"`
	DaysOfWeek []string `json:"daysOfWeek"`
}

type Sort struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// LegacyState is the flat filter shape. All populated fields are implicitly AND-combined.
type LegacyState struct {
	Search            Search       `json:"search"`
	Location          Location     `json:"location"`
	Category          Category     `json:"category"`
	Price             Price        `json:"price"`
	Features          Features     `json:"features"`
	Availability      Availability `json:"availability"`
	Sort              Sort         `json:"sort"`
	ShowFavoritesOnly bool         `json:"showFavoritesOnly"`
	ShowCircuits      *bool        `json:"showCircuits,omitempty"`
}

// Clone returns a deep copy. Nil and empty slices are kept apart.
func (l LegacyState) Clone() LegacyState {
	c := l
	c.Location.Cities = slices.Clone(l.Location.Cities)
	c.Location.Regions = slices.Clone(l.Location.Regions)
	c.Location.Neighborhoods = slices.Clone(l.Location.Neighborhoods)
	c.Category.Categories = slices.Clone(l.Category.Categories)
	c.Category.VenueTypes = slices.Clone(l.Category.VenueTypes)
	c.Category.Environments = slices.Clone(l.Category.Environments)
	c.Price.Ranges = slices.Clone(l.Price.Ranges)
	c.Features.Accessibility = slices.Clone(l.Features.Accessibility)
	c.Features.SupportedFormats = slices.Clone(l.Features.SupportedFormats)
	c.Availability.TimeSlots = slices.Clone(l.Availability.TimeSlots)
	c.Availability.DaysOfWeek = slices.Clone(l.Availability.DaysOfWeek)
	if l.Features.AllowsMoments != nil {
		c.Features.AllowsMoments = lo.ToPtr(*l.Features.AllowsMoments)
	}
	if l.Features.Rating != nil {
		c.Features.Rating = lo.ToPtr(*l.Features.Rating)
	}
	if l.ShowCircuits != nil {
		c.ShowCircuits = lo.ToPtr(*l.ShowCircuits)
	}
	return c
}

type DisplayMode string

const (
	DisplayModeSimple   DisplayMode = "simple"
	DisplayModeAdvanced DisplayMode = "advanced"
)

type ViewMode string

const (
	ViewModeGrid ViewMode = "grid"
	ViewModeList ViewMode = "list"
	ViewModeMap  ViewMode = "map"
)

type Strategy string

const (
	// StrategyAutomatic migrates without asking the user.
	StrategyAutomatic Strategy = "automatic"
	// StrategyManual is recorded when the user triggered the migration.
	StrategyManual Strategy = "manual"
)

type MigrationInfo struct {
	FromVersion string    `json:"fromVersion"`
	ToVersion   string    `json:"toVersion"`
	MigratedAt  time.Time `json:"migratedAt"`
	Strategy    Strategy  `json:"strategy"`
	Warnings    []string  `json:"warnings"`
	DataLoss    []string  `json:"dataLoss"`
}

type Metadata struct {
	LastModified  time.Time         `json:"lastModified"`
	Source        condfilter.Source `json:"source"`
	Version       string            `json:"version"`
	MigrationInfo *MigrationInfo    `json:"migrationInfo,omitempty"`
}

// EnhancedState is a superset of LegacyState: the flat fields are kept as they
// are and the rule based filter is added next to them.
type EnhancedState struct {
	LegacyState

	ConditionalRules []condfilter.Rule  `json:"conditionalRules"`
	FilterGroups     []condfilter.Group `json:"filterGroups"`
	GlobalLogic      condfilter.Logic   `json:"globalLogic"`
	DisplayMode      DisplayMode        `json:"displayMode"`
	ViewMode         ViewMode           `json:"viewMode"`
	Metadata         *Metadata          `json:"metadata,omitempty"`
}

// FilterState returns the rule based part as a condfilter.State.
func (s *EnhancedState) FilterState() *condfilter.State {
	if s == nil {
		return nil
	}
	state := &condfilter.State{
		Rules:       s.ConditionalRules,
		Groups:      s.FilterGroups,
		GlobalLogic: s.GlobalLogic,
	}
	if s.Metadata != nil {
		state.Metadata = condfilter.Metadata{
			LastModified: s.Metadata.LastModified,
			Source:       s.Metadata.Source,
			Version:      s.Metadata.Version,
		}
	}
	return state
}

func DefaultLegacyState() LegacyState {
	return LegacyState{
		Location:     Location{Cities: []string{}, Regions: []string{}, Neighborhoods: []string{}},
		Category:     Category{Categories: []string{}, VenueTypes: []string{}, Environments: []string{}},
		Price:        Price{Min: 0, Max: DefaultMaxPrice, Ranges: []string{}},
		Features:     Features{Accessibility: []string{}, SupportedFormats: []string{}},
		Availability: Availability{TimeSlots: []string{}, DaysOfWeek: []string{}},
		ShowCircuits: lo.ToPtr(true),
	}
}

// DefaultEnhancedState is the empty state to fall back to when migration fails.
func DefaultEnhancedState() *EnhancedState {
	return &EnhancedState{
		LegacyState:      DefaultLegacyState(),
		ConditionalRules: []condfilter.Rule{},
		FilterGroups:     []condfilter.Group{},
		GlobalLogic:      condfilter.LogicAnd,
		DisplayMode:      DisplayModeSimple,
		ViewMode:         ViewModeGrid,
		Metadata: &Metadata{
			LastModified: time.Now(),
			Source:       condfilter.SourceUser,
			Version:      EnhancedVersion,
		},
	}
}
