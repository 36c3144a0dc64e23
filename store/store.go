package store

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/theplant/condfilter"
	"github.com/theplant/condfilter/gormquery"
)

var (
	ErrNotFound     = errors.New("saved filter not found")
	ErrInvalidState = errors.New("invalid filter state")
)

// SavedFilter is a named filter state owned by a user.
type SavedFilter struct {
	ID        string         `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"index;not null" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"index;not null" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deletedAt"`
	OwnerID   string         `gorm:"index;not null" json:"ownerId"`
	Name      string         `gorm:"not null" json:"name"`

	State datatypes.JSONType[condfilter.State] `gorm:"not null" json:"state"`
}

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
	newID  func(prefix string) string
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the time used for metadata.lastModified.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithIDGenerator(newID func(prefix string) string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
		newID:  condfilter.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to postgres and migrates the saved filter table.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	s := New(db, opts...)
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&SavedFilter{}); err != nil {
		return errors.Wrap(err, "migrate saved filters")
	}
	return nil
}

// Save creates the filter, or replaces it when the id already exists.
// The state is stamped with source "saved" and the current time.
func (s *Store) Save(ctx context.Context, f *SavedFilter) error {
	if f == nil {
		return errors.New("saved filter is nil")
	}
	if strings.TrimSpace(f.OwnerID) == "" {
		return errors.New("owner id is required")
	}
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("name is required")
	}

	state := f.State.Data()
	if result := condfilter.ValidateFilterState(&state); !result.IsValid {
		return errors.Wrap(ErrInvalidState, result.Errors[0].Message)
	}
	state.Metadata.Source = condfilter.SourceSaved
	state.Metadata.LastModified = s.now().UTC()
	f.State = datatypes.NewJSONType(state)

	if f.ID == "" {
		f.ID = s.newID("filter")
	}
	if err := s.db.WithContext(ctx).Save(f).Error; err != nil {
		return errors.Wrapf(err, "save filter %q", f.ID)
	}

	s.logger.DebugContext(ctx, "saved filter",
		"id", f.ID, "owner_id", f.OwnerID, "rules", len(state.Rules), "groups", len(state.Groups))
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*SavedFilter, error) {
	var f SavedFilter
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "get filter %q", id)
		}
		return nil, errors.Wrapf(err, "get filter %q", id)
	}
	return &f, nil
}

// List returns the filters of an owner, most recently updated first.
func (s *Store) List(ctx context.Context, ownerID string) ([]*SavedFilter, error) {
	var filters []*SavedFilter
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Order("id").
		Find(&filters).Error
	if err != nil {
		return nil, errors.Wrap(err, "list filters")
	}
	return filters, nil
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page selects a window of a listing. A non-positive Limit uses DefaultPageLimit,
// larger limits are capped at MaxPageLimit.
type Page struct {
	Limit  int
	Offset int
}

type FindResult struct {
	Filters    []*SavedFilter
	TotalCount int
}

// Find returns the filters matching a filter state over saved filter fields,
// e.g. ownerId, name or state.globalLogic, ordered by id.
func (s *Store) Find(ctx context.Context, state *condfilter.State, page Page) (*FindResult, error) {
	query := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&SavedFilter{}).Scopes(gormquery.ScopeState(state))
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, errors.Wrap(err, "count filters")
	}

	limit := page.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	limit = min(limit, MaxPageLimit)

	db := query().Order("id").Limit(limit)
	if page.Offset > 0 {
		db = db.Offset(page.Offset)
	}
	filters := []*SavedFilter{}
	if err := db.Find(&filters).Error; err != nil {
		return nil, errors.Wrap(err, "find filters")
	}
	return &FindResult{Filters: filters, TotalCount: int(total)}, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&SavedFilter{})
	if result.Error != nil {
		return errors.Wrapf(result.Error, "delete filter %q", id)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "delete filter %q", id)
	}
	s.logger.DebugContext(ctx, "deleted filter", "id", id)
	return nil
}
