// Package category implements the Category/Preference Service of spec
// §4.J: thin CRUD over internal/store's category and preference tables,
// with ownership scoping and sort_order bookkeeping.
package category

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/azalio/gatewayd/internal/apperr"
	"github.com/azalio/gatewayd/internal/store"
)

// Category is the client-facing view of a store.CategoryRecord.
type Category struct {
	ID        string
	Name      string
	SortOrder int
	Collapsed bool
}

// Service implements spec §4.J's category and notification-preference
// operations. Constructed once by cmd/gatewayd and shared by
// internal/wsconn handlers.
type Service struct {
	store *store.Store
	log   zerolog.Logger
}

func New(s *store.Store, log zerolog.Logger) *Service {
	return &Service{store: s, log: log.With().Str("component", "category").Logger()}
}

func toCategory(rec store.CategoryRecord) Category {
	return Category{ID: rec.ID, Name: rec.Name, SortOrder: rec.SortOrder, Collapsed: rec.Collapsed}
}

// List returns owner's categories ordered by sort_order.
func (s *Service) List(owner *string) ([]Category, error) {
	recs, err := s.store.ListCategories(owner)
	if err != nil {
		return nil, apperr.TransientStore("list categories", err)
	}
	out := make([]Category, 0, len(recs))
	for _, r := range recs {
		out = append(out, toCategory(r))
	}
	return out, nil
}

// Create inserts a new category at the end of owner's ordering (spec
// §4.J: "sort_order defaults to max+1 among the owner's categories").
func (s *Service) Create(owner *string, name string) (Category, error) {
	if name == "" {
		return Category{}, apperr.InvalidInput("category name must not be empty")
	}
	max, err := s.store.MaxCategorySortOrder(owner)
	if err != nil {
		return Category{}, apperr.TransientStore("max category sort order", err)
	}
	rec := store.CategoryRecord{
		ID:        uuid.NewString(),
		Name:      name,
		SortOrder: max + 1,
		OwnerID:   owner,
	}
	if err := s.store.InsertCategory(&rec); err != nil {
		return Category{}, apperr.TransientStore("insert category", err)
	}
	return toCategory(rec), nil
}

// Rename updates a category's display name.
func (s *Service) Rename(id, name string) (Category, error) {
	if name == "" {
		return Category{}, apperr.InvalidInput("category name must not be empty")
	}
	rec, err := s.store.GetCategory(id)
	if err != nil {
		return Category{}, apperr.TransientStore("get category", err)
	}
	if rec == nil {
		return Category{}, apperr.NotFound("category %s not found", id)
	}
	rec.Name = name
	if err := s.store.UpdateCategory(rec); err != nil {
		return Category{}, apperr.TransientStore("update category", err)
	}
	return toCategory(*rec), nil
}

// Toggle flips a category's collapsed state to the given value.
func (s *Service) Toggle(id string, collapsed bool) (Category, error) {
	rec, err := s.store.GetCategory(id)
	if err != nil {
		return Category{}, apperr.TransientStore("get category", err)
	}
	if rec == nil {
		return Category{}, apperr.NotFound("category %s not found", id)
	}
	rec.Collapsed = collapsed
	if err := s.store.UpdateCategory(rec); err != nil {
		return Category{}, apperr.TransientStore("update category", err)
	}
	return toCategory(*rec), nil
}

// Delete removes a category. Per spec §3 Category, deletion does not
// cascade into sessions; store.DeleteCategory uncategorizes them
// instead inside one transaction.
func (s *Service) Delete(id string) error {
	rec, err := s.store.GetCategory(id)
	if err != nil {
		return apperr.TransientStore("get category", err)
	}
	if rec == nil {
		return apperr.NotFound("category %s not found", id)
	}
	if err := s.store.DeleteCategory(id); err != nil {
		return apperr.TransientStore("delete category", err)
	}
	return nil
}

// Reorder applies a full replacement ordering in a single transaction.
func (s *Service) Reorder(order map[string]int) error {
	if len(order) == 0 {
		return apperr.InvalidInput("reorder requires at least one category")
	}
	if err := s.store.ReorderCategories(order); err != nil {
		return apperr.TransientStore("reorder categories", err)
	}
	return nil
}

// Preferences is the client-facing view of a user's notification
// settings (spec §3 User Preferences).
type Preferences struct {
	BrowserEnabled    bool
	VisualEnabled     bool
	NotifyOnInput     bool
	NotifyOnCompleted bool
}

func toPreferences(rec store.NotificationPreferenceRecord) Preferences {
	return Preferences{
		BrowserEnabled:    rec.BrowserEnabled,
		VisualEnabled:     rec.VisualEnabled,
		NotifyOnInput:     rec.NotifyOnInput,
		NotifyOnCompleted: rec.NotifyOnCompleted,
	}
}

// GetPreferences returns userID's preferences, defaulting all fields to
// true when none have been stored yet.
func (s *Service) GetPreferences(userID string) (Preferences, error) {
	rec, err := s.store.GetPreferences(userID)
	if err != nil {
		return Preferences{}, apperr.TransientStore("get preferences", err)
	}
	return toPreferences(rec), nil
}

// SetPreferences persists userID's preferences and echoes them back.
func (s *Service) SetPreferences(userID string, p Preferences) (Preferences, error) {
	rec := store.NotificationPreferenceRecord{
		UserID:            userID,
		BrowserEnabled:    p.BrowserEnabled,
		VisualEnabled:     p.VisualEnabled,
		NotifyOnInput:     p.NotifyOnInput,
		NotifyOnCompleted: p.NotifyOnCompleted,
	}
	if err := s.store.UpsertPreferences(rec); err != nil {
		return Preferences{}, apperr.TransientStore("set preferences", err)
	}
	return toPreferences(rec), nil
}
