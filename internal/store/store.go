// Package store implements the durable Metadata Store of spec §4.C on
// top of gorm + sqlite, grounded on
// gluk-w-claworc/control-plane/internal/database/database.go's setup
// shape (WAL pragma, AutoMigrate, idempotent migration functions).
// Unlike that teacher-of-a-teacher's package-level *gorm.DB singleton,
// Store is a constructed value per spec §9's guidance against
// module-scoped globals.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Status values for SessionRecord.Status (spec §3 Session).
const (
	StatusActive     = "active"
	StatusIdle       = "idle"
	StatusTerminated = "terminated"
)

// Event types for SessionLogRecord.EventType (spec §3 Event Log).
const (
	EventCreate        = "create"
	EventAttachClient  = "attach-client"
	EventDetachClient  = "detach-client"
	EventRename        = "rename"
	EventMove          = "move"
	EventTerminate     = "terminate"
	EventDelete        = "delete"
	EventExit          = "exit"
)

// Store wraps a *gorm.DB and exposes the operations named in spec §4.C.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open creates (if needed) and migrates the sqlite database at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: get sql.DB: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("store: set WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	s := &Store{db: db, log: log.With().Str("component", "store").Logger()}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(
		&SessionRecord{},
		&CategoryRecord{},
		&ScrollbackRecord{},
		&SessionLogRecord{},
		&NotificationPreferenceRecord{},
		&MigrationRecord{},
	); err != nil {
		return fmt.Errorf("store: auto-migrate: %w", err)
	}
	return s.recordMigration("0001_initial_schema")
}

// recordMigration inserts a named migration record iff it isn't already
// present, keeping the migrations table an audit trail of applied steps
// (spec §6) even though AutoMigrate itself is idempotent.
func (s *Store) recordMigration(name string) error {
	var count int64
	if err := s.db.Model(&MigrationRecord{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return fmt.Errorf("store: check migration %s: %w", name, err)
	}
	if count > 0 {
		return nil
	}
	return s.db.Create(&MigrationRecord{Name: name, AppliedAt: time.Now()}).Error
}

// Close releases the underlying sql.DB connection, invalidating gorm's
// prepared-statement cache (spec §4.C).
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- sessions ---

func (s *Store) InsertSession(rec *SessionRecord) error {
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("store: insert session: %w", err)
	}
	return nil
}

func (s *Store) UpdateSession(rec *SessionRecord) error {
	if err := s.db.Save(rec).Error; err != nil {
		return fmt.Errorf("store: update session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(id string) (*SessionRecord, error) {
	var rec SessionRecord
	if err := s.db.First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	return &rec, nil
}

func (s *Store) ListSessions() ([]SessionRecord, error) {
	var recs []SessionRecord
	if err := s.db.Order("sort_order asc, created_at asc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	return recs, nil
}

func (s *Store) DeleteSession(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&ScrollbackRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&SessionLogRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&SessionRecord{}, "id = ?", id).Error; err != nil {
			return err
		}
		return nil
	})
}

// CountNonTerminated returns the number of sessions not in
// StatusTerminated, optionally scoped to an owner.
func (s *Store) CountNonTerminated(owner *string) (int64, error) {
	q := s.db.Model(&SessionRecord{}).Where("status <> ?", StatusTerminated)
	if owner != nil {
		q = q.Where("owner_id = ?", *owner)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("store: count non-terminated: %w", err)
	}
	return count, nil
}

// MaxSortOrder returns the highest sort_order among sessions in
// categoryID (nil for uncategorized), or 0 if there are none.
func (s *Store) MaxSortOrder(categoryID *string) (int, error) {
	q := s.db.Model(&SessionRecord{})
	if categoryID == nil {
		q = q.Where("category_id IS NULL")
	} else {
		q = q.Where("category_id = ?", *categoryID)
	}
	var max *int
	if err := q.Select("MAX(sort_order)").Scan(&max).Error; err != nil {
		return 0, fmt.Errorf("store: max sort order: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// --- categories ---

func (s *Store) InsertCategory(rec *CategoryRecord) error {
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("store: insert category: %w", err)
	}
	return nil
}

func (s *Store) UpdateCategory(rec *CategoryRecord) error {
	if err := s.db.Save(rec).Error; err != nil {
		return fmt.Errorf("store: update category: %w", err)
	}
	return nil
}

func (s *Store) GetCategory(id string) (*CategoryRecord, error) {
	var rec CategoryRecord
	if err := s.db.First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get category: %w", err)
	}
	return &rec, nil
}

func (s *Store) ListCategories(owner *string) ([]CategoryRecord, error) {
	q := s.db.Order("sort_order asc")
	if owner != nil {
		q = q.Where("owner_id = ?", *owner)
	}
	var recs []CategoryRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("store: list categories: %w", err)
	}
	return recs, nil
}

// DeleteCategory removes the category and uncategorizes any sessions
// that referenced it (spec §3 Category: "deletion does not cascade into
// sessions"), all inside one transaction.
func (s *Store) DeleteCategory(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&SessionRecord{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&CategoryRecord{}, "id = ?", id).Error
	})
}

// MaxCategorySortOrder returns the highest sort_order among an owner's
// categories, or 0 if there are none.
func (s *Store) MaxCategorySortOrder(owner *string) (int, error) {
	q := s.db.Model(&CategoryRecord{})
	if owner != nil {
		q = q.Where("owner_id = ?", *owner)
	}
	var max *int
	if err := q.Select("MAX(sort_order)").Scan(&max).Error; err != nil {
		return 0, fmt.Errorf("store: max category sort order: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// ReorderCategories applies a full list of (id, sortOrder) pairs in a
// single transaction (spec §4.C "multi-row updates run in a single
// transaction").
func (s *Store) ReorderCategories(order map[string]int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for id, pos := range order {
			if err := tx.Model(&CategoryRecord{}).Where("id = ?", id).Update("sort_order", pos).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// --- scrollback fallback blob ---

func (s *Store) SaveScrollback(sessionID, content string) error {
	rec := ScrollbackRecord{SessionID: sessionID, Content: content, CreatedAt: time.Now()}
	return s.db.Where("session_id = ?", sessionID).
		Assign(ScrollbackRecord{Content: content, CreatedAt: time.Now()}).
		FirstOrCreate(&rec).Error
}

func (s *Store) GetScrollback(sessionID string) (string, error) {
	var rec ScrollbackRecord
	if err := s.db.Where("session_id = ?", sessionID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("store: get scrollback: %w", err)
	}
	return rec.Content, nil
}

// --- event log ---

func (s *Store) AppendEvent(sessionID, eventType, details string) error {
	rec := SessionLogRecord{
		SessionID: sessionID,
		EventType: eventType,
		Details:   details,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("store: append event: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(sessionID string) ([]SessionLogRecord, error) {
	var recs []SessionLogRecord
	if err := s.db.Where("session_id = ?", sessionID).Order("created_at asc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	return recs, nil
}

// --- notification preferences ---

// DefaultPreferences returns the all-true default record (spec §3 User
// Preferences: "Defaults all true").
func DefaultPreferences(userID string) NotificationPreferenceRecord {
	return NotificationPreferenceRecord{
		UserID:            userID,
		BrowserEnabled:    true,
		VisualEnabled:     true,
		NotifyOnInput:     true,
		NotifyOnCompleted: true,
		UpdatedAt:         time.Now(),
	}
}

func (s *Store) GetPreferences(userID string) (NotificationPreferenceRecord, error) {
	var rec NotificationPreferenceRecord
	if err := s.db.Where("user_id = ?", userID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DefaultPreferences(userID), nil
		}
		return NotificationPreferenceRecord{}, fmt.Errorf("store: get preferences: %w", err)
	}
	return rec, nil
}

func (s *Store) UpsertPreferences(rec NotificationPreferenceRecord) error {
	rec.UpdatedAt = time.Now()
	return s.db.Where("user_id = ?", rec.UserID).
		Assign(rec).
		FirstOrCreate(&NotificationPreferenceRecord{UserID: rec.UserID}).Error
}
