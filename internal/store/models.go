package store

import "time"

// SessionRecord is the durable projection of a Session (spec §3).
type SessionRecord struct {
	ID              string `gorm:"primaryKey"`
	Name            string
	Shell           string
	CWD             string
	CreatedAt       time.Time
	LastAccessedAt  time.Time
	OwnerID         *string `gorm:"index"`
	Status          string  `gorm:"index"`
	Cols            int
	Rows            int
	ExternalMuxHandle string
	CategoryID      *string `gorm:"index"`
	SortOrder       int
}

func (SessionRecord) TableName() string { return "sessions" }

// CategoryRecord is the durable record of a Category (spec §3).
type CategoryRecord struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	SortOrder int
	Collapsed bool
	OwnerID   *string `gorm:"index"`
	CreatedAt time.Time
}

func (CategoryRecord) TableName() string { return "categories" }

// ScrollbackRecord is the fallback-persistence blob of a session's last
// known scrollback (spec §4.D).
type ScrollbackRecord struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"uniqueIndex"`
	Content   string
	CreatedAt time.Time
}

func (ScrollbackRecord) TableName() string { return "scrollback" }

// SessionLogRecord is one entry in a session's append-only event log
// (spec §3 Event Log).
type SessionLogRecord struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"index"`
	EventType string
	Details   string
	CreatedAt time.Time
}

func (SessionLogRecord) TableName() string { return "session_logs" }

// NotificationPreferenceRecord is a per-principal notification setting
// row (spec §3 User Preferences).
type NotificationPreferenceRecord struct {
	UserID             string `gorm:"primaryKey"`
	BrowserEnabled     bool
	VisualEnabled      bool
	NotifyOnInput      bool
	NotifyOnCompleted  bool
	UpdatedAt          time.Time
}

func (NotificationPreferenceRecord) TableName() string { return "notification_preferences" }

// MigrationRecord tracks applied schema migrations by name (spec §6).
type MigrationRecord struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"uniqueIndex"`
	AppliedAt time.Time
}

func (MigrationRecord) TableName() string { return "migrations" }
