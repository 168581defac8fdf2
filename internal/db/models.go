package db

import (
	"time"
)

// User table. Credentials and profile editing are owned by the account
// service; this engine only reads the fields that gate discovery.
type User struct {
	ID                 uint64 `gorm:"primaryKey;autoIncrement"`
	Username           string `gorm:"uniqueIndex;size:64;not null"`
	Email              string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash       string `gorm:"size:255;not null"`
	DisplayName        string `gorm:"size:128"`
	Age                int    `gorm:"not null;index"`
	Pronouns           string `gorm:"size:32"`
	Bio                string `gorm:"size:2000"`
	LocationCity       string `gorm:"size:128"`
	LocationState      string `gorm:"size:128"`
	LocationVisibility string `gorm:"size:16;default:'city'"`
	ProfileVisibility  string `gorm:"size:16;not null;default:'public';index"`
	LastActive         time.Time
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

// HankyCode is a catalog entry: one color worn on one side. Two rows can
// share a color with opposite positions, which is why scoring matches by
// color rather than id. Reference data, seeded, never user-created.
type HankyCode struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement"`
	Color           string    `gorm:"size:64;not null;index:idx_color_position,priority:1"`
	Position        string    `gorm:"size:8;not null;index:idx_color_position,priority:2"`
	Meaning         string    `gorm:"size:255;not null"`
	Description     string    `gorm:"size:1000"`
	Category        string    `gorm:"size:64;not null;index"`
	CulturalContext string    `gorm:"size:1000"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

// UserHankyCode relates a user to a catalog entry with an intensity in
// [1,10] and the code's position at assignment time.
//
// Composite PK: (UserID, HankyCodeID) — re-assigning replaces intensity.
type UserHankyCode struct {
	UserID      uint64    `gorm:"primaryKey"`
	HankyCodeID uint64    `gorm:"primaryKey"`
	Position    string    `gorm:"size:8;not null"`
	Intensity   int       `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// Match statuses.
const (
	MatchStatusPending  = "pending"
	MatchStatusAccepted = "accepted"
	MatchStatusDeclined = "declined"
	MatchStatusBlocked  = "blocked"
)

// Match is the single record for an unordered user pair.
//
// Invariant: UserLowID < UserHighID, enforced at the Propose boundary.
// The composite unique index uk_match_pair makes two concurrent proposals
// for the same pair (in either direction) collide on one row; the loser
// surfaces as a Conflict instead of a second row. Rows are never deleted —
// terminal states persist so discovery can keep excluding the pair.
type Match struct {
	ID                 uint64  `gorm:"primaryKey;autoIncrement"`
	UserLowID          uint64  `gorm:"not null;uniqueIndex:uk_match_pair,priority:1;index"`
	UserHighID         uint64  `gorm:"not null;uniqueIndex:uk_match_pair,priority:2;index"`
	CompatibilityScore float64 `gorm:"not null"`
	SharedCodeIDs      string  `gorm:"size:1024"` // JSON array of catalog ids
	Status             string  `gorm:"size:16;not null;default:'pending';index"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

// Message belongs to an accepted match. Content is soft-replaced on delete,
// never removed.
type Message struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement"`
	MatchID     uint64     `gorm:"not null;index:idx_match_created,priority:1"`
	SenderID    uint64     `gorm:"not null;index"`
	Content     string     `gorm:"size:1000;not null"`
	MessageType string     `gorm:"size:16;not null;default:'text'"`
	ReadAt      *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_match_created,priority:2,sort:desc"`
}

// AbuseReport statuses.
const (
	ReportStatusPending       = "pending"
	ReportStatusInvestigating = "investigating"
	ReportStatusResolved      = "resolved"
	ReportStatusDismissed     = "dismissed"
)

// SystemReporterID marks reports inserted by auto-moderation.
const SystemReporterID uint64 = 0

// AbuseReport targets one user; consumed only in aggregate by the trust
// engine. ReporterID 0 denotes a system-generated report.
type AbuseReport struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	ReporterID     uint64    `gorm:"not null;index"`
	ReportedUserID uint64    `gorm:"not null;index:idx_reported_created,priority:1"`
	ReportType     string    `gorm:"size:32;not null"`
	Description    string    `gorm:"size:2000"`
	Status         string    `gorm:"size:16;not null;default:'pending'"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index:idx_reported_created,priority:2,sort:desc"`
}
