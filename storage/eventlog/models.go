package eventlog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is the persisted form of a committed ledger event.
type Event struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"uniqueIndex;not null"`
	Operation  string    `gorm:"size:64;index"`
	Type       string    `gorm:"size:64;index"`
	Farm       string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	Timestamp  int64     `gorm:"index"`
	CreatedAt  time.Time
}

// IdempotencyKey remembers the response to a keyed API request.
type IdempotencyKey struct {
	Key       string `gorm:"primaryKey;size:128"`
	RequestID string `gorm:"size:64"`
	Method    string `gorm:"size:8"`
	Path      string `gorm:"size:255"`
	Status    int
	Response  string `gorm:"type:text"`
	CreatedAt time.Time
}

// AutoMigrate performs all schema migrations for the event log.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Event{},
		&IdempotencyKey{},
	)
}
