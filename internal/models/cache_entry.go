package models

import (
	"time"
)

// CacheEntry represents a TTL-keyed value stored in the database-backed
// cache. Used for transient state such as task-viewer presence; never part
// of durable domain data.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Value     []byte    `gorm:"type:blob"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
