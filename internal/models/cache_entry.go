package models

import "time"

// CacheEntry backs the SQL cache store used when Redis is not configured.
// ExpiresAt zero means the entry never expires.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Value     []byte    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}
