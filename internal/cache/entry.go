// Package cache implements a generic two-tier key/value cache: a bounded
// in-memory tier with LRU eviction and an optional durable tier for entries
// explicitly marked persistent. Entries carry TTLs, CRC-32 checksums, and
// are gzip-compressed above a size threshold.
package cache

import (
	"hash/crc32"
	"time"
)

// Entry is one cached value with its bookkeeping. Value holds the possibly
// compressed payload; Checksum covers the uncompressed payload.
type Entry struct {
	Key          string    `json:"key"`
	Value        []byte    `json:"value"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	AccessCount  int64     `json:"accessCount"`
	LastAccessed time.Time `json:"lastAccessed"`
	Checksum     uint32    `json:"checksum"`
	Compressed   bool      `json:"compressed"`
	Persistent   bool      `json:"persistent"`
}

// Expired reports whether the entry's TTL has passed at now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Touch records an access.
func (e *Entry) Touch(now time.Time) {
	e.AccessCount++
	e.LastAccessed = now
}

func checksum(value []byte) uint32 {
	return crc32.ChecksumIEEE(value)
}
