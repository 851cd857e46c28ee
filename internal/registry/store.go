// Package registry is the durable source of truth for user-added symbols.
// A Registry wraps a pluggable Store (JSON file by default, SQLite as an
// alternative backend) and layers validation, load-mutate-save operations,
// and session reconciliation on top.
package registry

import (
	"time"

	"stockdash/internal/domain"
)

// Store persists the raw ticker map. Implementations must treat a missing or
// unreadable backing store as empty on load (first run and corruption both
// degrade to empty) and must surface write failures.
type Store interface {
	// Load returns all persisted entries and the last-updated timestamp.
	Load() (map[string]domain.TickerEntry, time.Time, error)

	// Save replaces the persisted entries, retaining a single-slot copy of
	// the previous state and stamping the save time.
	Save(entries map[string]domain.TickerEntry) error

	// Clear removes all persisted entries, leaving an empty store behind.
	Clear() error

	// Describe reports where and how the store persists.
	Describe() StoreInfo
}

// StoreInfo describes a store's backing location.
type StoreInfo struct {
	Backend   string `json:"backend"`
	Path      string `json:"path"`
	Exists    bool   `json:"exists"`
	SizeBytes int64  `json:"size_bytes"`
}
