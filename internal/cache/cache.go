// Package cache implements the on-disk TTL cache that memoizes expensive
// market-data fetches. Entries are keyed by (kind, symbol, params); metadata
// lives in a single JSON index and payloads live under a data subdirectory,
// as JSON for symbol metadata and index snapshots and as Parquet for price
// series.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"stockdash/internal/domain"
	"stockdash/internal/util"
)

const (
	metaFileName = "cache.json"
	dataDirName  = "data"
)

// entryMeta is the on-disk index record for one cache entry. The payload
// file named by File must exist whenever the index record does; the index is
// always written after the payload so a crash can orphan a payload but never
// dangle an index record.
type entryMeta struct {
	Timestamp time.Time         `json:"timestamp"`
	Kind      domain.CacheKind  `json:"type"`
	Symbol    string            `json:"symbol"`
	Params    map[string]string `json:"params,omitempty"`
	File      string            `json:"file"`
}

// Store is a kind-tagged TTL file cache. All methods are safe for concurrent
// use within a single process.
type Store struct {
	dir      string
	metaPath string
	dataDir  string
	log      *slog.Logger

	mu   sync.Mutex
	meta map[string]entryMeta

	now func() time.Time
}

// Stats summarises the cache contents.
type Stats struct {
	TotalEntries int                      `json:"total_entries"`
	ByKind       map[domain.CacheKind]int `json:"by_kind"`
	SizeBytes    int64                    `json:"size_bytes"`
}

// New creates a Store rooted at dir, creating the directory layout and
// loading the metadata index. A missing or corrupt index starts empty rather
// than failing.
func New(dir string, log *slog.Logger) (*Store, error) {
	s := &Store{
		dir:      dir,
		metaPath: filepath.Join(dir, metaFileName),
		dataDir:  filepath.Join(dir, dataDirName),
		log:      log.With("component", "cache"),
		meta:     make(map[string]entryMeta),
		now:      time.Now,
	}

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	s.loadMeta()
	return s, nil
}

// Key builds the deterministic composite key for an entry. Param names are
// sorted before concatenation so supplying options in a different order
// never changes the key.
func Key(kind domain.CacheKind, symbol string, params map[string]string) string {
	if len(params) == 0 {
		return fmt.Sprintf("%s_%s", kind, symbol)
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s_%s", name, params[name]))
	}
	return fmt.Sprintf("%s_%s_%s", kind, symbol, strings.Join(parts, "_"))
}

// ---------------------------------------------------------------------------
// JSON payload kinds
// ---------------------------------------------------------------------------

// Get returns the cached JSON payload for (kind, symbol, params) if it is
// younger than maxAge. An absent or expired index record, or an unreadable
// payload file, is a miss. Stale entries are only removed by Sweep; a miss
// simply falls through to re-fetch-and-overwrite.
func (s *Store) Get(kind domain.CacheKind, symbol string, params map[string]string, maxAge time.Duration) (json.RawMessage, bool) {
	key := Key(kind, symbol, params)

	s.mu.Lock()
	meta, ok := s.meta[key]
	s.mu.Unlock()

	if !ok || !s.fresh(meta, maxAge) {
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(s.dataDir, meta.File))
	if err != nil {
		s.log.Warn("cache payload unreadable, treating as miss", "key", key, "error", err)
		return nil, false
	}
	if !json.Valid(data) {
		s.log.Warn("cache payload corrupt, treating as miss", "key", key)
		return nil, false
	}
	return json.RawMessage(data), true
}

// Put stores a JSON-serializable payload, unconditionally overwriting any
// prior entry with the same composite key. The payload file is written
// before the index record.
func (s *Store) Put(kind domain.CacheKind, symbol string, params map[string]string, payload any) error {
	key := Key(kind, symbol, params)

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing cache payload %s: %w", key, err)
	}

	file := key + ".json"
	if err := util.WriteFileAtomic(filepath.Join(s.dataDir, file), data, 0o644); err != nil {
		return fmt.Errorf("writing cache payload %s: %w", key, err)
	}

	return s.commit(key, entryMeta{
		Timestamp: s.now(),
		Kind:      kind,
		Symbol:    symbol,
		Params:    copyParams(params),
		File:      file,
	})
}

// ---------------------------------------------------------------------------
// Maintenance
// ---------------------------------------------------------------------------

// Sweep deletes every entry older than the given threshold, removing both
// index record and payload file, and returns the number removed. This is the
// only path that reclaims space.
func (s *Store) Sweep(olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	removed := 0
	for key, meta := range s.meta {
		if !meta.Timestamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dataDir, meta.File)); err != nil && !os.IsNotExist(err) {
			s.log.Warn("removing cache payload", "key", key, "error", err)
		}
		delete(s.meta, key)
		removed++
	}

	if removed > 0 {
		if err := s.flushMetaLocked(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Clear removes every cache entry regardless of age.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, meta := range s.meta {
		if err := os.Remove(filepath.Join(s.dataDir, meta.File)); err != nil && !os.IsNotExist(err) {
			s.log.Warn("removing cache payload", "key", key, "error", err)
		}
		delete(s.meta, key)
	}
	return s.flushMetaLocked()
}

// Stats reports the entry count, counts grouped by kind, and the approximate
// on-disk size summed over payload files.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		TotalEntries: len(s.meta),
		ByKind:       make(map[domain.CacheKind]int),
	}
	for _, meta := range s.meta {
		st.ByKind[meta.Kind]++
		if info, err := os.Stat(filepath.Join(s.dataDir, meta.File)); err == nil {
			st.SizeBytes += info.Size()
		}
	}
	return st
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (s *Store) fresh(meta entryMeta, maxAge time.Duration) bool {
	return s.now().Sub(meta.Timestamp) <= maxAge
}

// commit records the index entry for an already-written payload file and
// persists the index.
func (s *Store) commit(key string, meta entryMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[key] = meta
	return s.flushMetaLocked()
}

// loadMeta reads the index file into memory. Missing and corrupt files both
// degrade to an empty index.
func (s *Store) loadMeta() {
	data, err := os.ReadFile(s.metaPath)
	if err != nil {
		return // First run, start empty.
	}
	var loaded map[string]entryMeta
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.log.Warn("cache index corrupt, starting empty", "error", err)
		return
	}
	s.meta = loaded
}

// flushMetaLocked persists the index. Must be called with mu held.
func (s *Store) flushMetaLocked() error {
	data, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing cache index: %w", err)
	}
	if err := util.WriteFileAtomic(s.metaPath, data, 0o644); err != nil {
		return fmt.Errorf("writing cache index: %w", err)
	}
	return nil
}

func copyParams(params map[string]string) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
