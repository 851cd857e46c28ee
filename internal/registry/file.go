package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"stockdash/internal/domain"
	"stockdash/internal/util"
)

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// FileStore persists the ticker map as a single JSON file:
//
//	{"custom_tickers": {...}, "last_updated": "<RFC3339>"}
//
// Each save first copies the current file to a fixed-name .backup slot, which
// protects only against the immediately preceding save.
type FileStore struct {
	path string
	log  *slog.Logger
}

// registryFile is the on-disk schema.
type registryFile struct {
	CustomTickers map[string]domain.TickerEntry `json:"custom_tickers"`
	LastUpdated   time.Time                     `json:"last_updated"`
}

// NewFileStore creates a FileStore backed by the JSON file at path.
func NewFileStore(path string, log *slog.Logger) *FileStore {
	return &FileStore{path: path, log: log.With("component", "registry")}
}

// Load reads the backing file. Missing file and parse failure both return an
// empty map so startup never blocks on a bad registry file.
func (s *FileStore) Load() (map[string]domain.TickerEntry, time.Time, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return make(map[string]domain.TickerEntry), time.Time{}, nil
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		s.log.Warn("registry file corrupt, starting empty", "path", s.path, "error", err)
		return make(map[string]domain.TickerEntry), time.Time{}, nil
	}
	if file.CustomTickers == nil {
		file.CustomTickers = make(map[string]domain.TickerEntry)
	}
	return file.CustomTickers, file.LastUpdated, nil
}

// Save writes the new state, keeping the previous file content in the
// single-slot .backup file first.
func (s *FileStore) Save(entries map[string]domain.TickerEntry) error {
	if prev, err := os.ReadFile(s.path); err == nil {
		if err := util.WriteFileAtomic(s.path+".backup", prev, 0o644); err != nil {
			s.log.Warn("writing registry backup slot", "error", err)
		}
	}

	data, err := json.MarshalIndent(registryFile{
		CustomTickers: entries,
		LastUpdated:   time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing registry: %w", err)
	}
	if err := util.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing registry file: %w", err)
	}
	return nil
}

// Clear removes the backing file and recreates it empty.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing registry file: %w", err)
	}
	return s.Save(make(map[string]domain.TickerEntry))
}

// Describe reports the file path and size.
func (s *FileStore) Describe() StoreInfo {
	info := StoreInfo{Backend: "json", Path: s.path}
	if st, err := os.Stat(s.path); err == nil {
		info.Exists = true
		info.SizeBytes = st.Size()
	}
	return info
}
