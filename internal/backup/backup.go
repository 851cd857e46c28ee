// Package backup creates, lists, restores, and prunes point-in-time JSON
// snapshots of the ticker registry, independent of the registry's own
// single-slot backup. Snapshots are immutable once written; only whole-file
// pruning ever deletes them.
package backup

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"stockdash/internal/domain"
	"stockdash/internal/util"
)

const (
	filePrefix     = "backup_"
	markerFileName = "last_auto_backup.txt"
	stampLayout    = "20060102_150405"
)

// snapshotFile is the self-describing on-disk schema; there is no separate
// index file.
type snapshotFile struct {
	Timestamp string          `json:"timestamp"`
	Kind      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Metadata  snapshotMeta    `json:"metadata"`
}

type snapshotMeta struct {
	TickerCount int    `json:"ticker_count"`
	ClientID    string `json:"client_id"`
}

// Manager owns the snapshot directory. identify supplies the creator
// identity recorded in snapshot metadata.
type Manager struct {
	dir        string
	interval   time.Duration
	retainAuto int
	identify   func() string
	log        *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// New creates a Manager writing snapshots under dir. interval and retainAuto
// control the automatic backup cadence and retention.
func New(dir string, interval time.Duration, retainAuto int, identify func() string, log *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup dir: %w", err)
	}
	return &Manager{
		dir:        dir,
		interval:   interval,
		retainAuto: retainAuto,
		identify:   identify,
		log:        log.With("component", "backup"),
		now:        time.Now,
	}, nil
}

// Create writes a snapshot of payload and returns its ID (the snapshot file
// name). The entry count is recorded when the payload is a ticker map.
func (m *Manager) Create(payload any, kind domain.SnapshotKind) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(payload, kind)
}

func (m *Manager) createLocked(payload any, kind domain.SnapshotKind) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("serializing snapshot payload: %w", err)
	}

	stamp := m.now().Format(stampLayout)
	id := fmt.Sprintf("%s%s_%s.json", filePrefix, kind, stamp)

	out, err := json.MarshalIndent(snapshotFile{
		Timestamp: stamp,
		Kind:      string(kind),
		Data:      data,
		Metadata: snapshotMeta{
			TickerCount: entryCount(payload),
			ClientID:    m.identify(),
		},
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serializing snapshot: %w", err)
	}

	if err := util.WriteFileAtomic(filepath.Join(m.dir, id), out, 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot %s: %w", id, err)
	}
	return id, nil
}

// List returns descriptors for every snapshot, newest first. A snapshot
// whose metadata cannot be read still appears, described from filesystem
// attributes with kind "unknown".
func (m *Manager) List() []domain.SnapshotDescriptor {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil
	}

	var out []domain.SnapshotDescriptor
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		out = append(out, m.describe(name))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.After(out[j].Created)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *Manager) describe(name string) domain.SnapshotDescriptor {
	path := filepath.Join(m.dir, name)
	desc := domain.SnapshotDescriptor{ID: name, Kind: "unknown"}

	if info, err := os.Stat(path); err == nil {
		desc.Size = info.Size()
		desc.Created = info.ModTime()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return desc
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		// Partially corrupt snapshot: keep the filesystem-derived descriptor
		// rather than hiding the file.
		return desc
	}

	if snap.Kind != "" {
		desc.Kind = snap.Kind
	}
	desc.TickerCount = snap.Metadata.TickerCount
	if created, err := time.ParseInLocation(stampLayout, snap.Timestamp, time.Local); err == nil {
		desc.Created = created
	}
	return desc
}

// Restore returns the stored payload of the snapshot with the given ID. The
// caller is responsible for applying it; no merge logic happens here.
func (m *Manager) Restore(id string) (json.RawMessage, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, filepath.Base(id)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", id, err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot %s corrupt: %w", id, err)
	}
	return snap.Data, nil
}

// AutoBackupIfDue creates an automatic snapshot when the last one is older
// than the configured interval, then updates the marker file and prunes auto
// snapshots down to the retention count. Every failure is logged and
// swallowed so the caller's primary operation is never blocked. It reports
// whether a snapshot was created.
func (m *Manager) AutoBackupIfDue(payload any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if last, ok := m.lastAutoBackup(); ok && now.Sub(last) <= m.interval {
		return false
	}

	if _, err := m.createLocked(payload, domain.SnapshotAuto); err != nil {
		m.log.Warn("auto backup failed", "error", err)
		return false
	}

	marker := strconv.FormatFloat(float64(now.UnixNano())/1e9, 'f', -1, 64)
	if err := util.WriteFileAtomic(filepath.Join(m.dir, markerFileName), []byte(marker), 0o644); err != nil {
		m.log.Warn("writing auto backup marker", "error", err)
	}

	if _, err := m.pruneLocked(domain.SnapshotAuto, m.retainAuto); err != nil {
		m.log.Warn("pruning auto backups", "error", err)
	}
	return true
}

// lastAutoBackup reads the marker file. A missing or malformed marker means
// a backup is due.
func (m *Manager) lastAutoBackup() (time.Time, bool) {
	data, err := os.ReadFile(filepath.Join(m.dir, markerFileName))
	if err != nil {
		return time.Time{}, false
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		m.log.Warn("auto backup marker malformed", "error", err)
		return time.Time{}, false
	}
	return time.Unix(0, int64(secs*1e9)), true
}

// Prune deletes all but the keep most recent snapshots of the given kind and
// returns the number deleted.
func (m *Manager) Prune(kind domain.SnapshotKind, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruneLocked(kind, keep)
}

func (m *Manager) pruneLocked(kind domain.SnapshotKind, keep int) (int, error) {
	var ofKind []domain.SnapshotDescriptor
	for _, desc := range m.List() {
		if desc.Kind == string(kind) {
			ofKind = append(ofKind, desc)
		}
	}
	if keep < 0 {
		keep = 0
	}
	if len(ofKind) <= keep {
		return 0, nil
	}

	removed := 0
	for _, desc := range ofKind[keep:] {
		if err := os.Remove(filepath.Join(m.dir, desc.ID)); err != nil {
			return removed, fmt.Errorf("removing snapshot %s: %w", desc.ID, err)
		}
		removed++
	}
	return removed, nil
}

// entryCount extracts the ticker count when the payload is a registry map.
func entryCount(payload any) int {
	switch v := payload.(type) {
	case map[string]domain.TickerEntry:
		return len(v)
	case map[string]any:
		return len(v)
	default:
		return 0
	}
}
