package registry

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"stockdash/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists the ticker map in a SQLite database. It mirrors the
// FileStore semantics: full-replace saves, a single-slot backup of the
// previous state, and load failures degrading to empty.
type SQLiteStore struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS custom_tickers (
	symbol     TEXT PRIMARY KEY,
	sector     TEXT NOT NULL,
	name       TEXT NOT NULL,
	added_date TEXT NOT NULL,
	added_by   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS custom_tickers_backup (
	symbol     TEXT PRIMARY KEY,
	sector     TEXT NOT NULL,
	name       TEXT NOT NULL,
	added_date TEXT NOT NULL,
	added_by   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS registry_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string, log *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite registry: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating registry schema: %w", err)
	}
	return &SQLiteStore{db: db, path: dbPath, log: log.With("component", "registry")}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads all entries. Query failures degrade to an empty map.
func (s *SQLiteStore) Load() (map[string]domain.TickerEntry, time.Time, error) {
	entries := make(map[string]domain.TickerEntry)

	rows, err := s.db.Query(`SELECT symbol, sector, name, added_date, added_by FROM custom_tickers`)
	if err != nil {
		s.log.Warn("registry query failed, starting empty", "error", err)
		return entries, time.Time{}, nil
	}
	defer rows.Close()

	for rows.Next() {
		var symbol, sector, name, addedDate, addedBy string
		if err := rows.Scan(&symbol, &sector, &name, &addedDate, &addedBy); err != nil {
			s.log.Warn("registry row unreadable, skipping", "error", err)
			continue
		}
		addedAt, _ := time.Parse(time.RFC3339, addedDate)
		entries[symbol] = domain.TickerEntry{
			Sector:  domain.Sector(sector),
			Name:    name,
			AddedAt: addedAt,
			AddedBy: addedBy,
		}
	}

	var lastUpdated time.Time
	var raw string
	if err := s.db.QueryRow(`SELECT value FROM registry_meta WHERE key = 'last_updated'`).Scan(&raw); err == nil {
		lastUpdated, _ = time.Parse(time.RFC3339, raw)
	}
	return entries, lastUpdated, nil
}

// Save replaces all entries in one transaction, copying the previous state
// into the backup table first.
func (s *SQLiteStore) Save(entries map[string]domain.TickerEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning registry save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM custom_tickers_backup`); err != nil {
		return fmt.Errorf("clearing backup slot: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO custom_tickers_backup SELECT * FROM custom_tickers`); err != nil {
		return fmt.Errorf("copying backup slot: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM custom_tickers`); err != nil {
		return fmt.Errorf("clearing registry: %w", err)
	}

	for symbol, e := range entries {
		_, err := tx.Exec(
			`INSERT INTO custom_tickers (symbol, sector, name, added_date, added_by) VALUES (?, ?, ?, ?, ?)`,
			symbol, string(e.Sector), e.Name, e.AddedAt.Format(time.RFC3339), e.AddedBy,
		)
		if err != nil {
			return fmt.Errorf("inserting %s: %w", symbol, err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO registry_meta (key, value) VALUES ('last_updated', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("stamping last_updated: %w", err)
	}

	return tx.Commit()
}

// Clear removes all entries.
func (s *SQLiteStore) Clear() error {
	return s.Save(make(map[string]domain.TickerEntry))
}

// Describe reports the database path and size.
func (s *SQLiteStore) Describe() StoreInfo {
	info := StoreInfo{Backend: "sqlite", Path: s.path}
	if st, err := os.Stat(s.path); err == nil {
		info.Exists = true
		info.SizeBytes = st.Size()
	}
	return info
}
