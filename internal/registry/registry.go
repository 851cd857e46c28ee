package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"stockdash/internal/domain"
)

// Registry owns all mutations of the user-added symbol set. Every mutation
// is a load-mutate-save sequence serialized through one mutex, so two
// in-process callers can never silently overwrite each other's save. Quota
// gating stays at the caller; the Registry itself only validates.
type Registry struct {
	store Store
	log   *slog.Logger

	mu sync.Mutex
}

// Patch carries partial updates for Update. Nil fields are left unchanged.
type Patch struct {
	Sector *domain.Sector
	Name   *string
}

// Info describes the registry's backing store plus its current contents.
type Info struct {
	StoreInfo
	TickerCount int       `json:"ticker_count"`
	LastUpdated time.Time `json:"last_updated"`
	Symbols     []string  `json:"symbols"`
}

// New creates a Registry over the given store.
func New(store Store, log *slog.Logger) *Registry {
	return &Registry{store: store, log: log.With("component", "registry")}
}

// NormalizeSymbol upper-cases and trims a raw symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidateSymbol checks the normalized symbol format: non-empty, at most 10
// characters, alphanumeric plus '-' and '.'.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return &domain.ValidationError{Field: "symbol", Reason: "empty"}
	}
	if len(symbol) > 10 {
		return &domain.ValidationError{Field: "symbol", Reason: "longer than 10 characters"}
	}
	for _, r := range symbol {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '.':
		default:
			return &domain.ValidationError{Field: "symbol", Reason: fmt.Sprintf("character %q not allowed", r)}
		}
	}
	return nil
}

// Load returns all persisted entries. Missing or corrupt backing state
// yields an empty map, never an error that blocks startup.
func (r *Registry) Load() (map[string]domain.TickerEntry, error) {
	entries, _, err := r.store.Load()
	return entries, err
}

// Save replaces the persisted entries wholesale.
func (r *Registry) Save(entries map[string]domain.TickerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Save(entries)
}

// Add validates and inserts a new symbol. Adding an existing symbol fails
// and leaves the entry unchanged.
func (r *Registry) Add(symbol string, entry domain.TickerEntry) error {
	symbol = NormalizeSymbol(symbol)
	if err := ValidateSymbol(symbol); err != nil {
		return err
	}
	if !entry.Sector.Valid() {
		return &domain.ValidationError{Field: "sector", Reason: fmt.Sprintf("%q is not a known sector", entry.Sector)}
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, _, err := r.store.Load()
	if err != nil {
		return err
	}
	if _, exists := entries[symbol]; exists {
		return &domain.ValidationError{Field: "symbol", Reason: fmt.Sprintf("%s already exists", symbol)}
	}

	entries[symbol] = entry
	if err := r.store.Save(entries); err != nil {
		return fmt.Errorf("adding %s: %w", symbol, err)
	}
	r.log.Info("ticker added", "symbol", symbol, "sector", entry.Sector)
	return nil
}

// Remove deletes a symbol. Removing an unknown symbol fails with ErrNotFound.
func (r *Registry) Remove(symbol string) error {
	symbol = NormalizeSymbol(symbol)

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, _, err := r.store.Load()
	if err != nil {
		return err
	}
	if _, exists := entries[symbol]; !exists {
		return fmt.Errorf("removing %s: %w", symbol, domain.ErrNotFound)
	}

	delete(entries, symbol)
	if err := r.store.Save(entries); err != nil {
		return fmt.Errorf("removing %s: %w", symbol, err)
	}
	r.log.Info("ticker removed", "symbol", symbol)
	return nil
}

// Update applies a partial change to an existing symbol. Updating an unknown
// symbol fails with ErrNotFound.
func (r *Registry) Update(symbol string, patch Patch) error {
	symbol = NormalizeSymbol(symbol)
	if patch.Sector != nil && !patch.Sector.Valid() {
		return &domain.ValidationError{Field: "sector", Reason: fmt.Sprintf("%q is not a known sector", *patch.Sector)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, _, err := r.store.Load()
	if err != nil {
		return err
	}
	entry, exists := entries[symbol]
	if !exists {
		return fmt.Errorf("updating %s: %w", symbol, domain.ErrNotFound)
	}

	if patch.Sector != nil {
		entry.Sector = *patch.Sector
	}
	if patch.Name != nil {
		entry.Name = *patch.Name
	}
	entries[symbol] = entry
	if err := r.store.Save(entries); err != nil {
		return fmt.Errorf("updating %s: %w", symbol, err)
	}
	return nil
}

// Reconcile merges a caller-held transient copy with the persisted copy:
// persisted entries win per key, transient-only keys are kept, and when the
// merged result differs from what is on disk it is saved back immediately.
// The merged map is returned for the caller to adopt.
func (r *Registry) Reconcile(transient map[string]domain.TickerEntry) (map[string]domain.TickerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	persisted, _, err := r.store.Load()
	if err != nil {
		return nil, err
	}

	merged := make(map[string]domain.TickerEntry, len(persisted)+len(transient))
	for symbol, entry := range transient {
		merged[NormalizeSymbol(symbol)] = entry
	}
	for symbol, entry := range persisted {
		merged[symbol] = entry
	}

	if !mapsEqual(merged, persisted) {
		if err := r.store.Save(merged); err != nil {
			return nil, fmt.Errorf("saving reconciled registry: %w", err)
		}
		r.log.Info("registry reconciled", "persisted", len(persisted), "merged", len(merged))
	}
	return merged, nil
}

// ClearAll deletes every entry and leaves an empty store behind.
func (r *Registry) ClearAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Clear()
}

// Info reports the backing store location together with the current ticker
// count, symbols, and last save time.
func (r *Registry) Info() (Info, error) {
	entries, lastUpdated, err := r.store.Load()
	if err != nil {
		return Info{}, err
	}

	symbols := make([]string, 0, len(entries))
	for symbol := range entries {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	return Info{
		StoreInfo:   r.store.Describe(),
		TickerCount: len(entries),
		LastUpdated: lastUpdated,
		Symbols:     symbols,
	}, nil
}

func mapsEqual(a, b map[string]domain.TickerEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || va != vb {
			return false
		}
	}
	return true
}
