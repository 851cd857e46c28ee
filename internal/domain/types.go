// Package domain defines the core types shared across the stockdash
// persistence layer: cache kinds, ticker registry entries, sector taxonomy,
// price series, backup snapshots, and the error taxonomy.
package domain

import "time"

// ---------------------------------------------------------------------------
// Cache kinds
// ---------------------------------------------------------------------------

// CacheKind tags a cache entry with the shape of its payload. The kind
// decides both the on-disk payload format and the default freshness window.
type CacheKind string

const (
	// KindSymbolMeta caches per-symbol reference data (name, sector, ...).
	KindSymbolMeta CacheKind = "symbol_meta"
	// KindPriceSeries caches OHLCV time series, stored as Parquet.
	KindPriceSeries CacheKind = "price_series"
	// KindIndexSnapshot caches computed index/volatility snapshots.
	KindIndexSnapshot CacheKind = "index_snapshot"
)

// DefaultTTL returns the default freshness window for the kind. Callers may
// override per call; these are policy defaults, not store behaviour.
func (k CacheKind) DefaultTTL() time.Duration {
	switch k {
	case KindSymbolMeta:
		return 24 * time.Hour
	case KindPriceSeries:
		return 6 * time.Hour
	case KindIndexSnapshot:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// ---------------------------------------------------------------------------
// Sector taxonomy
// ---------------------------------------------------------------------------

// Sector is one of the closed set of ten dashboard categories.
type Sector string

const (
	SectorAgriculture    Sector = "agriculture"
	SectorIndustrials    Sector = "industrials"
	SectorConsumer       Sector = "consumer"
	SectorHealthcare     Sector = "healthcare"
	SectorTechnology     Sector = "technology"
	SectorFinancials     Sector = "financials"
	SectorEnergy         Sector = "energy"
	SectorRealEstate     Sector = "real_estate"
	SectorUtilities      Sector = "utilities"
	SectorCommunications Sector = "communications"
)

// Sectors lists every valid sector in display order.
func Sectors() []Sector {
	return []Sector{
		SectorAgriculture, SectorIndustrials, SectorConsumer,
		SectorHealthcare, SectorTechnology, SectorFinancials,
		SectorEnergy, SectorRealEstate, SectorUtilities,
		SectorCommunications,
	}
}

// Valid reports whether s is a member of the closed sector set.
func (s Sector) Valid() bool {
	for _, v := range Sectors() {
		if s == v {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Registry entries
// ---------------------------------------------------------------------------

// TickerEntry is the registry record for a single user-added symbol. The
// symbol itself is the registry map key and is not repeated here.
type TickerEntry struct {
	Sector  Sector    `json:"sector"`
	Name    string    `json:"name"`
	AddedAt time.Time `json:"added_date"`
	AddedBy string    `json:"added_by"`
}

// ---------------------------------------------------------------------------
// Price series
// ---------------------------------------------------------------------------

// PricePoint is a single OHLCV observation.
type PricePoint struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// PriceSeries is an ordered OHLCV history for one symbol.
type PriceSeries struct {
	Symbol string
	Points []PricePoint
}

// ---------------------------------------------------------------------------
// Backup snapshots
// ---------------------------------------------------------------------------

// SnapshotKind distinguishes operator-requested snapshots from scheduled ones.
type SnapshotKind string

const (
	SnapshotManual SnapshotKind = "manual"
	SnapshotAuto   SnapshotKind = "auto"
)

// SnapshotDescriptor summarises one on-disk snapshot for listings. When the
// snapshot file's own metadata block is unreadable, Kind falls back to
// "unknown" and TickerCount to zero, with Size/Created taken from the
// filesystem.
type SnapshotDescriptor struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Created     time.Time `json:"created"`
	Size        int64     `json:"size"`
	TickerCount int       `json:"ticker_count"`
}
