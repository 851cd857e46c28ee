package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"stockdash/internal/domain"
)

// seriesRecord is the Parquet schema for cached price series.
type seriesRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// GetSeries returns the cached price series for (symbol, params) if it is
// younger than maxAge. Like Get, any payload-read failure is a miss.
func (s *Store) GetSeries(symbol string, params map[string]string, maxAge time.Duration) (*domain.PriceSeries, bool) {
	key := Key(domain.KindPriceSeries, symbol, params)

	s.mu.Lock()
	meta, ok := s.meta[key]
	s.mu.Unlock()

	if !ok || !s.fresh(meta, maxAge) {
		return nil, false
	}

	records, err := parquet.ReadFile[seriesRecord](filepath.Join(s.dataDir, meta.File))
	if err != nil {
		s.log.Warn("cache series payload unreadable, treating as miss", "key", key, "error", err)
		return nil, false
	}

	series := &domain.PriceSeries{Symbol: symbol, Points: make([]domain.PricePoint, 0, len(records))}
	for _, r := range records {
		series.Points = append(series.Points, domain.PricePoint{
			Timestamp: time.UnixMilli(r.Timestamp),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		})
	}
	return series, true
}

// PutSeries stores a price series as a Parquet payload, overwriting any
// prior entry with the same composite key.
func (s *Store) PutSeries(symbol string, params map[string]string, series *domain.PriceSeries) error {
	key := Key(domain.KindPriceSeries, symbol, params)

	records := make([]seriesRecord, 0, len(series.Points))
	for _, p := range series.Points {
		records = append(records, seriesRecord{
			Symbol:    series.Symbol,
			Timestamp: p.Timestamp.UnixMilli(),
			Open:      p.Open,
			High:      p.High,
			Low:       p.Low,
			Close:     p.Close,
			Volume:    p.Volume,
		})
	}

	file := key + ".parquet"
	path := filepath.Join(s.dataDir, file)

	// Parquet writes go through a temp file and rename, matching the other
	// payload writes.
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, records); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing cache series payload %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming cache series payload %s: %w", key, err)
	}

	return s.commit(key, entryMeta{
		Timestamp: s.now(),
		Kind:      domain.KindPriceSeries,
		Symbol:    symbol,
		Params:    copyParams(params),
		File:      file,
	})
}
