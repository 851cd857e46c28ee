package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"stockdash/internal/cache"
	"stockdash/internal/domain"
)

// Compile-time interface check.
var _ Fetcher = (*CachedFetcher)(nil)

// CachedFetcher wraps a Fetcher with the on-disk TTL cache. Concurrent
// misses for the same key are collapsed into a single upstream fetch via
// singleflight. Cache write failures are logged, not surfaced: the fetched
// data is still returned.
type CachedFetcher struct {
	inner Fetcher
	store *cache.Store
	log   *slog.Logger

	metaTTL   time.Duration
	seriesTTL time.Duration

	sf singleflight.Group
}

// NewCachedFetcher wraps inner with the cache store and per-kind freshness
// windows.
func NewCachedFetcher(inner Fetcher, store *cache.Store, metaTTL, seriesTTL time.Duration, log *slog.Logger) *CachedFetcher {
	return &CachedFetcher{
		inner:     inner,
		store:     store,
		log:       log.With("component", "marketdata"),
		metaTTL:   metaTTL,
		seriesTTL: seriesTTL,
	}
}

// FetchSeries returns the cached series when fresh, otherwise fetches from
// the inner Fetcher and overwrites the cache entry.
func (f *CachedFetcher) FetchSeries(ctx context.Context, symbol, period string) (*domain.PriceSeries, error) {
	params := map[string]string{"period": period}
	if series, ok := f.store.GetSeries(symbol, params, f.seriesTTL); ok {
		return series, nil
	}

	key := cache.Key(domain.KindPriceSeries, symbol, params)
	v, err, _ := f.sf.Do(key, func() (any, error) {
		// Another goroutine may have filled the cache while we waited.
		if series, ok := f.store.GetSeries(symbol, params, f.seriesTTL); ok {
			return series, nil
		}

		series, err := f.inner.FetchSeries(ctx, symbol, period)
		if err != nil {
			return nil, err
		}
		if err := f.store.PutSeries(symbol, params, series); err != nil {
			f.log.Warn("caching price series", "symbol", symbol, "error", err)
		}
		return series, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.PriceSeries), nil
}

// FetchInfo returns cached symbol reference data when fresh, otherwise
// fetches and overwrites.
func (f *CachedFetcher) FetchInfo(ctx context.Context, symbol string) (*SymbolInfo, error) {
	if raw, ok := f.store.Get(domain.KindSymbolMeta, symbol, nil, f.metaTTL); ok {
		var info SymbolInfo
		if err := json.Unmarshal(raw, &info); err == nil {
			return &info, nil
		}
		// Undecodable hit: fall through to re-fetch.
	}

	key := cache.Key(domain.KindSymbolMeta, symbol, nil)
	v, err, _ := f.sf.Do(key, func() (any, error) {
		info, err := f.inner.FetchInfo(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("fetching info for %s: %w", symbol, err)
		}
		if err := f.store.Put(domain.KindSymbolMeta, symbol, nil, info); err != nil {
			f.log.Warn("caching symbol info", "symbol", symbol, "error", err)
		}
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SymbolInfo), nil
}
