// Package marketdata is the seam to the external market-data provider. The
// durability layer only consumes the Fetcher interface; the Alpaca-backed
// implementation and the caching wrapper live here so the rest of the code
// has no knowledge of how a fetch happens.
package marketdata

import (
	"context"

	"stockdash/internal/domain"
)

// SymbolInfo is the reference data cached under the symbol_meta kind.
type SymbolInfo struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Class    string `json:"class"`
	Tradable bool   `json:"tradable"`
}

// Fetcher retrieves market data for one symbol. period is a lookback label
// such as "1mo", "6mo", "1y", "2y", or "5y".
type Fetcher interface {
	// FetchSeries returns the daily OHLCV history covering the period.
	FetchSeries(ctx context.Context, symbol, period string) (*domain.PriceSeries, error)

	// FetchInfo returns reference data for the symbol.
	FetchInfo(ctx context.Context, symbol string) (*SymbolInfo, error)
}
