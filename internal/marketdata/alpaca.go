package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stockdash/internal/domain"
	"stockdash/internal/util"
)

// Compile-time interface check.
var _ Fetcher = (*AlpacaFetcher)(nil)

// AlpacaFetcher fetches daily bars and asset reference data from the Alpaca
// APIs, pacing calls through a token bucket and retrying transient failures.
type AlpacaFetcher struct {
	data    *marketdata.Client
	trading *alpaca.Client
	limiter *util.RateLimiter
}

// NewAlpacaFetcher creates an AlpacaFetcher with the given credentials.
// dataURL overrides the market-data endpoint when non-empty.
func NewAlpacaFetcher(apiKey, apiSecret, dataURL string, ratePerMin int) *AlpacaFetcher {
	dataOpts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		dataOpts.BaseURL = dataURL
	}

	return &AlpacaFetcher{
		data: marketdata.NewClient(dataOpts),
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
		limiter: util.NewRateLimiter(ratePerMin),
	}
}

// FetchSeries fetches daily bars covering the lookback period.
func (f *AlpacaFetcher) FetchSeries(ctx context.Context, symbol, period string) (*domain.PriceSeries, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	lookback, err := periodDuration(period)
	if err != nil {
		return nil, err
	}
	end := time.Now()
	start := end.Add(-lookback)

	symbol = strings.ToUpper(symbol)

	var bars []marketdata.Bar
	err = util.Retry(ctx, 3, 500*time.Millisecond, func() error {
		var berr error
		bars, berr = f.data.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
		})
		return berr
	})
	if err != nil {
		return nil, fmt.Errorf("fetching bars for %s: %w", symbol, err)
	}

	series := &domain.PriceSeries{Symbol: symbol, Points: make([]domain.PricePoint, 0, len(bars))}
	for _, b := range bars {
		series.Points = append(series.Points, domain.PricePoint{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    int64(b.Volume),
		})
	}
	return series, nil
}

// FetchInfo fetches asset reference data.
func (f *AlpacaFetcher) FetchInfo(ctx context.Context, symbol string) (*SymbolInfo, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(symbol)

	var asset *alpaca.Asset
	err := util.Retry(ctx, 3, 500*time.Millisecond, func() error {
		var aerr error
		asset, aerr = f.trading.GetAsset(symbol)
		return aerr
	})
	if err != nil {
		return nil, fmt.Errorf("fetching asset %s: %w", symbol, err)
	}

	return &SymbolInfo{
		Symbol:   asset.Symbol,
		Name:     asset.Name,
		Exchange: asset.Exchange,
		Class:    string(asset.Class),
		Tradable: asset.Tradable,
	}, nil
}

// periodDuration maps a lookback label to a duration.
func periodDuration(period string) (time.Duration, error) {
	const day = 24 * time.Hour
	switch period {
	case "1mo":
		return 30 * day, nil
	case "3mo":
		return 91 * day, nil
	case "6mo":
		return 182 * day, nil
	case "1y":
		return 365 * day, nil
	case "2y":
		return 2 * 365 * day, nil
	case "5y":
		return 5 * 365 * day, nil
	default:
		return 0, &domain.ValidationError{Field: "period", Reason: fmt.Sprintf("%q is not a supported lookback", period)}
	}
}
