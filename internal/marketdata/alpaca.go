package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"quantworker/internal/domain"
	"quantworker/internal/util"
)

// Compile-time interface checks.
var _ BarSource = (*AlpacaSource)(nil)
var _ Calendar = (*AlpacaCalendar)(nil)

const (
	alpacaRetryAttempts = 3
	alpacaRetryDelay    = 2 * time.Second
)

// AlpacaSource fetches frames and asset names from the Alpaca APIs,
// rate-limited and retried.
type AlpacaSource struct {
	data    *marketdata.Client
	trading *alpaca.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// AlpacaOpts configures an AlpacaSource.
type AlpacaOpts struct {
	APIKey          string
	APISecret       string
	BaseURL         string // live trading API, for assets and calendar
	DataURL         string // market-data API
	RateLimitPerMin int
}

// NewAlpacaSource creates an AlpacaSource with the given credentials.
func NewAlpacaSource(opts AlpacaOpts, logger *slog.Logger) *AlpacaSource {
	dataOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		dataOpts.BaseURL = opts.DataURL
	}

	perMin := opts.RateLimitPerMin
	if perMin <= 0 {
		perMin = 200
	}

	return &AlpacaSource{
		data: marketdata.NewClient(dataOpts),
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    opts.APIKey,
			APISecret: opts.APISecret,
			BaseURL:   opts.BaseURL,
		}),
		limiter: util.NewRateLimiter(perMin),
		log:     logger.With("source", "alpaca"),
	}
}

// FetchFrame fetches daily bars for one symbol from the Alpaca data API.
func (a *AlpacaSource) FetchFrame(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var raw []marketdata.Bar
	err := util.Retry(ctx, alpacaRetryAttempts, alpacaRetryDelay, func() error {
		var fetchErr error
		raw, fetchErr = a.data.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      "sip",
		})
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, domain.Bar{
			Symbol:     strings.ToUpper(symbol),
			Timestamp:  b.Timestamp,
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     int64(b.Volume),
			TradeCount: int64(b.TradeCount),
			VWAP:       b.VWAP,
		})
	}
	return normalizeFrame(bars), nil
}

// FetchNames resolves display names through the assets API. Unknown symbols
// are skipped rather than failing the whole batch.
func (a *AlpacaSource) FetchNames(ctx context.Context, symbols []string) (map[string]string, error) {
	names := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		asset, err := a.trading.GetAsset(symbol)
		if err != nil {
			a.log.Debug("asset lookup failed", "symbol", symbol, "error", err)
			continue
		}
		if asset.Name != "" {
			names[strings.ToUpper(symbol)] = asset.Name
		}
	}
	return names, nil
}

// AlpacaCalendar enumerates trading dates from the Alpaca calendar API.
type AlpacaCalendar struct {
	trading *alpaca.Client
}

// NewAlpacaCalendar creates a calendar backed by the Alpaca trading API.
func NewAlpacaCalendar(apiKey, apiSecret, baseURL string) *AlpacaCalendar {
	return &AlpacaCalendar{
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
	}
}

// TradingDates returns the exchange trading days within [start, end].
func (c *AlpacaCalendar) TradingDates(_ context.Context, start, end time.Time) ([]string, error) {
	days, err := c.trading.GetCalendar(alpaca.GetCalendarRequest{
		Start: start,
		End:   end,
	})
	if err != nil {
		return nil, fmt.Errorf("GetCalendar: %w", err)
	}

	dates := make([]string, 0, len(days))
	for _, day := range days {
		t, err := time.Parse("2006-01-02", day.Date)
		if err != nil {
			continue
		}
		dates = append(dates, t.Format("20060102"))
	}
	return dates, nil
}
