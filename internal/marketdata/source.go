// Package marketdata provides price-history sources for the simulation
// engine: a local Parquet source and a remote Alpaca source, plus trading
// calendars.
package marketdata

import (
	"context"
	"sort"
	"time"

	"quantworker/internal/domain"
)

// BarSource supplies daily price frames and symbol display names.
type BarSource interface {
	// FetchFrame returns daily bars for one symbol within [start, end],
	// sorted by timestamp with duplicate days collapsed. An empty slice
	// means the symbol has no data in the range.
	FetchFrame(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// FetchNames returns display names for the given symbols. Symbols with
	// no known name are omitted from the result.
	FetchNames(ctx context.Context, symbols []string) (map[string]string, error)
}

// Calendar enumerates trading dates.
type Calendar interface {
	// TradingDates returns the trading days within [start, end] as YYYYMMDD
	// strings in ascending order.
	TradingDates(ctx context.Context, start, end time.Time) ([]string, error)
}

// normalizeFrame sorts bars by timestamp and collapses duplicate days,
// keeping the last occurrence. Sources call this before returning a frame so
// the engine can assume ordered input.
func normalizeFrame(bars []domain.Bar) []domain.Bar {
	if len(bars) == 0 {
		return bars
	}
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(b.Timestamp) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
