package marketdata

import (
	"context"
	"fmt"
	"time"

	"quantworker/internal/domain"
	"quantworker/internal/store"
)

// Compile-time interface check.
var _ BarSource = (*ParquetSource)(nil)

// ParquetSource reads frames from the local Parquet bar store.
type ParquetSource struct {
	store  store.BarStore
	market string
}

// NewParquetSource creates a ParquetSource reading the given market from
// the bar store.
func NewParquetSource(s store.BarStore, market string) *ParquetSource {
	return &ParquetSource{store: s, market: market}
}

// FetchFrame reads bars from disk for [start, end].
func (p *ParquetSource) FetchFrame(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	bars, err := p.store.ReadBars(ctx, symbol, p.market, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", symbol, err)
	}
	return normalizeFrame(bars), nil
}

// FetchNames returns no names; the local store holds only price data, so
// callers fall back to the raw symbol.
func (p *ParquetSource) FetchNames(_ context.Context, _ []string) (map[string]string, error) {
	return map[string]string{}, nil
}

// Symbols lists every symbol with local data, for full-market screenings.
func (p *ParquetSource) Symbols(ctx context.Context) ([]string, error) {
	return p.store.ListSymbols(ctx, p.market)
}
