// Package store defines storage interfaces for bar history and screening
// results, with Parquet and SQLite implementations.
package store

import (
	"context"
	"time"

	"quantworker/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars under the given market.
	WriteBars(ctx context.Context, bars []domain.Bar, market string) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// DocumentStore persists screening output: the candidate stock pool and the
// per-symbol simulated trade history.
type DocumentStore interface {
	// UpsertStockPool inserts or replaces a candidate record keyed by
	// (date, strategy, preset, symbol).
	UpsertStockPool(ctx context.Context, rec domain.StockPoolRecord) error

	// UpsertTradeHistory inserts or replaces a trade record keyed by
	// (date, strategy, preset, symbol, datetime).
	UpsertTradeHistory(ctx context.Context, rec domain.TradeHistoryRecord) error

	// Close releases the underlying resources.
	Close() error
}
