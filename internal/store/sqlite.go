package store

import (
	"context"
	"database/sql"
	"fmt"

	"quantworker/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ DocumentStore = (*SQLiteStore)(nil)

// SQLiteStore implements DocumentStore backed by a SQLite database. Both
// tables are upsert-only: re-running a screening for the same date replaces
// earlier rows instead of duplicating them.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS stock_pool (
	date              TEXT NOT NULL,
	strategy          TEXT NOT NULL,
	preset            TEXT NOT NULL,
	symbol            TEXT NOT NULL,
	name              TEXT NOT NULL,
	price             REAL NOT NULL,
	last_datetime     TEXT NOT NULL,
	created_at        TEXT NOT NULL,
	hist_win_rate     REAL NOT NULL,
	hist_total_trades INTEGER NOT NULL,
	hist_return       REAL NOT NULL,
	hist_sharpe_ratio REAL NOT NULL,
	hist_max_drawdown REAL NOT NULL,
	PRIMARY KEY (date, strategy, preset, symbol)
);

CREATE TABLE IF NOT EXISTS trade_history (
	date              TEXT NOT NULL,
	strategy          TEXT NOT NULL,
	preset            TEXT NOT NULL,
	symbol            TEXT NOT NULL,
	name              TEXT NOT NULL,
	action            TEXT NOT NULL,
	price             REAL NOT NULL,
	quantity          INTEGER NOT NULL,
	datetime          TEXT NOT NULL,
	pnl               REAL NOT NULL,
	cumulative_pnl    REAL NOT NULL,
	created_at        TEXT NOT NULL,
	hist_win_rate     REAL NOT NULL,
	hist_total_trades INTEGER NOT NULL,
	hist_return       REAL NOT NULL,
	hist_sharpe_ratio REAL NOT NULL,
	hist_max_drawdown REAL NOT NULL,
	PRIMARY KEY (date, strategy, preset, symbol, datetime)
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertStockPool inserts or replaces one candidate record. Last write wins
// on the (date, strategy, preset, symbol) key.
func (s *SQLiteStore) UpsertStockPool(ctx context.Context, rec domain.StockPoolRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_pool (
			date, strategy, preset, symbol, name, price, last_datetime, created_at,
			hist_win_rate, hist_total_trades, hist_return, hist_sharpe_ratio, hist_max_drawdown
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (date, strategy, preset, symbol) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			last_datetime = excluded.last_datetime,
			created_at = excluded.created_at,
			hist_win_rate = excluded.hist_win_rate,
			hist_total_trades = excluded.hist_total_trades,
			hist_return = excluded.hist_return,
			hist_sharpe_ratio = excluded.hist_sharpe_ratio,
			hist_max_drawdown = excluded.hist_max_drawdown`,
		rec.Date, rec.Strategy, rec.Preset, rec.Symbol, rec.Name, rec.Price,
		rec.LastDatetime, rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		rec.HistWinRate, rec.HistTotalTrades, rec.HistReturn,
		rec.HistSharpeRatio, rec.HistMaxDrawdown,
	)
	if err != nil {
		return fmt.Errorf("upserting stock pool %s/%s: %w", rec.Date, rec.Symbol, err)
	}
	return nil
}

// UpsertTradeHistory inserts or replaces one simulated trade record. Last
// write wins on the (date, strategy, preset, symbol, datetime) key.
func (s *SQLiteStore) UpsertTradeHistory(ctx context.Context, rec domain.TradeHistoryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_history (
			date, strategy, preset, symbol, name, action, price, quantity, datetime,
			pnl, cumulative_pnl, created_at,
			hist_win_rate, hist_total_trades, hist_return, hist_sharpe_ratio, hist_max_drawdown
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (date, strategy, preset, symbol, datetime) DO UPDATE SET
			name = excluded.name,
			action = excluded.action,
			price = excluded.price,
			quantity = excluded.quantity,
			pnl = excluded.pnl,
			cumulative_pnl = excluded.cumulative_pnl,
			created_at = excluded.created_at,
			hist_win_rate = excluded.hist_win_rate,
			hist_total_trades = excluded.hist_total_trades,
			hist_return = excluded.hist_return,
			hist_sharpe_ratio = excluded.hist_sharpe_ratio,
			hist_max_drawdown = excluded.hist_max_drawdown`,
		rec.Date, rec.Strategy, rec.Preset, rec.Symbol, rec.Name, rec.Action,
		rec.Price, rec.Quantity, rec.Datetime,
		rec.PnL, rec.CumulativePnL, rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		rec.HistWinRate, rec.HistTotalTrades, rec.HistReturn,
		rec.HistSharpeRatio, rec.HistMaxDrawdown,
	)
	if err != nil {
		return fmt.Errorf("upserting trade history %s/%s@%s: %w", rec.Date, rec.Symbol, rec.Datetime, err)
	}
	return nil
}

// CountStockPool returns the number of candidate rows for a screening date.
func (s *SQLiteStore) CountStockPool(ctx context.Context, date, strategy, preset string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stock_pool WHERE date = ? AND strategy = ? AND preset = ?`,
		date, strategy, preset,
	).Scan(&n)
	return n, err
}
