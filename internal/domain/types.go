// Package domain defines the core data types shared across the backtest
// worker: price bars, trading signals, queue tasks, and the canonical
// result document reported to the server.
package domain

import "time"

// Market identifies which exchange calendar and data layout a symbol
// belongs to.
type Market string

const (
	MarketUS Market = "us"
	MarketCN Market = "cn"
)

// Bar is one OHLCV sample for a single trading day.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// SignalAction is the intent a strategy emits for a bar.
type SignalAction string

const (
	ActionBuy  SignalAction = "buy"
	ActionSell SignalAction = "sell"
)

// Signal is a trading intent emitted by a strategy for the current bar.
// Quantity is in shares; zero quantity signals are ignored by the broker.
type Signal struct {
	Action   SignalAction
	Quantity int64
	Reason   string
}

// Task is one unit of work handed out by the remote queue. It is created
// server-side and immutable while a worker processes it.
type Task struct {
	TaskID         string         `json:"task_id"`
	Symbol         string         `json:"symbol"`
	StrategyKey    string         `json:"strategy_key"`
	StartDate      string         `json:"start_date"` // YYYYMMDD
	EndDate        string         `json:"end_date"`   // YYYYMMDD
	StrategyParams map[string]any `json:"strategy_params"`
	InitialCash    float64        `json:"initial_cash"`
	PresetName     string         `json:"preset_name,omitempty"`
}

// TradeFill is one filled order recorded during a simulation run.
type TradeFill struct {
	Datetime      time.Time    `json:"-"`
	DatetimeStr   string       `json:"datetime"` // YYYY-MM-DD HH:MM:SS
	Action        SignalAction `json:"action"`
	Price         float64      `json:"price"`
	Quantity      int64        `json:"quantity"`
	Commission    float64      `json:"commission"`
	PnL           float64      `json:"pnl"`
	CumulativePnL float64      `json:"cumulative_pnl"`
}

// EquityPoint is one mark-to-market portfolio value sample, taken once
// per simulated trading day after that day's activity.
type EquityPoint struct {
	Date  string  `json:"date"` // YYYYMMDD
	Value float64 `json:"value"`
}

// Metrics holds the performance summary of a completed backtest. All
// ratio-like fields are decimal fractions, never percentages. MaxDrawdown
// is zero or negative.
type Metrics struct {
	TotalReturn float64 `json:"total_return"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	WinRate     float64 `json:"win_rate"`
	TotalTrades int     `json:"total_trades"`
}

// ResultDocument is the canonical output of one completed simulation,
// consumed by the report endpoint and by the screening persistence layer.
// Invariant: TotalProfit == FinalValue - InitialCash.
type ResultDocument struct {
	Symbol           string        `json:"symbol"`
	StartDate        string        `json:"start_date"`
	EndDate          string        `json:"end_date"`
	InitialCash      float64       `json:"initial_cash"`
	FinalValue       float64       `json:"final_value"`
	TotalProfit      float64       `json:"total_profit"`
	ProfitPercentage float64       `json:"profit_percentage"`
	StrategyName     string        `json:"strategy_name"`
	Metrics          Metrics       `json:"metrics"`
	Trades           []TradeFill   `json:"trades"`
	EquityCurve      []EquityPoint `json:"equity_curve"`
}

// StockPoolRecord is one BUY-signal candidate persisted by the screener.
// Upsert key: (Date, Strategy, Preset, Symbol).
type StockPoolRecord struct {
	Date            string // YYYYMMDD, date of the BUY signal
	Strategy        string
	Preset          string
	Symbol          string
	Name            string
	Price           float64
	LastDatetime    string
	CreatedAt       time.Time
	HistWinRate     float64
	HistTotalTrades int
	HistReturn      float64
	HistSharpeRatio float64
	HistMaxDrawdown float64
}

// TradeHistoryRecord is one simulated trade persisted by the screener for
// chart display. Upsert key: (Date, Strategy, Preset, Symbol, Datetime).
type TradeHistoryRecord struct {
	Date            string // YYYYMMDD
	Strategy        string
	Preset          string
	Symbol          string
	Name            string
	Action          string // BUY or SELL
	Price           float64
	Quantity        int64
	Datetime        string // YYYY-MM-DD HH:MM:SS
	PnL             float64
	CumulativePnL   float64
	CreatedAt       time.Time
	HistWinRate     float64
	HistTotalTrades int
	HistReturn      float64
	HistSharpeRatio float64
	HistMaxDrawdown float64
}
