package engine

import (
	"context"
	"fmt"
	"log/slog"

	"quantworker/internal/domain"
	"quantworker/internal/strategy"
)

// TradeSource identifies which instrumentation tier produced the trade list
// in a run result. The recorder is the primary source; the other tiers exist
// for results reconstructed from coarser data.
type TradeSource string

const (
	TradeSourceRecorder     TradeSource = "recorder"
	TradeSourceTransactions TradeSource = "transactions"
	TradeSourceSummary      TradeSource = "summary"
)

// SimulationRequest describes one backtest run. Bars must be sorted by
// timestamp with no duplicates; the market data layer guarantees that.
type SimulationRequest struct {
	Symbol      string
	Bars        []domain.Bar
	InitialCash float64
	Commission  CommissionScheme
	MinBars     int
}

// RunResult is the raw outcome of a simulation before normalization into a
// report document.
type RunResult struct {
	Symbol         string
	InitialCash    float64
	FinalValue     float64
	Trades         []domain.TradeFill
	TradeSource    TradeSource
	EquityCurve    []domain.EquityPoint
	MaxDrawdownPct float64 // negative percentage, e.g. -3.69
	SharpeRatio    float64
	Won            int
	Lost           int
	Closed         int
}

// Runner executes simulations. It is stateless; every run gets a fresh
// broker and recorder so no state leaks between tasks.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a Runner logging through the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run simulates the strategy over the request's bars. The strategy instance
// must be freshly constructed; Run calls Init exactly once and then OnBar
// for every bar in order, executing returned signals at that bar's close.
func (r *Runner) Run(ctx context.Context, strat strategy.Strategy, req SimulationRequest) (*RunResult, error) {
	if len(req.Bars) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoData, req.Symbol)
	}
	if req.MinBars > 0 && len(req.Bars) < req.MinBars {
		return nil, fmt.Errorf("%w: %s has %d bars, need %d",
			domain.ErrInsufficientHistory, req.Symbol, len(req.Bars), req.MinBars)
	}

	broker := NewBroker(req.InitialCash, req.Commission)
	recorder := &Recorder{}

	if err := strat.Init(ctx, broker); err != nil {
		return nil, fmt.Errorf("strategy init: %w", err)
	}

	for _, bar := range req.Bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		broker.MarkPrice(bar.Close)

		signals, err := strat.OnBar(ctx, bar)
		if err != nil {
			return nil, fmt.Errorf("strategy on bar %s: %w", bar.Timestamp.Format("2006-01-02"), err)
		}
		for _, sig := range signals {
			fill, ok := broker.Execute(sig, bar)
			if !ok {
				continue
			}
			recorder.RecordFill(fill)
			r.logger.Debug("fill",
				"symbol", req.Symbol,
				"action", fill.Action,
				"qty", fill.Quantity,
				"price", fill.Price,
				"reason", sig.Reason)
		}
		recorder.MarkEquity(bar.Timestamp, broker.Value())
	}

	won, lost, closed := recorder.Outcomes()
	result := &RunResult{
		Symbol:         req.Symbol,
		InitialCash:    req.InitialCash,
		FinalValue:     broker.Value(),
		Trades:         recorder.Trades(),
		TradeSource:    TradeSourceRecorder,
		EquityCurve:    recorder.EquityCurve(),
		MaxDrawdownPct: MaxDrawdownPct(recorder.EquityCurve()),
		SharpeRatio:    SharpeRatio(recorder.EquityCurve()),
		Won:            won,
		Lost:           lost,
		Closed:         closed,
	}

	r.logger.Info("simulation complete",
		"symbol", req.Symbol,
		"bars", len(req.Bars),
		"trades", len(result.Trades),
		"final_value", result.FinalValue)
	return result, nil
}
