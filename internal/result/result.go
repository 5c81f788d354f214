// Package result converts raw simulation output into the canonical result
// document reported to the task queue and persisted by the screener.
package result

import (
	"quantworker/internal/domain"
	"quantworker/internal/engine"
)

// RunInfo carries the request-side fields the simulation itself does not
// know: the reported date range and the strategy's display name.
type RunInfo struct {
	StartDate    string // YYYYMMDD
	EndDate      string // YYYYMMDD
	StrategyName string
}

// Normalize builds the report document for a completed run. It is a pure
// function of its inputs: no field of run is mutated, and normalizing the
// same run twice yields identical documents.
//
// Ratio fields in Metrics are decimal fractions; ProfitPercentage is the
// same quantity scaled to a percentage for display. MaxDrawdown is never
// positive. TotalProfit always equals FinalValue - InitialCash.
func Normalize(run *engine.RunResult, info RunInfo) *domain.ResultDocument {
	profit := run.FinalValue - run.InitialCash

	totalReturn := 0.0
	if run.InitialCash > 0 {
		totalReturn = profit / run.InitialCash
	}

	winRate := 0.0
	if run.Closed > 0 {
		winRate = float64(run.Won) / float64(run.Closed)
	}

	// A fill without a timestamp cannot be keyed downstream; drop it rather
	// than inventing a date.
	trades := make([]domain.TradeFill, 0, len(run.Trades))
	for _, tr := range run.Trades {
		if tr.DatetimeStr == "" {
			continue
		}
		trades = append(trades, tr)
	}
	equity := run.EquityCurve
	if equity == nil {
		equity = []domain.EquityPoint{}
	}

	return &domain.ResultDocument{
		Symbol:           run.Symbol,
		StartDate:        info.StartDate,
		EndDate:          info.EndDate,
		InitialCash:      run.InitialCash,
		FinalValue:       run.FinalValue,
		TotalProfit:      profit,
		ProfitPercentage: totalReturn * 100,
		StrategyName:     info.StrategyName,
		Metrics: domain.Metrics{
			TotalReturn: totalReturn,
			SharpeRatio: run.SharpeRatio,
			MaxDrawdown: run.MaxDrawdownPct / 100,
			WinRate:     winRate,
			TotalTrades: run.Closed,
		},
		Trades:      trades,
		EquityCurve: equity,
	}
}
