// Package screener runs a strategy across a whole symbol universe and
// persists BUY-signal candidates plus their simulated trade history.
package screener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quantworker/internal/domain"
	"quantworker/internal/engine"
	"quantworker/internal/marketdata"
	"quantworker/internal/result"
	"quantworker/internal/store"
	"quantworker/internal/strategy"
)

// Options configures one screening run.
type Options struct {
	Strategy    string
	Preset      string
	StartDate   time.Time
	EndDate     time.Time // last trading day of the window
	InitialCash float64
	Commission  engine.CommissionScheme

	// Historical-performance filters, applied in order with short-circuit.
	MinTrades  int
	MinWinRate float64
	MinReturn  *float64 // nil disables the filter

	// SyncAll backfills the stock pool with every historical BUY signal;
	// by default only the final trading day's signals are written.
	SyncAll bool

	// DryRun logs candidates without writing to the document store.
	DryRun bool
}

// Counters summarizes a screening run.
type Counters struct {
	Total              int
	Candidates         int
	SkippedNoData      int
	SkippedPerformance int
	Errors             int
}

// Screener iterates a symbol universe sequentially: every simulation is
// independent, so one symbol's failure never aborts the batch.
type Screener struct {
	source   marketdata.BarSource
	docs     store.DocumentStore
	registry *strategy.Registry
	runner   *engine.Runner
	log      *slog.Logger
}

// New creates a Screener.
func New(source marketdata.BarSource, docs store.DocumentStore, registry *strategy.Registry, runner *engine.Runner, logger *slog.Logger) *Screener {
	return &Screener{
		source:   source,
		docs:     docs,
		registry: registry,
		runner:   runner,
		log:      logger,
	}
}

// Run screens every symbol and returns aggregate counters. It fails only on
// a bad strategy/preset configuration or context cancellation; per-symbol
// faults are counted and logged instead.
func (s *Screener) Run(ctx context.Context, symbols []string, opts Options) (Counters, error) {
	var c Counters

	// A preset binds its own strategy; the resolved key is also what the
	// persisted records carry.
	key, err := strategy.ResolveStrategyKey(opts.Strategy, opts.Preset)
	if err != nil {
		return c, err
	}
	opts.Strategy = key

	desc, err := s.registry.Get(key)
	if err != nil {
		return c, err
	}
	params, err := strategy.ResolveParams(desc.Defaults, opts.Preset, nil)
	if err != nil {
		return c, err
	}
	params["worker_mode"] = "backtest"
	minBars := strategy.EstimateMinBars(desc, params)
	endDateStr := opts.EndDate.Format("20060102")

	s.log.Info("screening started",
		"strategy", opts.Strategy,
		"preset", presetLabel(opts.Preset),
		"symbols", len(symbols),
		"end_date", endDateStr,
		"dry_run", opts.DryRun)

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		c.Total++

		doc, err := s.simulate(ctx, symbol, desc, params, minBars, opts)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				return c, err
			case errors.Is(err, domain.ErrNoData) || errors.Is(err, domain.ErrInsufficientHistory):
				c.SkippedNoData++
				s.log.Debug("skipping symbol", "symbol", symbol, "reason", err)
			default:
				c.Errors++
				s.log.Warn("backtest failed", "symbol", symbol, "error", err)
			}
			continue
		}

		if len(doc.Trades) == 0 {
			continue
		}

		if reason := failedFilter(doc.Metrics, opts); reason != "" {
			c.SkippedPerformance++
			s.log.Debug("filtered out", "symbol", symbol, "reason", reason)
			continue
		}

		s.log.Info("qualified",
			"symbol", symbol,
			"win_rate", doc.Metrics.WinRate,
			"trades", doc.Metrics.TotalTrades,
			"return", doc.Metrics.TotalReturn)

		if err := s.persist(ctx, symbol, doc, endDateStr, opts, &c); err != nil {
			c.Errors++
			s.log.Warn("persisting results failed", "symbol", symbol, "error", err)
		}
	}

	s.log.Info("screening done",
		"symbols", c.Total,
		"candidates", c.Candidates,
		"skipped_no_data", c.SkippedNoData,
		"skipped_performance", c.SkippedPerformance,
		"errors", c.Errors)
	return c, nil
}

// simulate runs one symbol through the engine and normalizes the outcome.
func (s *Screener) simulate(ctx context.Context, symbol string, desc strategy.Descriptor, params map[string]any, minBars int, opts Options) (*domain.ResultDocument, error) {
	bars, err := s.source.FetchFrame(ctx, symbol, opts.StartDate, opts.EndDate)
	if err != nil {
		return nil, fmt.Errorf("fetching frame: %w", err)
	}

	strat, err := desc.New(params)
	if err != nil {
		return nil, fmt.Errorf("constructing strategy: %w", err)
	}

	run, err := s.runner.Run(ctx, strat, engine.SimulationRequest{
		Symbol:      symbol,
		Bars:        bars,
		InitialCash: opts.InitialCash,
		Commission:  opts.Commission,
		MinBars:     minBars,
	})
	if err != nil {
		return nil, err
	}

	return result.Normalize(run, result.RunInfo{
		StartDate:    opts.StartDate.Format("20060102"),
		EndDate:      opts.EndDate.Format("20060102"),
		StrategyName: strat.Name(),
	}), nil
}

// failedFilter applies the performance filters in order and returns the
// first failure reason, or "" when the symbol qualifies.
func failedFilter(m domain.Metrics, opts Options) string {
	if m.TotalTrades < opts.MinTrades {
		return fmt.Sprintf("insufficient trades (%d < %d)", m.TotalTrades, opts.MinTrades)
	}
	if opts.MinWinRate > 0 && m.WinRate < opts.MinWinRate {
		return fmt.Sprintf("low win rate (%.2f < %.2f)", m.WinRate, opts.MinWinRate)
	}
	if opts.MinReturn != nil && m.TotalReturn < *opts.MinReturn {
		return fmt.Sprintf("low return (%.4f < %.4f)", m.TotalReturn, *opts.MinReturn)
	}
	return ""
}

// persist writes a qualifying symbol's trades and BUY signals. Candidates
// are counted only for BUY signals on the final trading day; earlier signals
// are history for browsing, not today's actionable picks.
func (s *Screener) persist(ctx context.Context, symbol string, doc *domain.ResultDocument, endDateStr string, opts Options, c *Counters) error {
	names, err := s.source.FetchNames(ctx, []string{symbol})
	if err != nil {
		s.log.Debug("name lookup failed", "symbol", symbol, "error", err)
		names = map[string]string{}
	}
	name := names[symbol]
	createdAt := time.Now().UTC()
	preset := presetLabel(opts.Preset)

	for _, tr := range doc.Trades {
		datePart := strings.ReplaceAll(strings.SplitN(tr.DatetimeStr, " ", 2)[0], "-", "")

		if !opts.DryRun {
			rec := domain.TradeHistoryRecord{
				Date:            datePart,
				Strategy:        opts.Strategy,
				Preset:          preset,
				Symbol:          symbol,
				Name:            name,
				Action:          strings.ToUpper(string(tr.Action)),
				Price:           tr.Price,
				Quantity:        tr.Quantity,
				Datetime:        tr.DatetimeStr,
				PnL:             tr.PnL,
				CumulativePnL:   tr.CumulativePnL,
				CreatedAt:       createdAt,
				HistWinRate:     doc.Metrics.WinRate,
				HistTotalTrades: doc.Metrics.TotalTrades,
				HistReturn:      doc.Metrics.TotalReturn,
				HistSharpeRatio: doc.Metrics.SharpeRatio,
				HistMaxDrawdown: doc.Metrics.MaxDrawdown,
			}
			if err := s.docs.UpsertTradeHistory(ctx, rec); err != nil {
				return err
			}
		}

		if tr.Action != domain.ActionBuy {
			continue
		}

		isCurrent := datePart == endDateStr
		if isCurrent {
			c.Candidates++
			s.log.Info("candidate", "symbol", symbol, "date", datePart)
		}
		if opts.DryRun || (!isCurrent && !opts.SyncAll) {
			continue
		}

		rec := domain.StockPoolRecord{
			Date:            datePart,
			Strategy:        opts.Strategy,
			Preset:          preset,
			Symbol:          symbol,
			Name:            name,
			Price:           tr.Price,
			LastDatetime:    tr.DatetimeStr,
			CreatedAt:       createdAt,
			HistWinRate:     doc.Metrics.WinRate,
			HistTotalTrades: doc.Metrics.TotalTrades,
			HistReturn:      doc.Metrics.TotalReturn,
			HistSharpeRatio: doc.Metrics.SharpeRatio,
			HistMaxDrawdown: doc.Metrics.MaxDrawdown,
		}
		if err := s.docs.UpsertStockPool(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func presetLabel(preset string) string {
	if preset == "" {
		return "default"
	}
	return preset
}
