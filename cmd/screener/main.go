// Command screener runs a strategy across the local symbol universe and
// persists BUY-signal candidates and their simulated trade history.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quantworker/internal/config"
	"quantworker/internal/engine"
	"quantworker/internal/marketdata"
	"quantworker/internal/screener"
	"quantworker/internal/store"
	"quantworker/internal/strategy/builtins"
	"quantworker/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/quantworker.yaml", "path to config file")
	strategyKey := flag.String("strategy", "", "strategy key (overrides config)")
	preset := flag.String("preset", "", "parameter preset name (overrides config)")
	daysBack := flag.Int("days-back", 0, "lookback window in calendar days (overrides config)")
	initialCash := flag.Float64("initial-cash", 0, "starting cash per simulation (overrides config)")
	limitSymbols := flag.Int("limit-symbols", 0, "screen only the first N symbols (0 = all)")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols to screen instead of the full universe")
	minTrades := flag.Int("min-trades", -1, "minimum closed trades to qualify (overrides config)")
	minWinRate := flag.Float64("min-win-rate", -1, "minimum win rate to qualify (overrides config)")
	minReturn := flag.Float64("min-return", math.NaN(), "minimum total return to qualify, decimal (disabled if unset)")
	syncAll := flag.Bool("sync-all", false, "backfill the stock pool with all historical BUY signals")
	dryRun := flag.Bool("dry-run", false, "log candidates without writing to the store")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = config.Default()
	}
	applyFlags(cfg, *strategyKey, *preset, *daysBack, *initialCash, *limitSymbols, *minTrades, *minWinRate, *minReturn, *syncAll)

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	registry, err := builtins.NewRegistry()
	if err != nil {
		log.Fatalf("building strategy registry: %v", err)
	}

	barStore := store.NewParquetStore(cfg.Storage.DataDir)
	source := marketdata.NewParquetSource(barStore, cfg.MarketData.Market)

	docs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening document store: %v", err)
	}
	defer docs.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	symbols, err := resolveSymbols(ctx, source, *symbolsFlag, cfg.Screening.LimitSymbols)
	if err != nil {
		log.Fatalf("listing symbols: %v", err)
	}
	if len(symbols) == 0 {
		log.Fatal("no symbols to screen: populate the data directory or pass -symbols")
	}

	endDate, err := latestTradingDay(ctx, newCalendar(cfg), logger)
	if err != nil {
		log.Fatalf("determining screening window: %v", err)
	}
	startDate := endDate.AddDate(0, 0, -cfg.Screening.DaysBack)

	s := screener.New(source, docs, registry, engine.NewRunner(logger), logger)
	counters, err := s.Run(ctx, symbols, screener.Options{
		Strategy:    cfg.Screening.Strategy,
		Preset:      cfg.Screening.Preset,
		StartDate:   startDate,
		EndDate:     endDate,
		InitialCash: cfg.Screening.InitialCash,
		Commission:  engine.DefaultCommission(),
		MinTrades:   cfg.Screening.MinTrades,
		MinWinRate:  cfg.Screening.MinWinRate,
		MinReturn:   cfg.Screening.MinReturn,
		SyncAll:     cfg.Screening.SyncAll,
		DryRun:      *dryRun,
	})
	if err != nil {
		log.Fatalf("screening aborted: %v", err)
	}

	logger.Info("screening summary",
		"symbols", counters.Total,
		"candidates", counters.Candidates,
		"skipped_no_data", counters.SkippedNoData,
		"skipped_performance", counters.SkippedPerformance,
		"errors", counters.Errors)
}

// applyFlags overlays non-default CLI flags onto the config.
func applyFlags(cfg *config.Config, strategyKey, preset string, daysBack int, initialCash float64, limitSymbols, minTrades int, minWinRate, minReturn float64, syncAll bool) {
	if strategyKey != "" {
		cfg.Screening.Strategy = strategyKey
	}
	if preset != "" {
		cfg.Screening.Preset = preset
	}
	if daysBack > 0 {
		cfg.Screening.DaysBack = daysBack
	}
	if initialCash > 0 {
		cfg.Screening.InitialCash = initialCash
	}
	if limitSymbols > 0 {
		cfg.Screening.LimitSymbols = limitSymbols
	}
	if minTrades >= 0 {
		cfg.Screening.MinTrades = minTrades
	}
	if minWinRate >= 0 {
		cfg.Screening.MinWinRate = minWinRate
	}
	if !math.IsNaN(minReturn) {
		cfg.Screening.MinReturn = &minReturn
	}
	if syncAll {
		cfg.Screening.SyncAll = true
	}
}

// resolveSymbols takes an explicit comma-separated list when given, falling
// back to every symbol with local data, truncated to the configured limit.
func resolveSymbols(ctx context.Context, source *marketdata.ParquetSource, explicit string, limit int) ([]string, error) {
	var symbols []string
	if explicit != "" {
		for _, s := range strings.Split(explicit, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, s)
			}
		}
	} else {
		var err error
		symbols, err = source.Symbols(ctx)
		if err != nil {
			return nil, err
		}
	}
	if limit > 0 && len(symbols) > limit {
		symbols = symbols[:limit]
	}
	return symbols, nil
}

// newCalendar picks the exchange calendar: Alpaca's when US credentials are
// configured, weekday approximation otherwise.
func newCalendar(cfg *config.Config) marketdata.Calendar {
	if cfg.MarketData.Market == "us" && cfg.Alpaca.APIKey != "" {
		return marketdata.NewAlpacaCalendar(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
	}
	return marketdata.WeekdayCalendar{}
}

// latestTradingDay returns the most recent trading day on or before today.
func latestTradingDay(ctx context.Context, cal marketdata.Calendar, logger *slog.Logger) (time.Time, error) {
	now := time.Now()
	dates, err := cal.TradingDates(ctx, now.AddDate(0, 0, -14), now)
	if err != nil || len(dates) == 0 {
		logger.Warn("calendar unavailable, falling back to weekdays", "error", err)
		dates, err = marketdata.WeekdayCalendar{}.TradingDates(ctx, now.AddDate(0, 0, -14), now)
		if err != nil || len(dates) == 0 {
			return time.Time{}, err
		}
	}
	return time.Parse("20060102", dates[len(dates)-1])
}
