// Command fetch backfills daily bars from the Alpaca data API into the local
// Parquet store.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quantworker/internal/config"
	"quantworker/internal/marketdata"
	"quantworker/internal/store"
	"quantworker/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/quantworker.yaml", "path to config file")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols to fetch (default: refresh every symbol with local data)")
	startFlag := flag.String("start", "", "start date YYYY-MM-DD (default: 1 year back)")
	endFlag := flag.String("end", "", "end date YYYY-MM-DD (default: today)")
	batchSize := flag.Int("batch-size", 0, "symbols per API call (overrides default)")
	workers := flag.Int("workers", 0, "concurrent fetch workers (overrides default)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = config.Default()
	}
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("alpaca credentials are required (set APCA_API_KEY_ID / APCA_API_SECRET_KEY)")
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	end := time.Now()
	if *endFlag != "" {
		if end, err = time.Parse("2006-01-02", *endFlag); err != nil {
			log.Fatalf("invalid -end: %v", err)
		}
	}
	start := end.AddDate(-1, 0, 0)
	if *startFlag != "" {
		if start, err = time.Parse("2006-01-02", *startFlag); err != nil {
			log.Fatalf("invalid -start: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	barStore := store.NewParquetStore(cfg.Storage.DataDir)

	var symbols []string
	if *symbolsFlag != "" {
		for _, s := range strings.Split(*symbolsFlag, ",") {
			if s = strings.TrimSpace(strings.ToUpper(s)); s != "" {
				symbols = append(symbols, s)
			}
		}
	} else {
		if symbols, err = barStore.ListSymbols(ctx, cfg.MarketData.Market); err != nil {
			log.Fatalf("listing symbols: %v", err)
		}
	}
	if len(symbols) == 0 {
		log.Fatal("no symbols to fetch: pass -symbols for the first backfill")
	}

	fetcher := marketdata.NewFetcher(marketdata.FetcherOpts{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		Market:          cfg.MarketData.Market,
		BatchSize:       *batchSize,
		Workers:         *workers,
		RateLimitPerMin: cfg.MarketData.RateLimitPerMin,
	}, barStore, logger)

	logger.Info("backfill started",
		"symbols", len(symbols),
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"))

	stats, err := fetcher.Backfill(ctx, symbols, start, end)
	if err != nil {
		log.Fatalf("backfill aborted: %v", err)
	}

	logger.Info("backfill done",
		"symbols", stats.Symbols,
		"with_data", stats.WithData,
		"empty", stats.Empty,
		"bars", stats.Bars)
}
