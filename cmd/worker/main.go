// Command worker polls the remote task queue for pending backtest tasks,
// executes them, and reports results back.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quantworker/internal/config"
	"quantworker/internal/engine"
	"quantworker/internal/marketdata"
	"quantworker/internal/store"
	"quantworker/internal/strategy/builtins"
	"quantworker/internal/util"
	"quantworker/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "config/quantworker.yaml", "path to config file")
	apiBase := flag.String("api-base", "", "queue API base URL (overrides config)")
	workerID := flag.String("worker-id", "", "worker identity (overrides config, auto-generated if empty)")
	pollInterval := flag.Int("poll-interval", 0, "seconds between polls (overrides config)")
	token := flag.String("token", "", "queue API token (overrides config)")
	testMode := flag.Bool("test", false, "poll once and exit without entering the loop")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = config.Default()
	}
	if *apiBase != "" {
		cfg.Worker.APIBase = *apiBase
	}
	if *workerID != "" {
		cfg.Worker.WorkerID = *workerID
	}
	if *pollInterval > 0 {
		cfg.Worker.PollIntervalSecs = *pollInterval
	}
	if *token != "" {
		cfg.Worker.APIToken = *token
	}
	if cfg.Worker.WorkerID == "" {
		cfg.Worker.WorkerID = worker.AutoWorkerID()
	}

	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	registry, err := builtins.NewRegistry()
	if err != nil {
		log.Fatalf("building strategy registry: %v", err)
	}

	source := newBarSource(cfg, logger)
	queue := worker.NewQueueClient(cfg.Worker.APIBase, cfg.Worker.APIToken, cfg.Worker.WorkerID)

	w := worker.New(queue, registry, engine.NewRunner(logger), source, worker.Options{
		WorkerID:     cfg.Worker.WorkerID,
		PollInterval: time.Duration(cfg.Worker.PollIntervalSecs) * time.Second,
		Commission:   engine.DefaultCommission(),
	}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *testMode {
		logger.Info("test mode: polling once", "api_base", cfg.Worker.APIBase)
		if err := w.RunOnce(ctx); err != nil {
			log.Fatalf("test poll failed: %v", err)
		}
		return
	}

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker error: %v", err)
	}
}

// newBarSource selects the configured price-history source.
func newBarSource(cfg *config.Config, logger *slog.Logger) marketdata.BarSource {
	if cfg.MarketData.Source == "alpaca" {
		return marketdata.NewAlpacaSource(marketdata.AlpacaOpts{
			APIKey:          cfg.Alpaca.APIKey,
			APISecret:       cfg.Alpaca.APISecret,
			BaseURL:         cfg.Alpaca.BaseURL,
			DataURL:         cfg.Alpaca.DataURL,
			RateLimitPerMin: cfg.MarketData.RateLimitPerMin,
		}, logger)
	}
	return marketdata.NewParquetSource(store.NewParquetStore(cfg.Storage.DataDir), cfg.MarketData.Market)
}
