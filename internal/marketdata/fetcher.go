package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"quantworker/internal/domain"
	"quantworker/internal/store"
	"quantworker/internal/util"
)

// Fetcher backfills daily bars from the Alpaca data API into the local bar
// store so screenings can run without touching the network.
type Fetcher struct {
	data      *marketdata.Client
	store     store.BarStore
	limiter   *util.RateLimiter
	market    string
	batchSize int
	workers   int
	log       *slog.Logger
}

// FetcherOpts configures a Fetcher. Zero batch/worker values fall back to
// conservative defaults.
type FetcherOpts struct {
	APIKey          string
	APISecret       string
	DataURL         string
	Market          string
	BatchSize       int
	Workers         int
	RateLimitPerMin int
}

// FetchStats summarizes one backfill run.
type FetchStats struct {
	Symbols  int
	WithData int
	Empty    int
	Bars     int64
}

// NewFetcher creates a Fetcher writing to the given bar store.
func NewFetcher(opts FetcherOpts, s store.BarStore, logger *slog.Logger) *Fetcher {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		clientOpts.BaseURL = opts.DataURL
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	perMin := opts.RateLimitPerMin
	if perMin <= 0 {
		perMin = 200
	}

	return &Fetcher{
		data:      marketdata.NewClient(clientOpts),
		store:     s,
		limiter:   util.NewRateLimiter(perMin),
		market:    opts.Market,
		batchSize: batchSize,
		workers:   workers,
		log:       logger.With("component", "fetcher"),
	}
}

// Backfill fetches daily bars for every symbol in [start, end] and merges
// them into the store. Batches are independent, so a failed batch is logged
// and skipped rather than aborting the run.
func (f *Fetcher) Backfill(ctx context.Context, symbols []string, start, end time.Time) (FetchStats, error) {
	stats := FetchStats{Symbols: len(symbols)}
	batches := splitBatches(symbols, f.batchSize)
	if len(batches) == 0 {
		return stats, nil
	}

	batchCh := make(chan []string, len(batches))
	for _, b := range batches {
		batchCh <- b
	}
	close(batchCh)

	var (
		wg       sync.WaitGroup
		withData atomic.Int64
		empty    atomic.Int64
		total    atomic.Int64
		runStart = time.Now()
	)

	workers := min(f.workers, len(batches))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batchCh {
				if ctx.Err() != nil {
					return
				}

				bars, err := f.fetchBatch(ctx, batch, start, end)
				if err != nil {
					f.log.Error("batch fetch failed", "symbols", len(batch), "error", err)
					continue
				}

				hits := make(map[string]struct{})
				for _, b := range bars {
					hits[b.Symbol] = struct{}{}
				}

				if len(bars) > 0 {
					if err := f.store.WriteBars(ctx, bars, f.market); err != nil {
						f.log.Error("writing bars failed", "error", err)
						continue
					}
				}

				withData.Add(int64(len(hits)))
				empty.Add(int64(len(batch) - len(hits)))
				total.Add(int64(len(bars)))
				f.log.Info("batch done",
					"symbols", len(batch),
					"with_data", len(hits),
					"bars", len(bars),
					"elapsed", time.Since(runStart).Round(time.Second))
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	stats.WithData = int(withData.Load())
	stats.Empty = int(empty.Load())
	stats.Bars = total.Load()
	return stats, nil
}

// fetchBatch pulls one batch through GetMultiBars, rate-limited and retried.
func (f *Fetcher) fetchBatch(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var multi map[string][]marketdata.Bar
	err := util.Retry(ctx, alpacaRetryAttempts, alpacaRetryDelay, func() error {
		var fetchErr error
		multi, fetchErr = f.data.GetMultiBars(symbols, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      "sip",
		})
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, raw := range multi {
		for _, b := range raw {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  b.Timestamp,
				Open:       b.Open,
				High:       b.High,
				Low:        b.Low,
				Close:      b.Close,
				Volume:     int64(b.Volume),
				TradeCount: int64(b.TradeCount),
				VWAP:       b.VWAP,
			})
		}
	}
	return bars, nil
}

// splitBatches chops symbols into batchSize-long chunks.
func splitBatches(symbols []string, batchSize int) [][]string {
	var batches [][]string
	for i := 0; i < len(symbols); i += batchSize {
		batches = append(batches, symbols[i:min(i+batchSize, len(symbols))])
	}
	return batches
}
