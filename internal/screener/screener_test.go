package screener

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"quantworker/internal/domain"
	"quantworker/internal/engine"
	"quantworker/internal/strategy"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// flipper alternates between buying a fixed lot and liquidating, producing a
// closed trade every two bars.
type flipper struct{ acct strategy.AccountView }

func (f *flipper) Name() string { return "Flipper" }

func (f *flipper) Init(_ context.Context, acct strategy.AccountView) error {
	f.acct = acct
	return nil
}

func (f *flipper) OnBar(_ context.Context, _ domain.Bar) ([]domain.Signal, error) {
	if pos := f.acct.Position(); pos > 0 {
		return []domain.Signal{{Action: domain.ActionSell, Quantity: pos}}, nil
	}
	return []domain.Signal{{Action: domain.ActionBuy, Quantity: 10}}, nil
}

// memSource serves canned frames; "BROKEN" always errors.
type memSource struct{ frames map[string][]domain.Bar }

func (m memSource) FetchFrame(_ context.Context, symbol string, _, _ time.Time) ([]domain.Bar, error) {
	if symbol == "BROKEN" {
		return nil, errors.New("connection reset")
	}
	return m.frames[symbol], nil
}

func (m memSource) FetchNames(_ context.Context, symbols []string) (map[string]string, error) {
	names := make(map[string]string, len(symbols))
	for _, s := range symbols {
		names[s] = "Name of " + s
	}
	return names, nil
}

// memDocs records upserts without deduplication; test keys are unique.
type memDocs struct {
	pool    []domain.StockPoolRecord
	history []domain.TradeHistoryRecord
}

func (d *memDocs) UpsertStockPool(_ context.Context, rec domain.StockPoolRecord) error {
	d.pool = append(d.pool, rec)
	return nil
}

func (d *memDocs) UpsertTradeHistory(_ context.Context, rec domain.TradeHistoryRecord) error {
	d.history = append(d.history, rec)
	return nil
}

func (d *memDocs) Close() error { return nil }

func risingBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		c := 10 + float64(i)
		bars[i] = domain.Bar{
			Symbol:    "X",
			Timestamp: day0.AddDate(0, 0, i),
			Open:      c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
	}
	return bars
}

func testScreener(t *testing.T, docs *memDocs) *Screener {
	t.Helper()
	registry, err := strategy.NewRegistry(strategy.Descriptor{
		Key:     "flipper",
		MinBars: 1,
		New:     func(map[string]any) (strategy.Strategy, error) { return &flipper{}, nil },
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	source := memSource{frames: map[string][]domain.Bar{
		"CAND":   risingBars(31), // final bar lands on a buy
		"HIST":   risingBars(30), // final bar lands on a sell
		"NODATA": nil,
		"FEW":    risingBars(3), // one closed trade only
	}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(source, docs, registry, engine.NewRunner(logger), logger)
}

func baseOptions() Options {
	return Options{
		Strategy:    "flipper",
		StartDate:   day0,
		EndDate:     day0.AddDate(0, 0, 30),
		InitialCash: 100_000,
		MinTrades:   2,
	}
}

func TestRunCounters(t *testing.T) {
	docs := &memDocs{}
	s := testScreener(t, docs)

	symbols := []string{"CAND", "HIST", "NODATA", "FEW", "BROKEN"}
	c, err := s.Run(context.Background(), symbols, baseOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := Counters{Total: 5, Candidates: 1, SkippedNoData: 1, SkippedPerformance: 1, Errors: 1}
	if c != want {
		t.Errorf("counters = %+v, want %+v", c, want)
	}
}

func TestRunPersistsQualifyingSymbols(t *testing.T) {
	docs := &memDocs{}
	s := testScreener(t, docs)

	c, err := s.Run(context.Background(), []string{"CAND", "HIST"}, baseOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Both symbols qualify, so every trade lands in history.
	if len(docs.history) != 61 {
		t.Errorf("history rows = %d, want 61 (31 + 30 fills)", len(docs.history))
	}

	// Only the final trading day's BUY becomes a pool record by default.
	if len(docs.pool) != 1 {
		t.Fatalf("pool rows = %d, want 1", len(docs.pool))
	}
	rec := docs.pool[0]
	if rec.Symbol != "CAND" || rec.Date != "20240131" {
		t.Errorf("pool record = %+v, want CAND on 20240131", rec)
	}
	if rec.Name != "Name of CAND" {
		t.Errorf("pool name = %q", rec.Name)
	}
	if rec.HistTotalTrades < 2 || rec.HistWinRate <= 0 {
		t.Errorf("pool metrics snapshot = %+v", rec)
	}
	if c.Candidates != 1 {
		t.Errorf("candidates = %d, want 1", c.Candidates)
	}

	for _, h := range docs.history {
		if h.Action != "BUY" && h.Action != "SELL" {
			t.Errorf("history action = %q, want BUY or SELL", h.Action)
		}
	}
}

func TestRunSyncAllBackfillsPool(t *testing.T) {
	docs := &memDocs{}
	s := testScreener(t, docs)

	opts := baseOptions()
	opts.SyncAll = true
	if _, err := s.Run(context.Background(), []string{"CAND", "HIST"}, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Every historical BUY is backfilled: 16 for CAND, 15 for HIST.
	if len(docs.pool) != 31 {
		t.Errorf("pool rows = %d, want 31 with sync_all", len(docs.pool))
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	docs := &memDocs{}
	s := testScreener(t, docs)

	opts := baseOptions()
	opts.DryRun = true
	c, err := s.Run(context.Background(), []string{"CAND"}, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(docs.pool) != 0 || len(docs.history) != 0 {
		t.Errorf("dry run wrote pool=%d history=%d rows", len(docs.pool), len(docs.history))
	}
	if c.Candidates != 1 {
		t.Errorf("dry run candidates = %d, want 1 (still counted)", c.Candidates)
	}
}

func TestRunMinReturnFilter(t *testing.T) {
	docs := &memDocs{}
	s := testScreener(t, docs)

	opts := baseOptions()
	high := 10.0 // 1000% return, nothing qualifies
	opts.MinReturn = &high

	c, err := s.Run(context.Background(), []string{"CAND", "HIST"}, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c.SkippedPerformance != 2 || c.Candidates != 0 {
		t.Errorf("counters = %+v, want both symbols filtered", c)
	}
}

func TestRunUnknownStrategyFatal(t *testing.T) {
	s := testScreener(t, &memDocs{})

	opts := baseOptions()
	opts.Strategy = "nope"
	if _, err := s.Run(context.Background(), []string{"CAND"}, opts); !errors.Is(err, domain.ErrUnknownStrategy) {
		t.Fatalf("err = %v, want ErrUnknownStrategy", err)
	}
}
