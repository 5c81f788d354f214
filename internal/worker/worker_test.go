package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"quantworker/internal/domain"
	"quantworker/internal/engine"
	"quantworker/internal/strategy"
	"quantworker/internal/strategy/builtins"
)

// fakeQueue is an in-memory queue server recording everything the worker
// sends it.
type fakeQueue struct {
	mu         sync.Mutex
	pollStatus int
	pollBody   string
	claimOK    bool
	claims     []string
	reports    []domain.ResultDocument
	failures   []map[string]string
	lastAuth   string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{pollStatus: http.StatusNoContent, claimOK: true}
}

func (q *fakeQueue) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/backtest/tasks/pending/poll", func(w http.ResponseWriter, r *http.Request) {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.lastAuth = r.Header.Get("Authorization")
		if q.pollStatus != http.StatusOK {
			w.WriteHeader(q.pollStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, q.pollBody)
	})
	mux.HandleFunc("POST /api/backtest/tasks/{id}/claim", func(w http.ResponseWriter, r *http.Request) {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.claims = append(q.claims, r.PathValue("id"))
		if !q.claimOK {
			w.WriteHeader(http.StatusConflict)
		}
	})
	mux.HandleFunc("POST /api/backtest/tasks/{id}/report", func(w http.ResponseWriter, r *http.Request) {
		var doc domain.ResultDocument
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			t.Errorf("bad report body: %v", err)
		}
		q.mu.Lock()
		defer q.mu.Unlock()
		q.reports = append(q.reports, doc)
	})
	mux.HandleFunc("POST /api/backtest/tasks/{id}/fail", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("bad fail body: %v", err)
		}
		q.mu.Lock()
		defer q.mu.Unlock()
		q.failures = append(q.failures, payload)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// idleStrategy trades nothing; it exists to exercise the task lifecycle.
type idleStrategy struct{}

func (idleStrategy) Name() string { return "Idle" }

func (idleStrategy) Init(context.Context, strategy.AccountView) error { return nil }
func (idleStrategy) OnBar(context.Context, domain.Bar) ([]domain.Signal, error) {
	return nil, nil
}

// fakeSource serves a fixed number of flat bars for any symbol.
type fakeSource struct{ bars int }

func (f fakeSource) FetchFrame(_ context.Context, symbol string, start, _ time.Time) ([]domain.Bar, error) {
	bars := make([]domain.Bar, f.bars)
	for i := range bars {
		bars[i] = domain.Bar{
			Symbol:    symbol,
			Timestamp: start.AddDate(0, 0, i),
			Open:      10, High: 10, Low: 10, Close: 10,
			Volume: 1000,
		}
	}
	return bars, nil
}

func (f fakeSource) FetchNames(context.Context, []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func testWorker(t *testing.T, q *fakeQueue) *Worker {
	t.Helper()
	registry, err := strategy.NewRegistry(strategy.Descriptor{
		Key:     "idle",
		MinBars: 1,
		New:     func(map[string]any) (strategy.Strategy, error) { return idleStrategy{}, nil },
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return testWorkerWithRegistry(t, q, registry)
}

func testWorkerWithRegistry(t *testing.T, q *fakeQueue, registry *strategy.Registry) *Worker {
	t.Helper()
	srv := q.server(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(
		NewQueueClient(srv.URL+"/api", "test_token", "worker_test"),
		registry,
		engine.NewRunner(logger),
		fakeSource{bars: 5},
		Options{WorkerID: "worker_test", PollInterval: time.Second, Commission: engine.DefaultCommission()},
		logger,
	)
}

func testTask(key string) string {
	return `{"task_id":"t1","symbol":"TEST","strategy_key":"` + key + `",` +
		`"start_date":"20240101","end_date":"20240131","strategy_params":{},"initial_cash":10000}`
}

func TestPollNoContent(t *testing.T) {
	q := newFakeQueue()
	w := testWorker(t, q)

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(q.claims) != 0 || len(q.reports) != 0 {
		t.Error("a 204 poll must not claim or report anything")
	}
	if !strings.HasPrefix(q.lastAuth, "Bearer test_token") {
		t.Errorf("auth header = %q, want bearer token", q.lastAuth)
	}
	if w.State() != StateIdle {
		t.Errorf("state = %s, want idle", w.State())
	}
}

func TestPollAcceptsListAndObject(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string // expected task id, "" for none
	}{
		{"object", testTask("idle"), "t1"},
		{"list", "[" + testTask("idle") + "]", "t1"},
		{"empty list", "[]", ""},
		{"empty object", "{}", ""},
		{"list of empty object", "[{}]", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task, err := decodeTask([]byte(tc.body))
			if err != nil {
				t.Fatalf("decodeTask: %v", err)
			}
			switch {
			case tc.want == "" && task != nil:
				t.Errorf("task = %+v, want nil", task)
			case tc.want != "" && (task == nil || task.TaskID != tc.want):
				t.Errorf("task = %+v, want id %s", task, tc.want)
			}
		})
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	q := newFakeQueue()
	q.pollStatus = http.StatusOK
	q.pollBody = testTask("idle")
	w := testWorker(t, q)

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(q.claims) != 1 || q.claims[0] != "t1" {
		t.Fatalf("claims = %v, want [t1]", q.claims)
	}
	if len(q.reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(q.reports))
	}
	doc := q.reports[0]
	if doc.Symbol != "TEST" || doc.InitialCash != 10000 {
		t.Errorf("report doc = %+v", doc)
	}
	if doc.TotalProfit != doc.FinalValue-doc.InitialCash {
		t.Error("reported TotalProfit must equal FinalValue - InitialCash")
	}
	if len(q.failures) != 0 {
		t.Errorf("failures = %v, want none", q.failures)
	}
}

func TestProcessTaskPresetOverridesStrategy(t *testing.T) {
	q := newFakeQueue()
	q.pollStatus = http.StatusOK
	q.pollBody = `{"task_id":"t3","symbol":"TEST","strategy_key":"turtle",` +
		`"preset_name":"grid_default","start_date":"20240101","end_date":"20240131",` +
		`"strategy_params":{},"initial_cash":10000}`

	registry, err := builtins.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	w := testWorkerWithRegistry(t, q, registry)

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(q.failures) != 0 {
		t.Fatalf("failures = %v, want none", q.failures)
	}
	if len(q.reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(q.reports))
	}
	// The preset is bound to the grid strategy, so it runs instead of turtle.
	if got := q.reports[0].StrategyName; got != "Grid Trading" {
		t.Errorf("strategy run = %q, want %q", got, "Grid Trading")
	}
}

func TestProcessTaskUnknownStrategy(t *testing.T) {
	q := newFakeQueue()
	w := testWorker(t, q)

	task := &domain.Task{
		TaskID:      "t9",
		Symbol:      "TEST",
		StrategyKey: "unknown_strategy",
		StartDate:   "20240101",
		EndDate:     "20240131",
	}
	if ok := w.ProcessTask(context.Background(), task); ok {
		t.Fatal("ProcessTask should return false for an unknown strategy")
	}

	if len(q.failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(q.failures))
	}
	msg := q.failures[0]["error_message"]
	if !strings.HasPrefix(msg, "Backtest execution failed: ") {
		t.Errorf("failure message %q missing standard prefix", msg)
	}
	if !strings.Contains(msg, "Unknown strategy") {
		t.Errorf("failure message %q should name the unknown strategy", msg)
	}
	if !strings.Contains(msg, "idle") {
		t.Errorf("failure message %q should list known keys", msg)
	}
	if q.failures[0]["worker_id"] != "worker_test" {
		t.Errorf("failure worker_id = %q", q.failures[0]["worker_id"])
	}
	if len(q.reports) != 0 {
		t.Error("a failed task must not post a success report")
	}
}

func TestProcessTaskClaimLost(t *testing.T) {
	q := newFakeQueue()
	q.claimOK = false
	w := testWorker(t, q)

	task := &domain.Task{TaskID: "t2", Symbol: "TEST", StrategyKey: "idle",
		StartDate: "20240101", EndDate: "20240131"}
	if ok := w.ProcessTask(context.Background(), task); ok {
		t.Fatal("ProcessTask should return false when the claim is lost")
	}

	// A lost claim is abandoned silently: no failure report, the other
	// worker owns it now.
	if len(q.failures) != 0 || len(q.reports) != 0 {
		t.Errorf("failures=%v reports=%d, want none", q.failures, len(q.reports))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	q := newFakeQueue()
	w := testWorker(t, q)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestAutoWorkerID(t *testing.T) {
	id := AutoWorkerID()
	if !strings.HasPrefix(id, "worker_") {
		t.Errorf("id = %q, want worker_ prefix", id)
	}
	if len(id) != len("worker_20060102_150405") {
		t.Errorf("id = %q, want timestamp format", id)
	}
}
