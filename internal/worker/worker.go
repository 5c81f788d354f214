package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quantworker/internal/domain"
	"quantworker/internal/engine"
	"quantworker/internal/marketdata"
	"quantworker/internal/result"
	"quantworker/internal/strategy"
)

// State is the task client's position in the processing lifecycle. It is
// advanced only by the main loop, never from signal handlers.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateTaskFound
	StateClaimed
	StateExecuting
	StateReportingSuccess
	StateReportingFailure
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateTaskFound:
		return "task_found"
	case StateClaimed:
		return "claimed"
	case StateExecuting:
		return "executing"
	case StateReportingSuccess:
		return "reporting_success"
	case StateReportingFailure:
		return "reporting_failure"
	}
	return "unknown"
}

// failurePrefix leads every error message reported to the queue.
const failurePrefix = "Backtest execution failed: "

// Options configures a Worker.
type Options struct {
	WorkerID     string
	PollInterval time.Duration
	Commission   engine.CommissionScheme
}

// Worker is the task client: it polls the queue, claims one task at a time,
// runs the simulation, and reports the outcome. One task is in flight per
// worker at any moment.
type Worker struct {
	queue    *QueueClient
	registry *strategy.Registry
	runner   *engine.Runner
	source   marketdata.BarSource
	opts     Options
	log      *slog.Logger

	state State
}

// AutoWorkerID generates a timestamp-based identity for workers started
// without an explicit one.
func AutoWorkerID() string {
	return "worker_" + time.Now().Format("20060102_150405")
}

// New creates a Worker. opts.WorkerID must already be resolved (see
// AutoWorkerID) and must match the identity the queue client sends.
func New(queue *QueueClient, registry *strategy.Registry, runner *engine.Runner, source marketdata.BarSource, opts Options, logger *slog.Logger) *Worker {
	return &Worker{
		queue:    queue,
		registry: registry,
		runner:   runner,
		source:   source,
		opts:     opts,
		log:      logger.With("worker_id", opts.WorkerID),
		state:    StateIdle,
	}
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() State { return w.state }

// Run is the main worker loop: poll, process, wait, repeat. It returns when
// ctx is cancelled. Cancellation is only honored between iterations; an
// in-flight simulation runs to completion.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started", "poll_interval", w.opts.PollInterval)

	for {
		if err := ctx.Err(); err != nil {
			w.log.Info("worker stopping")
			return err
		}

		task := w.pollOnce(ctx)
		if task != nil {
			w.ProcessTask(ctx, task)
			w.state = StateIdle
			continue
		}

		select {
		case <-ctx.Done():
			w.log.Info("worker stopping")
			return ctx.Err()
		case <-time.After(w.opts.PollInterval):
		}
	}
}

// RunOnce performs a single poll and, if a task is available, processes it.
// Used by the --test mode to verify connectivity without entering the loop.
func (w *Worker) RunOnce(ctx context.Context) error {
	task := w.pollOnce(ctx)
	if task == nil {
		w.log.Info("no pending tasks")
		w.state = StateIdle
		return nil
	}
	w.ProcessTask(ctx, task)
	w.state = StateIdle
	return nil
}

// pollOnce issues one poll. Poll errors are logged and swallowed; a single
// failed poll never crashes the loop.
func (w *Worker) pollOnce(ctx context.Context) *domain.Task {
	w.state = StatePolling
	task, err := w.queue.Poll(ctx)
	if err != nil {
		w.log.Error("poll failed", "error", err)
		w.state = StateIdle
		return nil
	}
	if task == nil {
		w.state = StateIdle
		return nil
	}
	w.state = StateTaskFound
	w.log.Info("found pending task", "task_id", task.TaskID, "symbol", task.Symbol, "strategy", task.StrategyKey)
	return task
}

// ProcessTask claims and executes one task, reporting the outcome. It
// returns true only when the task ran and its result was reported
// successfully. A failed claim abandons the task without a failure report,
// since another worker may have claimed it first.
func (w *Worker) ProcessTask(ctx context.Context, task *domain.Task) bool {
	if err := w.queue.Claim(ctx, task.TaskID); err != nil {
		w.log.Warn("could not claim task, skipping", "task_id", task.TaskID, "error", err)
		return false
	}
	w.state = StateClaimed

	doc, err := w.execute(ctx, task)
	if err != nil {
		w.state = StateReportingFailure
		msg := failurePrefix + err.Error()
		w.log.Error("task failed", "task_id", task.TaskID, "error", err)
		if reportErr := w.queue.ReportFailure(ctx, task.TaskID, msg); reportErr != nil {
			w.log.Error("failure report not delivered", "task_id", task.TaskID, "error", reportErr)
		}
		return false
	}

	w.state = StateReportingSuccess
	if err := w.queue.ReportSuccess(ctx, task.TaskID, doc); err != nil {
		w.log.Error("result report not delivered", "task_id", task.TaskID, "error", err)
		return false
	}
	w.log.Info("task completed", "task_id", task.TaskID, "symbol", task.Symbol,
		"trades", len(doc.Trades), "final_value", doc.FinalValue)
	return true
}

// execute resolves the strategy, fetches price history, and runs the
// simulation through to a normalized result document.
func (w *Worker) execute(ctx context.Context, task *domain.Task) (*domain.ResultDocument, error) {
	key, err := strategy.ResolveStrategyKey(task.StrategyKey, task.PresetName)
	if err != nil {
		return nil, err
	}
	desc, err := w.registry.Get(key)
	if err != nil {
		return nil, err
	}
	w.state = StateExecuting

	start, err := time.Parse("20060102", task.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", task.StartDate, err)
	}
	end, err := time.Parse("20060102", task.EndDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", task.EndDate, err)
	}

	params, err := strategy.ResolveParams(desc.Defaults, task.PresetName, task.StrategyParams)
	if err != nil {
		return nil, err
	}
	// Strategies can behave differently live vs in simulation; tell them
	// which mode they are in.
	params["worker_mode"] = "backtest"

	strat, err := desc.New(params)
	if err != nil {
		return nil, fmt.Errorf("constructing strategy %s: %w", key, err)
	}

	bars, err := w.source.FetchFrame(ctx, task.Symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching price history: %w", err)
	}

	initialCash := task.InitialCash
	if initialCash <= 0 {
		initialCash = 1_000_000
	}

	run, err := w.runner.Run(ctx, strat, engine.SimulationRequest{
		Symbol:      task.Symbol,
		Bars:        bars,
		InitialCash: initialCash,
		Commission:  w.opts.Commission,
		MinBars:     strategy.EstimateMinBars(desc, params),
	})
	if err != nil {
		return nil, err
	}

	return result.Normalize(run, result.RunInfo{
		StartDate:    task.StartDate,
		EndDate:      task.EndDate,
		StrategyName: strat.Name(),
	}), nil
}
