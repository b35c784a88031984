package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/samarth-org/samarth/dataset"
)

// ============================================================================
// EXECUTOR — Sandboxed execution of generated analysis programs
// ============================================================================
// Entry point: Execute(ctx, code)
//
// Pipeline:
//   1. Validate the raw text (forbidden-token scan + schema checks)
//   2. Submit to a bounded worker pool under a wall-clock deadline
//   3. Apply filters → SubView (zero data copy)
//   4. Group and aggregate, missing-aware, within the group budget
//   5. Return an ExecutionResult — value or typed failure, never a panic
//
// This function never calls an AI service. All computation is local,
// against the frozen analytic table. Failures carry the original error
// text so the caller can feed it back into regeneration.
// ============================================================================

// Default resource limits, used where Config leaves a field zero.
const (
	defaultTimeout   = 5 * time.Second
	defaultMaxGroups = 1000
	defaultMaxRows   = 50
	defaultWorkers   = 4
)

// Limits bounds a single program execution.
type Limits struct {
	// Timeout is the wall-clock budget per execution.
	Timeout time.Duration
	// MaxGroups caps how many aggregation buckets a program may create.
	MaxGroups int
	// MaxRows caps the tabular result snippet.
	MaxRows int
}

func (l Limits) withDefaults() Limits {
	if l.Timeout <= 0 {
		l.Timeout = defaultTimeout
	}
	if l.MaxGroups <= 0 {
		l.MaxGroups = defaultMaxGroups
	}
	if l.MaxRows <= 0 {
		l.MaxRows = defaultMaxRows
	}
	return l
}

// Config wires an Executor to its table and limits.
type Config struct {
	Logger  *slog.Logger
	Table   *dataset.AnalyticTable
	Schema  dataset.Schema
	Limits  Limits
	Workers int
}

// Executor runs validated programs against one frozen table. Safe for
// concurrent use; concurrency is bounded by the worker pool.
type Executor struct {
	log    *slog.Logger
	view   TableView
	schema dataset.Schema
	limits Limits
	pool   pond.ResultPool[ExecutionResult]
}

// NewExecutor builds an executor over a frozen table.
func NewExecutor(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Executor{
		log:    logger,
		view:   NewTableView(cfg.Table),
		schema: cfg.Schema,
		limits: cfg.Limits.withDefaults(),
		pool:   pond.NewResultPool[ExecutionResult](workers),
	}
}

// Close drains the worker pool. Pending executions finish first.
func (e *Executor) Close() {
	e.pool.StopAndWait()
}

// Execute validates and runs one generated program. The result is
// always an ExecutionResult; validation rejects, panics and budget
// violations become typed failures, never errors or crashes.
func (e *Executor) Execute(ctx context.Context, code string) ExecutionResult {
	program, err := ValidateProgram(code, e.schema)
	if err != nil {
		e.log.Debug("program rejected", "error", err)
		return Failure(FailureExecution, "%s", err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, e.limits.Timeout)
	defer cancel()

	task := e.pool.SubmitErr(func() (ExecutionResult, error) {
		return e.run(ctx, program), nil
	})
	result, err := task.Wait()
	if err != nil {
		// SubmitErr never returns an error from run; this is the pool
		// rejecting the task (stopped or saturated).
		return Failure(FailureResource, "executor unavailable: %s", err.Error())
	}

	e.log.Debug("program executed",
		"ok", result.OK,
		"metric", program.Metric,
		"aggregation", program.Aggregation,
		"groupBy", program.GroupBy)
	return result
}

// run executes a validated program. A panic inside the pipeline is
// converted to an execution failure.
func (e *Executor) run(ctx context.Context, p *Program) (result ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("program panicked", "panic", r)
			result = Failure(FailureExecution, "program panicked: %v", r)
		}
	}()

	filtered := ApplyFilters(e.view, p.Filters)

	value, err := aggregate(ctx, filtered, p, e.unitFor(p), e.limits.MaxGroups)
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errGroupBudget):
		return Failure(FailureResource, "%s", err.Error())
	case err != nil:
		return Failure(FailureExecution, "%s", err.Error())
	}

	if value.Kind == ValueTable && len(value.Rows) > e.limits.MaxRows {
		value.Rows = value.Rows[:e.limits.MaxRows]
	}
	return Success(value)
}

// unitFor looks up the display unit of the program's metric. Counts are
// unitless regardless of metric.
func (e *Executor) unitFor(p *Program) string {
	if p.Aggregation == "count" {
		return ""
	}
	for _, m := range e.schema.Metrics {
		if m.Key == p.Metric {
			return m.Unit
		}
	}
	return ""
}
