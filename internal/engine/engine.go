// Package engine drives a task graph to completion.
//
// Execution proceeds in rounds. Each round dispatches every runnable task
// concurrently, waits for all of them to settle, and folds the outcomes
// back into the graph before the next round computes its runnable set. A
// task in round N+1 therefore only ever sees dependencies that settled in
// an earlier round.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/Kingmaker16/codex-os/internal/domain"
	"github.com/Kingmaker16/codex-os/internal/errors"
	"github.com/Kingmaker16/codex-os/internal/graph"
	"github.com/Kingmaker16/codex-os/internal/hooks"
	"github.com/Kingmaker16/codex-os/internal/invoke"
	"github.com/Kingmaker16/codex-os/internal/log"
	"github.com/Kingmaker16/codex-os/internal/route"
	"github.com/Kingmaker16/codex-os/internal/telemetry"
)

// Planner resolves the collaborator for a task.
type Planner interface {
	PlanRoute(task graph.Task) (route.Target, error)
}

// Enricher builds the payload dispatched for a task.
type Enricher interface {
	Enrich(task graph.Task, results map[string]json.RawMessage) (map[string]any, error)
}

// Engine executes graphs. One Engine may run many graphs concurrently, but
// a single graph is only ever executed by one call at a time.
type Engine struct {
	planner  Planner
	enricher Enricher
	invoker  invoke.Invoker
	opts     Options
	logger   *log.Logger
}

// New creates an Engine.
func New(planner Planner, enricher Enricher, invoker invoke.Invoker, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		planner:  planner,
		enricher: enricher,
		invoker:  invoker,
		opts:     opts,
		logger:   opts.Logger.With("component", "engine"),
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// dispatch is a task that passed routing and enrichment.
type dispatch struct {
	task    graph.Task
	target  route.Target
	payload map[string]any
}

type outcome struct {
	result   json.RawMessage
	err      error
	duration time.Duration
}

// Execute runs g until it is complete, stuck, capped by MaxIterations or
// ctx is cancelled, mutating g in place. Stuck and capped graphs are not
// errors; inspect the report or the task statuses. On cancellation the
// report is returned together with ctx.Err(). A graph already being
// executed is rejected with an error matching errors.ErrGraphInUse.
func (e *Engine) Execute(ctx context.Context, g *graph.Graph) (*Report, error) {
	if !g.TryAcquire() {
		return nil, errors.NewGraphInUseError(g.ID)
	}
	defer g.Release()

	report := &Report{
		RunID:       uuid.NewString(),
		GraphID:     g.ID,
		Fingerprint: g.Fingerprint(),
		StartedAt:   time.Now().UTC(),
	}
	logger := e.logger.With("graph_id", g.ID, "run_id", report.RunID)

	ctx, span := telemetry.StartGraphSpan(ctx, g.ID, len(g.Tasks))
	defer span.End()

	e.opts.Metrics.ExecutionStarted()
	defer e.opts.Metrics.ExecutionFinished()

	logger.InfoContext(ctx, "execution started", "tasks", len(g.Tasks))
	e.notify(ctx, hooks.EventGraphStarted, g.ID, report.RunID, map[string]any{"tasks": len(g.Tasks)})
	defer func() {
		e.notify(ctx, hooks.EventGraphFinished, g.ID, report.RunID, map[string]any{
			"outcome": report.Outcome,
			"rounds":  report.Rounds,
			"counts":  report.Counts,
		})
	}()

	for !g.IsComplete() && report.Rounds < e.opts.MaxIterations {
		if ctx.Err() != nil {
			break
		}
		runnable := g.RunnableTasks()
		if len(runnable) == 0 {
			break
		}
		report.Rounds++
		e.runRound(ctx, logger, g, report, runnable)
	}

	report.Duration = time.Since(report.StartedAt)
	report.Counts = g.Summary()
	report.Outcome = e.outcome(ctx, g, report.Rounds)

	span.SetAttributes(
		attribute.Int("graph.rounds", report.Rounds),
		attribute.String("graph.outcome", string(report.Outcome)),
	)
	e.opts.Metrics.RecordExecution(string(report.Outcome), report.Rounds, report.Duration)

	logArgs := []any{
		"outcome", report.Outcome,
		"rounds", report.Rounds,
		"done", report.Counts.Done,
		"failed", report.Counts.Failed,
		"pending", report.Counts.Pending,
		"duration_ms", report.Duration.Milliseconds(),
	}

	if report.Outcome == OutcomeCancelled {
		err := ctx.Err()
		telemetry.RecordError(span, errors.Wrap(errors.ErrCodeEngineCancelled, "execution cancelled", err))
		logger.WarnContext(ctx, "execution cancelled", logArgs...)
		return report, err
	}

	if report.Outcome == OutcomeCompleted {
		telemetry.RecordSuccess(span)
		logger.InfoContext(ctx, "execution finished", logArgs...)
	} else {
		logger.WarnContext(ctx, "execution finished with unresolved tasks", logArgs...)
	}
	return report, nil
}

func (e *Engine) outcome(ctx context.Context, g *graph.Graph, rounds int) Outcome {
	switch {
	case ctx.Err() != nil:
		return OutcomeCancelled
	case g.IsComplete():
		return OutcomeCompleted
	case rounds >= e.opts.MaxIterations:
		return OutcomeCapped
	default:
		return OutcomeStuck
	}
}

// runRound dispatches one round and folds its outcomes into g. Only this
// goroutine mutates g.
func (e *Engine) runRound(ctx context.Context, logger *log.Logger, g *graph.Graph, report *Report, runnable []graph.Task) {
	round := report.Rounds
	roundCtx, cancel := withTimeout(ctx, e.opts.RoundTimeout)
	defer cancel()

	roundCtx, span := telemetry.StartRoundSpan(roundCtx, round, len(runnable))
	defer span.End()

	logger = logger.With("round", round)
	logger.DebugContext(roundCtx, "round started", "runnable", len(runnable))

	var dispatches []dispatch
	for _, task := range runnable {
		d, err := e.prepare(g, task)
		if err != nil {
			e.opts.Metrics.CountTask(task.Type, string(domain.StatusFailed))
			e.fail(roundCtx, logger, g, report.RunID, task, err)
			continue
		}
		if err := g.UpdateTaskStatus(task.ID, domain.StatusRunning, nil, ""); err != nil {
			e.fail(roundCtx, logger, g, report.RunID, task, err)
			continue
		}
		dispatches = append(dispatches, d)
	}

	outcomes := make([]outcome, len(dispatches))
	var eg errgroup.Group
	if e.opts.MaxParallel > 0 {
		eg.SetLimit(e.opts.MaxParallel)
	}
	for i, d := range dispatches {
		eg.Go(func() error {
			outcomes[i] = e.call(ctx, roundCtx, d)
			return nil
		})
	}
	_ = eg.Wait()

	for i, d := range dispatches {
		o := outcomes[i]
		if o.err != nil {
			e.opts.Metrics.RecordTask(d.task.Type, string(domain.StatusFailed), o.duration)
			e.fail(roundCtx, logger, g, report.RunID, d.task, o.err)
			continue
		}
		e.opts.Metrics.RecordTask(d.task.Type, string(domain.StatusDone), o.duration)
		if err := g.UpdateTaskStatus(d.task.ID, domain.StatusDone, o.result, ""); err != nil {
			logger.WithError(err).ErrorContext(roundCtx, "failed to record task result", "task_id", d.task.ID)
			continue
		}
		logger.InfoContext(roundCtx, "task done",
			"task_id", d.task.ID,
			"task_type", d.task.Type,
			"service", d.target.Service,
			"duration_ms", o.duration.Milliseconds(),
		)
	}

	counts := g.Summary()
	span.SetAttributes(
		attribute.Int("round.done", counts.Done),
		attribute.Int("round.failed", counts.Failed),
	)
	logger.DebugContext(roundCtx, "round finished", "done", counts.Done, "failed", counts.Failed, "pending", counts.Pending)
}

// prepare routes and enriches a task before dispatch.
func (e *Engine) prepare(g *graph.Graph, task graph.Task) (dispatch, error) {
	target, err := e.planner.PlanRoute(task)
	if err != nil {
		return dispatch{}, err
	}
	payload, err := e.enricher.Enrich(task, g.DependencyResults(task.DependsOn))
	if err != nil {
		return dispatch{}, err
	}
	return dispatch{task: task, target: target, payload: payload}, nil
}

// call invokes one collaborator under the call deadline. It returns when
// the deadline passes even if the invoker ignores its context.
func (e *Engine) call(parent, roundCtx context.Context, d dispatch) outcome {
	callCtx, cancel := withTimeout(roundCtx, e.opts.CallTimeout)
	defer cancel()

	callCtx, span := telemetry.StartTaskSpan(callCtx, d.task.ID, d.task.Type)
	defer span.End()
	span.SetAttributes(
		attribute.String("service", d.target.Service),
		attribute.String("http.method", d.target.Method),
		attribute.String("http.url", d.target.URL),
	)

	e.opts.Metrics.TaskStarted()
	start := time.Now()

	done := make(chan outcome, 1)
	go func() {
		result, err := e.invoker.Invoke(callCtx, d.target, d.payload)
		done <- outcome{result: result, err: err}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-callCtx.Done():
		o.err = e.deadlineError(parent, roundCtx, d.target)
		e.opts.Metrics.CallAbandoned()
		go func() {
			<-done
			e.opts.Metrics.AbandonedCallReturned()
		}()
	}
	o.duration = time.Since(start)

	if o.err != nil {
		telemetry.RecordError(span, o.err)
	} else {
		telemetry.RecordSuccess(span)
	}
	return o
}

func (e *Engine) deadlineError(parent, roundCtx context.Context, target route.Target) error {
	switch {
	case parent.Err() != nil:
		return errors.Wrap(errors.ErrCodeEngineCancelled, "execution cancelled", parent.Err())
	case roundCtx.Err() != nil:
		return errors.Wrap(errors.ErrCodeInvokeTimeout,
			fmt.Sprintf("round deadline of %s exceeded", e.opts.RoundTimeout), context.DeadlineExceeded)
	default:
		return errors.Wrap(errors.ErrCodeInvokeTimeout,
			fmt.Sprintf("call to %s timed out after %s", target.Service, e.opts.CallTimeout), context.DeadlineExceeded)
	}
}

// fail records err on task and, unless disabled, fails every pending
// dependent.
func (e *Engine) fail(ctx context.Context, logger *log.Logger, g *graph.Graph, runID string, task graph.Task, err error) {
	msg := errors.Brief(err)
	if updateErr := g.UpdateTaskStatus(task.ID, domain.StatusFailed, nil, msg); updateErr != nil {
		logger.WithError(updateErr).ErrorContext(ctx, "failed to record task failure", "task_id", task.ID)
		return
	}
	e.opts.Metrics.RecordError(err, "engine")

	logger.WithError(err).WarnContext(ctx, "task failed", "task_id", task.ID, "task_type", task.Type)

	var blocked []string
	// cancelled runs leave dependents pending
	if !e.opts.DisableCascade && errors.CodeOf(err) != errors.ErrCodeEngineCancelled {
		blocked = g.FailDependents(task.ID)
	}
	for _, id := range blocked {
		dep, _ := g.Task(id)
		e.opts.Metrics.CountTask(dep.Type, "blocked")
		e.opts.Metrics.RecordError(errors.NewDependencyBlockedError(task.ID), "engine")
		logger.InfoContext(ctx, "task blocked by failed dependency", "task_id", id, "dependency", task.ID)
	}

	e.notify(ctx, hooks.EventTaskFailed, g.ID, runID, map[string]any{
		"task_id":    task.ID,
		"task_type":  task.Type,
		"error":      msg,
		"error_code": string(errors.CodeOf(err)),
		"blocked":    blocked,
	})
}

func (e *Engine) notify(ctx context.Context, eventType hooks.EventType, graphID, runID string, data map[string]any) {
	if e.opts.Hooks == nil {
		return
	}
	e.opts.Hooks.Notify(ctx, hooks.NewEvent(eventType, graphID, runID, data))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
