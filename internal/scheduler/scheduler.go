// Package scheduler runs build jobs with bounded parallelism and aggregates
// their results into a deterministic report.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
	"git.home.luguber.info/inful/buildmatrix/internal/errors"
	"git.home.luguber.info/inful/buildmatrix/internal/logfields"
	"git.home.luguber.info/inful/buildmatrix/internal/matrix"
	"git.home.luguber.info/inful/buildmatrix/internal/metrics"
)

// JobRunner executes one job to a terminal status.
type JobRunner interface {
	Execute(ctx context.Context, job matrix.Job) matrix.Result
}

// EventEmitter abstracts run lifecycle event emission so the scheduler does
// not depend on a concrete event store.
type EventEmitter interface {
	EmitJobStarted(ctx context.Context, runID string, job matrix.Job, workerID string) error
	EmitJobFinished(ctx context.Context, runID string, result matrix.Result) error
}

// Scheduler owns the job queue and the aggregate result set for one run.
type Scheduler struct {
	runner     JobRunner
	workers    int
	policy     config.SchedulerPolicy
	jobTimeout time.Duration
	recorder   metrics.Recorder
	emitter    EventEmitter

	active atomic.Int64
}

// New creates a scheduler with the given concurrency bound and policy.
func New(runner JobRunner, workers int, policy config.SchedulerPolicy) *Scheduler {
	if runner == nil {
		panic("scheduler: runner is required")
	}
	if workers <= 0 {
		workers = 2
	}
	if policy == "" {
		policy = config.PolicyFailContinue
	}
	return &Scheduler{
		runner:   runner,
		workers:  workers,
		policy:   policy,
		recorder: metrics.NoopRecorder{},
	}
}

// SetRecorder injects a metrics recorder (optional).
func (s *Scheduler) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	s.recorder = r
}

// SetEventEmitter injects a run event emitter (optional).
func (s *Scheduler) SetEventEmitter(e EventEmitter) { s.emitter = e }

// Run executes every job and returns the aggregate report. Jobs are
// dispatched in the order given (the expander's canonical order) and the
// report presents results in that same order regardless of completion order.
//
// Under fail-fast, the first Failed result stops dispatch: jobs not yet
// started are marked Skipped, while already-running jobs complete and their
// results are recorded. Context cancellation skips remaining jobs under
// either policy.
func (s *Scheduler) Run(ctx context.Context, runID string, jobs []matrix.Job) *Report {
	start := time.Now()
	slog.Info("Starting matrix run",
		logfields.RunID(runID),
		logfields.Policy(string(s.policy)),
		slog.Int("jobs", len(jobs)),
		slog.Int("workers", s.workers))

	queue := make(chan matrix.Job)
	resultCh := make(chan matrix.Result, len(jobs))

	// failed flips once under fail-fast; workers consult it before
	// starting each job so running builds are never torn down abruptly.
	var failed atomic.Bool

	var wg sync.WaitGroup
	for i := range s.workers {
		wg.Add(1)
		go func(workerID string) {
			defer wg.Done()
			for job := range queue {
				resultCh <- s.processJob(ctx, runID, job, workerID, &failed)
			}
		}(fmt.Sprintf("worker-%d", i))
	}

	for _, job := range jobs {
		queue <- job
	}
	close(queue)
	wg.Wait()
	close(resultCh)

	byID := make(map[string]matrix.Result, len(jobs))
	for res := range resultCh {
		byID[res.Job.ID] = res
	}

	report := &Report{
		RunID:     runID,
		Policy:    s.policy,
		StartedAt: start,
		Duration:  time.Since(start),
	}
	for _, job := range jobs {
		res, ok := byID[job.ID]
		if !ok {
			// Should be unreachable: every queued job produces a result.
			res = matrix.Result{
				Job:    job,
				Status: matrix.StatusFailed,
				Err:    errors.InternalError("job produced no result").Build().Error(),
			}
		}
		report.Results = append(report.Results, res)
	}

	s.recorder.ObserveRunDuration(report.Duration)
	s.recorder.IncRunOutcome(string(report.Status()))

	succeeded, failedCount, skipped := report.Counts()
	slog.Info("Matrix run finished",
		logfields.RunID(runID),
		slog.String("status", string(report.Status())),
		slog.Int("succeeded", succeeded),
		slog.Int("failed", failedCount),
		slog.Int("skipped", skipped),
		logfields.DurationMS(float64(report.Duration.Milliseconds())))
	return report
}

func (s *Scheduler) processJob(ctx context.Context, runID string, job matrix.Job, workerID string, failed *atomic.Bool) matrix.Result {
	if s.policy == config.PolicyFailFast && failed.Load() {
		return s.skip(job)
	}
	if ctx.Err() != nil {
		return s.skip(job)
	}

	s.recorder.SetActiveWorkers(int(s.active.Add(1)))
	defer func() { s.recorder.SetActiveWorkers(int(s.active.Add(-1))) }()

	s.emitJobStarted(ctx, runID, job, workerID)
	slog.Debug("Dispatching job",
		logfields.RunID(runID),
		logfields.JobID(job.ID),
		logfields.Worker(workerID),
		logfields.Target(job.Target.Name),
		logfields.Combination(job.Key))

	jobCtx := ctx
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	result := s.runner.Execute(jobCtx, job)

	// A job stopped by its own deadline ran and failed; only parent
	// cancellation or policy may report Skipped.
	if result.Status == matrix.StatusSkipped && jobCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		result.Status = matrix.StatusFailed
		result.Err = errors.BuildError("job exceeded timeout").
			WithContext("job_id", job.ID).
			WithContext("timeout", s.jobTimeout.String()).
			Build().Error()
	}

	if result.Status == matrix.StatusFailed {
		failed.Store(true)
	}
	s.recorder.ObserveJobDuration(job.Target.Name, result.Duration)
	s.recorder.IncJobResult(job.Target.Name, string(result.Status))
	s.emitJobFinished(ctx, runID, result)
	return result
}

// SetJobTimeout bounds each job's wall clock. Zero disables.
func (s *Scheduler) SetJobTimeout(d time.Duration) { s.jobTimeout = d }

func (s *Scheduler) skip(job matrix.Job) matrix.Result {
	res := matrix.Result{
		Job:    job,
		Status: matrix.StatusSkipped,
		Err:    errors.CancelledError("cancelled by scheduler policy").Build().Error(),
	}
	s.recorder.IncJobResult(job.Target.Name, string(res.Status))
	return res
}

func (s *Scheduler) emitJobStarted(ctx context.Context, runID string, job matrix.Job, workerID string) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.EmitJobStarted(ctx, runID, job, workerID); err != nil {
		slog.Warn("Failed to emit JobStarted event", logfields.JobID(job.ID), logfields.Error(err))
	}
}

func (s *Scheduler) emitJobFinished(ctx context.Context, runID string, result matrix.Result) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.EmitJobFinished(ctx, runID, result); err != nil {
		slog.Warn("Failed to emit JobFinished event", logfields.JobID(result.Job.ID), logfields.Error(err))
	}
}
