// Package executor runs one build job at a time in an isolated environment.
package executor

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/buildmatrix/internal/artifact"
	"git.home.luguber.info/inful/buildmatrix/internal/errors"
	"git.home.luguber.info/inful/buildmatrix/internal/logfields"
	"git.home.luguber.info/inful/buildmatrix/internal/matrix"
	"git.home.luguber.info/inful/buildmatrix/internal/toolchain"
	"git.home.luguber.info/inful/buildmatrix/internal/workspace"
)

// Options bundles the executor's collaborators.
type Options struct {
	// SourceDir is the shared read-only source checkout the matrix builds.
	SourceDir string

	// Tool is the build tool invoked per job ("cargo").
	Tool string

	// BinaryName is the artifact file the build produces inside the
	// environment's output directory. Empty disables artifact upload.
	BinaryName string

	RunID      string
	Workspaces *workspace.Manager
	Installer  toolchain.Installer
	Runner     toolchain.Runner
	Artifacts  artifact.Store
}

// Executor drives a single job through install and build sub-steps.
// Side effects are confined to the acquired environment, which is released
// on every exit path. Build failures are never retried here: feature
// combination failures are deterministic, so retry is a caller decision.
type Executor struct {
	opts Options
}

// New creates an Executor.
func New(opts Options) *Executor {
	if opts.Tool == "" {
		opts.Tool = "cargo"
	}
	return &Executor{opts: opts}
}

// Execute runs one job to a terminal status. It never returns an error:
// every failure mode is folded into the Result so the scheduler always has
// something to aggregate. Cancellation is cooperative — the context is
// checked before each sub-step — and a cancelled job that has not failed
// is reported Skipped, never Failed.
func (e *Executor) Execute(ctx context.Context, job matrix.Job) matrix.Result {
	start := time.Now()
	result := matrix.Result{Job: job, StartedAt: start}

	if ctx.Err() != nil {
		return e.skipped(result, start)
	}

	env, err := e.opts.Workspaces.Acquire(job.ID)
	if err != nil {
		cerr := errors.Wrap(err, errors.CategoryEnvironment, "failed to acquire build environment").
			WithContext("job_id", job.ID).Build()
		return e.failed(result, start, cerr, "")
	}
	defer func() {
		if rerr := env.Release(); rerr != nil {
			slog.Warn("Failed to release build environment", logfields.JobID(job.ID), logfields.Error(rerr))
		}
	}()

	if ctx.Err() != nil {
		return e.skipped(result, start)
	}

	if err := e.opts.Installer.EnsureInstalled(ctx, env.Dir(), e.opts.Tool); err != nil {
		if ctx.Err() != nil {
			return e.skipped(result, start)
		}
		cerr := errors.Wrap(err, errors.CategoryToolchain, "toolchain installation failed").
			WithContext("job_id", job.ID).WithContext("tool", e.opts.Tool).Build()
		return e.failed(result, start, cerr, "")
	}

	if ctx.Err() != nil {
		return e.skipped(result, start)
	}

	res, err := e.opts.Runner.Run(ctx, e.buildCommand(job, env))
	if err != nil {
		if ctx.Err() != nil {
			return e.skipped(result, start)
		}
		cerr := errors.Wrap(err, errors.CategoryBuild, "build failed").
			WithContext("job_id", job.ID).
			WithContext("exit_code", res.ExitCode).Build()
		return e.failed(result, start, cerr, res.Output)
	}

	result.Diagnostics = res.Output
	if ref, uploadErr := e.storeArtifact(ctx, job, env); uploadErr != nil {
		cerr := errors.Wrap(uploadErr, errors.CategoryArtifact, "artifact upload failed").
			WithContext("job_id", job.ID).Build()
		return e.failed(result, start, cerr, res.Output)
	} else if ref != "" {
		result.ArtifactRef = ref
	}

	result.Status = matrix.StatusSucceeded
	result.Duration = time.Since(start)
	slog.Info("Job succeeded",
		logfields.JobID(job.ID),
		logfields.Target(job.Target.Name),
		logfields.Combination(job.Key),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return result
}

// buildCommand materializes the feature selection as toolchain arguments.
// The environment directory doubles as the build's target directory so the
// shared source checkout stays read-only.
func (e *Executor) buildCommand(job matrix.Job, env *workspace.Environment) toolchain.Command {
	args := []string{"build", "--release", "--no-default-features"}
	if job.Key != "" {
		args = append(args, "--features", strings.Join(job.Combination, ","))
	}
	return toolchain.Command{
		Dir:  e.opts.SourceDir,
		Name: e.opts.Tool,
		Args: args,
		Env: []string{
			"CARGO_TARGET_DIR=" + env.Dir(),
			"BUILD_TARGET_OS=" + job.Target.OS,
			"BUILD_TARGET_ARCH=" + job.Target.Arch,
			"BUILD_TOOLCHAIN=" + job.Target.Toolchain,
		},
	}
}

// storeArtifact uploads the produced binary when a store is configured.
func (e *Executor) storeArtifact(ctx context.Context, job matrix.Job, env *workspace.Environment) (string, error) {
	if e.opts.Artifacts == nil || e.opts.BinaryName == "" {
		return "", nil
	}
	srcPath := filepath.Join(env.Dir(), "release", e.opts.BinaryName)
	key := artifact.Key(e.opts.RunID, job.ID, e.opts.BinaryName)
	return e.opts.Artifacts.Put(ctx, key, srcPath)
}

func (e *Executor) skipped(result matrix.Result, start time.Time) matrix.Result {
	result.Status = matrix.StatusSkipped
	result.Err = errors.CancelledError("cancelled by scheduler policy").Build().Error()
	result.Duration = time.Since(start)
	slog.Debug("Job skipped", logfields.JobID(result.Job.ID), logfields.Target(result.Job.Target.Name))
	return result
}

func (e *Executor) failed(result matrix.Result, start time.Time, err error, diagnostics string) matrix.Result {
	result.Status = matrix.StatusFailed
	result.Err = err.Error()
	if diagnostics != "" {
		result.Diagnostics = diagnostics
	}
	result.Duration = time.Since(start)
	slog.Error("Job failed",
		logfields.JobID(result.Job.ID),
		logfields.Target(result.Job.Target.Name),
		logfields.Combination(result.Job.Key),
		logfields.Error(err))
	return result
}
