// Package pipeline wires the matrix components into runnable pipelines:
// the static build matrix and the image publish.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/buildmatrix/internal/artifact"
	"git.home.luguber.info/inful/buildmatrix/internal/config"
	"git.home.luguber.info/inful/buildmatrix/internal/errors"
	"git.home.luguber.info/inful/buildmatrix/internal/eventstore"
	"git.home.luguber.info/inful/buildmatrix/internal/executor"
	"git.home.luguber.info/inful/buildmatrix/internal/feature"
	"git.home.luguber.info/inful/buildmatrix/internal/gitsource"
	"git.home.luguber.info/inful/buildmatrix/internal/layercache"
	"git.home.luguber.info/inful/buildmatrix/internal/logfields"
	"git.home.luguber.info/inful/buildmatrix/internal/matrix"
	"git.home.luguber.info/inful/buildmatrix/internal/metrics"
	"git.home.luguber.info/inful/buildmatrix/internal/publish"
	"git.home.luguber.info/inful/buildmatrix/internal/registry"
	"git.home.luguber.info/inful/buildmatrix/internal/scheduler"
	"git.home.luguber.info/inful/buildmatrix/internal/toolchain"
	"git.home.luguber.info/inful/buildmatrix/internal/workspace"
)

// Service runs build pipelines against one configuration.
type Service struct {
	cfg           *config.Config
	recorder      metrics.Recorder
	emitter       *eventstore.Emitter
	sourceDir     string
	keepWorkspace bool
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithEmitter injects a run event emitter.
func WithEmitter(e *eventstore.Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithSourceDir uses an existing local checkout instead of cloning.
func WithSourceDir(dir string) Option {
	return func(s *Service) { s.sourceDir = dir }
}

// WithKeepWorkspace disables run directory cleanup, for debugging.
func WithKeepWorkspace() Option {
	return func(s *Service) { s.keepWorkspace = true }
}

// New creates a pipeline service.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{cfg: cfg, recorder: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Outcome is the result of one matrix run.
type Outcome struct {
	RunID     string
	Commit    string
	Expansion matrix.Expansion
	Report    *scheduler.Report
}

// RunMatrix executes the full static build matrix: checkout, expansion,
// scheduling and artifact upload. Returns an error only for setup failures;
// job failures surface through the report's aggregate status.
func (s *Service) RunMatrix(ctx context.Context) (*Outcome, error) {
	runID := uuid.NewString()[:8]
	slog.Info("Matrix pipeline starting", logfields.RunID(runID))

	workspaces := workspace.NewManager(s.cfg.Build.WorkspaceDir)
	if err := workspaces.Create(runID); err != nil {
		return nil, err
	}
	if !s.keepWorkspace {
		defer func() {
			if err := workspaces.Cleanup(); err != nil {
				slog.Warn("Workspace cleanup failed", logfields.RunID(runID), logfields.Error(err))
			}
		}()
	}

	sourceDir, commit, err := s.resolveSource(ctx, workspaces)
	if err != nil {
		return nil, err
	}

	set := feature.NewSet(s.cfg.Categories, s.cfg.Features)
	expansion := matrix.Expand(s.cfg.Targets, s.cfg.Combinations, set)
	for _, rej := range expansion.Rejections {
		for _, reason := range rej.Reasons {
			s.recorder.IncRejection(string(reason.Code))
			slog.Warn("Combination rejected",
				logfields.Target(rej.Target.Name),
				logfields.Combination(rej.Key),
				slog.String("reason", reason.Detail))
		}
	}
	slog.Info("Matrix expanded",
		logfields.RunID(runID),
		slog.Int("jobs", len(expansion.Jobs)),
		slog.Int("rejected", len(expansion.Rejections)))

	s.emitRunStarted(ctx, runID, commit, expansion)

	artifacts, err := s.artifactStore(ctx)
	if err != nil {
		return nil, err
	}

	runner := toolchain.NewExecRunner()
	exec := executor.New(executor.Options{
		SourceDir:  sourceDir,
		Tool:       s.cfg.Source.Tool,
		BinaryName: s.cfg.Source.Binary,
		RunID:      runID,
		Workspaces: workspaces,
		Installer:  toolchain.NewExecInstaller(runner),
		Runner:     runner,
		Artifacts:  artifacts,
	})

	sched := scheduler.New(exec, s.cfg.Build.Concurrency, s.cfg.Build.Policy)
	sched.SetRecorder(s.recorder)
	sched.SetJobTimeout(s.cfg.Build.JobTimeoutDuration())
	if s.emitter != nil {
		sched.SetEventEmitter(s.emitter)
	}

	report := sched.Run(ctx, runID, expansion.Jobs)
	s.emitRunFinished(ctx, report)

	return &Outcome{
		RunID:     runID,
		Commit:    commit,
		Expansion: expansion,
		Report:    report,
	}, nil
}

// RunPublish executes the multi-arch image publish pipeline.
func (s *Service) RunPublish(ctx context.Context) (publish.Result, error) {
	if s.cfg.Publish == nil {
		return publish.Result{}, errors.ConfigError("publish section missing from configuration").Build()
	}
	runID := uuid.NewString()[:8]
	pub := *s.cfg.Publish

	workspaces := workspace.NewManager(s.cfg.Build.WorkspaceDir)
	if err := workspaces.Create(runID); err != nil {
		return publish.Result{}, err
	}
	if !s.keepWorkspace {
		defer func() {
			if err := workspaces.Cleanup(); err != nil {
				slog.Warn("Workspace cleanup failed", logfields.RunID(runID), logfields.Error(err))
			}
		}()
	}

	sourceDir, _, err := s.resolveSource(ctx, workspaces)
	if err != nil {
		return publish.Result{}, err
	}

	cache, err := layercache.New(pub.Cache)
	if err != nil {
		return publish.Result{}, err
	}
	if cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				slog.Warn("Layer cache close failed", logfields.Error(err))
			}
		}()
	}

	client := registry.NewHTTPClient(pub.Registry.URL, repoFromTag(pub.Tag))
	publisher := publish.New(client, nil, cache)
	publisher.SetRecorder(s.recorder)

	start := time.Now()
	result, err := publisher.Publish(ctx, publish.Request{
		ContextDir:    filepath.Join(sourceDir, pub.Context),
		Recipe:        pub.Recipe,
		Tag:           pub.Tag,
		Architectures: pub.Architectures,
		Auth:          pub.Registry.Auth,
	})
	s.emitPublish(ctx, runID, result, err, time.Since(start))
	return result, err
}

// resolveSource returns the source directory, cloning when no local checkout
// was supplied.
func (s *Service) resolveSource(ctx context.Context, workspaces *workspace.Manager) (string, string, error) {
	if s.sourceDir != "" {
		commit, err := gitsource.HeadCommit(s.sourceDir)
		if err != nil {
			// A plain directory without git history is fine for local builds.
			commit = ""
		}
		return s.sourceDir, commit, nil
	}
	if s.cfg.Source.URL == "" {
		return "", "", errors.ConfigError("source.url is required when no local source directory is given").Build()
	}

	dest := filepath.Join(workspaces.Path(), "source")
	commit, err := gitsource.NewClient(1).Checkout(ctx, s.cfg.Source, dest)
	if err != nil {
		return "", "", err
	}
	return dest, commit, nil
}

func (s *Service) artifactStore(ctx context.Context) (artifact.Store, error) {
	switch s.cfg.Artifacts.Backend {
	case config.ArtifactBackendS3:
		return artifact.NewS3Store(ctx, s.cfg.Artifacts.S3)
	default:
		return artifact.NewLocalStore(s.cfg.Artifacts.Dir), nil
	}
}

func (s *Service) emitRunStarted(ctx context.Context, runID, commit string, expansion matrix.Expansion) {
	if s.emitter == nil {
		return
	}
	err := s.emitter.EmitRunStarted(ctx, runID, eventstore.RunStartedMeta{
		Policy:    string(s.cfg.Build.Policy),
		Workers:   s.cfg.Build.Concurrency,
		JobCount:  len(expansion.Jobs),
		Rejected:  len(expansion.Rejections),
		SourceURL: s.cfg.Source.URL,
		Commit:    commit,
	})
	if err != nil {
		slog.Warn("Failed to emit RunStarted event", logfields.RunID(runID), logfields.Error(err))
	}
}

func (s *Service) emitRunFinished(ctx context.Context, report *scheduler.Report) {
	if s.emitter == nil {
		return
	}
	succeeded, failed, skipped := report.Counts()
	err := s.emitter.EmitRunFinished(ctx, report.RunID, string(report.Status()),
		succeeded, failed, skipped, report.Duration)
	if err != nil {
		slog.Warn("Failed to emit RunFinished event", logfields.RunID(report.RunID), logfields.Error(err))
	}
}

func (s *Service) emitPublish(ctx context.Context, runID string, result publish.Result, pubErr error, duration time.Duration) {
	if s.emitter == nil {
		return
	}
	var err error
	if pubErr != nil {
		err = s.emitter.EmitPublishFailed(ctx, runID, result.Tag, result.FailedStage, pubErr.Error())
	} else {
		err = s.emitter.EmitImagePublished(ctx, runID, result.Tag, result.Digest, result.Architectures, duration)
	}
	if err != nil {
		slog.Warn("Failed to emit publish event", logfields.RunID(runID), logfields.Error(err))
	}
}

// repoFromTag extracts the repository path from a fully-qualified tag like
// "registry.example.com/inful/proxy:latest".
func repoFromTag(tag string) string {
	ref := tag
	if idx := strings.LastIndex(ref, ":"); idx > strings.LastIndex(ref, "/") {
		ref = ref[:idx]
	}
	if idx := strings.Index(ref, "/"); idx > 0 {
		first := ref[:idx]
		if strings.ContainsAny(first, ".:") || first == "localhost" {
			return ref[idx+1:]
		}
	}
	return ref
}
