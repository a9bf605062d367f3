// Package daemon runs buildmatrix continuously: periodic matrix runs,
// config hot reload and an HTTP surface for health, status and reports.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
	"git.home.luguber.info/inful/buildmatrix/internal/eventstore"
	"git.home.luguber.info/inful/buildmatrix/internal/logfields"
	"git.home.luguber.info/inful/buildmatrix/internal/metrics"
	"git.home.luguber.info/inful/buildmatrix/internal/pipeline"
	"git.home.luguber.info/inful/buildmatrix/internal/report"
)

// Daemon owns the long-running service: a gocron scheduler for periodic
// runs, an optional config watcher and the HTTP server.
type Daemon struct {
	mu         sync.RWMutex
	configPath string
	cfg        *config.Config

	store      *eventstore.SQLiteStore
	projection *eventstore.RunHistoryProjection
	emitter    *eventstore.Emitter
	recorder   metrics.Recorder

	cron    gocron.Scheduler
	watcher *configWatcher
	http    *httpServer

	running   bool
	lastRunMu sync.RWMutex
	lastRun   *pipeline.Outcome
}

// New creates a daemon from a loaded configuration. configPath is kept for
// hot reload.
func New(configPath string, cfg *config.Config) (*Daemon, error) {
	store, err := eventstore.NewSQLiteStore(cfg.Daemon.EventsDB)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}

	projection := eventstore.NewRunHistoryProjection(store, 100)
	if err := projection.Rebuild(context.Background()); err != nil {
		slog.Warn("Run history rebuild failed, starting empty", logfields.Error(err))
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var promReg *prometheus.Registry
	if cfg.Daemon.Metrics {
		promReg = prometheus.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(promReg)
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	d := &Daemon{
		configPath: configPath,
		cfg:        cfg,
		store:      store,
		projection: projection,
		emitter:    eventstore.NewEmitter(store, projection),
		recorder:   recorder,
		cron:       cron,
	}
	d.http = newHTTPServer(d, promReg)
	return d, nil
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.config()

	if interval := cfg.Daemon.ScheduleInterval(); interval > 0 {
		job, err := d.cron.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(d.runScheduled),
			gocron.WithName("matrix-run"),
		)
		if err != nil {
			return fmt.Errorf("schedule periodic run: %w", err)
		}
		slog.Info("Scheduled periodic matrix runs",
			logfields.ScheduleID(job.ID().String()),
			slog.Duration("interval", interval))
	}

	if cfg.Daemon.WatchConfig {
		watcher, err := newConfigWatcher(d.configPath, d.reloadConfig)
		if err != nil {
			return err
		}
		d.watcher = watcher
		watcher.Start(ctx)
	}

	d.cron.Start()
	if err := d.http.Start(cfg.Daemon.Listen); err != nil {
		return err
	}
	slog.Info("Daemon started", slog.String("listen", cfg.Daemon.Listen))

	<-ctx.Done()
	return d.shutdown()
}

func (d *Daemon) shutdown() error {
	slog.Info("Daemon shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if d.watcher != nil {
		d.watcher.Stop()
	}
	if err := d.cron.Shutdown(); err != nil {
		slog.Warn("Scheduler shutdown failed", logfields.Error(err))
	}
	if err := d.http.Stop(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown failed", logfields.Error(err))
	}
	return d.store.Close()
}

// runScheduled is invoked by gocron; overlapping runs are skipped.
func (d *Daemon) runScheduled() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		slog.Warn("Previous matrix run still in progress, skipping scheduled run")
		return
	}
	d.running = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	svc := pipeline.New(d.config(),
		pipeline.WithRecorder(d.recorder),
		pipeline.WithEmitter(d.emitter))
	outcome, err := svc.RunMatrix(ctx)
	if err != nil {
		slog.Error("Scheduled matrix run failed", logfields.Error(err))
		return
	}

	d.lastRunMu.Lock()
	d.lastRun = outcome
	d.lastRunMu.Unlock()
}

// reloadConfig re-parses the config file after a watcher event.
func (d *Daemon) reloadConfig() {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		slog.Error("Config reload failed, keeping previous configuration",
			logfields.Path(d.configPath), logfields.Error(err))
		return
	}

	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	slog.Info("Configuration reloaded", logfields.Path(d.configPath))
}

func (d *Daemon) config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// lastOutcome returns the most recent in-process run outcome, if any.
func (d *Daemon) lastOutcome() *pipeline.Outcome {
	d.lastRunMu.RLock()
	defer d.lastRunMu.RUnlock()
	return d.lastRun
}

// lastReportInput builds the report input for the most recent run.
func (d *Daemon) lastReportInput() (report.Input, bool) {
	outcome := d.lastOutcome()
	if outcome == nil || outcome.Report == nil {
		return report.Input{}, false
	}
	return report.Input{
		Report:     outcome.Report,
		Rejections: outcome.Expansion.Rejections,
		Commit:     outcome.Commit,
	}, true
}
