package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
	"git.home.luguber.info/inful/buildmatrix/internal/daemon"
	"git.home.luguber.info/inful/buildmatrix/internal/feature"
	"git.home.luguber.info/inful/buildmatrix/internal/matrix"
	"git.home.luguber.info/inful/buildmatrix/internal/pipeline"
	"git.home.luguber.info/inful/buildmatrix/internal/report"
	"git.home.luguber.info/inful/buildmatrix/internal/scheduler"
	"git.home.luguber.info/inful/buildmatrix/internal/version"
)

var CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"buildmatrix.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `help:"Print version and exit"`

	Run struct {
		Source string `short:"s" help:"Use a local source checkout instead of cloning"`
		Report string `short:"r" help:"Write a Markdown run report to this file"`
		Keep   bool   `help:"Keep the run workspace for debugging"`
	} `cmd:"" help:"Run the full build matrix"`

	Expand struct {
	} `cmd:"" help:"Expand the matrix and print jobs and rejections without building"`

	Publish struct {
		Source string `short:"s" help:"Use a local source checkout instead of cloning"`
	} `cmd:"" help:"Build and publish the multi-arch container image"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Daemon struct {
	} `cmd:"" help:"Run continuously with scheduled matrix runs and an HTTP status API"`
}

func main() {
	kctx := kong.Parse(&CLI, kong.Vars{"version": version.String()})

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch kctx.Command() {
	case "run":
		cfg := loadConfig()
		if err := runMatrix(cfg); err != nil {
			slog.Error("Matrix run failed", "error", err)
			os.Exit(1)
		}
	case "expand":
		cfg := loadConfig()
		runExpand(cfg)
	case "publish":
		cfg := loadConfig()
		if err := runPublish(cfg); err != nil {
			slog.Error("Publish failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", CLI.Config)
	case "daemon":
		cfg := loadConfig()
		if err := runDaemon(cfg); err != nil {
			slog.Error("Daemon failed", "error", err)
			os.Exit(1)
		}
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	return cfg
}

func runMatrix(cfg *config.Config) error {
	opts := []pipeline.Option{}
	if CLI.Run.Source != "" {
		opts = append(opts, pipeline.WithSourceDir(CLI.Run.Source))
	}
	if CLI.Run.Keep {
		opts = append(opts, pipeline.WithKeepWorkspace())
	}

	svc := pipeline.New(cfg, opts...)
	outcome, err := svc.RunMatrix(signalContext())
	if err != nil {
		return err
	}

	printResults(outcome)

	if CLI.Run.Report != "" {
		md := report.Markdown(report.Input{
			Report:     outcome.Report,
			Rejections: outcome.Expansion.Rejections,
			Commit:     outcome.Commit,
		})
		if err := os.WriteFile(CLI.Run.Report, []byte(md), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		slog.Info("Run report written", "path", CLI.Run.Report)
	}

	if outcome.Report.Status() == scheduler.RunFailed {
		return fmt.Errorf("%d of %d jobs failed", countFailed(outcome), len(outcome.Report.Results))
	}
	return nil
}

func runExpand(cfg *config.Config) {
	set := feature.NewSet(cfg.Categories, cfg.Features)
	expansion := matrix.Expand(cfg.Targets, cfg.Combinations, set)

	fmt.Printf("Jobs (%d):\n", len(expansion.Jobs))
	for _, job := range expansion.Jobs {
		fmt.Printf("  %s  %s\n", job.ID, job.Name())
	}
	if len(expansion.Rejections) > 0 {
		fmt.Printf("\nRejected (%d):\n", len(expansion.Rejections))
		for _, rej := range expansion.Rejections {
			for _, reason := range rej.Reasons {
				fmt.Printf("  %s/%s: %s\n", rej.Target.Name, rej.Key, reason.Detail)
			}
		}
	}
}

func runPublish(cfg *config.Config) error {
	opts := []pipeline.Option{}
	if CLI.Publish.Source != "" {
		opts = append(opts, pipeline.WithSourceDir(CLI.Publish.Source))
	}

	svc := pipeline.New(cfg, opts...)
	result, err := svc.RunPublish(signalContext())
	if err != nil {
		return err
	}
	fmt.Printf("Published %s\n  digest: %s\n", result.Tag, result.Digest)
	return nil
}

func runDaemon(cfg *config.Config) error {
	d, err := daemon.New(CLI.Config, cfg)
	if err != nil {
		return err
	}
	return d.Run(signalContext())
}

func printResults(outcome *pipeline.Outcome) {
	succeeded, failed, skipped := outcome.Report.Counts()
	fmt.Printf("Run %s: %s (%d succeeded, %d failed, %d skipped)\n",
		outcome.RunID, outcome.Report.Status(), succeeded, failed, skipped)
	for _, res := range outcome.Report.Results {
		fmt.Printf("  %-10s %s\n", res.Status, res.Job.Name())
	}
}

func countFailed(outcome *pipeline.Outcome) int {
	_, failed, _ := outcome.Report.Counts()
	return failed
}

// signalContext returns a context cancelled on SIGINT/SIGTERM so running
// jobs finish and workspaces are released before exit.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		slog.Info("Shutdown signal received, finishing running jobs")
		cancel()
	}()
	return ctx
}
