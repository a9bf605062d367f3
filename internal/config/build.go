package config

import "time"

// SchedulerPolicy controls whether remaining jobs are cancelled after the
// first failure.
type SchedulerPolicy string

const (
	PolicyFailFast     SchedulerPolicy = "fail-fast"
	PolicyFailContinue SchedulerPolicy = "fail-continue"
)

// BuildConfig holds matrix execution tuning knobs. All zero values trigger
// sensible defaults applied in defaults.go.
type BuildConfig struct {
	// Concurrency caps the number of build jobs running simultaneously.
	Concurrency int `yaml:"concurrency,omitempty"`

	// Policy selects fail-fast or fail-continue behavior.
	Policy SchedulerPolicy `yaml:"policy,omitempty"`

	// JobTimeout bounds a single job's wall clock ("30m"). Empty disables.
	JobTimeout string `yaml:"job_timeout,omitempty"`

	// WorkspaceDir is the base directory for per-job build environments.
	// Empty uses the system temp directory.
	WorkspaceDir string `yaml:"workspace_dir,omitempty"`
}

// JobTimeoutDuration parses JobTimeout; zero means no timeout.
func (b BuildConfig) JobTimeoutDuration() time.Duration {
	if b.JobTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(b.JobTimeout)
	if err != nil {
		return 0
	}
	return d
}
