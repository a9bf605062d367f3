package config

import "time"

// DaemonConfig configures continuous operation mode.
type DaemonConfig struct {
	// Listen is the HTTP address for health/status/metrics endpoints.
	Listen string `yaml:"listen,omitempty"`

	// Schedule is the interval between periodic matrix runs ("6h").
	// Empty disables scheduled runs.
	Schedule string `yaml:"schedule,omitempty"`

	// WatchConfig reloads the matrix when the config file changes.
	WatchConfig bool `yaml:"watch_config,omitempty"`

	// EventsDB is the SQLite database path for the run event store.
	// ":memory:" keeps history for the process lifetime only.
	EventsDB string `yaml:"events_db,omitempty"`

	// Metrics enables the Prometheus /metrics endpoint.
	Metrics bool `yaml:"metrics,omitempty"`
}

// ScheduleInterval parses Schedule; zero means scheduled runs are disabled.
func (d DaemonConfig) ScheduleInterval() time.Duration {
	if d.Schedule == "" {
		return 0
	}
	interval, err := time.ParseDuration(d.Schedule)
	if err != nil {
		return 0
	}
	return interval
}
