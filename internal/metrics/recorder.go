package metrics

import "time"

// Recorder defines observability hooks for matrix runs and publishes.
// Implementations may forward to Prometheus, OpenTelemetry, etc. The
// NoopRecorder allows optional injection.
type Recorder interface {
	ObserveJobDuration(target string, d time.Duration)
	IncJobResult(target, status string) // status: succeeded|failed|skipped
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome string) // outcome: succeeded|failed
	IncRejection(reason string)
	SetActiveWorkers(n int)
	ObservePublishDuration(d time.Duration, success bool)
	IncCacheEvent(hit bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveJobDuration(string, time.Duration)     {}
func (NoopRecorder) IncJobResult(string, string)                  {}
func (NoopRecorder) ObserveRunDuration(time.Duration)             {}
func (NoopRecorder) IncRunOutcome(string)                         {}
func (NoopRecorder) IncRejection(string)                          {}
func (NoopRecorder) SetActiveWorkers(int)                         {}
func (NoopRecorder) ObservePublishDuration(time.Duration, bool)   {}
func (NoopRecorder) IncCacheEvent(bool)                           {}
