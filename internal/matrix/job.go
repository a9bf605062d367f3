// Package matrix defines the build-job model and expands the cross product
// of targets and feature combinations into a deterministic job list.
package matrix

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
	"git.home.luguber.info/inful/buildmatrix/internal/feature"
)

// Status represents the terminal state of a build job.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped" // cancelled by scheduler policy, never ran
)

// IsTerminal returns true for all defined statuses; included for symmetry
// with future in-flight states in status reporting.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// Job is one (target, combination) build variant. Jobs are created by the
// expander and consumed exactly once by a build executor.
type Job struct {
	// ID is a stable hash of the target and the canonical combination key,
	// identical across runs given identical inputs.
	ID string `json:"id"`

	Target      config.Target      `json:"target"`
	Combination config.Combination `json:"combination"`

	// Key is the combination's canonical ordering key (sorted toggles
	// joined by "+"). Job ordering sorts by Target.Name then Key.
	Key string `json:"key"`
}

// Name returns a human-readable job label for logs and reports.
func (j Job) Name() string {
	if j.Key == "" {
		return j.Target.Name + "/none"
	}
	return j.Target.Name + "/" + j.Key
}

// Result is the outcome of one job. Owned by the scheduler once reported;
// immutable after creation.
type Result struct {
	Job         Job           `json:"job"`
	Status      Status        `json:"status"`
	ArtifactRef string        `json:"artifact_ref,omitempty"`
	Diagnostics string        `json:"diagnostics,omitempty"`
	Err         string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// jobID derives the stable job identifier from the target name and the
// canonical combination key.
func jobID(targetName, key string) string {
	sum := sha256.Sum256([]byte(targetName + "|" + key))
	return hex.EncodeToString(sum[:])[:12]
}

// NewJob builds a Job with its derived key and ID.
func NewJob(target config.Target, combo config.Combination) Job {
	key := feature.CanonicalKey(combo)
	return Job{
		ID:          jobID(target.Name, key),
		Target:      target,
		Combination: combo,
		Key:         key,
	}
}
