package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/buildmatrix/internal/errors"
)

// Event type names. Stored as strings so the table stays readable with
// plain sqlite tooling.
const (
	TypeRunStarted     = "RunStarted"
	TypeJobStarted     = "JobStarted"
	TypeJobFinished    = "JobFinished"
	TypeRunFinished    = "RunFinished"
	TypeImagePublished = "ImagePublished"
	TypePublishFailed  = "PublishFailed"
)

// RunStartedMeta contains typed metadata for run start events.
type RunStartedMeta struct {
	Policy    string `json:"policy"`
	Workers   int    `json:"workers"`
	JobCount  int    `json:"job_count"`
	Rejected  int    `json:"rejected"`
	SourceURL string `json:"source_url,omitempty"`
	Commit    string `json:"commit,omitempty"`
}

// RunStarted is emitted when a matrix run begins, after expansion.
type RunStarted struct {
	BaseEvent
	Meta RunStartedMeta `json:"meta"`
}

// NewRunStarted creates a RunStarted event with typed metadata.
func NewRunStarted(runID string, meta RunStartedMeta) (*RunStarted, error) {
	payload, err := json.Marshal(meta)
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal RunStarted payload").
			WithCause(err).
			WithContext("run_id", runID).
			Build()
	}

	return &RunStarted{
		BaseEvent: BaseEvent{
			EventRunID:     runID,
			EventType:      TypeRunStarted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Meta: meta,
	}, nil
}

// JobStarted is emitted when a worker picks up a build job.
type JobStarted struct {
	BaseEvent
	JobID       string `json:"job_id"`
	Target      string `json:"target"`
	Combination string `json:"combination"`
	WorkerID    string `json:"worker_id"`
}

// NewJobStarted creates a JobStarted event.
func NewJobStarted(runID, jobID, target, combination, workerID string) (*JobStarted, error) {
	payload, err := json.Marshal(map[string]any{
		"job_id":      jobID,
		"target":      target,
		"combination": combination,
		"worker_id":   workerID,
	})
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal JobStarted payload").
			WithCause(err).
			WithContext("run_id", runID).
			WithContext("job_id", jobID).
			Build()
	}

	return &JobStarted{
		BaseEvent: BaseEvent{
			EventRunID:     runID,
			EventType:      TypeJobStarted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		JobID:       jobID,
		Target:      target,
		Combination: combination,
		WorkerID:    workerID,
	}, nil
}

// JobFinished is emitted when a job reaches a terminal status.
type JobFinished struct {
	BaseEvent
	JobID       string        `json:"job_id"`
	Target      string        `json:"target"`
	Combination string        `json:"combination"`
	Status      string        `json:"status"`
	ArtifactRef string        `json:"artifact_ref,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration_ms"`
}

// NewJobFinished creates a JobFinished event.
func NewJobFinished(runID, jobID, target, combination, status, artifactRef, errorMsg string, duration time.Duration) (*JobFinished, error) {
	payload, err := json.Marshal(map[string]any{
		"job_id":       jobID,
		"target":       target,
		"combination":  combination,
		"status":       status,
		"artifact_ref": artifactRef,
		"error":        errorMsg,
		"duration_ms":  duration.Milliseconds(),
	})
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal JobFinished payload").
			WithCause(err).
			WithContext("run_id", runID).
			WithContext("job_id", jobID).
			Build()
	}

	return &JobFinished{
		BaseEvent: BaseEvent{
			EventRunID:     runID,
			EventType:      TypeJobFinished,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		JobID:       jobID,
		Target:      target,
		Combination: combination,
		Status:      status,
		ArtifactRef: artifactRef,
		Error:       errorMsg,
		Duration:    duration,
	}, nil
}

// RunFinished is emitted when the scheduler produces its final report.
type RunFinished struct {
	BaseEvent
	Status    string        `json:"status"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration_ms"`
}

// NewRunFinished creates a RunFinished event.
func NewRunFinished(runID, status string, succeeded, failed, skipped int, duration time.Duration) (*RunFinished, error) {
	payload, err := json.Marshal(map[string]any{
		"status":      status,
		"succeeded":   succeeded,
		"failed":      failed,
		"skipped":     skipped,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal RunFinished payload").
			WithCause(err).
			WithContext("run_id", runID).
			Build()
	}

	return &RunFinished{
		BaseEvent: BaseEvent{
			EventRunID:     runID,
			EventType:      TypeRunFinished,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Status:    status,
		Succeeded: succeeded,
		Failed:    failed,
		Skipped:   skipped,
		Duration:  duration,
	}, nil
}

// ImagePublished is emitted when a multi-arch image publish completes and the
// tag points at the new manifest list.
type ImagePublished struct {
	BaseEvent
	Tag           string        `json:"tag"`
	Digest        string        `json:"digest"`
	Architectures []string      `json:"architectures"`
	Duration      time.Duration `json:"duration_ms"`
}

// NewImagePublished creates an ImagePublished event.
func NewImagePublished(runID, tag, digest string, architectures []string, duration time.Duration) (*ImagePublished, error) {
	payload, err := json.Marshal(map[string]any{
		"tag":           tag,
		"digest":        digest,
		"architectures": architectures,
		"duration_ms":   duration.Milliseconds(),
	})
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal ImagePublished payload").
			WithCause(err).
			WithContext("run_id", runID).
			WithContext("tag", tag).
			Build()
	}

	return &ImagePublished{
		BaseEvent: BaseEvent{
			EventRunID:     runID,
			EventType:      TypeImagePublished,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Tag:           tag,
		Digest:        digest,
		Architectures: architectures,
		Duration:      duration,
	}, nil
}

// PublishFailed is emitted when a publish terminates in its Failed state.
type PublishFailed struct {
	BaseEvent
	Tag   string `json:"tag"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// NewPublishFailed creates a PublishFailed event.
func NewPublishFailed(runID, tag, stage, errorMsg string) (*PublishFailed, error) {
	payload, err := json.Marshal(map[string]any{
		"tag":   tag,
		"stage": stage,
		"error": errorMsg,
	})
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal PublishFailed payload").
			WithCause(err).
			WithContext("run_id", runID).
			WithContext("tag", tag).
			Build()
	}

	return &PublishFailed{
		BaseEvent: BaseEvent{
			EventRunID:     runID,
			EventType:      TypePublishFailed,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Tag:   tag,
		Stage: stage,
		Error: errorMsg,
	}, nil
}
