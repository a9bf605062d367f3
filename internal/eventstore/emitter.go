package eventstore

import (
	"context"
	"time"

	"git.home.luguber.info/inful/buildmatrix/internal/matrix"
)

// Emitter writes typed run events to a Store and keeps an optional
// projection current. It satisfies the scheduler's EventEmitter interface.
type Emitter struct {
	store      Store
	projection *RunHistoryProjection
}

// NewEmitter creates an emitter. projection may be nil.
func NewEmitter(store Store, projection *RunHistoryProjection) *Emitter {
	return &Emitter{store: store, projection: projection}
}

func (e *Emitter) emit(ctx context.Context, event Event) error {
	if err := e.store.Append(ctx, event.RunID(), event.Type(), event.Payload(), event.Metadata()); err != nil {
		return err
	}
	if e.projection != nil {
		e.projection.Apply(event)
	}
	return nil
}

// EmitRunStarted records the start of a matrix run.
func (e *Emitter) EmitRunStarted(ctx context.Context, runID string, meta RunStartedMeta) error {
	event, err := NewRunStarted(runID, meta)
	if err != nil {
		return err
	}
	return e.emit(ctx, event)
}

// EmitJobStarted records a worker picking up a job.
func (e *Emitter) EmitJobStarted(ctx context.Context, runID string, job matrix.Job, workerID string) error {
	event, err := NewJobStarted(runID, job.ID, job.Target.Name, job.Key, workerID)
	if err != nil {
		return err
	}
	return e.emit(ctx, event)
}

// EmitJobFinished records a job's terminal result.
func (e *Emitter) EmitJobFinished(ctx context.Context, runID string, result matrix.Result) error {
	event, err := NewJobFinished(runID, result.Job.ID, result.Job.Target.Name, result.Job.Key,
		string(result.Status), result.ArtifactRef, result.Err, result.Duration)
	if err != nil {
		return err
	}
	return e.emit(ctx, event)
}

// EmitRunFinished records the scheduler's final report.
func (e *Emitter) EmitRunFinished(ctx context.Context, runID, status string, succeeded, failed, skipped int, duration time.Duration) error {
	event, err := NewRunFinished(runID, status, succeeded, failed, skipped, duration)
	if err != nil {
		return err
	}
	return e.emit(ctx, event)
}

// EmitImagePublished records a successful multi-arch publish.
func (e *Emitter) EmitImagePublished(ctx context.Context, runID, tag, digest string, architectures []string, duration time.Duration) error {
	event, err := NewImagePublished(runID, tag, digest, architectures, duration)
	if err != nil {
		return err
	}
	return e.emit(ctx, event)
}

// EmitPublishFailed records a failed publish.
func (e *Emitter) EmitPublishFailed(ctx context.Context, runID, tag, stage, errorMsg string) error {
	event, err := NewPublishFailed(runID, tag, stage, errorMsg)
	if err != nil {
		return err
	}
	return e.emit(ctx, event)
}
