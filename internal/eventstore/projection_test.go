package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
	"git.home.luguber.info/inful/buildmatrix/internal/matrix"
)

func emitFullRun(t *testing.T, emitter *Emitter, runID, status string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, emitter.EmitRunStarted(ctx, runID, RunStartedMeta{
		Policy:   "fail-continue",
		Workers:  2,
		JobCount: 2,
	}))

	target := config.Target{Name: "linux-amd64", OS: "linux", Arch: "amd64"}
	job := matrix.NewJob(target, config.Combination{"openssl"})
	require.NoError(t, emitter.EmitJobStarted(ctx, runID, job, "worker-0"))
	require.NoError(t, emitter.EmitJobFinished(ctx, runID, matrix.Result{
		Job:      job,
		Status:   matrix.StatusSucceeded,
		Duration: 100 * time.Millisecond,
	}))

	failed := 0
	if status == runStatusFailed {
		failed = 1
	}
	require.NoError(t, emitter.EmitRunFinished(ctx, runID, status, 2-failed, failed, 0, time.Second))
}

func TestProjectionTracksRunLifecycle(t *testing.T) {
	store := newTestStore(t)
	projection := NewRunHistoryProjection(store, 10)
	emitter := NewEmitter(store, projection)

	emitFullRun(t, emitter, "run-1", runStatusSucceeded)

	summary, ok := projection.GetRun("run-1")
	require.True(t, ok)
	assert.Equal(t, runStatusSucceeded, summary.Status)
	assert.Equal(t, 2, summary.JobCount)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, "fail-continue", summary.Policy)
	assert.NotNil(t, summary.CompletedAt)
}

func TestProjectionRebuildFromStore(t *testing.T) {
	store := newTestStore(t)
	emitter := NewEmitter(store, nil)

	emitFullRun(t, emitter, "run-1", runStatusSucceeded)
	emitFullRun(t, emitter, "run-2", runStatusFailed)

	// A fresh projection reconstructs the same view from persisted events.
	projection := NewRunHistoryProjection(store, 10)
	require.NoError(t, projection.Rebuild(context.Background()))

	history := projection.GetHistory()
	require.Len(t, history, 2)

	failed, ok := projection.GetRun("run-2")
	require.True(t, ok)
	assert.Equal(t, runStatusFailed, failed.Status)
	assert.Equal(t, 1, failed.Failed)
}

func TestProjectionRecordsPublish(t *testing.T) {
	store := newTestStore(t)
	projection := NewRunHistoryProjection(store, 10)
	emitter := NewEmitter(store, projection)

	emitFullRun(t, emitter, "run-1", runStatusSucceeded)
	require.NoError(t, emitter.EmitImagePublished(context.Background(), "run-1",
		"registry.example.com/proxy:latest", "sha256:abcdef", []string{"amd64", "arm64"}, 3*time.Second))

	summary, ok := projection.GetRun("run-1")
	require.True(t, ok)
	assert.Equal(t, "registry.example.com/proxy:latest", summary.ImageTag)
	assert.Equal(t, "sha256:abcdef", summary.ImageDigest)
}

func TestProjectionBoundsHistory(t *testing.T) {
	store := newTestStore(t)
	projection := NewRunHistoryProjection(store, 2)
	emitter := NewEmitter(store, projection)

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		emitFullRun(t, emitter, id, runStatusSucceeded)
	}

	assert.Len(t, projection.GetHistory(), 2)

	// Pruned runs are gone from the lookup map too.
	_, ok := projection.GetRun("run-1")
	assert.False(t, ok)
}

func TestProjectionActiveRun(t *testing.T) {
	store := newTestStore(t)
	projection := NewRunHistoryProjection(store, 10)
	emitter := NewEmitter(store, projection)

	require.NoError(t, emitter.EmitRunStarted(context.Background(), "run-1", RunStartedMeta{JobCount: 4}))

	active := projection.GetActiveRun()
	require.NotNil(t, active)
	assert.Equal(t, "run-1", active.RunID)
	assert.Equal(t, runStatusRunning, active.Status)
	assert.Nil(t, projection.GetLastCompletedRun())
}
