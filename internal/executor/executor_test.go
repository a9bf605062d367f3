package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildmatrix/internal/artifact"
	"git.home.luguber.info/inful/buildmatrix/internal/config"
	"git.home.luguber.info/inful/buildmatrix/internal/matrix"
	"git.home.luguber.info/inful/buildmatrix/internal/toolchain"
	"git.home.luguber.info/inful/buildmatrix/internal/workspace"
)

// fakeInstaller records calls and optionally fails.
type fakeInstaller struct {
	err   error
	calls int
}

func (f *fakeInstaller) EnsureInstalled(_ context.Context, _, _ string) error {
	f.calls++
	return f.err
}

// fakeRunner returns a canned result and optionally writes the expected
// artifact into the environment's release directory.
type fakeRunner struct {
	result     toolchain.Result
	err        error
	calls      []toolchain.Command
	binaryName string
}

func (f *fakeRunner) Run(_ context.Context, cmd toolchain.Command) (toolchain.Result, error) {
	f.calls = append(f.calls, cmd)
	if f.binaryName != "" {
		for _, kv := range cmd.Env {
			const prefix = "CARGO_TARGET_DIR="
			if len(kv) > len(prefix) && kv[:len(prefix)] == prefix {
				dir := filepath.Join(kv[len(prefix):], "release")
				_ = os.MkdirAll(dir, 0o750)
				_ = os.WriteFile(filepath.Join(dir, f.binaryName), []byte("bin"), 0o640)
			}
		}
	}
	return f.result, f.err
}

func testJob() matrix.Job {
	return matrix.NewJob(
		config.Target{Name: "linux-amd64", OS: "linux", Arch: "amd64", Toolchain: "stable"},
		config.Combination{"openssl", "quic"},
	)
}

func newTestExecutor(t *testing.T, installer *fakeInstaller, runner *fakeRunner, store artifact.Store, binary string) *Executor {
	t.Helper()
	ws := workspace.NewManager(t.TempDir())
	require.NoError(t, ws.Create("run1"))
	t.Cleanup(func() { _ = ws.Cleanup() })

	return New(Options{
		SourceDir:  t.TempDir(),
		Tool:       "cargo",
		BinaryName: binary,
		RunID:      "run1",
		Workspaces: ws,
		Installer:  installer,
		Runner:     runner,
		Artifacts:  store,
	})
}

func TestExecute_Success(t *testing.T) {
	installer := &fakeInstaller{}
	runner := &fakeRunner{result: toolchain.Result{Output: "Compiling proxy v1.0\nFinished release"}}
	e := newTestExecutor(t, installer, runner, nil, "")

	res := e.Execute(context.Background(), testJob())

	assert.Equal(t, matrix.StatusSucceeded, res.Status)
	assert.Equal(t, 1, installer.calls)
	require.Len(t, runner.calls, 1)
	assert.Contains(t, res.Diagnostics, "Finished release")

	// Feature selection is materialized as toolchain arguments.
	cmd := runner.calls[0]
	assert.Equal(t, "cargo", cmd.Name)
	assert.Contains(t, cmd.Args, "--no-default-features")
	assert.Contains(t, cmd.Args, "openssl,quic")
	assert.Contains(t, cmd.Env, "BUILD_TARGET_OS=linux")
}

func TestExecute_BuildFailureCapturesDiagnostics(t *testing.T) {
	runner := &fakeRunner{
		result: toolchain.Result{Output: "error[E0433]: unresolved import", ExitCode: 101},
		err:    errors.New("command failed"),
	}
	e := newTestExecutor(t, &fakeInstaller{}, runner, nil, "")

	res := e.Execute(context.Background(), testJob())

	assert.Equal(t, matrix.StatusFailed, res.Status)
	assert.Contains(t, res.Diagnostics, "unresolved import")
	assert.Contains(t, res.Err, "build failed")
}

func TestExecute_InstallerFailureFailsJob(t *testing.T) {
	installer := &fakeInstaller{err: errors.New("rustup unreachable")}
	runner := &fakeRunner{}
	e := newTestExecutor(t, installer, runner, nil, "")

	res := e.Execute(context.Background(), testJob())

	assert.Equal(t, matrix.StatusFailed, res.Status)
	assert.Contains(t, res.Err, "toolchain installation failed")
	// Installer failures are not retried and the build never starts.
	assert.Equal(t, 1, installer.calls)
	assert.Empty(t, runner.calls)
}

func TestExecute_CancelledBeforeStartIsSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	installer := &fakeInstaller{}
	e := newTestExecutor(t, installer, &fakeRunner{}, nil, "")

	res := e.Execute(ctx, testJob())

	assert.Equal(t, matrix.StatusSkipped, res.Status)
	assert.Zero(t, installer.calls)
}

func TestExecute_EnvironmentReleasedOnFailure(t *testing.T) {
	ws := workspace.NewManager(t.TempDir())
	require.NoError(t, ws.Create("run1"))
	t.Cleanup(func() { _ = ws.Cleanup() })

	e := New(Options{
		SourceDir:  t.TempDir(),
		RunID:      "run1",
		Workspaces: ws,
		Installer:  &fakeInstaller{},
		Runner:     &fakeRunner{err: errors.New("boom")},
	})

	job := testJob()
	res := e.Execute(context.Background(), job)
	require.Equal(t, matrix.StatusFailed, res.Status)

	// The environment is gone, so the job directory can be acquired again.
	env, err := ws.Acquire(job.ID)
	require.NoError(t, err)
	_ = env.Release()
}

func TestExecute_StoresArtifact(t *testing.T) {
	store := artifact.NewLocalStore(t.TempDir())
	runner := &fakeRunner{result: toolchain.Result{Output: "Finished"}, binaryName: "proxy"}
	e := newTestExecutor(t, &fakeInstaller{}, runner, store, "proxy")

	res := e.Execute(context.Background(), testJob())

	require.Equal(t, matrix.StatusSucceeded, res.Status)
	require.NotEmpty(t, res.ArtifactRef)
	data, err := os.ReadFile(res.ArtifactRef)
	require.NoError(t, err)
	assert.Equal(t, "bin", string(data))
}

func TestExecute_ArtifactUploadFailureFailsJob(t *testing.T) {
	// Runner succeeds but never writes the binary, so the upload fails.
	store := artifact.NewLocalStore(t.TempDir())
	e := newTestExecutor(t, &fakeInstaller{}, &fakeRunner{}, store, "proxy")

	res := e.Execute(context.Background(), testJob())

	assert.Equal(t, matrix.StatusFailed, res.Status)
	assert.Contains(t, res.Err, "artifact upload failed")
}
