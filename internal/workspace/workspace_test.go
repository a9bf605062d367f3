package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_CreateAndCleanup(t *testing.T) {
	m := NewManager(t.TempDir())

	require.NoError(t, m.Create("run1"))
	info, err := os.Stat(m.Path())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Contains(t, m.Path(), "buildmatrix-run1")

	require.NoError(t, m.Cleanup())
	assert.Empty(t, m.Path())
}

func TestManager_AcquireExclusive(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Create("run1"))
	t.Cleanup(func() { _ = m.Cleanup() })

	env, err := m.Acquire("job1")
	require.NoError(t, err)
	assert.Equal(t, "job1", env.JobID())

	// A job's environment is exclusive: re-acquiring the same job fails.
	_, err = m.Acquire("job1")
	require.Error(t, err)

	// Distinct jobs get distinct directories.
	env2, err := m.Acquire("job2")
	require.NoError(t, err)
	assert.NotEqual(t, env.Dir(), env2.Dir())
}

func TestManager_AcquireBeforeCreate(t *testing.T) {
	m := NewManager(t.TempDir())
	_, err := m.Acquire("job1")
	require.Error(t, err)
}

func TestEnvironment_SubdirAndRelease(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Create("run1"))
	t.Cleanup(func() { _ = m.Cleanup() })

	env, err := m.Acquire("job1")
	require.NoError(t, err)

	sub, err := env.Subdir("out")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.Dir(), "out"), sub)

	dir := env.Dir()
	require.NoError(t, env.Release())
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))

	// Release is idempotent.
	require.NoError(t, env.Release())
}
