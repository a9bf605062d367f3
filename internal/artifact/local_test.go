package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "run1/job1/proxy", Key("run1", "job1", "proxy"))
}

func TestLocalStore_Put(t *testing.T) {
	src := filepath.Join(t.TempDir(), "proxy")
	require.NoError(t, os.WriteFile(src, []byte("binary"), 0o640))

	store := NewLocalStore(t.TempDir())
	ref, err := store.Put(context.Background(), Key("run1", "job1", "proxy"), src)
	require.NoError(t, err)

	data, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))
}

func TestLocalStore_PutOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "proxy")
	store := NewLocalStore(dir)

	require.NoError(t, os.WriteFile(src, []byte("v1"), 0o640))
	_, err := store.Put(context.Background(), "k", src)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(src, []byte("v2"), 0o640))
	ref, err := store.Put(context.Background(), "k", src)
	require.NoError(t, err)

	data, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestLocalStore_MissingSource(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, err := store.Put(context.Background(), "k", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
