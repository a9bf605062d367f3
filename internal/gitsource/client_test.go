package gitsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcfg "git.home.luguber.info/inful/buildmatrix/internal/config"
)

// initTestRepo creates a local git repository with one commit on master.
func initTestRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("Dockerfile")
	require.NoError(t, err)

	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir, hash.String()
}

func TestCheckout_LocalRepo(t *testing.T) {
	src, wantCommit := initTestRepo(t)
	dest := filepath.Join(t.TempDir(), "checkout")

	c := NewClient(0)
	commit, err := c.Checkout(context.Background(), appcfg.SourceConfig{URL: src, Branch: "master"}, dest)
	require.NoError(t, err)
	assert.Equal(t, wantCommit, commit)

	_, err = os.Stat(filepath.Join(dest, "Dockerfile"))
	require.NoError(t, err)

	got, err := HeadCommit(dest)
	require.NoError(t, err)
	assert.Equal(t, wantCommit, got)
}

func TestCheckout_CleansDestination(t *testing.T) {
	src, _ := initTestRepo(t)
	dest := filepath.Join(t.TempDir(), "checkout")
	require.NoError(t, os.MkdirAll(dest, 0o750))
	stale := filepath.Join(dest, "stale.txt")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	c := NewClient(0)
	_, err := c.Checkout(context.Background(), appcfg.SourceConfig{URL: src, Branch: "master"}, dest)
	require.NoError(t, err)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestCheckout_BadURL(t *testing.T) {
	c := NewClient(0)
	_, err := c.Checkout(context.Background(), appcfg.SourceConfig{URL: filepath.Join(t.TempDir(), "missing")}, filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
}

func TestHeadCommit_NotARepo(t *testing.T) {
	_, err := HeadCommit(t.TempDir())
	require.Error(t, err)
}
