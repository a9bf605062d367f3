package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
)

func TestMemoryEnforcesAuthentication(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.PushLayer(ctx, "sha256:abc", []byte("blob"))
	require.Error(t, err)

	require.NoError(t, m.Authenticate(ctx, &config.AuthConfig{Type: config.AuthTypeToken, Token: "t"}))
	require.NoError(t, m.PushLayer(ctx, "sha256:abc", []byte("blob")))
}

func TestMemoryRejectAuth(t *testing.T) {
	m := NewMemory()
	m.RejectAuth = true

	err := m.Authenticate(context.Background(), nil)
	require.Error(t, err)
}

func TestMemoryManifestRequiresLayers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Authenticate(ctx, nil))

	err := m.PutManifest(ctx, Manifest{Digest: "sha256:m1", Layers: []string{"sha256:missing"}})
	require.Error(t, err)

	require.NoError(t, m.PushLayer(ctx, "sha256:l1", []byte("blob")))
	require.NoError(t, m.PutManifest(ctx, Manifest{Digest: "sha256:m1", Layers: []string{"sha256:l1"}}))
}

func TestMemoryTagLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Authenticate(ctx, nil))

	_, ok, err := m.ResolveTag(ctx, "repo:latest")
	require.NoError(t, err)
	assert.False(t, ok)

	// Tagging an unknown manifest must fail; the tag stays unset.
	require.Error(t, m.UpdateTag(ctx, "repo:latest", "sha256:nope"))

	require.NoError(t, m.PutManifest(ctx, Manifest{Digest: "sha256:m1"}))
	require.NoError(t, m.UpdateTag(ctx, "repo:latest", "sha256:m1"))

	digest, ok, err := m.ResolveTag(ctx, "repo:latest")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sha256:m1", digest)
}
