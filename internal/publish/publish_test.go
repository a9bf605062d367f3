package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
	"git.home.luguber.info/inful/buildmatrix/internal/layercache"
	"git.home.luguber.info/inful/buildmatrix/internal/registry"
)

func writeContext(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func testRequest(t *testing.T) Request {
	t.Helper()
	dir := writeContext(t, map[string]string{
		"Dockerfile": "FROM scratch\nCOPY proxy /proxy\n",
		"proxy":      "binary-bytes",
	})
	return Request{
		ContextDir:    dir,
		Recipe:        "Dockerfile",
		Tag:           "registry.example.com/proxy:latest",
		Architectures: []string{"amd64", "arm64"},
		Auth:          &config.AuthConfig{Type: config.AuthTypeToken, Token: "t"},
	}
}

func TestPublishHappyPath(t *testing.T) {
	reg := registry.NewMemory()
	pub := New(reg, nil, nil)

	req := testRequest(t)
	result, err := pub.Publish(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatePublished, result.State)
	require.NotEmpty(t, result.Digest)

	digest, ok, err := reg.ResolveTag(context.Background(), req.Tag)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.Digest, digest)

	// One layer per architecture, two arch manifests plus the list.
	assert.Equal(t, 2, reg.LayerCount())
	assert.Equal(t, 3, reg.ManifestCount())
}

func TestPublishMissingContextFails(t *testing.T) {
	pub := New(registry.NewMemory(), nil, nil)

	req := testRequest(t)
	req.ContextDir = filepath.Join(req.ContextDir, "nonexistent")

	result, err := pub.Publish(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, "prepare-context", result.FailedStage)
}

func TestPublishMissingRecipeFails(t *testing.T) {
	pub := New(registry.NewMemory(), nil, nil)

	req := testRequest(t)
	req.Recipe = "Containerfile"

	result, err := pub.Publish(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, StateFailed, result.State)
}

func TestPublishAuthRejectionIsFatal(t *testing.T) {
	reg := registry.NewMemory()
	reg.RejectAuth = true
	pub := New(reg, nil, nil)

	result, err := pub.Publish(context.Background(), testRequest(t))
	require.Error(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, "authenticate", result.FailedStage)
	assert.Equal(t, 0, reg.LayerCount())
}

func TestPublishFailedArchLeavesTagUntouched(t *testing.T) {
	reg := registry.NewMemory()
	pub := New(reg, nil, nil)
	ctx := context.Background()

	// First publish establishes the tag.
	req := testRequest(t)
	first, err := pub.Publish(ctx, req)
	require.NoError(t, err)

	// Change the context and make the new arm64 layer push fail.
	req2 := testRequest(t)
	require.NoError(t, os.WriteFile(filepath.Join(req2.ContextDir, "proxy"), []byte("new-binary"), 0o644))
	builder := &ContentBuilder{}
	armDigest, err := builder.LayerDigest(req2.ContextDir, req2.Recipe, "arm64")
	require.NoError(t, err)
	reg.FailLayerPush = map[string]bool{armDigest: true}

	req2.Tag = req.Tag
	result, err := pub.Publish(ctx, req2)
	require.Error(t, err)
	assert.Equal(t, StateFailed, result.State)

	// The previous tag still resolves to its prior digest.
	digest, ok, err := reg.ResolveTag(ctx, req.Tag)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.Digest, digest)
}

func TestPublishWarmCacheDigestMatchesColdCache(t *testing.T) {
	ctx := context.Background()
	dir := writeContext(t, map[string]string{
		"Dockerfile": "FROM scratch\n",
		"proxy":      "binary-bytes",
	})
	req := Request{
		ContextDir:    dir,
		Recipe:        "Dockerfile",
		Tag:           "registry.example.com/proxy:latest",
		Architectures: []string{"amd64", "arm64"},
	}

	// Cold publish with an empty cache.
	cache := layercache.NewMemoryCache()
	regA := registry.NewMemory()
	cold, err := New(regA, nil, cache).Publish(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	// Warm publish of the same context against a fresh registry.
	regB := registry.NewMemory()
	warm, err := New(regB, nil, cache).Publish(ctx, req)
	require.NoError(t, err)

	// Cache temperature changes wall clock, never the published reference.
	assert.Equal(t, cold.Digest, warm.Digest)
}

func TestPublishIsIdempotent(t *testing.T) {
	reg := registry.NewMemory()
	pub := New(reg, nil, nil)
	ctx := context.Background()

	req := testRequest(t)
	first, err := pub.Publish(ctx, req)
	require.NoError(t, err)

	second, err := pub.Publish(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.Digest, second.Digest)
}

func TestContentBuilderDigestChangesWithContext(t *testing.T) {
	builder := &ContentBuilder{}

	dirA := writeContext(t, map[string]string{"Dockerfile": "FROM scratch\n"})
	dirB := writeContext(t, map[string]string{"Dockerfile": "FROM alpine\n"})

	a, err := builder.LayerDigest(dirA, "Dockerfile", "amd64")
	require.NoError(t, err)
	b, err := builder.LayerDigest(dirB, "Dockerfile", "amd64")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	// Architecture is part of the layer identity.
	arm, err := builder.LayerDigest(dirA, "Dockerfile", "arm64")
	require.NoError(t, err)
	amd, err := builder.LayerDigest(dirA, "Dockerfile", "amd64")
	require.NoError(t, err)
	assert.NotEqual(t, arm, amd)
	assert.Equal(t, a, amd)
}
