package registry

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
	"git.home.luguber.info/inful/buildmatrix/internal/errors"
)

// Memory is an in-process registry. It enforces the same ordering rules a
// real registry would: manifests may only reference uploaded layers, and
// tags may only point at uploaded manifests.
type Memory struct {
	mu        sync.RWMutex
	layers    map[string][]byte
	manifests map[string]Manifest
	tags      map[string]string // tag -> manifest digest

	// RejectAuth makes Authenticate fail, for exercising auth-failure paths.
	RejectAuth bool

	// FailLayerPush makes PushLayer fail for the given digests.
	FailLayerPush map[string]bool

	authenticated bool
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		layers:    make(map[string][]byte),
		manifests: make(map[string]Manifest),
		tags:      make(map[string]string),
	}
}

func (m *Memory) Authenticate(_ context.Context, auth *config.AuthConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RejectAuth {
		return errors.AuthError("registry rejected credentials").Build()
	}
	_ = auth // any credentials accepted
	m.authenticated = true
	return nil
}

func (m *Memory) PushLayer(_ context.Context, digest string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.authenticated {
		return errors.AuthError("push before authentication").Build()
	}
	if m.FailLayerPush[digest] {
		return errors.PublishError("layer upload failed").WithContext("digest", digest).Build()
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	m.layers[digest] = cp
	return nil
}

func (m *Memory) PutManifest(_ context.Context, manifest Manifest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.authenticated {
		return errors.AuthError("push before authentication").Build()
	}
	for _, layer := range manifest.Layers {
		if _, ok := m.layers[layer]; !ok {
			return errors.ManifestError("manifest references missing layer").
				WithContext("digest", manifest.Digest).
				WithContext("layer", layer).
				Build()
		}
	}
	m.manifests[manifest.Digest] = manifest
	return nil
}

func (m *Memory) UpdateTag(_ context.Context, tag, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.authenticated {
		return errors.AuthError("push before authentication").Build()
	}
	if _, ok := m.manifests[digest]; !ok {
		return errors.ManifestError("tag update references missing manifest").
			WithContext("tag", tag).
			WithContext("digest", digest).
			Build()
	}
	m.tags[tag] = digest
	return nil
}

func (m *Memory) ResolveTag(_ context.Context, tag string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	digest, ok := m.tags[tag]
	return digest, ok, nil
}

func (m *Memory) HasLayer(_ context.Context, digest string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.layers[digest]
	return ok, nil
}

// LayerCount reports the number of stored layers.
func (m *Memory) LayerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.layers)
}

// ManifestCount reports the number of stored manifests.
func (m *Memory) ManifestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.manifests)
}
