// Package registry defines the narrow contract the image publisher needs
// from a container registry, plus an in-memory implementation for tests and
// dry runs.
package registry

import (
	"context"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
)

// Manifest is a platform manifest or a manifest list, serialized for upload.
type Manifest struct {
	MediaType string   `json:"mediaType"`
	Digest    string   `json:"digest"`
	Data      []byte   `json:"-"`
	Layers    []string `json:"layers,omitempty"` // layer digests referenced
}

// Client is the registry surface the publisher depends on. A production
// implementation speaks the OCI distribution API; tests use Memory.
type Client interface {
	// Authenticate validates credentials against the registry. Must be
	// called before any push; failure aborts the publish.
	Authenticate(ctx context.Context, auth *config.AuthConfig) error

	// PushLayer uploads a layer blob under its digest. Pushing a digest
	// the registry already has is a cheap no-op.
	PushLayer(ctx context.Context, digest string, blob []byte) error

	// PutManifest uploads a manifest under its digest.
	PutManifest(ctx context.Context, manifest Manifest) error

	// UpdateTag atomically points tag at the manifest digest. Readers see
	// either the previous mapping or the new one, never a partial state.
	UpdateTag(ctx context.Context, tag, digest string) error

	// ResolveTag returns the digest a tag currently points at, or ok=false.
	ResolveTag(ctx context.Context, tag string) (digest string, ok bool, err error)

	// HasLayer reports whether the registry already holds a layer digest.
	HasLayer(ctx context.Context, digest string) (bool, error)
}
