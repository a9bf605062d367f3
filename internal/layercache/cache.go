// Package layercache provides the shared content-addressed layer cache used
// by the image publisher. Entries are keyed by the digest of the layer's
// inputs, so hits and misses never change build outputs, only build time.
package layercache

import (
	"context"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
	"git.home.luguber.info/inful/buildmatrix/internal/errors"
)

// Cache stores built layer blobs keyed by their content digest.
//
// All implementations must treat the cache as best-effort: a lookup error is
// indistinguishable from a miss for callers, and a store error never fails
// the surrounding build.
type Cache interface {
	// Get returns the cached blob for digest, or ok=false on a miss.
	Get(ctx context.Context, digest string) (blob []byte, ok bool, err error)

	// Put stores a blob under its digest. Overwriting an existing entry
	// with identical content is a no-op.
	Put(ctx context.Context, digest string, blob []byte) error

	// Close releases backend resources.
	Close() error
}

// New constructs the cache backend selected in cfg. CacheBackendNone returns
// a nil Cache; callers treat nil as "no cache".
func New(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case config.CacheBackendNone, "":
		return nil, nil
	case config.CacheBackendMemory:
		return NewMemoryCache(), nil
	case config.CacheBackendNATS:
		return NewNATSCache(cfg.NATS)
	default:
		return nil, errors.ConfigError("unknown layer cache backend").
			WithContext("backend", string(cfg.Backend)).
			Build()
	}
}
