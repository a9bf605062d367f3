package config

// PublishConfig describes the multi-architecture container image build.
type PublishConfig struct {
	// Context is the build context directory, relative to the source checkout.
	Context string `yaml:"context,omitempty"`

	// Recipe is the Dockerfile-equivalent build recipe path within the context.
	Recipe string `yaml:"recipe,omitempty"`

	// Tag is the fully-qualified destination tag (registry/repo:tag).
	Tag string `yaml:"tag"`

	// Architectures lists the CPU architectures to build for.
	Architectures []string `yaml:"architectures,omitempty"`

	Registry RegistryConfig `yaml:"registry"`
	Cache    CacheConfig    `yaml:"cache,omitempty"`
}

// RegistryConfig points at the destination registry. Credentials come from
// an external provider; env expansion in the YAML makes ${VAR} references work.
type RegistryConfig struct {
	URL  string      `yaml:"url"`
	Auth *AuthConfig `yaml:"auth,omitempty"`
}

// CacheBackend enumerates remote layer cache backends.
type CacheBackend string

const (
	CacheBackendNone   CacheBackend = "none"
	CacheBackendMemory CacheBackend = "memory"
	CacheBackendNATS   CacheBackend = "nats"
)

// CacheConfig configures the shared content-addressed layer cache.
// The cache is a performance optimization only; a miss always falls back
// to a full rebuild of the affected layer.
type CacheConfig struct {
	Backend CacheBackend `yaml:"backend,omitempty"`
	NATS    NATSConfig   `yaml:"nats,omitempty"`
}

// NATSConfig holds JetStream KV connection settings for the layer cache.
type NATSConfig struct {
	URL    string `yaml:"url,omitempty"`
	Bucket string `yaml:"bucket,omitempty"`
}
