package config

// ArtifactBackend enumerates artifact storage backends.
type ArtifactBackend string

const (
	ArtifactBackendLocal ArtifactBackend = "local"
	ArtifactBackendS3    ArtifactBackend = "s3"
)

// ArtifactConfig configures where built binaries are stored per job.
type ArtifactConfig struct {
	Backend ArtifactBackend `yaml:"backend,omitempty"`

	// Dir is the destination directory for the local backend.
	Dir string `yaml:"dir,omitempty"`

	S3 S3Config `yaml:"s3,omitempty"`
}

// S3Config holds S3-compatible object store settings for the artifact store.
type S3Config struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	UseSSL    bool   `yaml:"use_ssl,omitempty"`
}
