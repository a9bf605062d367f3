// Package artifact stores built binaries under deterministic object keys so
// repeated runs of the same job overwrite rather than accumulate.
package artifact

import "context"

// Store persists build outputs. Implementations must be safe for
// concurrent use by multiple build workers.
type Store interface {
	// Put stores the file at srcPath under key and returns an opaque
	// reference usable in reports ("dir/key" or "s3://bucket/key").
	Put(ctx context.Context, key, srcPath string) (string, error)
}

// Key builds the deterministic object key for one job's artifact.
func Key(runID, jobID, name string) string {
	return runID + "/" + jobID + "/" + name
}
