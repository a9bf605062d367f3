package errors

import "maps"

// Category represents the broad category of an error for classification and routing.
type Category string

const (
	// CategoryConfig represents user-facing configuration and input errors.
	CategoryConfig     Category = "config"
	CategoryValidation Category = "validation" // illegal feature combinations, caught pre-build

	// CategoryEnvironment represents build environment acquisition errors.
	CategoryEnvironment Category = "environment"
	CategoryToolchain   Category = "toolchain"
	CategoryBuild       Category = "build"
	CategoryCancelled   Category = "cancelled" // scheduler policy cancellation, not a failure

	// CategoryAuth and the publish categories cover the image publish pipeline.
	CategoryAuth     Category = "auth"
	CategoryPublish  Category = "publish"
	CategoryManifest Category = "manifest"

	// Categories for external collaborators.
	CategoryGit        Category = "git"
	CategoryCache      Category = "cache"
	CategoryArtifact   Category = "artifact"
	CategoryEventStore Category = "eventstore"

	// CategoryRuntime represents runtime and infrastructure errors.
	CategoryRuntime  Category = "runtime"
	CategoryDaemon   Category = "daemon"
	CategoryInternal Category = "internal"
)

// Severity indicates the impact level of an error.
type Severity string

const (
	SeverityFatal   Severity = "fatal"   // Stops the pipeline completely
	SeverityError   Severity = "error"   // Fails the current operation
	SeverityWarning Severity = "warning" // Continues with degraded functionality
)

// Context provides structured context for errors.
type Context map[string]any

// Set adds or updates a context value.
func (c Context) Set(key string, value any) Context {
	if c == nil {
		c = make(Context)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c Context) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	value, exists := c[key]
	return value, exists
}

// GetString retrieves a string context value.
func (c Context) GetString(key string) (string, bool) {
	if value, exists := c.Get(key); exists {
		if str, ok := value.(string); ok {
			return str, true
		}
	}
	return "", false
}

// Merge combines two contexts, with other taking precedence.
func (c Context) Merge(other Context) Context {
	if c == nil {
		return other
	}
	if other == nil {
		return c
	}
	result := make(Context)
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}
