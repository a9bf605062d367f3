package errors

// Builder provides a fluent API for creating ClassifiedError instances.
// This keeps error creation consistent and discoverable throughout buildmatrix.
type Builder struct {
	category Category
	severity Severity
	message  string
	cause    error
	context  Context
}

// New creates a new Builder with the specified category and message.
func New(category Category, message string) *Builder {
	return &Builder{
		category: category,
		severity: SeverityError,
		message:  message,
		context:  make(Context),
	}
}

// Wrap creates a new Builder that wraps an existing error.
func Wrap(err error, category Category, message string) *Builder {
	return &Builder{
		category: category,
		severity: SeverityError,
		message:  message,
		cause:    err,
		context:  make(Context),
	}
}

// WithSeverity sets the error severity.
func (b *Builder) WithSeverity(severity Severity) *Builder {
	b.severity = severity
	return b
}

// WithContext adds a context key-value pair.
func (b *Builder) WithContext(key string, value any) *Builder {
	b.context = b.context.Set(key, value)
	return b
}

// WithCause attaches an underlying error.
func (b *Builder) WithCause(err error) *Builder {
	b.cause = err
	return b
}

// Fatal sets the severity to fatal.
func (b *Builder) Fatal() *Builder { return b.WithSeverity(SeverityFatal) }

// Warning sets the severity to warning.
func (b *Builder) Warning() *Builder { return b.WithSeverity(SeverityWarning) }

// Build creates the final ClassifiedError.
func (b *Builder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// Convenience constructors for the error taxonomy.

// ConfigError creates a configuration error.
func ConfigError(message string) *Builder {
	return New(CategoryConfig, message).Fatal()
}

// ValidationError creates an invalid-combination error. These are filtered
// at expansion time and reported as rejections, never as job failures.
func ValidationError(message string) *Builder {
	return New(CategoryValidation, message)
}

// EnvironmentError creates a build-environment acquisition error.
func EnvironmentError(message string) *Builder {
	return New(CategoryEnvironment, message)
}

// ToolchainError creates a toolchain installation error.
func ToolchainError(message string) *Builder {
	return New(CategoryToolchain, message)
}

// BuildError creates a build execution error.
func BuildError(message string) *Builder {
	return New(CategoryBuild, message)
}

// CancelledError marks a job cancelled by scheduler policy. Reported
// distinctly from failures so operators can tell "didn't run" from
// "ran and failed".
func CancelledError(message string) *Builder {
	return New(CategoryCancelled, message).Warning()
}

// AuthError creates a registry authentication error, fatal to a publish.
func AuthError(message string) *Builder {
	return New(CategoryAuth, message).Fatal()
}

// PublishError creates a per-architecture image build error.
func PublishError(message string) *Builder {
	return New(CategoryPublish, message)
}

// ManifestError creates a manifest assembly error, fatal to a publish.
func ManifestError(message string) *Builder {
	return New(CategoryManifest, message).Fatal()
}

// GitError creates a source checkout error.
func GitError(message string) *Builder {
	return New(CategoryGit, message)
}

// CacheError creates a layer cache error. Cache failures degrade to a full
// rebuild, so the default severity is warning.
func CacheError(message string) *Builder {
	return New(CategoryCache, message).Warning()
}

// ArtifactError creates an artifact store error.
func ArtifactError(message string) *Builder {
	return New(CategoryArtifact, message)
}

// EventStoreError creates an event persistence error.
func EventStoreError(message string) *Builder {
	return New(CategoryEventStore, message).Warning()
}

// DaemonError creates a daemon lifecycle error.
func DaemonError(message string) *Builder {
	return New(CategoryDaemon, message)
}

// InternalError creates an internal invariant violation error.
func InternalError(message string) *Builder {
	return New(CategoryInternal, message).Fatal()
}
