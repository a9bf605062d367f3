// Package errors provides classified errors for buildmatrix.
//
// The taxonomy mirrors the pipeline's failure modes: invalid combinations
// (validation), environment acquisition, build execution, scheduler
// cancellation, and the publish pipeline's auth/per-arch/manifest failures.
// Classified errors carry a category, a severity and a structured context
// map; callers that do not need classification keep using fmt.Errorf with %w.
package errors
