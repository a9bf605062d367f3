package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError_Error(t *testing.T) {
	err := BuildError("compile failed").
		WithContext("job_id", "abc123").
		Build()

	assert.Contains(t, err.Error(), "[build:error]")
	assert.Contains(t, err.Error(), "compile failed")
}

func TestClassifiedError_Unwrap(t *testing.T) {
	cause := stderrors.New("exit status 101")
	err := Wrap(cause, CategoryBuild, "compile failed").Build()

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "exit status 101")
}

func TestClassifiedError_Context(t *testing.T) {
	err := EnvironmentError("workspace create failed").
		WithContext("path", "/tmp/bm").
		Build()

	got, ok := err.Context().GetString("path")
	require.True(t, ok)
	assert.Equal(t, "/tmp/bm", got)

	// WithContext on a built error returns a copy.
	err2 := err.WithContext("job_id", "j1")
	_, ok = err.Context().Get("job_id")
	assert.False(t, ok)
	_, ok = err2.Context().Get("job_id")
	assert.True(t, ok)
}

func TestHasCategory(t *testing.T) {
	err := AuthError("registry rejected token").Build()

	assert.True(t, HasCategory(err, CategoryAuth))
	assert.False(t, HasCategory(err, CategoryBuild))
	assert.False(t, HasCategory(fmt.Errorf("plain"), CategoryAuth))
}

func TestSeverityDefaults(t *testing.T) {
	assert.True(t, AuthError("x").Build().IsFatal())
	assert.True(t, ManifestError("x").Build().IsFatal())
	assert.False(t, BuildError("x").Build().IsFatal())
	assert.Equal(t, SeverityWarning, CancelledError("x").Build().Severity())
	assert.Equal(t, SeverityWarning, CacheError("x").Build().Severity())
}
