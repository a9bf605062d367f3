// Package workspace manages isolated build environment directories.
// Each build job gets an exclusive workspace; no two jobs share one
// simultaneously, and a workspace is released unconditionally when its
// job finishes on any exit path.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/buildmatrix/internal/logfields"
)

// Manager hands out per-job environment directories under a base directory.
type Manager struct {
	baseDir string
	runDir  string
}

// NewManager creates a workspace manager rooted at baseDir. An empty
// baseDir uses the system temp directory.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// Create creates the run-scoped workspace directory, named after the run ID
// so concurrent pipeline runs never collide.
func (m *Manager) Create(runID string) error {
	runDir := filepath.Join(m.baseDir, fmt.Sprintf("buildmatrix-%s", runID))
	if err := os.MkdirAll(runDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	m.runDir = runDir
	slog.Debug("Created run workspace", logfields.Path(runDir))
	return nil
}

// Path returns the run workspace directory.
func (m *Manager) Path() string { return m.runDir }

// Acquire creates an exclusive environment directory for one job.
// It fails if the directory already exists: a job is consumed exactly once.
func (m *Manager) Acquire(jobID string) (*Environment, error) {
	if m.runDir == "" {
		return nil, fmt.Errorf("workspace not created")
	}
	dir := filepath.Join(m.runDir, jobID)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("environment for job %s already exists", jobID)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create environment directory: %w", err)
	}
	return &Environment{jobID: jobID, dir: dir}, nil
}

// Cleanup removes the run workspace directory and everything under it.
func (m *Manager) Cleanup() error {
	if m.runDir == "" {
		return nil
	}
	if err := os.RemoveAll(m.runDir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Debug("Cleaned up run workspace", logfields.Path(m.runDir))
	m.runDir = ""
	return nil
}

// Environment is one job's isolated build directory.
type Environment struct {
	jobID string
	dir   string
}

// Dir returns the environment's root directory.
func (e *Environment) Dir() string { return e.dir }

// JobID returns the owning job's ID.
func (e *Environment) JobID() string { return e.jobID }

// Subdir creates a subdirectory within the environment.
func (e *Environment) Subdir(name string) (string, error) {
	sub := filepath.Join(e.dir, name)
	if err := os.MkdirAll(sub, 0o750); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}
	return sub, nil
}

// Release removes the environment directory. Safe to call more than once.
func (e *Environment) Release() error {
	if e.dir == "" {
		return nil
	}
	if err := os.RemoveAll(e.dir); err != nil {
		return fmt.Errorf("failed to release environment: %w", err)
	}
	slog.Debug("Released build environment", logfields.JobID(e.jobID), logfields.Path(e.dir))
	e.dir = ""
	return nil
}
