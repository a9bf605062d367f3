package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore copies artifacts into a directory tree.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a local artifact store rooted at dir.
func NewLocalStore(dir string) *LocalStore { return &LocalStore{dir: dir} }

// Put implements Store.
func (s *LocalStore) Put(_ context.Context, key, srcPath string) (string, error) {
	dest := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact source: %w", err)
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("failed to copy artifact: %w", err)
	}
	return dest, nil
}
