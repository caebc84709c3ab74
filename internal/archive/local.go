package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore archives artifacts under a directory on the local filesystem.
type LocalStore struct {
	baseDir string
	prefix  string
}

// NewLocal creates a filesystem-backed archive rooted at baseDir, creating it
// if necessary.
func NewLocal(baseDir, prefix string) (*LocalStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(baseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}
	return &LocalStore{baseDir: baseDir, prefix: prefix}, nil
}

// PutObject implements core.BlobStore, returning a file:// URI. Path traversal
// outside the base directory is rejected.
func (s *LocalStore) PutObject(_ context.Context, objPath string, _ string, data []byte) (string, error) {
	if objPath == "" {
		return "", fmt.Errorf("object path is required")
	}

	rel := filepath.Join(s.prefix, filepath.FromSlash(objPath))
	full := filepath.Join(s.baseDir, rel)
	if !strings.HasPrefix(full, filepath.Clean(s.baseDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("object path escapes base directory")
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o640); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	return "file://" + full, nil
}
