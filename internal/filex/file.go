// Package filex holds small filesystem helpers for the vault's on-disk
// artifacts: the data directory and export files.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the parent directory of path (mode 0700) if it
// does not exist and returns the cleaned path. Vault files carry secrets,
// so the directory is never group or world accessible.
func EnsureParentDir(path string) (string, error) {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return path, nil
}

// WriteExport writes an export envelope to path with owner-only permissions.
// An existing file is replaced.
func WriteExport(path string, data []byte) error {
	path, err := EnsureParentDir(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadExport reads an export envelope from path.
func ReadExport(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
