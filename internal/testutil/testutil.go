// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// MustMkdirAll creates a directory along with any necessary parents.
func MustMkdirAll(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", path, err)
	}
}

// WriteFile writes content to root/rel, creating parent directories.
// It returns the absolute path of the written file.
func WriteFile(t testing.TB, root, rel, content string) string {
	t.Helper()
	return WriteFileMode(t, root, rel, content, 0o644)
}

// WriteFileMode is WriteFile with an explicit file mode.
func WriteFileMode(t testing.TB, root, rel, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	MustMkdirAll(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	// WriteFile honors umask; force the requested bits for executable fixtures.
	if err := os.Chmod(path, mode); err != nil {
		t.Fatalf("failed to chmod %s: %v", path, err)
	}
	return path
}

// Symlink creates a symbolic link at root/rel pointing to target.
func Symlink(t testing.TB, root, rel, target string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	MustMkdirAll(t, filepath.Dir(path))
	if err := os.Symlink(target, path); err != nil {
		t.Fatalf("failed to symlink %s -> %s: %v", path, target, err)
	}
	return path
}

// PathExists reports whether path exists (without following a final symlink).
func PathExists(t testing.TB, path string) bool {
	t.Helper()
	_, err := os.Lstat(path)
	if err == nil {
		return true
	}
	if !os.IsNotExist(err) {
		t.Fatalf("failed to stat %s: %v", path, err)
	}
	return false
}
