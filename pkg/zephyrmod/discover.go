// SPDX-License-Identifier: MPL-2.0

package zephyrmod

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DiscoveryError records a module directory that could not be loaded.
type DiscoveryError struct {
	Dir string
	Err error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("module %s: %v", filepath.Base(e.Dir), e.Err)
}

// Unwrap returns the underlying error.
func (e *DiscoveryError) Unwrap() error { return e.Err }

// Discover loads every module directly under modulesDir.
//
// Modules are returned in lexical directory order, which is the discovery order
// the resolver uses to break priority ties. Directories without a manifest are
// ignored; directories with a broken manifest are reported in the second return
// value and skipped. The error return is reserved for an unreadable modulesDir.
func Discover(modulesDir string) ([]*Module, []*DiscoveryError, error) {
	entries, err := os.ReadDir(modulesDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read modules directory: %w", err)
	}

	var (
		modules []*Module
		broken  []*DiscoveryError
	)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		dir := filepath.Join(modulesDir, entry.Name())
		m, parseErr := ParseManifest(filepath.Join(dir, ManifestFileName))
		if parseErr != nil {
			if errors.Is(parseErr, ErrManifestNotFound) {
				slog.Debug("skipping directory without manifest", "dir", dir)
				continue
			}
			broken = append(broken, &DiscoveryError{Dir: dir, Err: parseErr})
			continue
		}
		if m.Name != entry.Name() {
			broken = append(broken, &DiscoveryError{
				Dir: dir,
				Err: fmt.Errorf("manifest name %q does not match directory %q", m.Name, entry.Name()),
			})
			continue
		}
		modules = append(modules, m)
	}

	return modules, broken, nil
}
