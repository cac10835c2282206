// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidFilesystemPath is the sentinel error wrapped by InvalidFilesystemPathError.
var ErrInvalidFilesystemPath = errors.New("invalid filesystem path")

type (
	// FilesystemPath is a path as written in configuration or on the command
	// line. It may start with "~" for the user's home directory.
	FilesystemPath string

	// InvalidFilesystemPathError is returned for empty or whitespace-only paths.
	InvalidFilesystemPathError struct {
		Value FilesystemPath
	}
)

// String returns the path as written.
func (p FilesystemPath) String() string { return string(p) }

// IsValid reports whether p is non-empty and not whitespace-only.
func (p FilesystemPath) IsValid() (bool, []error) {
	if strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidFilesystemPathError{Value: p}}
	}
	return true, nil
}

// Expand replaces a leading "~" with home and cleans the result. Paths
// naming another user's home ("~bob/x") are returned cleaned but unexpanded.
func (p FilesystemPath) Expand(home string) string {
	s := string(p)
	switch {
	case s == "~":
		return filepath.Clean(home)
	case strings.HasPrefix(s, "~/"), strings.HasPrefix(s, `~\`):
		return filepath.Join(home, s[2:])
	default:
		return filepath.Clean(s)
	}
}

// Error implements the error interface.
func (e *InvalidFilesystemPathError) Error() string {
	return fmt.Sprintf("invalid filesystem path %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidFilesystemPath so callers can use errors.Is.
func (e *InvalidFilesystemPathError) Unwrap() error { return ErrInvalidFilesystemPath }
