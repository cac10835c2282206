// SPDX-License-Identifier: MPL-2.0

package zephyrmod

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// MaxManifestSize bounds the size of a module.toml file that will be parsed.
const MaxManifestSize = 1 << 20

var (
	// ErrManifestNotFound is returned when a module directory has no module.toml.
	ErrManifestNotFound = errors.New("module manifest not found")
	// ErrInvalidManifest is the sentinel error wrapped by ManifestError.
	ErrInvalidManifest = errors.New("invalid module manifest")
)

type (
	// ManifestError describes a manifest that exists but cannot be used.
	ManifestError struct {
		Path string
		// Line and Column are set for TOML syntax errors.
		Line   int
		Column int
		Reason string
		Err    error
	}

	manifestFile struct {
		Module struct {
			Name        string `toml:"name"`
			Version     string `toml:"version"`
			Description string `toml:"description"`
			Author      string `toml:"author"`
			License     string `toml:"license"`
		} `toml:"module"`
		Dependencies struct {
			Required []string `toml:"required"`
			Optional []string `toml:"optional"`
		} `toml:"dependencies"`
		Load struct {
			Priority *int     `toml:"priority"`
			Files    []string `toml:"files"`
		} `toml:"load"`
		Platforms struct {
			OS         []string `toml:"os"`
			Arch       []string `toml:"arch"`
			Shell      []string `toml:"shell"`
			MinVersion string   `toml:"min_version"`
		} `toml:"platforms"`
		Settings map[string]string `toml:"settings"`
	}
)

// Error implements the error interface.
func (e *ManifestError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.Path, e.Line, e.Column)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", loc, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", loc, e.Reason)
}

// Unwrap returns ErrInvalidManifest so callers can use errors.Is.
func (e *ManifestError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidManifest, e.Err}
	}
	return []error{ErrInvalidManifest}
}

// ParseManifest reads and parses the module.toml file at path.
// The returned module's Path is the directory containing the manifest.
func ParseManifest(path string) (*Module, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrManifestNotFound)
		}
		return nil, fmt.Errorf("failed to stat manifest: %w", err)
	}
	if info.IsDir() {
		return nil, &ManifestError{Path: path, Reason: "manifest must be a file, not a directory"}
	}
	if info.Size() > MaxManifestSize {
		return nil, &ManifestError{Path: path, Reason: fmt.Sprintf("manifest exceeds %d bytes", MaxManifestSize)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := ParseManifestBytes(data, path)
	if err != nil {
		return nil, err
	}
	m.Path = filepath.Dir(path)
	if abs, absErr := filepath.Abs(m.Path); absErr == nil {
		m.Path = abs
	}
	return m, nil
}

// ParseManifestBytes parses manifest content. path is used only in error messages.
func ParseManifestBytes(data []byte, path string) (*Module, error) {
	var mf manifestFile
	if err := toml.Unmarshal(data, &mf); err != nil {
		merr := &ManifestError{Path: path, Reason: "malformed TOML", Err: err}
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			merr.Line, merr.Column = decodeErr.Position()
		}
		return nil, merr
	}

	if mf.Module.Name == "" {
		return nil, &ManifestError{Path: path, Reason: "[module].name is required"}
	}

	priority := DefaultPriority
	if mf.Load.Priority != nil {
		priority = *mf.Load.Priority
	}

	return &Module{
		Name:        mf.Module.Name,
		Version:     mf.Module.Version,
		Description: mf.Module.Description,
		Author:      mf.Module.Author,
		License:     mf.Module.License,
		Priority:    priority,
		Required:    mf.Dependencies.Required,
		Optional:    mf.Dependencies.Optional,
		Files:       mf.Load.Files,
		Platform: Platform{
			OS:         mf.Platforms.OS,
			Arch:       mf.Platforms.Arch,
			Shell:      mf.Platforms.Shell,
			MinVersion: mf.Platforms.MinVersion,
		},
		Settings: mf.Settings,
	}, nil
}
