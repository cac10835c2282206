// SPDX-License-Identifier: MPL-2.0

package zephyrmod

import (
	"maps"
	"slices"
)

const (
	// ManifestFileName is the name of the manifest file at every module root.
	ManifestFileName = "module.toml"

	// DefaultPriority is the load priority of modules that do not declare one.
	// Lower priorities load first.
	DefaultPriority = 100
)

type (
	// Module is a named, versioned unit of shell configuration.
	// Name is the unique key; the resolver and the install pipeline read Name,
	// Required, and Optional but never modify them.
	Module struct {
		Name        string
		Version     string
		Description string
		Author      string
		License     string
		// Priority orders modules that are ready to load at the same time.
		Priority int
		// Required lists modules that must be present and load first.
		Required []string
		// Optional lists modules that load first when present.
		Optional []string
		// Files are load files relative to the module root, in load order.
		Files    []string
		Platform Platform
		Settings map[string]string
		// Path is the absolute module root directory (empty for in-memory records).
		Path string
	}

	// Platform restricts where a module may be installed and loaded.
	// Empty lists mean "any".
	Platform struct {
		OS         []string
		Arch       []string
		Shell      []string
		MinVersion string
	}
)

// Clone returns a deep copy of the module record.
func (m *Module) Clone() *Module {
	if m == nil {
		return nil
	}
	c := *m
	c.Required = slices.Clone(m.Required)
	c.Optional = slices.Clone(m.Optional)
	c.Files = slices.Clone(m.Files)
	c.Platform.OS = slices.Clone(m.Platform.OS)
	c.Platform.Arch = slices.Clone(m.Platform.Arch)
	c.Platform.Shell = slices.Clone(m.Platform.Shell)
	c.Settings = maps.Clone(m.Settings)
	return &c
}

// DependsOn reports whether the module lists name as a required or optional dependency.
func (m *Module) DependsOn(name string) bool {
	return slices.Contains(m.Required, name) || slices.Contains(m.Optional, name)
}

// String returns "name@version", or just the name when no version is set.
func (m *Module) String() string {
	if m.Version == "" {
		return m.Name
	}
	return m.Name + "@" + m.Version
}
