// SPDX-License-Identifier: MPL-2.0

package zephyrmod

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrPlatformIncompatible is the sentinel error wrapped by IncompatibleError.
var ErrPlatformIncompatible = errors.New("module is not compatible with this platform")

type (
	// Host describes the environment a module is checked against.
	Host struct {
		OS    string
		Arch  string
		Shell string
		// Version is the running zephyr version. "dev" and "" satisfy any minimum.
		Version string
	}

	// IncompatibleError reports which platform constraint excludes the host.
	IncompatibleError struct {
		Field  string
		Want   []string
		Actual string
	}
)

// Error implements the error interface.
func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("requires %s %s, running %s", e.Field, strings.Join(e.Want, " or "), e.Actual)
}

// Unwrap returns ErrPlatformIncompatible so callers can use errors.Is.
func (e *IncompatibleError) Unwrap() error { return ErrPlatformIncompatible }

// CurrentHost returns the host description for this process.
// The shell is the base name of $SHELL.
func CurrentHost(version string) Host {
	return Host{
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		Shell:   filepath.Base(os.Getenv("SHELL")),
		Version: version,
	}
}

// Check returns nil when the platform filter admits host.
func (p Platform) Check(h Host) error {
	if len(p.OS) > 0 && !containsFold(p.OS, h.OS) {
		return &IncompatibleError{Field: "os", Want: p.OS, Actual: h.OS}
	}
	if len(p.Arch) > 0 && !containsFold(p.Arch, h.Arch) {
		return &IncompatibleError{Field: "arch", Want: p.Arch, Actual: h.Arch}
	}
	if len(p.Shell) > 0 && !containsFold(p.Shell, h.Shell) {
		return &IncompatibleError{Field: "shell", Want: p.Shell, Actual: h.Shell}
	}
	if p.MinVersion != "" && !satisfiesMinVersion(h.Version, p.MinVersion) {
		return &IncompatibleError{Field: "zephyr version", Want: []string{">= " + p.MinVersion}, Actual: h.Version}
	}
	return nil
}

func containsFold(list []string, value string) bool {
	return slices.ContainsFunc(list, func(s string) bool {
		return strings.EqualFold(s, value)
	})
}

// satisfiesMinVersion compares versions with or without a leading "v".
// Development builds and unparseable minimums never exclude a host.
func satisfiesMinVersion(current, minimum string) bool {
	if current == "" || current == "dev" {
		return true
	}
	cur, minV := canonicalVersion(current), canonicalVersion(minimum)
	if !semver.IsValid(minV) {
		return true
	}
	if !semver.IsValid(cur) {
		return false
	}
	return semver.Compare(cur, minV) >= 0
}

func canonicalVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
