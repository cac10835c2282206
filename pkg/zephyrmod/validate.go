// SPDX-License-Identifier: MPL-2.0

package zephyrmod

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// KindNone is the kind of a passing validation.
	KindNone ValidationKind = iota
	// KindManifestMissing means module.toml is absent.
	KindManifestMissing
	// KindManifestInvalid means module.toml cannot be parsed or is incomplete.
	KindManifestInvalid
	// KindNameMismatch means the manifest name differs from the expected name.
	KindNameMismatch
	// KindPlatformIncompatible means the platform filter excludes this host.
	KindPlatformIncompatible
	// KindMissingFiles means one or more load files do not exist.
	KindMissingFiles
)

type (
	// ValidationKind classifies a validation failure.
	ValidationKind int

	// ValidationResult is the outcome of validating a module directory.
	ValidationResult struct {
		Valid   bool
		Kind    ValidationKind
		Message string
		// MissingFiles lists load files that do not exist (KindMissingFiles only).
		MissingFiles []string
		// Module is the parsed manifest when parsing succeeded.
		Module *Module
	}

	// Validator checks staged or installed module directories.
	Validator struct {
		Host Host
	}
)

// String returns the kind name used in messages and audit records.
func (k ValidationKind) String() string {
	switch k {
	case KindNone:
		return "valid"
	case KindManifestMissing:
		return "manifest-missing"
	case KindManifestInvalid:
		return "manifest-invalid"
	case KindNameMismatch:
		return "name-mismatch"
	case KindPlatformIncompatible:
		return "platform-incompatible"
	case KindMissingFiles:
		return "missing-files"
	default:
		return "unknown"
	}
}

// Err converts a failed result into an error. Passing results return nil.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%s: %s", r.Kind, r.Message)
}

// NewValidator returns a validator for the current host running the given zephyr version.
func NewValidator(version string) *Validator {
	return &Validator{Host: CurrentHost(version)}
}

// Validate checks manifest presence and parseability, that the manifest name
// equals expectedName (skipped when expectedName is empty), platform
// compatibility, and that every load file exists inside moduleRoot.
func (v *Validator) Validate(moduleRoot, expectedName string) ValidationResult {
	manifestPath := filepath.Join(moduleRoot, ManifestFileName)
	m, err := ParseManifest(manifestPath)
	if err != nil {
		if errors.Is(err, ErrManifestNotFound) {
			return ValidationResult{Kind: KindManifestMissing, Message: fmt.Sprintf("no %s in module root", ManifestFileName)}
		}
		return ValidationResult{Kind: KindManifestInvalid, Message: err.Error()}
	}

	if expectedName != "" && m.Name != expectedName {
		return ValidationResult{
			Kind:    KindNameMismatch,
			Message: fmt.Sprintf("manifest declares module %q, expected %q", m.Name, expectedName),
			Module:  m,
		}
	}

	if err := m.Platform.Check(v.Host); err != nil {
		return ValidationResult{Kind: KindPlatformIncompatible, Message: err.Error(), Module: m}
	}

	var missing []string
	for _, f := range m.Files {
		if filepath.IsAbs(f) || escapesRoot(f) {
			return ValidationResult{
				Kind:    KindManifestInvalid,
				Message: fmt.Sprintf("load file %q must be a relative path inside the module", f),
				Module:  m,
			}
		}
		info, statErr := os.Stat(filepath.Join(moduleRoot, f))
		if statErr != nil || info.IsDir() {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return ValidationResult{
			Kind:         KindMissingFiles,
			Message:      fmt.Sprintf("load files not found: %s", strings.Join(missing, ", ")),
			MissingFiles: missing,
			Module:       m,
		}
	}

	return ValidationResult{Valid: true, Kind: KindNone, Module: m}
}

func escapesRoot(rel string) bool {
	clean := filepath.Clean(filepath.FromSlash(rel))
	return clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))
}
