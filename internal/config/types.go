// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"

	"github.com/zephyr-sh/zephyr/pkg/types"
	"github.com/zephyr-sh/zephyr/pkg/zephyrmod"
)

const (
	// ColorAuto colors output when stdout is a terminal.
	ColorAuto ColorMode = "auto"
	// ColorAlways forces colored output.
	ColorAlways ColorMode = "always"
	// ColorNever disables colored output.
	ColorNever ColorMode = "never"
)

var (
	// ErrInvalidColorMode is the sentinel error wrapped by InvalidColorModeError.
	ErrInvalidColorMode = errors.New("invalid color mode")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidLoadOptions is the sentinel error wrapped by InvalidLoadOptionsError.
	ErrInvalidLoadOptions = errors.New("invalid load options")
)

type (
	// ColorMode selects when output is colored.
	ColorMode string

	// InvalidColorModeError is returned for an unknown ColorMode.
	InvalidColorModeError struct {
		Value ColorMode
	}

	// InvalidConfigError collects every field-level problem in a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// InvalidLoadOptionsError collects every field-level problem in LoadOptions.
	InvalidLoadOptionsError struct {
		FieldErrors []error
	}

	// Config holds zephyr's settings. Path fields may start with "~".
	Config struct {
		ModulesDir types.FilesystemPath `json:"modules_dir" mapstructure:"modules_dir"`
		// TempDir is the staging root; empty means a hidden sibling of ModulesDir.
		TempDir  types.FilesystemPath `json:"temp_dir" mapstructure:"temp_dir"`
		AuditLog types.FilesystemPath `json:"audit_log" mapstructure:"audit_log"`
		Security SecurityConfig       `json:"security" mapstructure:"security"`
		UI       UIConfig             `json:"ui" mapstructure:"ui"`

		// SourcePath is the file the configuration was loaded from, if any.
		SourcePath string `json:"-" mapstructure:"-"`
	}

	// SecurityConfig holds trust-related settings.
	SecurityConfig struct {
		AllowLocal       bool                 `json:"allow_local" mapstructure:"allow_local"`
		ProtectedModules []string             `json:"protected_modules" mapstructure:"protected_modules"`
		PublicKeyFile    types.FilesystemPath `json:"public_key_file" mapstructure:"public_key_file"`
	}

	// UIConfig holds presentation settings.
	UIConfig struct {
		Verbose bool      `json:"verbose" mapstructure:"verbose"`
		Color   ColorMode `json:"color" mapstructure:"color"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		ModulesDir: "~/.zephyr/modules",
		AuditLog:   "~/.zephyr/audit.log",
		Security: SecurityConfig{
			ProtectedModules: []string{},
		},
		UI: UIConfig{Color: ColorAuto},
	}
}

// Expand returns a copy of c with "~" expanded against home in every path.
func (c *Config) Expand(home string) *Config {
	out := *c
	out.Security.ProtectedModules = append([]string(nil), c.Security.ProtectedModules...)
	out.ModulesDir = types.FilesystemPath(c.ModulesDir.Expand(home))
	out.AuditLog = types.FilesystemPath(c.AuditLog.Expand(home))
	if c.TempDir != "" {
		out.TempDir = types.FilesystemPath(c.TempDir.Expand(home))
	}
	if c.Security.PublicKeyFile != "" {
		out.Security.PublicKeyFile = types.FilesystemPath(c.Security.PublicKeyFile.Expand(home))
	}
	return &out
}

// Validate checks the rules that must hold after environment overrides, which
// bypass the CUE schema.
func (c *Config) Validate() error {
	var errs []error
	if ok, fieldErrs := c.ModulesDir.IsValid(); !ok {
		errs = append(errs, fmt.Errorf("modules_dir: %w", fieldErrs[0]))
	}
	if ok, fieldErrs := c.AuditLog.IsValid(); !ok {
		errs = append(errs, fmt.Errorf("audit_log: %w", fieldErrs[0]))
	}
	for i, name := range c.Security.ProtectedModules {
		if err := zephyrmod.ValidateName(name); err != nil {
			errs = append(errs, fmt.Errorf("security.protected_modules[%d]: %w", i, err))
		}
	}
	if err := c.UI.Color.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ui.color: %w", err))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Validate returns an error for an unknown mode. The empty mode means auto.
func (m ColorMode) Validate() error {
	switch m {
	case "", ColorAuto, ColorAlways, ColorNever:
		return nil
	default:
		return &InvalidColorModeError{Value: m}
	}
}

// Error implements the error interface.
func (e *InvalidColorModeError) Error() string {
	return fmt.Sprintf("invalid color mode %q (valid: auto, always, never)", e.Value)
}

// Unwrap returns ErrInvalidColorMode so callers can use errors.Is.
func (e *InvalidColorModeError) Unwrap() error { return ErrInvalidColorMode }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Error implements the error interface.
func (e *InvalidLoadOptionsError) Error() string {
	return fmt.Sprintf("invalid load options: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidLoadOptions so callers can use errors.Is.
func (e *InvalidLoadOptionsError) Unwrap() error { return ErrInvalidLoadOptions }
