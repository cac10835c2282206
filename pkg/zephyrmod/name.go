// SPDX-License-Identifier: MPL-2.0

package zephyrmod

import (
	"errors"
	"fmt"
	"strings"
)

// MaxNameLength is the maximum length of an installed module name.
const MaxNameLength = 50

const (
	// NameEmpty means the name is empty.
	NameEmpty NameViolation = iota + 1
	// NameTooLong means the name exceeds MaxNameLength.
	NameTooLong
	// NameUppercase means the name contains uppercase letters.
	NameUppercase
	// NameBadFirstChar means the name does not start with a letter or digit.
	NameBadFirstChar
	// NameBadChar means the name contains a character outside [a-z0-9_-].
	NameBadChar
	// NameReserved means the name is in the reserved set.
	NameReserved
)

var (
	// ErrInvalidName is the sentinel error wrapped by InvalidNameError.
	ErrInvalidName = errors.New("invalid module name")

	//nolint:gochecknoglobals // Immutable lookup table.
	reservedNames = map[string]bool{
		"zephyr":  true,
		"modules": true,
		"module":  true,
		"system":  true,
		"temp":    true,
		"tmp":     true,
		"test":    true,
		"lib":     true,
		"bin":     true,
		"local":   true,
	}

	//nolint:gochecknoglobals // Ordered so that the longer prefix wins.
	namePrefixes = []string{"zephyr-module-", "zephyr-"}
)

type (
	// NameViolation identifies which naming rule a module name breaks.
	NameViolation int

	// InvalidNameError is returned when a module name breaks a naming rule.
	InvalidNameError struct {
		Name      string
		Violation NameViolation
		// Char is the offending character for NameBadChar and NameBadFirstChar.
		Char rune
	}
)

// String returns a short description of the violated rule.
func (v NameViolation) String() string {
	switch v {
	case NameEmpty:
		return "name is empty"
	case NameTooLong:
		return fmt.Sprintf("name exceeds %d characters", MaxNameLength)
	case NameUppercase:
		return "name must be lowercase"
	case NameBadFirstChar:
		return "name must start with a letter or digit"
	case NameBadChar:
		return "name may only contain letters, digits, '-' and '_'"
	case NameReserved:
		return "name is reserved"
	default:
		return "unknown naming violation"
	}
}

// Error implements the error interface.
func (e *InvalidNameError) Error() string {
	switch e.Violation {
	case NameBadChar, NameBadFirstChar:
		return fmt.Sprintf("invalid module name %q: %s (found %q)", e.Name, e.Violation, e.Char)
	default:
		return fmt.Sprintf("invalid module name %q: %s", e.Name, e.Violation)
	}
}

// Unwrap returns ErrInvalidName so callers can use errors.Is.
func (e *InvalidNameError) Unwrap() error { return ErrInvalidName }

// IsReservedName reports whether name is reserved for zephyr itself.
func IsReservedName(name string) bool {
	return reservedNames[name]
}

// ValidateName checks name against the installed-module naming rules.
func ValidateName(name string) error {
	if name == "" {
		return &InvalidNameError{Name: name, Violation: NameEmpty}
	}
	if len(name) > MaxNameLength {
		return &InvalidNameError{Name: name, Violation: NameTooLong}
	}
	if strings.ToLower(name) != name {
		return &InvalidNameError{Name: name, Violation: NameUppercase}
	}
	for i, r := range name {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if i == 0 && !alnum {
			return &InvalidNameError{Name: name, Violation: NameBadFirstChar, Char: r}
		}
		if !alnum && r != '-' && r != '_' {
			return &InvalidNameError{Name: name, Violation: NameBadChar, Char: r}
		}
	}
	if IsReservedName(name) {
		return &InvalidNameError{Name: name, Violation: NameReserved}
	}
	return nil
}

// DeriveName computes and validates the module name for a repository or archive
// URL: the final path segment without a trailing ".git", minus a
// "zephyr-module-" prefix or, failing that, a "zephyr-" prefix.
func DeriveName(rawURL string) (string, error) {
	trimmed := strings.TrimRight(rawURL, "/")
	// scp-like git@host:repo has no slash before the path.
	if i := strings.LastIndexAny(trimmed, "/:"); i >= 0 {
		trimmed = trimmed[i+1:]
	}

	name := strings.TrimSuffix(trimmed, ".git")
	for _, prefix := range namePrefixes {
		if stripped, ok := strings.CutPrefix(name, prefix); ok {
			name = stripped
			break
		}
	}

	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}
