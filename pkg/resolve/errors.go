// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ReasonEmptyName means a module in the input has no name.
	ReasonEmptyName InvalidReason = iota + 1
	// ReasonDuplicateName means two modules in the input share a name.
	ReasonDuplicateName
	// ReasonNilModule means the input contains a nil entry.
	ReasonNilModule
)

var (
	// ErrMissingDependency is the sentinel error wrapped by MissingDependencyError.
	ErrMissingDependency = errors.New("missing dependency")
	// ErrCircularDependency is the sentinel error wrapped by CircularDependencyError.
	ErrCircularDependency = errors.New("circular dependency")
	// ErrInvalidModule is the sentinel error wrapped by InvalidModuleError.
	ErrInvalidModule = errors.New("invalid module")
)

type (
	// InvalidReason classifies an InvalidModuleError.
	InvalidReason int

	// MissingDependencyError is returned when a module requires a module that is
	// not part of the input set.
	MissingDependencyError struct {
		Module  string
		Missing string
	}

	// CircularDependencyError is returned when the required-dependency graph has a
	// cycle. Members lists every module that could not be ordered, in discovery
	// order: the cycle itself plus anything that depends on it.
	CircularDependencyError struct {
		Members []string
	}

	// InvalidModuleError is returned when the input set itself is malformed.
	InvalidModuleError struct {
		Reason InvalidReason
		// Module is the offending name (empty for ReasonEmptyName and ReasonNilModule).
		Module string
		// Index is the position of the offending entry in the input.
		Index int
	}
)

func (r InvalidReason) String() string {
	switch r {
	case ReasonEmptyName:
		return "empty module name"
	case ReasonDuplicateName:
		return "duplicate module name"
	case ReasonNilModule:
		return "nil module"
	default:
		return "invalid module"
	}
}

// Error implements the error interface.
func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("module %q requires %q, which is not installed", e.Module, e.Missing)
}

// Unwrap returns ErrMissingDependency so callers can use errors.Is.
func (e *MissingDependencyError) Unwrap() error { return ErrMissingDependency }

// Error implements the error interface.
func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency among modules: %s", strings.Join(e.Members, ", "))
}

// Unwrap returns ErrCircularDependency so callers can use errors.Is.
func (e *CircularDependencyError) Unwrap() error { return ErrCircularDependency }

// Error implements the error interface.
func (e *InvalidModuleError) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("%s: %q (entry %d)", e.Reason, e.Module, e.Index)
	}
	return fmt.Sprintf("%s (entry %d)", e.Reason, e.Index)
}

// Unwrap returns ErrInvalidModule so callers can use errors.Is.
func (e *InvalidModuleError) Unwrap() error { return ErrInvalidModule }
