// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zephyr-sh/zephyr/internal/scanner"
	"github.com/zephyr-sh/zephyr/pkg/zephyrmod"
)

const (
	// KindInput covers malformed sources, invalid names and similar caller mistakes.
	KindInput Kind = iota + 1
	// KindTrustGate covers scan results that block installation.
	KindTrustGate
	// KindConsistency covers dependency and manifest problems that no flag overrides.
	KindConsistency
	// KindEnvironment covers VCS, network and filesystem failures.
	KindEnvironment
	// KindRollback covers an update whose rollback itself failed.
	KindRollback
)

var (
	// ErrAlreadyExists is returned when the destination module directory exists.
	ErrAlreadyExists = errors.New("module already exists")
	// ErrNotInstalled is returned when the named module is not in the modules directory.
	ErrNotInstalled = errors.New("module is not installed")
	// ErrNotGitModule is returned when updating a module that is not a git checkout.
	ErrNotGitModule = errors.New("module is not a git checkout")
	// ErrBlocked is the sentinel error wrapped by BlockedError.
	ErrBlocked = errors.New("blocked by security scan")
	// ErrDeclined is returned when the user declines to proceed past warnings.
	ErrDeclined = errors.New("installation declined")
	// ErrHasDependents is the sentinel error wrapped by DependentsError.
	ErrHasDependents = errors.New("module has dependents")
	// ErrInvalidModule is the sentinel error wrapped by ValidationError.
	ErrInvalidModule = errors.New("module failed validation")
	// ErrLocalDisabled is returned for local-directory sources when they are not allowed.
	ErrLocalDisabled = errors.New("local directory installs are disabled")
	// ErrInvalidSource is the sentinel error wrapped by SourceError.
	ErrInvalidSource = errors.New("invalid module source")
	// ErrModulesDirMissing is returned when the modules directory does not exist.
	ErrModulesDirMissing = errors.New("modules directory does not exist")
)

type (
	// Kind classifies a pipeline failure.
	Kind int

	// Error is the error type returned by pipeline operations.
	Error struct {
		Kind   Kind
		Op     string
		Module string
		Err    error
	}

	// SourceError describes a source string that could not be classified.
	SourceError struct {
		Input  string
		Reason string
		// Err is a more specific sentinel, such as ErrLocalDisabled.
		Err error
	}

	// BlockedError reports the scan counts that stopped an install or update.
	BlockedError struct {
		Critical int
		Warning  int
		Hooks    int
		// Scan is the result that caused the block, for reporting. It is
		// nil when hooks were found before the tree was scanned.
		Scan *scanner.Result
		// HookFindings lists the hook scripts found by the pre-export check.
		HookFindings []scanner.HookFinding
	}

	// ValidationError wraps a failed manifest validation.
	ValidationError struct {
		Result zephyrmod.ValidationResult
	}

	// DependentsError is returned when uninstalling a module others depend on.
	DependentsError struct {
		Module     string
		Dependents []string
	}

	// RollbackError reports an update whose rollback failed. Cause is what
	// triggered the rollback.
	RollbackError struct {
		Revision string
		Cause    error
		Err      error
	}
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindTrustGate:
		return "trust gate"
	case KindConsistency:
		return "consistency"
	case KindEnvironment:
		return "environment"
	case KindRollback:
		return "rollback"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Module, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether retrying the operation unchanged might succeed.
func (e *Error) Retryable() bool { return e.Kind == KindEnvironment }

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	return fmt.Sprintf("invalid module source %q: %s", e.Input, e.Reason)
}

// Unwrap returns ErrInvalidSource and Err so callers can use errors.Is.
func (e *SourceError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidSource, e.Err}
	}
	return []error{ErrInvalidSource}
}

// Error implements the error interface.
func (e *BlockedError) Error() string {
	if e.Hooks > 0 {
		return fmt.Sprintf("%d VCS hook script(s) found", e.Hooks)
	}
	return fmt.Sprintf("%d critical finding(s)", e.Critical)
}

// Unwrap returns ErrBlocked, plus scanner.ErrHooksDetected when hooks caused the block.
func (e *BlockedError) Unwrap() []error {
	if e.Hooks > 0 {
		return []error{ErrBlocked, scanner.ErrHooksDetected}
	}
	return []error{ErrBlocked}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Result.Err().Error()
}

// Unwrap returns ErrInvalidModule so callers can use errors.Is.
func (e *ValidationError) Unwrap() error { return ErrInvalidModule }

// Error implements the error interface.
func (e *DependentsError) Error() string {
	return fmt.Sprintf("%s is required by %s", e.Module, strings.Join(e.Dependents, ", "))
}

// Unwrap returns ErrHasDependents so callers can use errors.Is.
func (e *DependentsError) Unwrap() error { return ErrHasDependents }

// Error implements the error interface.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback to %s failed: %v (after: %v)", shortRev(e.Revision), e.Err, e.Cause)
}

// Unwrap returns both the rollback failure and its cause.
func (e *RollbackError) Unwrap() []error { return []error{e.Err, e.Cause} }

func shortRev(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
