// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

// Process exit codes used by the zephyr CLI.
const (
	// ExitOK means the command succeeded.
	ExitOK ExitCode = 0
	// ExitFailure is a generic failure: I/O, network, VCS or audit errors.
	ExitFailure ExitCode = 1
	// ExitUsage means the command line or the requested source was malformed.
	ExitUsage ExitCode = 2
	// ExitBlocked means the security gate refused the module.
	ExitBlocked ExitCode = 3
	// ExitInconsistent means dependency or manifest checks failed.
	ExitInconsistent ExitCode = 4
	// ExitRollbackFailed means an update could not be rolled back and the
	// module may be left at an unscanned revision.
	ExitRollbackFailed ExitCode = 5
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode is a process exit status in the POSIX range 0-255.
	ExitCode int

	// InvalidExitCodeError is returned for codes outside 0-255.
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if c is outside 0-255.
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess reports whether c is ExitOK.
func (c ExitCode) IsSuccess() bool { return c == ExitOK }

// IsSecurity reports whether c means the security gate stopped the command.
// Scripts use it to tell refusals apart from transient failures.
func (c ExitCode) IsSecurity() bool { return c == ExitBlocked || c == ExitRollbackFailed }

// String returns the decimal form of c.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
