// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/zephyr-sh/zephyr/internal/pipeline"
	"github.com/zephyr-sh/zephyr/pkg/types"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeFor maps an error to the process exit code. For an aggregated
// update error the most severe code among its members wins.
func exitCodeFor(err error) types.ExitCode {
	if err == nil {
		return types.ExitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var merr *multierror.Error
	if errors.As(err, &merr) {
		code := types.ExitOK
		for _, e := range merr.Errors {
			if c := exitCodeFor(e); severity(c) > severity(code) {
				code = c
			}
		}
		return code
	}

	switch pipeline.KindOf(err) {
	case pipeline.KindInput:
		return types.ExitUsage
	case pipeline.KindTrustGate:
		return types.ExitBlocked
	case pipeline.KindConsistency:
		return types.ExitInconsistent
	case pipeline.KindRollback:
		return types.ExitRollbackFailed
	default:
		return types.ExitFailure
	}
}

// severity ranks exit codes: a failed rollback outranks a security block,
// which outranks consistency, generic and usage failures.
func severity(c types.ExitCode) int {
	switch c {
	case types.ExitRollbackFailed:
		return 5
	case types.ExitBlocked:
		return 4
	case types.ExitInconsistent:
		return 3
	case types.ExitFailure:
		return 2
	case types.ExitUsage:
		return 1
	default:
		return 0
	}
}
