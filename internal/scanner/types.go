// SPDX-License-Identifier: MPL-2.0

package scanner

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// SeverityInfo marks an observation that does not affect the verdict.
	SeverityInfo Severity = iota
	// SeverityWarning marks a risky but commonly legitimate construct.
	SeverityWarning
	// SeverityCritical marks a construct that blocks installation unless overridden.
	SeverityCritical
)

const (
	// CategoryCloud covers cloud provider credential files and variables.
	CategoryCloud CredentialCategory = iota + 1
	// CategorySSH covers SSH private keys and authorized_keys.
	CategorySSH
	// CategoryGPG covers GnuPG keyrings and secret-key exports.
	CategoryGPG
	// CategoryContainer covers container registry and cluster credentials.
	CategoryContainer
	// CategoryPackageManager covers package registry tokens.
	CategoryPackageManager
	// CategoryAIAPI covers AI provider API keys.
	CategoryAIAPI
	// CategoryShellHistory covers shell history files.
	CategoryShellHistory
)

const (
	// MaxFileSize is the largest file whose content is scanned.
	MaxFileSize = 10 << 20
	// MaxLineLength is the longest line that is pattern-matched.
	MaxLineLength = 10000
	// binarySniffLen is how many leading bytes are checked for NUL.
	binarySniffLen = 512
)

var (
	// ErrHooksDetected is set on Result.Err when VCS hook scripts stop the scan.
	ErrHooksDetected = errors.New("vcs hook scripts detected")
	// ErrNotDirectory is returned when the scan root is not a directory.
	ErrNotDirectory = errors.New("scan root is not a directory")
)

type (
	// Severity ranks a finding. The zero value is SeverityInfo.
	Severity int

	// CredentialCategory tags the kind of secret a credential pattern targets.
	CredentialCategory int

	// Options controls a scan.
	Options struct {
		// Unsafe reports findings without letting them fail the scan.
		Unsafe bool
		// Verbose emits per-file debug logs.
		Verbose bool
		// TrustedSource marks content that arrived through a verified signed
		// archive. It is carried into the Result for reporting only.
		TrustedSource bool
		// Logger receives diagnostics; nil means slog.Default().
		Logger *slog.Logger
	}

	// Finding is one reported observation.
	Finding struct {
		// Pattern is the ID of the matching pattern, or of the structural check.
		Pattern     string
		Description string
		Severity    Severity
		// File is relative to the scan root, slash-separated.
		File string
		// Line is 1-based; 0 for findings about a whole file.
		Line int
		// Text is the trimmed source line.
		Text string
	}

	// CredentialFinding details a credential-access match.
	CredentialFinding struct {
		File     string
		Line     int
		Category CredentialCategory
		// Exfiltration is set when the same line also sends data over the network.
		Exfiltration bool
		// Severity is the effective severity after escalation and downgrade.
		Severity Severity
	}

	// SymlinkFinding records a symbolic link that resolves outside the scan root.
	SymlinkFinding struct {
		File   string
		Target string
	}

	// HookFinding records a VCS hook script.
	HookFinding struct {
		Name       string
		Path       string
		Executable bool
		// Interpreter is the shebang command line, if any.
		Interpreter string
	}

	// Summary aggregates scan statistics.
	Summary struct {
		FilesScanned int
		LinesScanned int
		Elapsed      time.Duration
	}

	// Result is the outcome of one scan.
	Result struct {
		// Success is false when critical findings (or hooks) fail the scan and
		// Options.Unsafe was not set.
		Success bool
		Message string
		// Err carries the policy reason for an early stop, such as ErrHooksDetected.
		Err error

		Critical int
		Warning  int
		Info     int

		Findings    []Finding
		Credentials []CredentialFinding
		Symlinks    []SymlinkFinding
		Hooks       []HookFinding

		Summary       Summary
		TrustedSource bool
	}
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Downgrade lowers the severity by one step. Info stays info.
func (s Severity) Downgrade() Severity {
	if s > SeverityInfo {
		return s - 1
	}
	return s
}

func (c CredentialCategory) String() string {
	switch c {
	case CategoryCloud:
		return "cloud"
	case CategorySSH:
		return "ssh"
	case CategoryGPG:
		return "gpg"
	case CategoryContainer:
		return "container"
	case CategoryPackageManager:
		return "package-manager"
	case CategoryAIAPI:
		return "ai-api"
	case CategoryShellHistory:
		return "shell-history"
	default:
		return "unknown"
	}
}

// Location formats the finding position as file:line.
func (f Finding) Location() string {
	if f.Line == 0 {
		return f.File
	}
	return fmt.Sprintf("%s:%d", f.File, f.Line)
}

// HasFindings reports whether anything at warning level or above, or any hook,
// was found. These are the results an unsafe override has to be recorded for.
func (r *Result) HasFindings() bool {
	return r.Critical > 0 || r.Warning > 0 || len(r.Hooks) > 0
}

func (r *Result) add(f Finding) {
	switch f.Severity {
	case SeverityCritical:
		r.Critical++
	case SeverityWarning:
		r.Warning++
	default:
		r.Info++
	}
	r.Findings = append(r.Findings, f)
}
