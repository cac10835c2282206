// SPDX-License-Identifier: MPL-2.0

// Package scanner inspects untrusted module source for dangerous shell
// constructs, credential access and evasion techniques before the module is
// allowed into the live modules directory.
//
// The scanner is a bounded line-oriented pattern matcher, not a shell parser.
// It understands just enough shell lexing to ignore matches inside quoted
// strings, trailing comments and heredoc bodies. Structural checks (symlinks
// escaping the module root, VCS hook scripts) run alongside content matching.
// Bash and POSIX scripts are additionally run through a full parser, and a
// parse failure is reported as an info finding.
//
// Scan never decides what the caller does with a finding; it only reports.
// The install pipeline interprets a Result against its policy.
package scanner
