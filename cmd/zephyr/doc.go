// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the zephyr CLI.
//
// The commands are thin: they load configuration, build an install pipeline
// around the configured modules directory and audit log, and render results.
// Every policy decision lives in internal/pipeline and internal/scanner.
package cmd
