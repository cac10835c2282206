// SPDX-License-Identifier: MPL-2.0

// Package config loads zephyr's settings using Viper with CUE as the file format.
//
// The file is config.cue in the platform configuration directory
// ($XDG_CONFIG_HOME/zephyr on Linux, ~/Library/Application Support/zephyr on
// macOS, %APPDATA%\zephyr on Windows) and is validated against an embedded
// CUE schema before it is merged over the defaults. ZEPHYR_MODULES_DIR,
// ZEPHYR_AUDIT_LOG and ZEPHYR_PUBLIC_KEY_FILE override the file.
package config
