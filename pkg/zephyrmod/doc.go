// SPDX-License-Identifier: MPL-2.0

// Package zephyrmod provides the in-memory representation of zephyr shell
// configuration modules and the operations that produce it.
//
// A module is a directory under the modules directory that contains a
// module.toml manifest at its root plus the shell files it loads.
//
// # Module Metadata
//
//   - [Module]: the module record (identity, priority, dependencies, files, platform filter)
//   - [ParseManifest]: parse a module.toml file into a [Module]
//   - [Discover]: read every module under a modules directory, in lexical order
//
// # Validation
//
//   - [Validator]: manifest presence, name match, platform compatibility, and
//     load-file existence checks, reported as a [ValidationResult]
//   - [ValidateName] and [DeriveName]: module naming rules for installed modules
//
// # Module Naming
//
// Installed module names are lowercase, at most 50 characters long, start with a
// letter or digit, and otherwise contain only letters, digits, '-' and '_'. Names
// derived from repository URLs drop a trailing ".git" and a "zephyr-module-" or
// "zephyr-" prefix.
package zephyrmod
