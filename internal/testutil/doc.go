// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Helpers cover directory and file fixtures (MustMkdirAll, WriteFile,
// WriteFileMode, Symlink) and module trees with a generated module.toml
// (WriteModule).
package testutil
