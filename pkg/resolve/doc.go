// SPDX-License-Identifier: MPL-2.0

// Package resolve orders modules for loading and answers reverse-dependency
// queries.
//
// Resolve performs a priority-aware topological sort: a module always loads
// after every module it requires, and modules that become loadable at the same
// time load in ascending priority, ties broken by discovery order. Optional
// dependencies never constrain the order.
//
// BuildReverseIndex maps each referenced module name to the modules that depend
// on it, and is what uninstall consults before removing a module.
package resolve
