// SPDX-License-Identifier: MPL-2.0

// Package pipeline moves module content into and out of the live modules
// directory.
//
// Every install stages content in a private temporary directory, runs the
// security scanner and the manifest validator there, and only then promotes the
// staged tree with a single rename. Git sources are cloned without a checkout
// so that nothing from the repository is materialized by VCS machinery before
// the scan; signed tarballs must pass both signature and hash verification
// before extraction. Updates record the current revision and hard-reset to it
// when the new content fails scanning or validation. Uninstall refuses to
// remove a module other modules depend on unless forced.
//
// All outcomes, and every unsafe-mode override, are forwarded to an audit sink.
//
// The modules directory is not locked; concurrent invocations against the same
// directory can race on the destination path.
package pipeline
