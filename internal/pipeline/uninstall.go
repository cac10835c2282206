// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/zephyr-sh/zephyr/internal/audit"
	"github.com/zephyr-sh/zephyr/pkg/resolve"
	"github.com/zephyr-sh/zephyr/pkg/zephyrmod"
)

const opUninstall = "uninstall"

type (
	// UninstallOptions control a removal.
	UninstallOptions struct {
		// Force removes the module even when other modules depend on it.
		Force bool
	}

	// UninstallResult describes a completed removal.
	UninstallResult struct {
		Module string
		Path   string
		// Dependents lists modules that still reference the removed module.
		Dependents []string
	}
)

// Uninstall removes an installed module. Removal is refused while other
// installed modules list it as a required or optional dependency, unless
// opts.Force is set.
func (p *Pipeline) Uninstall(_ context.Context, name string, opts UninstallOptions) (*UninstallResult, error) {
	ev := audit.Event{Action: audit.ActionUninstall, Module: name}

	if err := zephyrmod.ValidateName(name); err != nil {
		return nil, p.recordOutcome(ev, opUninstall, &Error{Kind: KindInput, Op: opUninstall, Module: name, Err: err})
	}
	if err := p.checkModulesDir(); err != nil {
		return nil, p.recordOutcome(ev, opUninstall, &Error{Kind: KindEnvironment, Op: opUninstall, Module: name, Err: err})
	}

	dir := p.modulePath(name)
	ev.Source = dir
	if _, err := os.Lstat(dir); err != nil {
		return nil, p.recordOutcome(ev, opUninstall, &Error{Kind: KindInput, Op: opUninstall, Module: name, Err: ErrNotInstalled})
	}

	modules, broken, err := zephyrmod.Discover(p.cfg.ModulesDir)
	if err != nil {
		return nil, p.recordOutcome(ev, opUninstall, &Error{Kind: KindEnvironment, Op: opUninstall, Module: name, Err: err})
	}
	for _, b := range broken {
		p.logger.Warn("ignoring unreadable module while checking dependents", "dir", b.Dir, "error", b.Err)
	}

	dependents, hasDependents := resolve.BuildReverseIndex(modules).DependentsOf(name)
	if hasDependents {
		if !opts.Force {
			return nil, p.recordOutcome(ev, opUninstall, &Error{
				Kind:   KindConsistency,
				Op:     opUninstall,
				Module: name,
				Err:    &DependentsError{Module: name, Dependents: dependents},
			})
		}
		if p.IsProtected(name) {
			p.logger.Error("force-removing protected module with dependents", "module", name, "dependents", dependents)
		} else {
			p.logger.Warn("force-removing module with dependents", "module", name, "dependents", dependents)
		}
		ev.Reason = fmt.Sprintf("forced; dependents: %v", dependents)
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, p.recordOutcome(ev, opUninstall, &Error{Kind: KindEnvironment, Op: opUninstall, Module: name, Err: fmt.Errorf("failed to remove module: %w", err)})
	}
	if _, err := os.Lstat(dir); err == nil {
		return nil, p.recordOutcome(ev, opUninstall, &Error{Kind: KindEnvironment, Op: opUninstall, Module: name, Err: fmt.Errorf("%s still exists after removal", dir)})
	}

	if err := p.recordOutcome(ev, opUninstall, nil); err != nil {
		return nil, err
	}
	p.logger.Info("module uninstalled", "module", name)
	return &UninstallResult{Module: name, Path: dir, Dependents: dependents}, nil
}
