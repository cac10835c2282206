// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/zephyr-sh/zephyr/internal/audit"
	"github.com/zephyr-sh/zephyr/internal/scanner"
)

const opUpdate = "update"

// Update statuses.
const (
	StatusUpdated        UpdateStatus = "updated"
	StatusUpToDate       UpdateStatus = "up-to-date"
	StatusFailed         UpdateStatus = "failed"
	StatusRolledBack     UpdateStatus = "rolled-back"
	StatusRollbackFailed UpdateStatus = "rollback-failed"
)

type (
	// UpdateStatus is the outcome of updating one module.
	UpdateStatus string

	// UpdateOptions control an update run.
	UpdateOptions struct {
		Unsafe  bool
		Verbose bool
	}

	// UpdateOutcome describes what happened to one module.
	UpdateOutcome struct {
		Module  string
		Status  UpdateStatus
		FromRev string
		ToRev   string
		Scan    *scanner.Result
		Err     error
	}

	// UpdateReport collects the outcome of every module in an update run.
	UpdateReport struct {
		Outcomes []UpdateOutcome
	}
)

// Failed returns the outcomes that did not end updated or up to date.
func (r *UpdateReport) Failed() []UpdateOutcome {
	var out []UpdateOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Update pulls new commits for the named module, or for every git module when
// name is empty. New content is scanned and validated in place; on failure the
// module is hard-reset to the revision it had before the pull. A module
// directory is never removed by Update.
//
// The report is returned even when some modules fail; the error aggregates
// every per-module failure.
func (p *Pipeline) Update(ctx context.Context, name string, opts UpdateOptions) (*UpdateReport, error) {
	if err := p.checkModulesDir(); err != nil {
		return nil, &Error{Kind: KindEnvironment, Op: opUpdate, Err: err}
	}

	targets, err := p.updateTargets(name)
	if err != nil {
		_ = p.record(audit.Event{Action: audit.ActionUpdate, Module: name, Result: audit.ResultFailure, Reason: err.Error()})
		return nil, err
	}

	report := &UpdateReport{}
	var merr *multierror.Error
	for _, target := range targets {
		outcome := p.updateOne(ctx, target, opts)
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Err != nil {
			merr = multierror.Append(merr, outcome.Err)
		}
	}
	return report, merr.ErrorOrNil()
}

func (p *Pipeline) updateTargets(name string) ([]string, error) {
	if name != "" {
		info, err := os.Stat(p.modulePath(name))
		if err != nil || !info.IsDir() {
			return nil, &Error{Kind: KindInput, Op: opUpdate, Module: name, Err: ErrNotInstalled}
		}
		if !p.vcs.IsRepository(p.modulePath(name)) {
			return nil, &Error{Kind: KindInput, Op: opUpdate, Module: name, Err: ErrNotGitModule}
		}
		return []string{name}, nil
	}

	entries, err := os.ReadDir(p.cfg.ModulesDir)
	if err != nil {
		return nil, &Error{Kind: KindEnvironment, Op: opUpdate, Err: fmt.Errorf("failed to read modules directory: %w", err)}
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if p.vcs.IsRepository(filepath.Join(p.cfg.ModulesDir, e.Name())) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (p *Pipeline) updateOne(ctx context.Context, name string, opts UpdateOptions) UpdateOutcome {
	dir := p.modulePath(name)
	out := UpdateOutcome{Module: name}
	ev := audit.Event{Action: audit.ActionUpdate, Module: name, Source: dir}

	fail := func(err error) UpdateOutcome {
		out.Status = StatusFailed
		out.Err = p.recordOutcome(ev, opUpdate, err)
		return out
	}

	from, err := p.vcs.Head(dir)
	if err != nil {
		return fail(&Error{Kind: KindEnvironment, Op: opUpdate, Module: name, Err: fmt.Errorf("failed to read HEAD: %w", err)})
	}
	out.FromRev = from

	if err := p.vcs.Fetch(ctx, dir); err != nil {
		return fail(&Error{Kind: KindEnvironment, Op: opUpdate, Module: name, Err: fmt.Errorf("fetch failed: %w", err)})
	}

	pullErr := p.vcs.Pull(ctx, dir)
	to, headErr := p.vcs.Head(dir)
	if pullErr != nil {
		cause := &Error{Kind: KindEnvironment, Op: opUpdate, Module: name, Err: fmt.Errorf("pull failed: %w", pullErr)}
		// A failed pull that left HEAD alone needs no rollback.
		if headErr == nil && to == from {
			return fail(cause)
		}
		return p.rollback(out, ev, from, cause)
	}
	if headErr != nil {
		return p.rollback(out, ev, from, &Error{Kind: KindEnvironment, Op: opUpdate, Module: name, Err: fmt.Errorf("failed to read HEAD: %w", headErr)})
	}
	out.ToRev = to

	if to == from {
		out.Status = StatusUpToDate
		ev.Result = audit.ResultUpToDate
		out.Err = p.recordOutcome(ev, opUpdate, nil)
		return out
	}

	res, err := p.scan(dir, scanner.Options{Unsafe: opts.Unsafe, Verbose: opts.Verbose, Logger: p.logger})
	if err != nil {
		return p.rollback(out, ev, from, &Error{Kind: KindEnvironment, Op: opUpdate, Module: name, Err: fmt.Errorf("security scan failed: %w", err)})
	}
	out.Scan = res
	ev.Critical, ev.Warning = res.Critical, res.Warning
	if err := p.gate(res, opts.Unsafe, ev, opUpdate); err != nil {
		return p.rollback(out, ev, from, err)
	}

	vr := p.validator.Validate(dir, name)
	if !vr.Valid {
		return p.rollback(out, ev, from, &Error{Kind: KindConsistency, Op: opUpdate, Module: name, Err: &ValidationError{Result: vr}})
	}

	out.Status = StatusUpdated
	out.Err = p.recordOutcome(ev, opUpdate, nil)
	if out.Err == nil {
		p.logger.Info("module updated", "module", name, "from", shortRev(from), "to", shortRev(to))
	}
	return out
}

// rollback hard-resets the module to rev after cause made the update fail.
func (p *Pipeline) rollback(out UpdateOutcome, ev audit.Event, rev string, cause error) UpdateOutcome {
	p.logger.Warn("rolling back module update", "module", out.Module, "revision", shortRev(rev), "error", cause)

	if err := p.vcs.Reset(p.modulePath(out.Module), rev); err != nil {
		out.Status = StatusRollbackFailed
		ev.Result = audit.ResultRollbackFailed
		out.Err = p.recordOutcome(ev, opUpdate, &Error{
			Kind:   KindRollback,
			Op:     opUpdate,
			Module: out.Module,
			Err:    &RollbackError{Revision: rev, Cause: cause, Err: err},
		})
		return out
	}

	out.Status = StatusRolledBack
	out.ToRev = rev
	ev.Result = audit.ResultRolledBack
	out.Err = p.recordOutcome(ev, opUpdate, cause)
	return out
}
