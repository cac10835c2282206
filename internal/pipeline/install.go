// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zephyr-sh/zephyr/internal/audit"
	"github.com/zephyr-sh/zephyr/internal/scanner"
	"github.com/zephyr-sh/zephyr/pkg/zephyrmod"
)

const opInstall = "install"

// archiveName is the staged file name of a downloaded tarball.
const archiveName = "module.tar.gz"

type (
	// InstallOptions control a single install.
	InstallOptions struct {
		// Force replaces an existing module of the same name.
		Force bool
		// Unsafe proceeds past critical findings and hooks, recording a bypass.
		Unsafe bool
		// AllowLocal permits a local directory source for this install.
		AllowLocal bool
		// Verbose enables per-file scanner logging.
		Verbose bool
	}

	// InstallResult describes a completed install.
	InstallResult struct {
		Module string
		Path   string
		Source Source
		Scan   *scanner.Result
		// Manifest is the validated manifest of the installed module.
		Manifest *zephyrmod.Module
		// SignatureVerified is set for signed tarball installs.
		SignatureVerified bool
		SignerKeyID       string
		Replaced          bool
	}

	// acquired is staged content ready for scanning.
	acquired struct {
		dir         string
		trusted     bool
		signerKeyID string
	}
)

// Install fetches the module named by input into staging, scans and validates
// it, and moves it into the modules directory.
//
// Nothing under the modules directory is touched before the final move. The
// staging directory is removed before Install returns.
func (p *Pipeline) Install(ctx context.Context, input string, opts InstallOptions) (*InstallResult, error) {
	ev := audit.Event{Action: audit.ActionInstall, Source: input}

	src, err := ParseSource(input, opts.AllowLocal || p.cfg.AllowLocal)
	if err != nil {
		return nil, p.recordOutcome(ev, opInstall, &Error{Kind: KindInput, Op: opInstall, Err: err})
	}
	if err := p.checkModulesDir(); err != nil {
		return nil, p.recordOutcome(ev, opInstall, &Error{Kind: KindEnvironment, Op: opInstall, Err: err})
	}

	// Git modules are named after their URL, so conflicts are caught before
	// anything is downloaded.
	var name string
	if src.Kind == SourceGit {
		name, err = zephyrmod.DeriveName(src.Location)
		if err != nil {
			return nil, p.recordOutcome(ev, opInstall, &Error{Kind: KindInput, Op: opInstall, Err: err})
		}
		ev.Module = name
		if err := p.checkDestination(name, opts.Force); err != nil {
			return nil, p.recordOutcome(ev, opInstall, err)
		}
	}

	st, err := newStage(p.cfg.TempDir)
	if err != nil {
		return nil, p.recordOutcome(ev, opInstall, &Error{Kind: KindEnvironment, Op: opInstall, Module: name, Err: err})
	}
	defer func() {
		if cleanupErr := st.Cleanup(); cleanupErr != nil {
			p.logger.Warn("failed to remove staging directory", "dir", st.root, "error", cleanupErr)
		}
	}()

	result, err := p.install(ctx, st, src, name, opts, &ev)
	if err != nil {
		return nil, p.recordOutcome(ev, opInstall, err)
	}
	if err := p.recordOutcome(ev, opInstall, nil); err != nil {
		return nil, err
	}
	p.logger.Info("module installed", "module", result.Module, "source", src.Kind.String(), "path", result.Path)
	return result, nil
}

func (p *Pipeline) install(ctx context.Context, st *stage, src Source, name string, opts InstallOptions, ev *audit.Event) (*InstallResult, error) {
	var (
		acq *acquired
		err error
	)
	switch src.Kind {
	case SourceGit:
		acq, err = p.acquireGit(ctx, st, src, name, opts)
	case SourceLocal:
		acq, err = p.acquireLocal(st, src)
	case SourceTarball:
		acq, err = p.acquireTarball(ctx, st, src)
	default:
		err = &Error{Kind: KindInput, Op: opInstall, Err: &SourceError{Input: src.Input, Reason: "unsupported source kind"}}
	}
	if err != nil {
		return nil, err
	}
	ev.SignatureVerified = acq.trusted

	res, err := p.scan(acq.dir, scanner.Options{
		Unsafe:        opts.Unsafe,
		Verbose:       opts.Verbose,
		TrustedSource: acq.trusted,
		Logger:        p.logger,
	})
	if err != nil {
		return nil, &Error{Kind: KindEnvironment, Op: opInstall, Module: name, Err: fmt.Errorf("security scan failed: %w", err)}
	}
	ev.Critical, ev.Warning = res.Critical, res.Warning

	scanned := *ev
	if scanned.Module == "" {
		scanned.Module = filepath.Base(src.Location)
	}
	if err := p.gate(res, opts.Unsafe, scanned, opInstall); err != nil {
		return nil, err
	}

	// Local and tarball modules are named by their manifest.
	vr := p.validator.Validate(acq.dir, name)
	if !vr.Valid {
		return nil, &Error{Kind: KindConsistency, Op: opInstall, Module: name, Err: &ValidationError{Result: vr}}
	}
	if name == "" {
		name = vr.Module.Name
		ev.Module = name
		if err := zephyrmod.ValidateName(name); err != nil {
			return nil, &Error{Kind: KindConsistency, Op: opInstall, Module: name, Err: err}
		}
	}

	if src.Kind == SourceGit {
		if err := p.vcs.Checkout(acq.dir); err != nil {
			return nil, &Error{Kind: KindEnvironment, Op: opInstall, Module: name, Err: fmt.Errorf("checkout failed: %w", err)}
		}
	}

	replaced, err := p.move(acq.dir, name, opts.Force)
	if err != nil {
		return nil, err
	}

	return &InstallResult{
		Module:            name,
		Path:              p.modulePath(name),
		Source:            src,
		Scan:              res,
		Manifest:          vr.Module,
		SignatureVerified: acq.trusted,
		SignerKeyID:       acq.signerKeyID,
		Replaced:          replaced,
	}, nil
}

// acquireGit clones without a checkout, refuses hook scripts before any
// content is materialized, then exports the HEAD tree as plain files.
func (p *Pipeline) acquireGit(ctx context.Context, st *stage, src Source, name string, opts InstallOptions) (*acquired, error) {
	dir := st.path(name)
	if err := p.vcs.Clone(ctx, src.Location, dir); err != nil {
		return nil, &Error{Kind: KindEnvironment, Op: opInstall, Module: name, Err: fmt.Errorf("clone failed: %w", err)}
	}

	hooks, err := scanner.FindHooks(dir)
	if err != nil {
		return nil, &Error{Kind: KindEnvironment, Op: opInstall, Module: name, Err: err}
	}
	if len(hooks) > 0 && !opts.Unsafe {
		for _, h := range hooks {
			p.logger.Warn("repository contains a hook script", "module", name, "hook", h.Path, "executable", h.Executable)
		}
		return nil, &Error{Kind: KindTrustGate, Op: opInstall, Module: name, Err: &BlockedError{Critical: len(hooks), Hooks: len(hooks), HookFindings: hooks}}
	}

	if err := p.vcs.ExportHead(dir); err != nil {
		return nil, &Error{Kind: KindEnvironment, Op: opInstall, Module: name, Err: fmt.Errorf("failed to export repository tree: %w", err)}
	}
	return &acquired{dir: dir}, nil
}

func (p *Pipeline) acquireLocal(st *stage, src Source) (*acquired, error) {
	dir := st.path("local")
	if err := copyTree(src.Location, dir); err != nil {
		return nil, &Error{Kind: KindEnvironment, Op: opInstall, Err: fmt.Errorf("failed to copy %s: %w", src.Location, err)}
	}
	return &acquired{dir: dir}, nil
}

// acquireTarball downloads the archive with its signature and hash, verifies
// both, and extracts it. Nothing is extracted from an unverified archive.
func (p *Pipeline) acquireTarball(ctx context.Context, st *stage, src Source) (*acquired, error) {
	if p.verifier == nil {
		return nil, &Error{Kind: KindTrustGate, Op: opInstall, Err: ErrNoPublicKey}
	}

	keyID, archive, err := p.fetchVerified(ctx, st, src.Location, opInstall)
	if err != nil {
		return nil, err
	}

	extractDir := st.path("extract")
	if err := os.Mkdir(extractDir, 0o700); err != nil {
		return nil, &Error{Kind: KindEnvironment, Op: opInstall, Err: err}
	}
	if err := extractTarGz(archive, extractDir, MaxExtractSize); err != nil {
		kind := KindEnvironment
		if errors.Is(err, ErrUnsafeArchive) || errors.Is(err, ErrArchiveTooLarge) {
			kind = KindTrustGate
		}
		return nil, &Error{Kind: kind, Op: opInstall, Err: err}
	}
	dir, err := unwrapSingleDir(extractDir)
	if err != nil {
		return nil, &Error{Kind: KindEnvironment, Op: opInstall, Err: err}
	}
	return &acquired{dir: dir, trusted: true, signerKeyID: keyID}, nil
}

// fetchVerified stages location plus its .sig and .sha256 companions and
// verifies them. It returns the signer key ID and the staged archive path.
func (p *Pipeline) fetchVerified(ctx context.Context, st *stage, location, op string) (string, string, error) {
	downloads := st.path("download")
	if err := os.Mkdir(downloads, 0o700); err != nil {
		return "", "", &Error{Kind: KindEnvironment, Op: op, Err: err}
	}

	archive := filepath.Join(downloads, archiveName)
	sig := archive + sigSuffix
	hash := archive + hashSuffix
	for _, f := range []struct{ from, to string }{
		{location, archive},
		{location + sigSuffix, sig},
		{location + hashSuffix, hash},
	} {
		if err := p.fetcher.Fetch(ctx, f.from, f.to); err != nil {
			kind := KindEnvironment
			if errors.Is(err, ErrDownloadTooLarge) {
				kind = KindTrustGate
			}
			return "", "", &Error{Kind: kind, Op: op, Err: fmt.Errorf("failed to fetch %s: %w", f.from, err)}
		}
	}

	keyID, err := p.verifier.VerifySignature(archive, sig)
	if err != nil {
		return "", "", &Error{Kind: KindTrustGate, Op: op, Err: err}
	}
	if err := VerifyHash(archive, hash); err != nil {
		return "", "", &Error{Kind: KindTrustGate, Op: op, Err: err}
	}
	p.logger.Debug("archive verified", "source", location, "key", keyID)
	return keyID, archive, nil
}

func (p *Pipeline) checkDestination(name string, force bool) error {
	if _, err := os.Lstat(p.modulePath(name)); err == nil && !force {
		return &Error{Kind: KindInput, Op: opInstall, Module: name, Err: ErrAlreadyExists}
	}
	return nil
}

// move promotes the staged directory to <ModulesDir>/<name> with a single
// rename. It reports whether an existing module was replaced.
func (p *Pipeline) move(staged, name string, force bool) (bool, error) {
	dest := p.modulePath(name)
	replaced := false
	if _, err := os.Lstat(dest); err == nil {
		if !force {
			return false, &Error{Kind: KindInput, Op: opInstall, Module: name, Err: ErrAlreadyExists}
		}
		p.logger.Warn("replacing installed module", "module", name)
		if err := os.RemoveAll(dest); err != nil {
			return false, &Error{Kind: KindEnvironment, Op: opInstall, Module: name, Err: fmt.Errorf("failed to remove existing module: %w", err)}
		}
		replaced = true
	}
	if err := os.Rename(staged, dest); err != nil {
		return false, &Error{Kind: KindEnvironment, Op: opInstall, Module: name, Err: fmt.Errorf("failed to move module into place: %w", err)}
	}
	return replaced, nil
}
