// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/zephyr-sh/zephyr/internal/audit"
	"github.com/zephyr-sh/zephyr/internal/scanner"
	"github.com/zephyr-sh/zephyr/pkg/zephyrmod"
)

// stagingSuffix names the default staging root, a hidden sibling of the
// modules directory: "<parent>/.<modules>-staging". A sibling stays on the
// same filesystem so the final move is a rename.
const stagingSuffix = "-staging"

type (
	// Config holds the settings a Pipeline is built from.
	Config struct {
		// ModulesDir is the live modules directory. It must exist.
		ModulesDir string
		// TempDir is the staging root; empty means DefaultStagingRoot(ModulesDir).
		TempDir string
		// ProtectedModules are names whose forced removal is logged at error level.
		ProtectedModules []string
		// PublicKey is the armored or binary OpenPGP keyring for signed tarballs.
		PublicKey []byte
		// AllowLocal enables local directory sources for every install.
		AllowLocal bool
		// Version is the running zephyr version, checked against min_version.
		Version string
	}

	// Validator checks a module directory against its manifest.
	Validator interface {
		Validate(moduleRoot, expectedName string) zephyrmod.ValidationResult
	}

	// Prompter asks the user to confirm proceeding past scan warnings.
	Prompter interface {
		Confirm(question string, details []string) (bool, error)
	}

	// ScanFunc scans a module tree. scanner.Scan is the default.
	ScanFunc func(root string, opts scanner.Options) (*scanner.Result, error)

	// Option configures a Pipeline.
	Option func(*Pipeline)

	// Pipeline installs, updates and removes modules.
	Pipeline struct {
		cfg       Config
		vcs       VCS
		fetcher   Fetcher
		validator Validator
		prompter  Prompter
		audit     audit.Sink
		logger    *slog.Logger
		scan      ScanFunc
		verifier  *Verifier
	}
)

// WithVCS sets the version-control backend.
func WithVCS(v VCS) Option {
	return func(p *Pipeline) { p.vcs = v }
}

// WithFetcher sets the tarball downloader.
func WithFetcher(f Fetcher) Option {
	return func(p *Pipeline) { p.fetcher = f }
}

// WithValidator sets the manifest validator.
func WithValidator(v Validator) Option {
	return func(p *Pipeline) { p.validator = v }
}

// WithPrompter sets the prompter used for scan warnings. Without one,
// warnings are treated as declined.
func WithPrompter(pr Prompter) Option {
	return func(p *Pipeline) { p.prompter = pr }
}

// WithAuditSink sets the audit sink.
func WithAuditSink(s audit.Sink) Option {
	return func(p *Pipeline) { p.audit = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithScanner replaces the security scanner.
func WithScanner(fn ScanFunc) Option {
	return func(p *Pipeline) { p.scan = fn }
}

// DefaultStagingRoot returns the staging root used when no temp dir is
// configured. It lies next to modulesDir, never inside it.
func DefaultStagingRoot(modulesDir string) string {
	clean := filepath.Clean(modulesDir)
	return filepath.Join(filepath.Dir(clean), "."+filepath.Base(clean)+stagingSuffix)
}

// New builds a Pipeline. A configured PublicKey must parse.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if cfg.ModulesDir == "" {
		return nil, errors.New("modules directory is not configured")
	}
	if cfg.TempDir == "" {
		cfg.TempDir = DefaultStagingRoot(cfg.ModulesDir)
	}

	p := &Pipeline{
		cfg:       cfg,
		vcs:       NewGitVCS(),
		fetcher:   NewHTTPFetcher(),
		validator: zephyrmod.NewValidator(cfg.Version),
		audit:     audit.Nop,
		scan:      scanner.Scan,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	if len(cfg.PublicKey) > 0 {
		v, err := NewVerifier(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		p.verifier = v
	}
	return p, nil
}

// ModulesDir returns the live modules directory.
func (p *Pipeline) ModulesDir() string { return p.cfg.ModulesDir }

// IsProtected reports whether name is configured as a protected module.
func (p *Pipeline) IsProtected(name string) bool {
	return slices.Contains(p.cfg.ProtectedModules, name)
}

func (p *Pipeline) checkModulesDir() error {
	info, err := os.Stat(p.cfg.ModulesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", p.cfg.ModulesDir, ErrModulesDirMissing)
		}
		return fmt.Errorf("failed to stat modules directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", p.cfg.ModulesDir)
	}
	return nil
}

func (p *Pipeline) modulePath(name string) string {
	return filepath.Join(p.cfg.ModulesDir, name)
}

// record forwards ev to the audit sink. A failed write is returned so that
// callers can treat an unauditable operation as failed.
func (p *Pipeline) record(ev audit.Event) error {
	if err := p.audit.Record(ev); err != nil {
		p.logger.Error("failed to write audit event", "action", ev.Action, "module", ev.Module, "error", err)
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// recordOutcome audits the final outcome of op. When the operation itself
// succeeded, an audit failure becomes the returned error.
func (p *Pipeline) recordOutcome(ev audit.Event, op string, opErr error) error {
	if opErr != nil {
		if ev.Result == "" {
			ev.Result = resultFor(opErr)
		}
		ev.Reason = opErr.Error()
		_ = p.record(ev)
		return opErr
	}
	if ev.Result == "" {
		ev.Result = audit.ResultSuccess
	}
	if err := p.record(ev); err != nil {
		return &Error{Kind: KindEnvironment, Op: op, Module: ev.Module, Err: err}
	}
	return nil
}

func resultFor(err error) audit.Result {
	if KindOf(err) == KindTrustGate || errors.Is(err, ErrBlocked) || errors.Is(err, ErrHasDependents) {
		return audit.ResultBlocked
	}
	return audit.ResultFailure
}

// gate applies the scan thresholds. Critical findings and hooks block unless
// unsafe is set; warnings require confirmation. In unsafe mode any finding is
// recorded as a bypass before the operation continues.
func (p *Pipeline) gate(res *scanner.Result, unsafe bool, ev audit.Event, op string) error {
	hooks := len(res.Hooks)
	if unsafe {
		if !res.HasFindings() {
			return nil
		}
		p.logger.Warn("proceeding past security findings in unsafe mode",
			"module", ev.Module, "critical", res.Critical, "warning", res.Warning, "hooks", hooks)
		bypass := ev
		bypass.Action = audit.ActionUnsafeBypass
		bypass.Result = audit.ResultBypassed
		bypass.Critical, bypass.Warning = res.Critical, res.Warning
		if err := p.record(bypass); err != nil {
			return &Error{Kind: KindEnvironment, Op: op, Module: ev.Module, Err: err}
		}
		return nil
	}

	if res.Critical > 0 || hooks > 0 {
		return &Error{Kind: KindTrustGate, Op: op, Module: ev.Module, Err: &BlockedError{
			Critical: res.Critical, Warning: res.Warning, Hooks: hooks, Scan: res,
		}}
	}
	if res.Warning == 0 {
		return nil
	}

	if p.prompter == nil {
		return &Error{Kind: KindTrustGate, Op: op, Module: ev.Module, Err: fmt.Errorf("%w: %d warning(s) need confirmation", ErrDeclined, res.Warning)}
	}
	question := fmt.Sprintf("%s has %d security warning(s). Continue?", ev.Module, res.Warning)
	ok, err := p.prompter.Confirm(question, warningDetails(res))
	if err != nil {
		return &Error{Kind: KindEnvironment, Op: op, Module: ev.Module, Err: fmt.Errorf("confirmation failed: %w", err)}
	}
	if !ok {
		return &Error{Kind: KindTrustGate, Op: op, Module: ev.Module, Err: ErrDeclined}
	}
	return nil
}

func warningDetails(res *scanner.Result) []string {
	var details []string
	for _, f := range res.Findings {
		if f.Severity == scanner.SeverityWarning {
			details = append(details, fmt.Sprintf("%s: %s", f.Location(), f.Description))
		}
	}
	return details
}
