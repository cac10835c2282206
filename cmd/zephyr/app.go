// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/x/term"

	"github.com/zephyr-sh/zephyr/internal/audit"
	"github.com/zephyr-sh/zephyr/internal/config"
	"github.com/zephyr-sh/zephyr/internal/pipeline"
	"github.com/zephyr-sh/zephyr/pkg/types"
)

type (
	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// App wires CLI services and shared dependencies. Command handlers receive
	// an App and reach configuration, logging and the pipeline through it.
	App struct {
		Config ConfigProvider

		stdin       io.Reader
		stdout      io.Writer
		stderr      io.Writer
		interactive bool
		home        func() (string, error)
		// pipelineOpts are appended after the defaults, so tests can swap the VCS.
		pipelineOpts []pipeline.Option

		// Set by the root command before any subcommand runs.
		cfg        *config.Config
		logger     *slog.Logger
		verbose    bool
		configPath string
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// Interactive enables confirmation prompts. Nil means "stdin is a terminal".
		Interactive *bool
		// Home resolves "~" in configured paths.
		Home            func() (string, error)
		PipelineOptions []pipeline.Option
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Home == nil {
		deps.Home = os.UserHomeDir
	}

	interactive := false
	if deps.Interactive != nil {
		interactive = *deps.Interactive
	} else if f, ok := deps.Stdin.(*os.File); ok {
		interactive = term.IsTerminal(f.Fd())
	}

	return &App{
		Config:       deps.Config,
		stdin:        deps.Stdin,
		stdout:       deps.Stdout,
		stderr:       deps.Stderr,
		interactive:  interactive,
		home:         deps.Home,
		pipelineOpts: deps.PipelineOptions,
		logger:       slog.Default(),
	}
}

// loadConfig loads and expands the configuration. verboseFlag forces debug
// logging regardless of ui.verbose.
func (a *App) loadConfig(ctx context.Context, verboseFlag bool) error {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: types.FilesystemPath(a.configPath)})
	if err != nil {
		return err
	}
	home, err := a.home()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	a.cfg = cfg.Expand(home)
	a.verbose = verboseFlag || a.cfg.UI.Verbose
	a.logger = newLogger(a.stderr, a.verbose, a.cfg.UI.Color)
	slog.SetDefault(a.logger)
	return nil
}

// openPipeline builds a pipeline over the configured modules directory. The
// returned close function flushes and closes the audit log.
func (a *App) openPipeline() (*pipeline.Pipeline, func(), error) {
	cfg := a.cfg
	sink, err := audit.OpenFile(string(cfg.AuditLog))
	if err != nil {
		return nil, nil, err
	}
	closeSink := func() {
		if cerr := sink.Close(); cerr != nil {
			a.logger.Warn("failed to close audit log", "path", cfg.AuditLog, "error", cerr)
		}
	}

	var key []byte
	if cfg.Security.PublicKeyFile != "" {
		key, err = os.ReadFile(string(cfg.Security.PublicKeyFile))
		if err != nil {
			closeSink()
			return nil, nil, fmt.Errorf("failed to read public key: %w", err)
		}
	}

	opts := []pipeline.Option{
		pipeline.WithAuditSink(sink),
		pipeline.WithLogger(a.logger),
	}
	if a.interactive {
		opts = append(opts, pipeline.WithPrompter(&huhPrompter{in: a.stdin, out: a.stderr}))
	}
	opts = append(opts, a.pipelineOpts...)

	p, err := pipeline.New(pipeline.Config{
		ModulesDir:       string(cfg.ModulesDir),
		TempDir:          string(cfg.TempDir),
		ProtectedModules: cfg.Security.ProtectedModules,
		PublicKey:        key,
		AllowLocal:       cfg.Security.AllowLocal,
		Version:          Version,
	}, opts...)
	if err != nil {
		closeSink()
		return nil, nil, err
	}
	return p, closeSink, nil
}
