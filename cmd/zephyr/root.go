// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/pkg/types"
)

// skipConfigAnnotation marks commands that run without loading config.cue.
const skipConfigAnnotation = "zephyr/skip-config"

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "zephyr",
		Short: "A security-gated module manager for shell configuration",
		Long: TitleStyle.Render("zephyr") + SubtitleStyle.Render(" - a security-gated module manager for shell configuration") + `

zephyr installs shell modules from git repositories, signed tarballs or
local directories. New content is staged, scanned for dangerous patterns
and validated before it reaches the modules directory.

` + SubtitleStyle.Render("Examples:") + `
  zephyr install user/zephyr-git-prompt   Install from GitHub
  zephyr update                           Update every git module
  zephyr list                             Show modules in load order
  zephyr scan ./my-module                 Scan a directory without installing`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}
			if err := app.loadConfig(cmd.Context(), verbose); err != nil {
				cmd.SilenceErrors = true
				renderError(app.stderr, err, verbose)
				return &ExitError{Code: types.ExitUsage, Err: err}
			}
			return nil
		},
	}
	root.SetIn(app.stdin)
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/zephyr/config.cue)")

	root.AddCommand(
		newInstallCommand(app),
		newUpdateCommand(app),
		newUninstallCommand(app),
		newListCommand(app),
		newDepsCommand(app),
		newInfoCommand(app),
		newScanCommand(app),
		newVerifyCommand(app),
		newConfigCommand(app),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Run executes the CLI with process defaults and returns the exit code.
func Run() int {
	app := NewApp(Dependencies{})
	err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	return int(exitCodeFor(err))
}

// Execute runs the CLI and exits the process. It is called by main.main().
func Execute() {
	os.Exit(Run())
}

// fail renders err on stderr and converts it to an ExitError carrying the
// matching exit code. Commands return its result from RunE.
func (a *App) fail(cmd *cobra.Command, err error) error {
	cmd.SilenceErrors = true
	renderError(a.stderr, err, a.verbose)
	return &ExitError{Code: exitCodeFor(err), Err: err}
}
