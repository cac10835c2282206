// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/pipeline"
)

func newInstallCommand(app *App) *cobra.Command {
	var opts pipeline.InstallOptions

	cmd := &cobra.Command{
		Use:   "install <source>",
		Short: "Install a module from git, a signed tarball or a local directory",
		Long: `Install a module.

The source may be a git URL, GitHub shorthand (user/repo), an http(s) URL or
path ending in .tar.gz/.tgz with .sig and .sha256 files next to it, or a
local directory (with --allow-local).

Content is staged and scanned first. Critical findings and repository hook
scripts block the install; warnings need confirmation.`,
		Example: `  zephyr install user/zephyr-git-prompt
  zephyr install https://example.com/prompt-1.2.0.tar.gz
  zephyr install --allow-local ./my-module`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Verbose = app.verbose
			return runInstall(cmd, app, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "replace an installed module of the same name")
	cmd.Flags().BoolVar(&opts.Unsafe, "unsafe", false, "install despite critical findings or hooks (audited)")
	cmd.Flags().BoolVar(&opts.AllowLocal, "allow-local", false, "allow installing from a local directory")

	return cmd
}

func runInstall(cmd *cobra.Command, app *App, input string, opts pipeline.InstallOptions) error {
	// The first install creates the modules directory.
	if err := os.MkdirAll(string(app.cfg.ModulesDir), 0o755); err != nil {
		return app.fail(cmd, fmt.Errorf("failed to create modules directory: %w", err))
	}

	p, closeAudit, err := app.openPipeline()
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeAudit()

	res, err := p.Install(cmd.Context(), input, opts)
	if err != nil {
		return app.fail(cmd, err)
	}

	w := app.stdout
	renderScanReport(w, res.Scan, app.verbose)
	if res.SignatureVerified {
		fmt.Fprintf(w, "%s signature verified (key %s)\n", SuccessStyle.Render("✓"), res.SignerKeyID)
	}
	if opts.Unsafe && res.Scan != nil && res.Scan.HasFindings() {
		fmt.Fprintln(w, WarningStyle.Render("! installed in unsafe mode; the override was recorded in the audit log"))
	}
	verb := "Installed"
	if res.Replaced {
		verb = "Replaced"
	}
	version := ""
	if res.Manifest != nil && res.Manifest.Version != "" {
		version = " " + res.Manifest.Version
	}
	fmt.Fprintf(w, "%s %s %s%s from %s %s\n",
		SuccessStyle.Render("✓"), verb, TitleStyle.Render(res.Module), version,
		res.Source.Kind, SubtitleStyle.Render("→ "+res.Path))
	return nil
}
