// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/pipeline"
)

func newUpdateCommand(app *App) *cobra.Command {
	var opts pipeline.UpdateOptions

	cmd := &cobra.Command{
		Use:   "update [name]",
		Short: "Pull new commits for git modules",
		Long: `Pull new commits for one git module, or for all of them.

New content is scanned and validated in place. A module that fails is reset
to the revision it had before the update.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Verbose = app.verbose
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			return runUpdate(cmd, app, name, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Unsafe, "unsafe", false, "accept new commits despite critical findings (audited)")

	return cmd
}

func runUpdate(cmd *cobra.Command, app *App, name string, opts pipeline.UpdateOptions) error {
	p, closeAudit, err := app.openPipeline()
	if err != nil {
		return app.fail(cmd, err)
	}
	defer closeAudit()

	report, err := p.Update(cmd.Context(), name, opts)
	if report == nil {
		return app.fail(cmd, err)
	}

	w := app.stdout
	if len(report.Outcomes) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("No git modules to update."))
	}
	for _, o := range report.Outcomes {
		switch o.Status {
		case pipeline.StatusUpdated:
			fmt.Fprintf(w, "%s %s %s\n", SuccessStyle.Render("✓"), TitleStyle.Render(o.Module),
				SubtitleStyle.Render(shortRev(o.FromRev)+" → "+shortRev(o.ToRev)))
		case pipeline.StatusUpToDate:
			fmt.Fprintf(w, "%s %s %s\n", SuccessStyle.Render("="), TitleStyle.Render(o.Module), SubtitleStyle.Render("up to date"))
		case pipeline.StatusRolledBack:
			fmt.Fprintf(w, "%s %s %s\n", WarningStyle.Render("↺"), TitleStyle.Render(o.Module),
				WarningStyle.Render("rolled back to "+shortRev(o.FromRev)))
		case pipeline.StatusRollbackFailed:
			fmt.Fprintf(w, "%s %s %s\n", ErrorStyle.Render("✗"), TitleStyle.Render(o.Module), ErrorStyle.Render("rollback failed"))
		case pipeline.StatusFailed:
			fmt.Fprintf(w, "%s %s %s\n", ErrorStyle.Render("✗"), TitleStyle.Render(o.Module), ErrorStyle.Render("failed"))
		}
		if o.Err != nil {
			renderError(app.stderr, o.Err, app.verbose)
		} else if o.Scan != nil && (app.verbose || o.Scan.HasFindings()) {
			renderScanReport(w, o.Scan, app.verbose)
		}
	}

	if err != nil {
		cmd.SilenceErrors = true
		return &ExitError{Code: exitCodeFor(err), Err: err}
	}
	return nil
}

func shortRev(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
