// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/pipeline"
)

func newUninstallCommand(app *App) *cobra.Command {
	var opts pipeline.UninstallOptions

	cmd := &cobra.Command{
		Use:     "uninstall <name>",
		Aliases: []string{"remove", "rm"},
		Short:   "Remove an installed module",
		Long: `Remove an installed module.

A module that other installed modules depend on, required or optional, is
only removed with --force (or its alias --confirm).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeAudit, err := app.openPipeline()
			if err != nil {
				return app.fail(cmd, err)
			}
			defer closeAudit()

			res, err := p.Uninstall(cmd.Context(), args[0], opts)
			if err != nil {
				return app.fail(cmd, err)
			}
			if len(res.Dependents) > 0 {
				fmt.Fprintln(app.stderr, WarningStyle.Render("! removed despite dependents: "+strings.Join(res.Dependents, ", ")))
			}
			fmt.Fprintf(app.stdout, "%s Uninstalled %s\n", SuccessStyle.Render("✓"), TitleStyle.Render(res.Module))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "remove even if other modules depend on it")
	cmd.Flags().BoolVar(&opts.Force, "confirm", false, "alias for --force")

	return cmd
}
