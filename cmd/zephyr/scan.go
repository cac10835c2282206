// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/scanner"
	"github.com/zephyr-sh/zephyr/pkg/types"
)

func newScanCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <dir>",
		Short: "Scan a module directory without installing it",
		Long: `Scan a module directory with the same rules the installer applies.

Exits with status 3 when the directory would be blocked: critical findings,
symlinks leaving the directory, or VCS hook scripts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := scanner.Scan(args[0], scanner.Options{Verbose: app.verbose, Logger: app.logger})
			if err != nil {
				return app.fail(cmd, err)
			}
			renderScanReport(app.stdout, res, app.verbose)
			if !res.Success {
				cmd.SilenceErrors = true
				fmt.Fprintln(app.stderr, ErrorStyle.Render("Blocked: ")+res.Message)
				return &ExitError{Code: types.ExitBlocked, Err: res.Err}
			}
			return nil
		},
	}
}
