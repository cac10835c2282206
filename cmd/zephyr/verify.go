// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <tarball>",
		Short: "Check a tarball's signature and checksum without installing it",
		Long: `Check a module tarball against its detached signature (<tarball>.sig)
and checksum (<tarball>.sha256) using the configured public key.

Nothing is extracted or installed. The check is recorded in the audit log.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeAudit, err := app.openPipeline()
			if err != nil {
				return app.fail(cmd, err)
			}
			defer closeAudit()

			res, err := p.Verify(cmd.Context(), args[0])
			if err != nil {
				return app.fail(cmd, err)
			}
			fmt.Fprintf(app.stdout, "%s signature verified (key %s)\n", SuccessStyle.Render("✓"), res.SignerKeyID)
			fmt.Fprintf(app.stdout, "%s sha256 matches\n", SuccessStyle.Render("✓"))
			return nil
		},
	}
}
