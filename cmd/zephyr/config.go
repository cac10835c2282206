// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/config"
	"github.com/zephyr-sh/zephyr/internal/pipeline"
)

// newConfigCommand creates the `zephyr config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage zephyr configuration",
		Long: `Manage zephyr configuration.

Configuration is stored in:
  - Linux: ~/.config/zephyr/config.cue
  - macOS: ~/Library/Application Support/zephyr/config.cue
  - Windows: %APPDATA%\zephyr\config.cue

` + config.EnvModulesDir + `, ` + config.EnvAuditLog + ` and ` + config.EnvPublicKeyFile + `
override the file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			showConfig(app)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Fprint(app.stdout, config.GenerateCUE(app.cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:         "init",
		Short:       "Create a default configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := app.configPath
			if path == "" {
				var err error
				if path, err = config.DefaultPath(""); err != nil {
					return app.fail(cmd, err)
				}
			}
			written, err := config.CreateDefaultConfig(path)
			if err != nil {
				return app.fail(cmd, err)
			}
			if !written {
				fmt.Fprintf(app.stdout, "%s already exists\n", path)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s Created %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show the configuration file path",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := app.configPath
			if path == "" {
				var err error
				if path, err = config.DefaultPath(""); err != nil {
					return app.fail(cmd, err)
				}
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	return cfgCmd
}

func showConfig(app *App) {
	cfg := app.cfg
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	source := SubtitleStyle.Render("(using defaults)")
	if cfg.SourcePath != "" {
		source = cfg.SourcePath
	}
	row := func(key, value string) {
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render(key), value)
	}
	row("config file", source)
	fmt.Fprintln(w)

	tempDir := string(cfg.TempDir)
	if tempDir == "" {
		tempDir = pipeline.DefaultStagingRoot(string(cfg.ModulesDir)) + SubtitleStyle.Render(" (default)")
	}
	keyFile := string(cfg.Security.PublicKeyFile)
	if keyFile == "" {
		keyFile = SubtitleStyle.Render("(none)")
	}
	color := string(cfg.UI.Color)
	if color == "" {
		color = string(config.ColorAuto)
	}

	row("modules_dir", string(cfg.ModulesDir))
	row("temp_dir", tempDir)
	row("audit_log", string(cfg.AuditLog))
	row("security.allow_local", strconv.FormatBool(cfg.Security.AllowLocal))
	row("security.protected", listOrNone(cfg.Security.ProtectedModules))
	row("security.public_key", keyFile)
	row("ui.verbose", strconv.FormatBool(cfg.UI.Verbose))
	row("ui.color", strings.ToLower(color))
}
