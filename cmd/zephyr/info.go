// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/config"
	"github.com/zephyr-sh/zephyr/pkg/zephyrmod"
)

const (
	// maxReadmeSize bounds how much of a module README is rendered.
	maxReadmeSize = 64 << 10
	readmeWidth   = 80
)

//nolint:gochecknoglobals // Immutable lookup table.
var readmeNames = []string{"README.md", "readme.md", "README.markdown", "README"}

func newInfoCommand(app *App) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "info <name>",
		Short: "Show an installed module's manifest and README",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, m, err := app.findModule(args[0], "show module")
			if err != nil {
				return app.fail(cmd, err)
			}
			renderModuleInfo(app, m)

			readme, ok := readReadme(m.Path)
			if !ok {
				return nil
			}
			fmt.Fprintln(app.stdout)
			if raw {
				fmt.Fprint(app.stdout, readme)
				return nil
			}
			out, err := renderMarkdown(readme, app.markdownStyle())
			if err != nil {
				app.logger.Debug("markdown rendering failed, printing raw README", "error", err)
				out = readme
			}
			fmt.Fprint(app.stdout, out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print the README without markdown rendering")

	return cmd
}

func renderModuleInfo(app *App, m *zephyrmod.Module) {
	w := app.stdout
	row := func(key, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render(key), value)
	}

	fmt.Fprintln(w, TitleStyle.Render(m.String()))
	if m.Description != "" {
		fmt.Fprintln(w, SubtitleStyle.Render(m.Description))
	}
	fmt.Fprintln(w)
	row("author", m.Author)
	row("license", m.License)
	row("path", m.Path)
	row("priority", fmt.Sprint(m.Priority))
	row("files", strings.Join(m.Files, ", "))
	row("requires", strings.Join(m.Required, ", "))
	row("optional", strings.Join(m.Optional, ", "))
	row("os", strings.Join(m.Platform.OS, ", "))
	row("arch", strings.Join(m.Platform.Arch, ", "))
	row("shell", strings.Join(m.Platform.Shell, ", "))
	row("min version", m.Platform.MinVersion)

	keys := make([]string, 0, len(m.Settings))
	for k := range m.Settings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		row("setting "+k, m.Settings[k])
	}
}

// readReadme returns the first README found at the module root.
func readReadme(dir string) (string, bool) {
	for _, name := range readmeNames {
		path := filepath.Join(dir, name)
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		buf := make([]byte, min(info.Size(), maxReadmeSize))
		n, _ := io.ReadFull(f, buf)
		f.Close()
		return string(buf[:n]), true
	}
	return "", false
}

// markdownStyle picks the glamour style for the configured color mode.
func (a *App) markdownStyle() string {
	switch {
	case a.cfg.UI.Color == config.ColorNever:
		return styles.NoTTYStyle
	case a.cfg.UI.Color == config.ColorAlways:
		return styles.DarkStyle
	case !a.interactive:
		return styles.NoTTYStyle
	default:
		return styles.AutoStyle
	}
}

func renderMarkdown(content, style string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(readmeWidth)}
	if style == styles.AutoStyle {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return renderer.Render(content)
}
