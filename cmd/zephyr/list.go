// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/pkg/resolve"
	"github.com/zephyr-sh/zephyr/pkg/types"
	"github.com/zephyr-sh/zephyr/pkg/zephyrmod"
)

func newListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed modules in load order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			modules, ok, err := app.discover()
			if err != nil {
				return app.fail(cmd, err)
			}
			if !ok || len(modules) == 0 {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("No modules installed."))
				return nil
			}

			ordered, err := resolve.New(resolve.WithLogger(app.logger)).Resolve(modules)
			if err != nil {
				cmd.SilenceErrors = true
				renderError(app.stderr, err, app.verbose)
				return &ExitError{Code: types.ExitInconsistent, Err: err}
			}

			fmt.Fprintln(app.stdout, moduleTable(ordered))
			return nil
		},
	}
}

// discover loads the installed modules. ok is false when the modules
// directory does not exist yet. Broken modules are reported as warnings.
func (a *App) discover() (modules []*zephyrmod.Module, ok bool, err error) {
	modules, broken, err := zephyrmod.Discover(string(a.cfg.ModulesDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	for _, b := range broken {
		a.logger.Warn("skipping broken module", "dir", b.Dir, "error", b.Err)
	}
	return modules, true, nil
}

func moduleTable(ordered []*zephyrmod.Module) string {
	rows := make([][]string, 0, len(ordered))
	for i, m := range ordered {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			m.Name,
			m.Version,
			strconv.Itoa(m.Priority),
			strings.Join(m.Required, ", "),
		})
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		Headers("#", "MODULE", "VERSION", "PRIORITY", "REQUIRES").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}
