// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zephyr-sh/zephyr/internal/pipeline"
	"github.com/zephyr-sh/zephyr/pkg/resolve"
	"github.com/zephyr-sh/zephyr/pkg/zephyrmod"
)

func newDepsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "deps <name>",
		Short: "Show what a module depends on and what depends on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			modules, m, err := app.findModule(name, "show dependencies")
			if err != nil {
				return app.fail(cmd, err)
			}
			dependents, _ := resolve.BuildReverseIndex(modules).DependentsOf(name)

			w := app.stdout
			fmt.Fprintln(w, TitleStyle.Render(m.String()))
			fmt.Fprintf(w, "%s%s\n", labelStyle.Render("requires"), listOrNone(m.Required))
			fmt.Fprintf(w, "%s%s\n", labelStyle.Render("optional"), listOrNone(m.Optional))
			fmt.Fprintf(w, "%s%s\n", labelStyle.Render("required by"), listOrNone(dependents))
			return nil
		},
	}
}

// findModule returns the installed modules and the one called name.
func (a *App) findModule(name, op string) ([]*zephyrmod.Module, *zephyrmod.Module, error) {
	modules, _, err := a.discover()
	if err != nil {
		return nil, nil, err
	}
	for _, m := range modules {
		if m.Name == name {
			return modules, m, nil
		}
	}
	return nil, nil, &pipeline.Error{Kind: pipeline.KindInput, Op: op, Module: name, Err: pipeline.ErrNotInstalled}
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return SubtitleStyle.Render("(none)")
	}
	return strings.Join(items, ", ")
}
