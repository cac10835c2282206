// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/zephyr-sh/zephyr/internal/config"
)

// newLogger returns a slog logger backed by a charmbracelet/log handler on w.
// Only warnings and errors are shown unless verbose is set.
func newLogger(w io.Writer, verbose bool, color config.ColorMode) *slog.Logger {
	l := log.NewWithOptions(w, log.Options{
		Prefix: "zephyr",
		Level:  log.WarnLevel,
	})
	if verbose {
		l.SetLevel(log.DebugLevel)
		l.SetReportTimestamp(true)
	}

	switch color {
	case config.ColorNever:
		l.SetColorProfile(termenv.Ascii)
		lipgloss.SetColorProfile(termenv.Ascii)
	case config.ColorAlways:
		l.SetColorProfile(termenv.TrueColor)
		lipgloss.SetColorProfile(termenv.TrueColor)
	case config.ColorAuto, "":
	}

	return slog.New(l)
}
