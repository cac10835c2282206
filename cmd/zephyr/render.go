// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/zephyr-sh/zephyr/internal/config"
	"github.com/zephyr-sh/zephyr/internal/issue"
	"github.com/zephyr-sh/zephyr/internal/pipeline"
	"github.com/zephyr-sh/zephyr/internal/scanner"
)

// renderScanReport writes a human-readable scan report. Info findings are
// listed only in verbose mode.
func renderScanReport(w io.Writer, res *scanner.Result, verbose bool) {
	if res == nil {
		return
	}

	counts := fmt.Sprintf("%d critical, %d warning, %d info", res.Critical, res.Warning, res.Info)
	switch {
	case res.Critical > 0 || len(res.Hooks) > 0:
		counts = ErrorStyle.Render(counts)
	case res.Warning > 0:
		counts = WarningStyle.Render(counts)
	default:
		counts = SuccessStyle.Render(counts)
	}
	fmt.Fprintf(w, "%s %s %s\n", TitleStyle.Render("Security scan:"), counts,
		SubtitleStyle.Render(fmt.Sprintf("(%d files, %d lines)", res.Summary.FilesScanned, res.Summary.LinesScanned)))
	if res.TrustedSource {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("content arrived through a verified signed archive"))
	}

	for _, f := range res.Findings {
		if f.Severity == scanner.SeverityInfo && !verbose {
			continue
		}
		fmt.Fprintf(w, "  %s %s %s\n", severityLabel(f.Severity), f.Location(), f.Description)
		if f.Text != "" {
			fmt.Fprintf(w, "      %s\n", SubtitleStyle.Render(f.Text))
		}
	}

	for _, c := range res.Credentials {
		if c.Severity == scanner.SeverityInfo && !verbose {
			continue
		}
		note := ""
		if c.Exfiltration {
			note = ErrorStyle.Render(" with network exfiltration")
		}
		fmt.Fprintf(w, "  %s %s:%d reads %s credentials%s\n", severityLabel(c.Severity), c.File, c.Line, c.Category, note)
	}

	for _, s := range res.Symlinks {
		fmt.Fprintf(w, "  %s %s -> %s (outside module)\n", severityLabel(scanner.SeverityCritical), s.File, s.Target)
	}
	renderHooks(w, res.Hooks)
}

func renderHooks(w io.Writer, hooks []scanner.HookFinding) {
	for _, h := range hooks {
		var attrs []string
		if h.Executable {
			attrs = append(attrs, "executable")
		}
		if h.Interpreter != "" {
			attrs = append(attrs, h.Interpreter)
		}
		detail := ""
		if len(attrs) > 0 {
			detail = SubtitleStyle.Render(" (" + strings.Join(attrs, ", ") + ")")
		}
		fmt.Fprintf(w, "  %s %s%s\n", ErrorStyle.Render("HOOK    "), h.Path, detail)
	}
}

func severityLabel(s scanner.Severity) string {
	label := fmt.Sprintf("%-8s", strings.ToUpper(s.String()))
	switch s {
	case scanner.SeverityCritical:
		return ErrorStyle.Render(label)
	case scanner.SeverityWarning:
		return WarningStyle.Render(label)
	default:
		return SubtitleStyle.Render(label)
	}
}

// renderError writes err with any blocking scan report and the suggestions
// that apply to it.
func renderError(w io.Writer, err error, verbose bool) {
	var blocked *pipeline.BlockedError
	if errors.As(err, &blocked) {
		if blocked.Scan != nil {
			renderScanReport(w, blocked.Scan, verbose)
		} else {
			renderHooks(w, blocked.HookFindings)
		}
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		ae = actionable(err)
	}
	msg := err.Error()
	if ae != nil {
		msg = ae.Format(verbose)
	}
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+msg)
}

// actionable attaches suggestions for the failures a user can do something
// about. It returns nil for errors that are not pipeline errors.
func actionable(err error) *issue.ActionableError {
	var pe *pipeline.Error
	if !errors.As(err, &pe) {
		return nil
	}
	ctx := issue.NewErrorContext().WithOperation(pe.Op).WithResource(pe.Module).Wrap(pe.Err)

	switch {
	case errors.Is(err, scanner.ErrHooksDetected):
		ctx.WithSuggestions(
			"Inspect the repository's hook scripts before trusting it",
			"Rerun with --unsafe only if you trust the source; the override is audited",
		)
	case errors.Is(err, pipeline.ErrBlocked):
		ctx.WithSuggestions(
			"Review the critical findings listed above",
			"Rerun with --unsafe only if you trust the source; the override is audited",
		)
	case errors.Is(err, pipeline.ErrDeclined):
		ctx.WithSuggestion("Run interactively to review and confirm the warnings")
	case errors.Is(err, pipeline.ErrAlreadyExists):
		ctx.WithSuggestions(
			"Use 'zephyr update <name>' to pull new commits",
			"Pass --force to replace the installed module",
		)
	case errors.Is(err, pipeline.ErrLocalDisabled):
		ctx.WithSuggestion("Pass --allow-local or set security.allow_local in config.cue")
	case errors.Is(err, pipeline.ErrHasDependents):
		ctx.WithSuggestions(
			"Uninstall the dependent modules first",
			"Pass --force (or --confirm) to remove it anyway",
		)
	case errors.Is(err, pipeline.ErrNoPublicKey):
		ctx.WithSuggestion("Set security.public_key_file or " + config.EnvPublicKeyFile + " to a trusted OpenPGP key")
	case errors.Is(err, pipeline.ErrModulesDirMissing):
		ctx.WithSuggestion("Check modules_dir in 'zephyr config show'")
	case errors.Is(err, pipeline.ErrNotInstalled):
		ctx.WithSuggestion("Run 'zephyr list' to see installed modules")
	case pipeline.KindOf(err) == pipeline.KindRollback:
		ctx.WithSuggestions(
			"Inspect the module directory; it may be at an unscanned revision",
			"Reinstall it with 'zephyr install --force <source>'",
		)
	}
	return ctx.Build()
}
