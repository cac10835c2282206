// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette shared by all CLI output.
const (
	// ColorPrimary is purple - used for titles and module names.
	ColorPrimary = lipgloss.Color("#7C3AED")
	// ColorMuted is gray - used for paths, revisions and secondary text.
	ColorMuted = lipgloss.Color("#6B7280")
	// ColorSuccess is green - used for completed operations.
	ColorSuccess = lipgloss.Color("#10B981")
	// ColorError is red - used for failures and critical findings.
	ColorError = lipgloss.Color("#EF4444")
	// ColorWarning is amber - used for warnings and bypasses.
	ColorWarning = lipgloss.Color("#F59E0B")
	// ColorHighlight is blue - used for commands and keys.
	ColorHighlight = lipgloss.Color("#3B82F6")
)

var (
	// TitleStyle is for section headers.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	// SubtitleStyle is for secondary text.
	SubtitleStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	// SuccessStyle is for success marks.
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	// ErrorStyle is for error marks and critical findings.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorError)
	// WarningStyle is for warnings.
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	// CmdStyle is for command names and config keys.
	CmdStyle = lipgloss.NewStyle().Foreground(ColorHighlight)

	// labelStyle pads the first column of key/value listings.
	labelStyle = lipgloss.NewStyle().Foreground(ColorHighlight).Width(22)
)
