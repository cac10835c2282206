// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
)

// maxPromptDetails caps the warning lines shown in a confirmation prompt.
const maxPromptDetails = 15

// huhPrompter asks for confirmation on the terminal.
type huhPrompter struct {
	in  io.Reader
	out io.Writer
}

// Confirm shows question with details and returns the answer. Aborting the
// form (ctrl+c, esc) counts as "no".
func (p *huhPrompter) Confirm(question string, details []string) (bool, error) {
	shown := details
	if len(shown) > maxPromptDetails {
		shown = append(shown[:maxPromptDetails:maxPromptDetails], fmt.Sprintf("... and %d more", len(details)-maxPromptDetails))
	}

	var ok bool
	confirm := huh.NewConfirm().
		Title(question).
		Description(strings.Join(shown, "\n")).
		Affirmative("Continue").
		Negative("Abort").
		Value(&ok)

	err := huh.NewForm(huh.NewGroup(confirm)).
		WithInput(p.in).
		WithOutput(p.out).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}
