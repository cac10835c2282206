// SPDX-License-Identifier: MPL-2.0

package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// shellSyntaxPattern is the finding ID for scripts the shell parser rejects.
const shellSyntaxPattern = "shell-syntax"

// shellVariant picks the parser dialect for a file from its extension, then
// its shebang. Files in shells the parser does not understand (zsh, fish) and
// files that are not recognizably shell are skipped.
func shellVariant(rel string, data []byte) (syntax.LangVariant, bool) {
	switch path.Ext(rel) {
	case ".sh", ".bash":
		return syntax.LangBash, true
	case ".ksh", ".mksh":
		return syntax.LangMirBSDKorn, true
	case ".zsh", ".fish", ".csh", ".tcsh":
		return 0, false
	}

	first, _, _ := bytes.Cut(data, []byte("\n"))
	interp, ok := strings.CutPrefix(string(first), "#!")
	if !ok {
		return 0, false
	}
	fields := strings.Fields(interp)
	if len(fields) == 0 {
		return 0, false
	}
	prog := path.Base(fields[0])
	if prog == "env" && len(fields) > 1 {
		prog = fields[1]
	}
	switch prog {
	case "bash":
		return syntax.LangBash, true
	case "sh", "dash":
		return syntax.LangPOSIX, true
	case "mksh", "ksh":
		return syntax.LangMirBSDKorn, true
	}
	return 0, false
}

// checkSyntax parses shell scripts in full and reports a script that does not
// parse as an info finding.
func (s *scan) checkSyntax(rel string, data []byte) {
	lang, ok := shellVariant(rel, data)
	if !ok {
		return
	}

	parser := syntax.NewParser(syntax.Variant(lang), syntax.KeepComments(false))
	_, err := parser.Parse(bytes.NewReader(data), rel)
	if err == nil {
		return
	}

	f := Finding{
		Pattern:     shellSyntaxPattern,
		Description: fmt.Sprintf("does not parse as %s", lang),
		Severity:    SeverityInfo,
		File:        rel,
		Text:        err.Error(),
	}
	var perr syntax.ParseError
	if errors.As(err, &perr) {
		f.Line = int(perr.Pos.Line())
		f.Text = perr.Text
	}
	s.result.add(f)
}
