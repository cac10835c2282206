// SPDX-License-Identifier: MPL-2.0

package scanner

import (
	"regexp"
	"strings"
)

//nolint:gochecknoglobals // Compiled once; immutable.
var heredocOpener = regexp.MustCompile(`<<-?\s*(['"]?)([A-Za-z_][A-Za-z0-9_]*)(['"]?)`)

type (
	// span is a half-open byte range [start, end).
	span struct {
		start int
		end   int
	}

	// lineLexer holds the quoted spans and comment start of one line.
	lineLexer struct {
		quoted []span
		// comment is the offset of the first unquoted comment start, or len(line).
		comment int
	}
)

// lexLine scans line once, tracking quote and escape state.
//
// Backslash escapes the next byte outside single quotes. A '#' starts a
// comment only at the beginning of the line or after whitespace, and only
// outside quotes. An unterminated quote runs to the end of the line.
func lexLine(line string) lineLexer {
	lx := lineLexer{comment: len(line)}

	var (
		quote   byte
		start   int
		escaped bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && quote != '\'' {
			escaped = true
			continue
		}

		switch {
		case quote == 0 && (c == '\'' || c == '"'):
			quote = c
			start = i
		case quote == 0 && c == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t'):
			lx.comment = i
			return lx
		case quote != 0 && c == quote:
			lx.quoted = append(lx.quoted, span{start: start, end: i + 1})
			quote = 0
		}
	}
	if quote != 0 {
		lx.quoted = append(lx.quoted, span{start: start, end: len(line)})
	}
	return lx
}

// accepts reports whether a match starting at offset counts as code: it must
// lie before any comment and outside every quoted span.
func (lx lineLexer) accepts(offset int) bool {
	if offset >= lx.comment {
		return false
	}
	for _, s := range lx.quoted {
		if offset >= s.start && offset < s.end {
			return false
		}
		if s.start > offset {
			break
		}
	}
	return true
}

// isCommentOrBlank reports whether the trimmed line carries no code.
func isCommentOrBlank(trimmed string) bool {
	if trimmed == "" {
		return true
	}
	for _, prefix := range []string{"#", "//", "/*", "*"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// heredocMarker returns the terminator of a heredoc opened on line. Here-strings
// ("<<<") and openers inside quotes or comments do not count.
func heredocMarker(line string, lx lineLexer) (string, bool) {
	for _, loc := range heredocOpener.FindAllStringSubmatchIndex(line, -1) {
		start := loc[0]
		if start+2 < len(line) && line[start+2] == '<' {
			continue
		}
		if start > 0 && line[start-1] == '<' {
			continue
		}
		if !lx.accepts(start) {
			continue
		}
		// Mismatched quotes around the marker are not a valid opener.
		if line[loc[2]:loc[3]] != line[loc[6]:loc[7]] {
			continue
		}
		return line[loc[4]:loc[5]], true
	}
	return "", false
}
