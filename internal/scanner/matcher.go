// SPDX-License-Identifier: MPL-2.0

package scanner

import (
	"fmt"
	"regexp"
)

type (
	compiledPattern struct {
		Pattern
		re *regexp.Regexp
	}

	compiledCredential struct {
		compiledPattern
		category CredentialCategory
	}

	// matcher is the compiled form of the rule tables for one scan.
	matcher struct {
		dangerous   []compiledPattern
		credentials []compiledCredential
		exfil       *regexp.Regexp
	}

	// lineMatch is one accepted pattern hit on a line.
	lineMatch struct {
		pattern  Pattern
		category CredentialCategory
		exfil    bool
	}
)

func newMatcher(dangerous []Pattern, credentials []CredentialPattern) (*matcher, error) {
	m := &matcher{
		dangerous:   make([]compiledPattern, 0, len(dangerous)),
		credentials: make([]compiledCredential, 0, len(credentials)),
	}
	for _, p := range dangerous {
		re, err := regexp.Compile(p.Expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", p.ID, err)
		}
		m.dangerous = append(m.dangerous, compiledPattern{Pattern: p, re: re})
	}
	for _, p := range credentials {
		re, err := regexp.Compile(p.Expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", p.ID, err)
		}
		m.credentials = append(m.credentials, compiledCredential{
			compiledPattern: compiledPattern{Pattern: p.Pattern, re: re},
			category:        p.Category,
		})
	}
	exfil, err := regexp.Compile(exfilExpr)
	if err != nil {
		return nil, fmt.Errorf("exfiltration pattern: %w", err)
	}
	m.exfil = exfil
	return m, nil
}

// match returns every pattern with an accepted hit on line, dangerous rules
// first, each at most once.
func (m *matcher) match(line string, lx lineLexer) []lineMatch {
	var out []lineMatch
	for _, p := range m.dangerous {
		if firstAccepted(p.re, line, lx) {
			out = append(out, lineMatch{pattern: p.Pattern})
		}
	}

	exfilChecked, exfil := false, false
	for _, p := range m.credentials {
		if !firstAccepted(p.re, line, lx) {
			continue
		}
		if !exfilChecked {
			exfil = firstAccepted(m.exfil, line, lx)
			exfilChecked = true
		}
		lm := lineMatch{pattern: p.Pattern, category: p.category, exfil: exfil}
		if exfil {
			lm.pattern.Severity = SeverityCritical
		}
		out = append(out, lm)
	}
	return out
}

func firstAccepted(re *regexp.Regexp, line string, lx lineLexer) bool {
	for _, loc := range re.FindAllStringIndex(line, -1) {
		if lx.accepts(loc[0]) {
			return true
		}
	}
	return false
}
