// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// SourceGit is a git repository URL (GitHub shorthand is expanded to one).
	SourceGit SourceKind = iota + 1
	// SourceTarball is a signed .tar.gz archive, local or over HTTP(S).
	SourceTarball
	// SourceLocal is a local directory.
	SourceLocal
)

//nolint:gochecknoglobals // Immutable lookup tables.
var (
	gitPrefixes     = []string{"https://", "http://", "git://", "ssh://", "git@", "file://"}
	tarballSuffixes = []string{".tar.gz", ".tgz"}
	githubShorthand = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*/[A-Za-z0-9._-]+$`)
)

type (
	// SourceKind classifies a module source.
	SourceKind int

	// Source is a parsed install source.
	Source struct {
		Kind SourceKind
		// Input is the string the user gave.
		Input string
		// Location is the clone URL, the tarball URL or path, or the absolute directory.
		Location string
		// Remote is set for tarballs fetched over HTTP(S).
		Remote bool
	}
)

func (k SourceKind) String() string {
	switch k {
	case SourceGit:
		return "git"
	case SourceTarball:
		return "tarball"
	case SourceLocal:
		return "local"
	default:
		return "unknown"
	}
}

// ParseSource classifies input. Validation is structural only; nothing is
// contacted and only local paths are stat'ed.
//
// A "user/repo" string is GitHub shorthand unless allowLocal is set and a
// directory of that name exists.
func ParseSource(input string, allowLocal bool) (Source, error) {
	in := strings.TrimSpace(input)
	if in == "" {
		return Source{}, &SourceError{Input: input, Reason: "source is empty"}
	}

	if hasTarballSuffix(in) {
		if strings.HasPrefix(in, "https://") || strings.HasPrefix(in, "http://") {
			return Source{Kind: SourceTarball, Input: input, Location: in, Remote: true}, nil
		}
		abs, err := filepath.Abs(in)
		if err != nil {
			return Source{}, &SourceError{Input: input, Reason: err.Error()}
		}
		return Source{Kind: SourceTarball, Input: input, Location: abs}, nil
	}

	for _, prefix := range gitPrefixes {
		if rest, ok := strings.CutPrefix(in, prefix); ok {
			if !strings.Contains(rest, "/") {
				return Source{}, &SourceError{Input: input, Reason: "git URL has no repository path"}
			}
			return Source{Kind: SourceGit, Input: input, Location: in}, nil
		}
	}

	if allowLocal {
		if info, err := os.Stat(in); err == nil && info.IsDir() {
			abs, absErr := filepath.Abs(in)
			if absErr != nil {
				return Source{}, &SourceError{Input: input, Reason: absErr.Error()}
			}
			return Source{Kind: SourceLocal, Input: input, Location: abs}, nil
		}
	}

	if githubShorthand.MatchString(in) {
		url := "https://github.com/" + strings.TrimSuffix(in, ".git") + ".git"
		return Source{Kind: SourceGit, Input: input, Location: url}, nil
	}

	if looksLikePath(in) {
		if !allowLocal {
			return Source{}, &SourceError{Input: input, Reason: "local directory sources need --allow-local", Err: ErrLocalDisabled}
		}
		return Source{}, &SourceError{Input: input, Reason: "not a directory"}
	}

	return Source{}, &SourceError{Input: input, Reason: "not a git URL, user/repo shorthand, tarball or directory"}
}

func hasTarballSuffix(s string) bool {
	for _, suffix := range tarballSuffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func looksLikePath(s string) bool {
	return filepath.IsAbs(s) || s == "." || s == ".." ||
		strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") || strings.HasPrefix(s, "~")
}
