// SPDX-License-Identifier: MPL-2.0

package scanner

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// hookPattern finds hook scripts at any depth, including inside VCS
	// metadata directories such as .git/hooks.
	hookPattern = "**/hooks/*"
	// hookSampleSuffix marks inert example hooks shipped by git.
	hookSampleSuffix = ".sample"
)

//nolint:gochecknoglobals // Immutable lookup tables.
var (
	vcsDirs = map[string]bool{".git": true, ".hg": true, ".svn": true}

	docPatterns = []string{"docs/**", "doc/**", "examples/**", "example/**", "**/README*"}
)

// scan holds the state of one Scan call.
type scan struct {
	root    string
	opts    Options
	logger  *slog.Logger
	matcher *matcher
	result  *Result
}

// Scan inspects the module tree at root.
//
// The error return is reserved for problems with root itself (missing, not a
// directory, unreadable). Everything found inside the tree, including files
// that could not be read, is reported through the Result.
func Scan(root string, opts Options) (*Result, error) {
	started := time.Now()

	canonical, err := canonicalRoot(root)
	if err != nil {
		return nil, err
	}

	m, err := newMatcher(dangerousPatterns, credentialPatterns)
	if err != nil {
		return nil, err
	}

	s := &scan{
		root:    canonical,
		opts:    opts,
		logger:  opts.Logger,
		matcher: m,
		result:  &Result{TrustedSource: opts.TrustedSource},
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if err := s.findHooks(); err != nil {
		return nil, err
	}
	if len(s.result.Hooks) > 0 && !opts.Unsafe {
		s.result.Success = false
		s.result.Err = ErrHooksDetected
		s.result.Message = fmt.Sprintf("%d VCS hook script(s) found; refusing to scan further", len(s.result.Hooks))
		s.result.Summary.Elapsed = time.Since(started)
		return s.result, nil
	}

	if err := filepath.WalkDir(s.root, s.visit); err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.root, err)
	}

	s.result.Summary.Elapsed = time.Since(started)
	s.result.Success = s.result.Critical == 0 || opts.Unsafe
	s.result.Message = s.summaryMessage()
	return s.result, nil
}

func canonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve scan root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve scan root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to stat scan root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}
	return resolved, nil
}

// FindHooks lists the VCS hook scripts under root, at any depth and including
// those inside .git/hooks. Git's inert ".sample" hooks are ignored.
func FindHooks(root string) ([]HookFinding, error) {
	canonical, err := canonicalRoot(root)
	if err != nil {
		return nil, err
	}
	return hooksIn(canonical)
}

func hooksIn(root string) ([]HookFinding, error) {
	matches, err := doublestar.Glob(os.DirFS(root), hookPattern, doublestar.WithFilesOnly(), doublestar.WithNoFollow())
	if err != nil {
		return nil, fmt.Errorf("failed to search for hooks: %w", err)
	}

	var hooks []HookFinding
	for _, rel := range matches {
		if strings.HasSuffix(rel, hookSampleSuffix) {
			continue
		}
		full := filepath.Join(root, filepath.FromSlash(rel))
		info, statErr := os.Lstat(full)
		if statErr != nil {
			continue
		}
		hooks = append(hooks, HookFinding{
			Name:        filepath.Base(full),
			Path:        rel,
			Executable:  info.Mode()&0o111 != 0,
			Interpreter: shebang(full),
		})
	}
	return hooks, nil
}

// findHooks records every hook as a critical finding.
func (s *scan) findHooks() error {
	hooks, err := hooksIn(s.root)
	if err != nil {
		return err
	}
	for _, hook := range hooks {
		s.result.Hooks = append(s.result.Hooks, hook)

		desc := "VCS hook script"
		if hook.Executable {
			desc = "executable VCS hook script"
		}
		s.result.add(Finding{
			Pattern:     "vcs-hook",
			Description: desc,
			Severity:    SeverityCritical,
			File:        hook.Path,
		})
	}
	return nil
}

func (s *scan) visit(path string, d fs.DirEntry, walkErr error) error {
	rel, relErr := filepath.Rel(s.root, path)
	if relErr != nil {
		return nil //nolint:nilerr // paths under root are always relative-able
	}
	rel = filepath.ToSlash(rel)

	if walkErr != nil {
		if path == s.root {
			return walkErr
		}
		s.result.add(Finding{
			Pattern:     "unreadable",
			Description: fmt.Sprintf("could not be read: %v", walkErr),
			Severity:    SeverityWarning,
			File:        rel,
		})
		return nil
	}

	if d.IsDir() {
		if path != s.root && vcsDirs[d.Name()] {
			return filepath.SkipDir
		}
		return nil
	}

	if d.Type()&fs.ModeSymlink != 0 {
		s.checkSymlink(path, rel)
		return nil
	}
	if !d.Type().IsRegular() {
		return nil
	}

	s.scanFile(path, rel)
	return nil
}

// checkSymlink records links that leave the root. Links that stay inside are
// not followed; their targets are scanned at their own path.
func (s *scan) checkSymlink(path, rel string) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		s.result.add(Finding{
			Pattern:     "symlink-unresolvable",
			Description: "symlink target cannot be resolved",
			Severity:    SeverityWarning,
			File:        rel,
		})
		return
	}
	if within(s.root, target) {
		return
	}

	s.result.Symlinks = append(s.result.Symlinks, SymlinkFinding{File: rel, Target: target})
	s.result.add(Finding{
		Pattern:     "symlink-escape",
		Description: "symlink escapes module directory",
		Severity:    SeverityCritical,
		File:        rel,
		Text:        target,
	})
}

func (s *scan) scanFile(path, rel string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.Size() > MaxFileSize {
		s.result.add(Finding{
			Pattern:     "file-too-large",
			Description: "file exceeds scan size limit",
			Severity:    SeverityWarning,
			File:        rel,
		})
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.result.add(Finding{
			Pattern:     "unreadable",
			Description: fmt.Sprintf("could not be read: %v", err),
			Severity:    SeverityWarning,
			File:        rel,
		})
		return
	}
	if bytes.IndexByte(data[:min(len(data), binarySniffLen)], 0) >= 0 {
		if s.opts.Verbose {
			s.logger.Debug("skipping binary file", "file", rel)
		}
		return
	}

	doc := isDocPath(rel)
	before := len(s.result.Findings)
	lines := s.scanLines(rel, data, doc)
	if !doc {
		s.checkSyntax(rel, data)
	}

	s.result.Summary.FilesScanned++
	s.result.Summary.LinesScanned += lines
	if s.opts.Verbose {
		s.logger.Debug("scanned file", "file", rel, "lines", lines,
			"findings", len(s.result.Findings)-before, "doc", doc)
	}
}

// scanLines runs the per-file state machine and returns the number of lines read.
func (s *scan) scanLines(rel string, data []byte, doc bool) int {
	var (
		inHeredoc bool
		marker    string
		count     int
	)

	for raw := range bytes.Lines(data) {
		count++
		line := strings.TrimRight(string(raw), "\r\n")

		if inHeredoc {
			if strings.TrimSpace(line) == marker {
				inHeredoc = false
			}
			continue
		}

		if len(line) > MaxLineLength {
			s.result.add(Finding{
				Pattern:     "line-too-long",
				Description: "line exceeds scan length limit",
				Severity:    SeverityWarning,
				File:        rel,
				Line:        count,
			})
			continue
		}

		trimmed := strings.TrimSpace(line)
		if isCommentOrBlank(trimmed) {
			continue
		}

		lx := lexLine(line)
		for _, hit := range s.matcher.match(line, lx) {
			sev := hit.pattern.Severity
			if doc {
				sev = sev.Downgrade()
			}
			s.result.add(Finding{
				Pattern:     hit.pattern.ID,
				Description: hit.pattern.Description,
				Severity:    sev,
				File:        rel,
				Line:        count,
				Text:        trimmed,
			})
			if hit.category != 0 {
				s.result.Credentials = append(s.result.Credentials, CredentialFinding{
					File:         rel,
					Line:         count,
					Category:     hit.category,
					Exfiltration: hit.exfil,
					Severity:     sev,
				})
			}
		}

		if m, ok := heredocMarker(line, lx); ok {
			inHeredoc, marker = true, m
		}
	}
	return count
}

func (s *scan) summaryMessage() string {
	r := s.result
	msg := fmt.Sprintf("scanned %d files: %d critical, %d warning, %d info",
		r.Summary.FilesScanned, r.Critical, r.Warning, r.Info)
	if r.Critical > 0 && s.opts.Unsafe {
		msg += " (unsafe mode: not blocking)"
	}
	return msg
}

func isDocPath(rel string) bool {
	for _, pat := range docPatterns {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

// within reports whether path equals root or is nested under it. Both must be
// clean absolute paths.
func within(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

func shebang(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, 256)
	n, _ := f.Read(buf)
	first, _, _ := strings.Cut(string(buf[:n]), "\n")
	if interp, ok := strings.CutPrefix(first, "#!"); ok {
		return strings.TrimSpace(interp)
	}
	return ""
}
