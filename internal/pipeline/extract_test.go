// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"archive/tar"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zephyr-sh/zephyr/internal/testutil"
)

func tarHeader(name string) tar.Header {
	return tar.Header{Name: name}
}

func writeArchive(t *testing.T, entries []tarEntry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.tar.gz")
	if err := os.WriteFile(path, buildTarGz(t, entries), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractTarGz(t *testing.T) {
	t.Parallel()

	archive := writeArchive(t, []tarEntry{
		{hdr: tar.Header{Typeflag: tar.TypeXGlobalHeader, PAXRecords: map[string]string{"comment": "x"}}},
		{hdr: tar.Header{Name: "mod/", Typeflag: tar.TypeDir}},
		{hdr: tarHeader("mod/init.zsh"), body: "export A=1\n"},
		{hdr: tar.Header{Name: "mod/bin/tool", Mode: 0o755}, body: "#!/bin/sh\n"},
		{hdr: tar.Header{Name: "mod/link", Typeflag: tar.TypeSymlink, Linkname: "init.zsh"}},
		{hdr: tar.Header{Name: "mod/hard", Typeflag: tar.TypeLink, Linkname: "mod/init.zsh"}},
	})
	dest := t.TempDir()

	if err := extractTarGz(archive, dest, MaxExtractSize); err != nil {
		t.Fatalf("extractTarGz() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "mod", "hard"))
	if err != nil || string(data) != "export A=1\n" {
		t.Errorf("hardlink content = %q, %v", data, err)
	}
	if target, err := os.Readlink(filepath.Join(dest, "mod", "link")); err != nil || target != "init.zsh" {
		t.Errorf("symlink target = %q, %v", target, err)
	}
	info, err := os.Stat(filepath.Join(dest, "mod", "bin", "tool"))
	if err != nil || info.Mode().Perm()&0o100 == 0 {
		t.Errorf("executable bit lost: %v, %v", info, err)
	}

	root, err := unwrapSingleDir(dest)
	if err != nil || root != filepath.Join(dest, "mod") {
		t.Errorf("unwrapSingleDir() = %q, %v", root, err)
	}
}

func TestExtractTarGz_Refuses(t *testing.T) {
	t.Parallel()

	symlink := func(name, target string) tarEntry {
		return tarEntry{hdr: tar.Header{Name: name, Typeflag: tar.TypeSymlink, Linkname: target}}
	}

	tests := []struct {
		name    string
		entries []tarEntry
	}{
		{"absolute path", []tarEntry{{hdr: tarHeader("/etc/profile.d/evil.sh"), body: "x"}}},
		{"parent segment", []tarEntry{{hdr: tarHeader("mod/../../evil.sh"), body: "x"}}},
		{"symlink escape", []tarEntry{symlink("mod/up", "../../outside")}},
		{"absolute symlink", []tarEntry{symlink("mod/passwd", "/etc/passwd")}},
		{"hardlink escape", []tarEntry{{hdr: tar.Header{Name: "mod/h", Typeflag: tar.TypeLink, Linkname: "../secret"}}}},
		{"device", []tarEntry{{hdr: tar.Header{Name: "mod/dev", Typeflag: tar.TypeChar}}}},
		{"fifo", []tarEntry{{hdr: tar.Header{Name: "mod/fifo", Typeflag: tar.TypeFifo}}}},
		{"symlink chain", []tarEntry{
			symlink("x/y/l1", "../.."),
			symlink("x/y/l1/l2", "../.."),
			{hdr: tarHeader("x/y/l1/l2/pwned.sh"), body: "x"},
		}},
		{"file through symlink", []tarEntry{
			symlink("mod/lib", "."),
			{hdr: tarHeader("mod/lib/init.sh"), body: "x"},
		}},
		{"directory through symlink", []tarEntry{
			symlink("mod/lib", "."),
			{hdr: tar.Header{Name: "mod/lib/sub/", Typeflag: tar.TypeDir}},
		}},
		{"hardlink through symlink", []tarEntry{
			{hdr: tarHeader("mod/init.sh"), body: "x"},
			symlink("mod/self", "."),
			{hdr: tar.Header{Name: "mod/h", Typeflag: tar.TypeLink, Linkname: "mod/self/init.sh"}},
		}},
		{"hardlink to missing file", []tarEntry{
			{hdr: tar.Header{Name: "mod/h", Typeflag: tar.TypeLink, Linkname: "mod/absent"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			dest := filepath.Join(root, "a", "b", "dest")
			testutil.MustMkdirAll(t, dest)
			archive := writeArchive(t, tt.entries)

			err := extractTarGz(archive, dest, MaxExtractSize)
			var entryErr *ArchiveEntryError
			if !errors.As(err, &entryErr) || !errors.Is(err, ErrUnsafeArchive) {
				t.Fatalf("extractTarGz() error = %v, want ArchiveEntryError", err)
			}
			assertOnlyUnder(t, root, dest)
		})
	}
}

// assertOnlyUnder fails when anything besides the directories leading to dest
// exists below root outside dest.
func assertOnlyUnder(t *testing.T, root, dest string) {
	t.Helper()
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dest {
			return filepath.SkipDir
		}
		if strings.HasPrefix(dest, p+string(filepath.Separator)) || p == root {
			return nil
		}
		t.Errorf("extraction wrote outside dest: %s", p)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestExtractTarGz_SizeLimit(t *testing.T) {
	t.Parallel()

	archive := writeArchive(t, []tarEntry{
		{hdr: tarHeader("a"), body: strings.Repeat("x", 600)},
		{hdr: tarHeader("b"), body: strings.Repeat("y", 600)},
	})
	err := extractTarGz(archive, t.TempDir(), 1000)
	if !errors.Is(err, ErrArchiveTooLarge) {
		t.Errorf("extractTarGz() error = %v, want ErrArchiveTooLarge", err)
	}
}

func TestExtractTarGz_NotGzip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plain.tgz")
	if err := os.WriteFile(path, []byte("not an archive"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := extractTarGz(path, t.TempDir(), MaxExtractSize); err == nil {
		t.Error("extractTarGz() should fail on non-gzip input")
	}
}

func TestUnwrapSingleDir_KeepsFlatLayout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "module.toml", "")
	testutil.MustMkdirAll(t, filepath.Join(dir, "lib"))

	got, err := unwrapSingleDir(dir)
	if err != nil || got != dir {
		t.Errorf("unwrapSingleDir() = %q, %v; want %q", got, err, dir)
	}
}

func TestCopyTree_PreservesSymlinks(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.WriteFileMode(t, src, "bin/run", "#!/bin/sh\n", 0o755)
	testutil.Symlink(t, src, "alias", "bin/run")
	dst := filepath.Join(t.TempDir(), "copy")

	if err := copyTree(src, dst); err != nil {
		t.Fatalf("copyTree() error = %v", err)
	}
	if target, err := os.Readlink(filepath.Join(dst, "alias")); err != nil || target != "bin/run" {
		t.Errorf("symlink = %q, %v; want a link to bin/run", target, err)
	}
	info, err := os.Stat(filepath.Join(dst, "bin", "run"))
	if err != nil || info.Mode().Perm()&0o100 == 0 {
		t.Errorf("mode not preserved: %v, %v", info, err)
	}
}
