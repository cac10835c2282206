// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestWriteModule(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	root := WriteModule(t, parent, "git-helpers", ModuleFixture{
		Priority: 20,
		Required: []string{"core"},
		Files:    map[string]string{"init.zsh": "alias g=git\n"},
		Extra:    map[string]string{"README.md": "# git helpers\n"},
	})

	manifest, err := os.ReadFile(filepath.Join(root, "module.toml"))
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	for _, want := range []string{`name = "git-helpers"`, `priority = 20`, `required = ["core"]`, `files = ["init.zsh"]`} {
		if !strings.Contains(string(manifest), want) {
			t.Errorf("manifest missing %q:\n%s", want, manifest)
		}
	}
	if !PathExists(t, filepath.Join(root, "init.zsh")) || !PathExists(t, filepath.Join(root, "README.md")) {
		t.Error("expected module files to be written")
	}
}

func TestWriteFileMode_Executable(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on Windows")
	}

	path := WriteFileMode(t, t.TempDir(), "hooks/post-checkout", "#!/bin/sh\n", 0o755)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Errorf("expected executable bits, got %v", info.Mode())
	}
}
