// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// ModuleFixture describes a module directory written by WriteModule.
type ModuleFixture struct {
	Version  string
	Priority int
	Required []string
	Optional []string
	// Files maps load-file paths to content. Files listed here are declared
	// in [load].files in map-iteration-independent (sorted) order.
	Files map[string]string
	// Extra maps additional, undeclared file paths to content.
	Extra map[string]string
	// OS restricts [platforms].os when non-empty.
	OS []string
}

// WriteModule writes a module named name under parent and returns its root.
func WriteModule(t testing.TB, parent, name string, fx ModuleFixture) string {
	t.Helper()
	root := filepath.Join(parent, name)
	MustMkdirAll(t, root)

	version := fx.Version
	if version == "" {
		version = "1.0.0"
	}

	files := slices.Sorted(maps.Keys(fx.Files))
	var b strings.Builder
	fmt.Fprintf(&b, "[module]\nname = %q\nversion = %q\n\n", name, version)
	fmt.Fprintf(&b, "[dependencies]\nrequired = %s\noptional = %s\n\n", tomlList(fx.Required), tomlList(fx.Optional))
	b.WriteString("[load]\n")
	if fx.Priority != 0 {
		fmt.Fprintf(&b, "priority = %d\n", fx.Priority)
	}
	fmt.Fprintf(&b, "files = %s\n", tomlList(files))
	if len(fx.OS) > 0 {
		fmt.Fprintf(&b, "\n[platforms]\nos = %s\n", tomlList(fx.OS))
	}
	WriteFile(t, root, "module.toml", b.String())

	for _, f := range files {
		WriteFile(t, root, f, fx.Files[f])
	}
	for rel, content := range fx.Extra {
		WriteFile(t, root, rel, content)
	}
	return root
}

func tomlList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
