// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/klauspost/compress/gzip"

	"github.com/zephyr-sh/zephyr/internal/audit"
	"github.com/zephyr-sh/zephyr/internal/testutil"
)

type (
	// fakeRepo is a repository as a list of revisions; each revision maps
	// paths to content.
	fakeRepo struct {
		revs  []map[string]string
		hooks map[string]string
	}

	// fakeVCS implements VCS on plain directories.
	fakeVCS struct {
		mu    sync.Mutex
		repos map[string]*fakeRepo // by URL
		dirs  map[string]*fakeRepo // by working directory
		head  map[string]int

		cloneErr error
		fetchErr error
		pullErr  error
		// pullMovesHead applies the next revision even when pullErr is set.
		pullMovesHead bool
		resetErr      error

		calls []string
	}

	// stubPrompter answers every confirmation with answer.
	stubPrompter struct {
		answer   bool
		err      error
		question string
		details  []string
	}
)

func newFakeVCS() *fakeVCS {
	return &fakeVCS{
		repos: make(map[string]*fakeRepo),
		dirs:  make(map[string]*fakeRepo),
		head:  make(map[string]int),
	}
}

func (f *fakeVCS) called(op string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == op {
			return true
		}
	}
	return false
}

func (f *fakeVCS) note(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
}

// track registers dir as a checkout of repo at revision 0 and writes it.
func (f *fakeVCS) track(t *testing.T, dir string, repo *fakeRepo) {
	t.Helper()
	testutil.MustMkdirAll(t, filepath.Join(dir, ".git"))
	f.mu.Lock()
	f.dirs[dir] = repo
	f.head[dir] = 0
	f.mu.Unlock()
	if err := writeRev(dir, repo.revs[0]); err != nil {
		t.Fatal(err)
	}
}

func (f *fakeVCS) Clone(_ context.Context, url, dir string) error {
	f.note("clone")
	if f.cloneErr != nil {
		return f.cloneErr
	}
	repo, ok := f.repos[url]
	if !ok {
		return fmt.Errorf("repository %s not found", url)
	}
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		return err
	}
	for name, content := range repo.hooks {
		p := filepath.Join(dir, ".git", "hooks", name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o755); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.dirs[dir] = repo
	f.head[dir] = len(repo.revs) - 1
	f.mu.Unlock()
	return nil
}

func (f *fakeVCS) ExportHead(dir string) error {
	f.note("export")
	f.mu.Lock()
	repo, rev := f.dirs[dir], f.head[dir]
	f.mu.Unlock()
	return writeRev(dir, repo.revs[rev])
}

func (f *fakeVCS) Checkout(dir string) error {
	f.note("checkout")
	return nil
}

func (f *fakeVCS) Head(dir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.dirs[dir]; !ok {
		return "", errors.New("not a repository")
	}
	return fmt.Sprintf("rev%d", f.head[dir]), nil
}

func (f *fakeVCS) Fetch(context.Context, string) error {
	f.note("fetch")
	return f.fetchErr
}

func (f *fakeVCS) Pull(_ context.Context, dir string) error {
	f.note("pull")
	if f.pullErr != nil && !f.pullMovesHead {
		return f.pullErr
	}
	f.mu.Lock()
	repo := f.dirs[dir]
	f.head[dir] = len(repo.revs) - 1
	rev := repo.revs[f.head[dir]]
	f.mu.Unlock()
	if err := writeRev(dir, rev); err != nil {
		return err
	}
	return f.pullErr
}

func (f *fakeVCS) Reset(dir, rev string) error {
	f.note("reset")
	if f.resetErr != nil {
		return f.resetErr
	}
	var n int
	if _, err := fmt.Sscanf(rev, "rev%d", &n); err != nil {
		return err
	}
	f.mu.Lock()
	repo := f.dirs[dir]
	f.head[dir] = n
	f.mu.Unlock()
	return writeRev(dir, repo.revs[n])
}

func (f *fakeVCS) IsRepository(dir string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.dirs[dir]
	return ok
}

// writeRev replaces everything in dir except .git with files.
func writeRev(dir string, files map[string]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == ".git" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubPrompter) Confirm(question string, details []string) (bool, error) {
	s.question, s.details = question, details
	return s.answer, s.err
}

func manifest(name string, files ...string) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[module]\nname = %q\nversion = \"1.0.0\"\n\n[load]\nfiles = [", name)
	for i, f := range files {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", f)
	}
	b.WriteString("]\n")
	return b.String()
}

// moduleRev is a valid module revision with a single load file.
func moduleRev(name, body string) map[string]string {
	return map[string]string{
		"module.toml": manifest(name, "init.zsh"),
		"init.zsh":    body,
	}
}

type harness struct {
	modulesDir string
	vcs        *fakeVCS
	audit      *audit.Recorder
	pipeline   *Pipeline
}

func newHarness(t *testing.T, cfg Config, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		modulesDir: filepath.Join(t.TempDir(), "modules"),
		vcs:        newFakeVCS(),
		audit:      &audit.Recorder{},
	}
	testutil.MustMkdirAll(t, h.modulesDir)
	cfg.ModulesDir = h.modulesDir

	all := append([]Option{
		WithVCS(h.vcs),
		WithAuditSink(h.audit),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	p, err := New(cfg, all...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.pipeline = p
	return h
}

// stagingEmpty reports whether the staging root holds no leftovers.
func (h *harness) stagingEmpty(t *testing.T) bool {
	t.Helper()
	entries, err := os.ReadDir(h.pipeline.cfg.TempDir)
	if os.IsNotExist(err) {
		return true
	}
	if err != nil {
		t.Fatal(err)
	}
	return len(entries) == 0
}

func (h *harness) lastResult(t *testing.T, action audit.Action) audit.Event {
	t.Helper()
	evs := h.audit.Find(action)
	if len(evs) == 0 {
		t.Fatalf("no %s audit event recorded", action)
	}
	return evs[len(evs)-1]
}

//nolint:gochecknoglobals // Key generation is slow; share one key across tests.
var (
	signerOnce sync.Once
	signer     *openpgp.Entity
	signerErr  error
)

func testSigner(t *testing.T) *openpgp.Entity {
	t.Helper()
	signerOnce.Do(func() {
		signer, signerErr = openpgp.NewEntity("zephyr test", "", "test@example.com", nil)
	})
	if signerErr != nil {
		t.Fatalf("failed to generate key: %v", signerErr)
	}
	return signer
}

func armoredPublicKey(t *testing.T, e *openpgp.Entity) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Serialize(w); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type tarEntry struct {
	hdr  tar.Header
	body string
}

func buildTarGz(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := e.hdr
		if hdr.Typeflag == 0 {
			hdr.Typeflag = tar.TypeReg
		}
		if hdr.Mode == 0 && hdr.Typeflag != tar.TypeXGlobalHeader {
			hdr.Mode = 0o644
			if hdr.Typeflag == tar.TypeDir {
				hdr.Mode = 0o755
			}
		}
		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.body))
		}
		if err := tw.WriteHeader(&hdr); err != nil {
			t.Fatal(err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func moduleTarball(t *testing.T, name, body string) []byte {
	t.Helper()
	top := name + "-1.0.0/"
	return buildTarGz(t, []tarEntry{
		{hdr: tar.Header{Name: top, Typeflag: tar.TypeDir}},
		{hdr: tar.Header{Name: top + "module.toml"}, body: manifest(name, "init.zsh")},
		{hdr: tar.Header{Name: top + "init.zsh"}, body: body},
	})
}

// writeSignedTarball writes data plus its .sig and .sha256 into dir and
// returns the archive path.
func writeSignedTarball(t *testing.T, dir string, data []byte, e *openpgp.Entity) string {
	t.Helper()
	path := filepath.Join(dir, "module.tgz")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	var sig bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&sig, e, bytes.NewReader(data), nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+sigSuffix, sig.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	sum := sha256.Sum256(data)
	line := hex.EncodeToString(sum[:]) + "  module.tgz\n"
	if err := os.WriteFile(path+hashSuffix, []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
