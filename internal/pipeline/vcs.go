// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

type (
	// VCS is the version-control surface the pipeline needs.
	VCS interface {
		// Clone clones url into dir without populating the work tree.
		Clone(ctx context.Context, url, dir string) error
		// ExportHead writes the HEAD tree into dir's work tree as plain files,
		// without touching the index or running any VCS machinery.
		ExportHead(dir string) error
		// Checkout syncs the index and work tree of dir to HEAD.
		Checkout(dir string) error
		// Head returns the commit hash HEAD points to.
		Head(dir string) (string, error)
		// Fetch updates remote-tracking refs.
		Fetch(ctx context.Context, dir string) error
		// Pull fast-forwards the current branch.
		Pull(ctx context.Context, dir string) error
		// Reset hard-resets the work tree and index of dir to rev.
		Reset(dir, rev string) error
		// IsRepository reports whether dir is a repository root.
		IsRepository(dir string) bool
	}

	// GitVCS implements VCS with go-git. It never invokes the git binary and
	// never runs hooks.
	GitVCS struct {
		// HomeDir is searched for SSH keys; empty means os.UserHomeDir.
		HomeDir string
		// Getenv reads token variables; nil means os.Getenv.
		Getenv func(string) string
	}
)

// NewGitVCS returns a GitVCS using the process environment for credentials.
func NewGitVCS() *GitVCS {
	return &GitVCS{Getenv: os.Getenv}
}

// Clone implements VCS.
func (g *GitVCS) Clone(ctx context.Context, url, dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:        url,
		Auth:       g.auth(url),
		NoCheckout: true,
	})
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", url, err)
	}
	return nil
}

// ExportHead implements VCS.
func (g *GitVCS) ExportHead(dir string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return fmt.Errorf("failed to read HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return fmt.Errorf("failed to read HEAD tree: %w", err)
	}
	return tree.Files().ForEach(func(f *object.File) error {
		return exportFile(dir, f)
	})
}

func exportFile(root string, f *object.File) error {
	rel := filepath.FromSlash(f.Name)
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	if filepath.IsAbs(rel) || escapes(rel) || strings.EqualFold(first, ".git") {
		return fmt.Errorf("refusing unsafe path in repository tree: %q", f.Name)
	}
	dest := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	switch f.Mode {
	case filemode.Symlink:
		target, err := f.Contents()
		if err != nil {
			return fmt.Errorf("failed to read link %s: %w", f.Name, err)
		}
		return os.Symlink(target, dest)
	case filemode.Submodule:
		return nil
	}

	perm := os.FileMode(0o644)
	if f.Mode == filemode.Executable {
		perm = 0o755
	}
	r, err := f.Reader()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	defer r.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write %s: %w", f.Name, err)
	}
	return out.Close()
}

// Checkout implements VCS.
func (g *GitVCS) Checkout(dir string) error {
	repo, wt, err := openWorktree(dir)
	if err != nil {
		return err
	}
	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: head.Hash(), Mode: git.HardReset}); err != nil {
		return fmt.Errorf("failed to check out %s: %w", shortRev(head.Hash().String()), err)
	}
	return nil
}

// Head implements VCS.
func (g *GitVCS) Head(dir string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// Fetch implements VCS.
func (g *GitVCS) Fetch(ctx context.Context, dir string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		Auth:       g.auth(originURL(repo)),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch: %w", err)
	}
	return nil
}

// Pull implements VCS.
func (g *GitVCS) Pull(ctx context.Context, dir string) error {
	repo, wt, err := openWorktree(dir)
	if err != nil {
		return err
	}
	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName: git.DefaultRemoteName,
		Auth:       g.auth(originURL(repo)),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull: %w", err)
	}
	return nil
}

// Reset implements VCS.
func (g *GitVCS) Reset(dir, rev string) error {
	_, wt, err := openWorktree(dir)
	if err != nil {
		return err
	}
	if err := wt.Reset(&git.ResetOptions{Commit: plumbing.NewHash(rev), Mode: git.HardReset}); err != nil {
		return fmt.Errorf("failed to reset to %s: %w", shortRev(rev), err)
	}
	return nil
}

// IsRepository implements VCS.
func (g *GitVCS) IsRepository(dir string) bool {
	_, err := git.PlainOpen(dir)
	return err == nil
}

func openWorktree(dir string) (*git.Repository, *git.Worktree, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	return repo, wt, nil
}

func originURL(repo *git.Repository) string {
	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil || len(remote.Config().URLs) == 0 {
		return ""
	}
	return remote.Config().URLs[0]
}

// auth picks credentials for url: an SSH key for SSH URLs, a token from the
// environment for HTTPS URLs, nothing otherwise.
func (g *GitVCS) auth(url string) transport.AuthMethod {
	switch {
	case strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://"):
		return g.sshAuth()
	case strings.HasPrefix(url, "https://"):
		return g.tokenAuth()
	default:
		return nil
	}
}

func (g *GitVCS) sshAuth() transport.AuthMethod {
	home := g.HomeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return nil
		}
	}
	for _, key := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		keyPath := filepath.Join(home, ".ssh", key)
		if _, err := os.Stat(keyPath); err != nil {
			continue
		}
		if auth, err := ssh.NewPublicKeysFromFile("git", keyPath, ""); err == nil {
			return auth
		}
	}
	return nil
}

func (g *GitVCS) tokenAuth() transport.AuthMethod {
	getenv := g.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, cred := range []struct{ env, user string }{
		{"GITHUB_TOKEN", "x-access-token"},
		{"GITLAB_TOKEN", "gitlab-ci-token"},
		{"GIT_TOKEN", "git"},
	} {
		if token := getenv(cred.env); token != "" {
			return &http.BasicAuth{Username: cred.user, Password: token}
		}
	}
	return nil
}

// escapes reports whether a relative path climbs out of its base.
func escapes(rel string) bool {
	clean := filepath.Clean(rel)
	return clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))
}
