// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// MaxExtractSize bounds the total uncompressed size of a module archive.
const MaxExtractSize = 512 << 20

var (
	// ErrUnsafeArchive is the sentinel error wrapped by ArchiveEntryError.
	ErrUnsafeArchive = errors.New("unsafe archive entry")
	// ErrArchiveTooLarge is returned when extraction exceeds MaxExtractSize.
	ErrArchiveTooLarge = errors.New("archive exceeds extraction size limit")
)

// ArchiveEntryError names an archive entry that was refused.
type ArchiveEntryError struct {
	Name   string
	Reason string
}

// Error implements the error interface.
func (e *ArchiveEntryError) Error() string {
	return fmt.Sprintf("unsafe archive entry %q: %s", e.Name, e.Reason)
}

// Unwrap returns ErrUnsafeArchive so callers can use errors.Is.
func (e *ArchiveEntryError) Unwrap() error { return ErrUnsafeArchive }

// extractTarGz unpacks a gzip-compressed tarball into dest, which must exist.
// Every entry is checked before anything is written for it: absolute names,
// ".." segments, links that resolve outside dest and paths that pass through a
// symlink extracted earlier are refused.
func extractTarGz(archive, dest string, limit int64) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to decompress archive: %w", err)
	}
	defer gz.Close()

	var written int64
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, tar.ErrInsecurePath) && hdr != nil {
			return &ArchiveEntryError{Name: hdr.Name, Reason: "insecure path"}
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		rel, err := entryPath(hdr.Name)
		if err != nil {
			return err
		}
		if rel == "" {
			continue
		}
		if err := checkNoLinkInPath(dest, rel, hdr.Name); err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", rel, err)
			}

		case tar.TypeReg:
			if written+hdr.Size > limit {
				return ErrArchiveTooLarge
			}
			n, err := writeEntry(tr, target, hdr.FileInfo().Mode().Perm(), limit-written)
			written += n
			if err != nil {
				return fmt.Errorf("failed to extract %s: %w", rel, err)
			}

		case tar.TypeSymlink:
			if err := checkLink(hdr.Name, rel, hdr.Linkname, true); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("failed to create link %s: %w", rel, err)
			}

		case tar.TypeLink:
			if err := checkLink(hdr.Name, rel, hdr.Linkname, false); err != nil {
				return err
			}
			linkRel, err := entryPath(hdr.Linkname)
			if err != nil {
				return err
			}
			if err := checkLinkSource(dest, linkRel, hdr.Name); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Link(filepath.Join(dest, linkRel), target); err != nil {
				return fmt.Errorf("failed to create link %s: %w", rel, err)
			}

		default:
			return &ArchiveEntryError{Name: hdr.Name, Reason: fmt.Sprintf("unsupported entry type %q", hdr.Typeflag)}
		}
	}
}

// entryPath validates an archive entry name and returns it as a clean
// relative OS path. The archive root itself yields "".
func entryPath(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) || strings.Contains(name, `\`) {
		return "", &ArchiveEntryError{Name: name, Reason: "absolute or non-portable path"}
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", &ArchiveEntryError{Name: name, Reason: "path contains '..'"}
		}
	}
	clean := path.Clean(name)
	if clean == "." {
		return "", nil
	}
	return filepath.FromSlash(clean), nil
}

// checkLink refuses link targets that leave the extraction root. Symlink
// targets are relative to the link's directory; hardlink targets are archive
// paths.
func checkLink(name, rel, linkname string, symlink bool) error {
	if linkname == "" || strings.HasPrefix(linkname, "/") || filepath.IsAbs(linkname) {
		return &ArchiveEntryError{Name: name, Reason: "link target is absolute"}
	}
	resolved := linkname
	if symlink {
		resolved = path.Join(path.Dir(filepath.ToSlash(rel)), linkname)
	}
	clean := path.Clean(resolved)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return &ArchiveEntryError{Name: name, Reason: "link target escapes the archive"}
	}
	return nil
}

// checkNoLinkInPath refuses rel when dest/rel or any directory between dest and
// it is an existing symlink. Earlier entries may have created such links, and
// creating files or directories through them would follow them out of dest.
func checkNoLinkInPath(dest, rel, name string) error {
	cur := dest
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", name, err)
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return &ArchiveEntryError{Name: name, Reason: "path passes through a symlink"}
		}
	}
	return nil
}

// checkLinkSource requires a hardlink target to be a regular file already
// extracted under dest, reached without following a symlink.
func checkLinkSource(dest, linkRel, name string) error {
	if linkRel == "" {
		return &ArchiveEntryError{Name: name, Reason: "hardlink to the archive root"}
	}
	if err := checkNoLinkInPath(dest, linkRel, name); err != nil {
		return err
	}
	info, err := os.Lstat(filepath.Join(dest, linkRel))
	if err != nil || !info.Mode().IsRegular() {
		return &ArchiveEntryError{Name: name, Reason: "hardlink target is not an extracted regular file"}
	}
	return nil
}

func writeEntry(r io.Reader, target string, perm os.FileMode, remaining int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, io.LimitReader(r, remaining+1))
	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return n, err
	}
	if n > remaining {
		return n, ErrArchiveTooLarge
	}
	return n, nil
}

// unwrapSingleDir returns the only entry of dir when it is a directory, so
// that "name-1.0/module.toml" archives stage the inner directory. Otherwise it
// returns dir.
func unwrapSingleDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

// copyTree copies src into dst, recreating symlinks as links rather than
// following them so that the scanner sees them.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFile(p, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
