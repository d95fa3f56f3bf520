package toolchain

import (
	"archive/tar"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/buckleypaul/droidclang/internal/checkout"
)

// ErrPackaging marks a missing, ambiguous or malformed toolchain package.
var ErrPackaging = errors.New("packaging error")

var packageSuffixes = []string{".tar.bz2", ".tar.xz"}

// FindPackage returns the single archive in dir built for hostOS.
func FindPackage(dir, hostOS string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPackaging, err)
	}
	var matches []string
	for _, e := range entries {
		if e.IsDir() || !strings.Contains(e.Name(), hostOS) {
			continue
		}
		for _, suffix := range packageSuffixes {
			if strings.HasSuffix(e.Name(), suffix) {
				matches = append(matches, e.Name())
				break
			}
		}
	}
	sort.Strings(matches)
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: no clang packages (.tar.bz2, .tar.xz) for %s found in %s", ErrPackaging, hostOS, dir)
	case 1:
		return filepath.Join(dir, matches[0]), nil
	default:
		return "", fmt.Errorf("%w: %d clang packages for %s found in %s: %s",
			ErrPackaging, len(matches), hostOS, dir, strings.Join(matches, ", "))
	}
}

// ExtractPackage finds the host package in dir and unpacks it into
// extractDir, which is cleared first. The archive must hold exactly one
// top-level directory; its path is returned. Nothing is left in extractDir
// on failure.
func ExtractPackage(dir, extractDir string) (string, error) {
	if err := checkout.RemoveTree(extractDir); err != nil {
		return "", fmt.Errorf("clearing %s: %w", extractDir, err)
	}

	archive, err := FindPackage(dir, checkout.HostOS())
	if err != nil {
		return "", err
	}

	root, err := extract(archive, extractDir)
	if err != nil {
		checkout.RemoveTree(extractDir)
		return "", err
	}
	return root, nil
}

func extract(archive, extractDir string) (string, error) {
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", err
	}
	f, err := os.Open(archive)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPackaging, err)
	}
	defer f.Close()

	var stream io.Reader
	switch {
	case strings.HasSuffix(archive, ".tar.xz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrPackaging, archive, err)
		}
		stream = xzr
	default:
		stream = bzip2.NewReader(f)
	}

	if err := untar(tar.NewReader(stream), extractDir); err != nil {
		return "", fmt.Errorf("%w: extracting %s: %v", ErrPackaging, archive, err)
	}

	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return "", err
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return "", fmt.Errorf("%w: expected one entry in package, found: %s", ErrPackaging, strings.Join(names, " "))
	}
	root := filepath.Join(extractDir, entries[0].Name())
	if !entries[0].IsDir() {
		return "", fmt.Errorf("%w: extracted path is not a dir: %s", ErrPackaging, root)
	}
	return root, nil
}

func untar(tr *tar.Reader, dest string) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := within(dest, hdr.Name)
		if err != nil {
			return err
		}
		if err := noSymlinkOnPath(dest, target); err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := writeFile(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) {
				return fmt.Errorf("symlink %q has absolute target %q", hdr.Name, hdr.Linkname)
			}
			rel, err := filepath.Rel(dest, filepath.Join(filepath.Dir(target), hdr.Linkname))
			if err != nil || escapes(rel) {
				return fmt.Errorf("symlink %q points outside extraction directory", hdr.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		case tar.TypeLink:
			src, err := within(dest, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := noSymlinkOnPath(dest, src); err != nil {
				return err
			}
			if err := os.Link(src, target); err != nil {
				return err
			}
		}
	}
}

// noSymlinkOnPath rejects target when it, or any directory between dest and
// it, is a symlink extracted earlier. Writes must never follow one.
func noSymlinkOnPath(dest, target string) error {
	rel, err := filepath.Rel(dest, target)
	if err != nil {
		return err
	}
	p := dest
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "." || part == "" {
			continue
		}
		p = filepath.Join(p, part)
		info, err := os.Lstat(p)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("entry %s goes through symlink %s", target, p)
		}
	}
	return nil
}

func writeFile(path string, r io.Reader, perm os.FileMode) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// within resolves name under dest and rejects entries escaping it.
func within(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	rel, err := filepath.Rel(dest, target)
	if err != nil || escapes(rel) {
		return "", fmt.Errorf("entry %q escapes extraction directory", name)
	}
	return target, nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
