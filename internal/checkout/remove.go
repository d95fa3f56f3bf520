package checkout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Remove deletes whatever is at path: a symlink is unlinked (never
// followed), a file removed, a directory removed recursively. A missing
// path is not an error.
func Remove(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return RemoveTree(path)
	}
	return os.Remove(path)
}

// RemoveTree removes dir recursively. If removal fails because something
// inside is not writable, write permission is restored on every entry and
// the removal is retried once.
func RemoveTree(dir string) error {
	err := os.RemoveAll(dir)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrPermission) {
		return err
	}
	makeWritable(dir)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("rmtree on %s failed: %w", dir, err)
	}
	return nil
}

func makeWritable(dir string) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		os.Chmod(path, info.Mode().Perm()|0o700)
		return nil
	})
}
