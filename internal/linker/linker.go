// Package linker points the Android tree's clang-dev prebuilt at an
// acquired toolchain.
package linker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/glog"

	"github.com/buckleypaul/droidclang/internal/checkout"
	"github.com/buckleypaul/droidclang/internal/toolchain"
)

// ErrLink marks a failure to establish the toolchain link. It is fatal:
// every later build would use the wrong compiler.
var ErrLink = errors.New("link error")

// Link replaces the tree's clang-dev entry with a symlink to h.Path. Any
// existing file, symlink or directory there is removed first.
func Link(tree *checkout.AndroidTree, h toolchain.Handle) error {
	link := tree.DevToolchainLink()
	target, err := filepath.Abs(h.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLink, err)
	}

	if err := checkout.Remove(link); err != nil {
		return fmt.Errorf("%w: removing %s: %v", ErrLink, link, err)
	}
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrLink, err)
	}
	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("%w: %v", ErrLink, err)
	}
	glog.Infof("Linked %s -> %s", link, target)
	return nil
}
