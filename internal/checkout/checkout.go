// Package checkout locates the two source trees the tool works with: the
// Android tree being built and the toolchain checkout that holds
// toolchain/llvm_android and its out/ directory.
package checkout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// ErrNotFound is returned when a tree cannot be located or validated.
var ErrNotFound = errors.New("checkout not found")

// AndroidTree is a validated Android source checkout.
type AndroidTree struct {
	Root string
}

// OpenAndroidTree validates that root looks like an Android checkout.
func OpenAndroidTree(root string) (*AndroidTree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	envsetup := filepath.Join(abs, "build", "envsetup.sh")
	if _, err := os.Stat(envsetup); err != nil {
		return nil, fmt.Errorf("%w: %s has no build/envsetup.sh", ErrNotFound, abs)
	}
	return &AndroidTree{Root: abs}, nil
}

// DevToolchainLink is the symlink the Android build resolves for
// LLVM_PREBUILTS_VERSION=clang-dev.
func (t *AndroidTree) DevToolchainLink() string {
	return filepath.Join(t.Root, "prebuilts", "clang", "host", HostTag(), "clang-dev")
}

// HostBinDir holds the host tools (adb, fastboot) built from the tree.
func (t *AndroidTree) HostBinDir() string {
	return filepath.Join(t.Root, "out", "host", HostTag(), "bin")
}

// DefaultStderrLog is where compiler stderr goes when DIST_DIR is unset.
func (t *AndroidTree) DefaultStderrLog() string {
	return filepath.Join(t.Root, "out", "clang-error.log")
}

// ToolchainCheckout is the tree that builds the toolchain.
type ToolchainCheckout struct {
	Root string
	// OutDir overrides Root/out, usually from OUT_DIR.
	OutDir string
}

// DetectToolchainCheckout walks up from startDir looking for a directory
// that contains toolchain/llvm_android.
func DetectToolchainCheckout(startDir string) (*ToolchainCheckout, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		marker := filepath.Join(dir, "toolchain", "llvm_android")
		if info, err := os.Stat(marker); err == nil && info.IsDir() {
			return &ToolchainCheckout{Root: dir}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, fmt.Errorf("%w: no toolchain/llvm_android above %s", ErrNotFound, startDir)
}

// OutPath joins elem onto the checkout's output directory.
func (c *ToolchainCheckout) OutPath(elem ...string) string {
	out := c.OutDir
	if out == "" {
		out = filepath.Join(c.Root, "out")
	}
	return filepath.Join(append([]string{out}, elem...)...)
}

// BuildScript is the llvm_android driver invoked for from-source builds.
func (c *ToolchainCheckout) BuildScript() string {
	return filepath.Join(c.Root, "toolchain", "llvm_android", "build.py")
}

// PrebuiltsDir holds the checked-in prebuilt clang releases.
func (c *ToolchainCheckout) PrebuiltsDir() string {
	return filepath.Join(c.Root, "prebuilts", "clang", "host", HostTag())
}

// PrebuiltClangBinDir returns the bin directory of the newest clang-r*
// prebuilt, used by the compiler wrapper as a fallback compiler.
func (c *ToolchainCheckout) PrebuiltClangBinDir() string {
	base := c.PrebuiltsDir()
	entries, err := os.ReadDir(base)
	if err != nil {
		return filepath.Join(base, "bin")
	}
	var releases []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "clang-r") {
			releases = append(releases, e.Name())
		}
	}
	if len(releases) == 0 {
		return filepath.Join(base, "bin")
	}
	sort.Strings(releases)
	return filepath.Join(base, releases[len(releases)-1], "bin")
}

// ProfilesDir holds the checked-in PGO profiles.
func (c *ToolchainCheckout) ProfilesDir() string {
	return filepath.Join(c.PrebuiltsDir(), "profiles")
}

// HostTag is the prebuilts directory name for the build host.
func HostTag() string {
	if runtime.GOOS == "darwin" {
		return "darwin-x86"
	}
	return "linux-x86"
}

// HostOS is the OS name toolchain packages are labelled with.
func HostOS() string {
	if runtime.GOOS == "darwin" {
		return "darwin"
	}
	return "linux"
}
