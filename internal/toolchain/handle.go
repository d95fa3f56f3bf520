// Package toolchain acquires a usable clang installation: a prebuilt
// directory, an extracted release package, or a fresh two-stage build.
package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/buckleypaul/droidclang/internal/runner"
)

// Handle identifies a usable compiler installation. It is never modified
// after acquisition.
type Handle struct {
	Path    string
	Version Version
}

// Version is a clang release number.
type Version struct {
	Major, Minor, Patch int
}

// Short returns "major.minor".
func (v Version) Short() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Long returns "major.minor.patch".
func (v Version) Long() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func (v Version) String() string { return v.Long() }

// ProfdataFilename is the merged profile name for this version.
func (v Version) ProfdataFilename() string {
	return "clang-" + v.Long() + ".profdata"
}

var versionRe = regexp.MustCompile(`clang version (\d+)\.(\d+)\.(\d+)`)

// ParseVersion extracts the version from `clang --version` output.
func ParseVersion(output string) (Version, error) {
	m := versionRe.FindStringSubmatch(output)
	if m == nil {
		return Version{}, fmt.Errorf("no clang version in %q", firstLine(output))
	}
	var v Version
	v.Major, _ = strconv.Atoi(m[1])
	v.Minor, _ = strconv.Atoi(m[2])
	v.Patch, _ = strconv.Atoi(m[3])
	return v, nil
}

// ReadVersion runs the clang binary under dir and parses its version.
func ReadVersion(ctx context.Context, r runner.Runner, dir string) (Version, error) {
	clang := filepath.Join(dir, "bin", "clang")
	out, err := r.Output(ctx, runner.Command{Name: clang, Args: []string{"--version"}})
	if err != nil {
		return Version{}, fmt.Errorf("reading version of %s: %w", dir, err)
	}
	return ParseVersion(out)
}

// Open validates that dir exists and reads its version.
func Open(ctx context.Context, r runner.Runner, dir string) (Handle, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Handle{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Handle{}, err
	}
	if !info.IsDir() {
		return Handle{}, fmt.Errorf("%s is not a directory", abs)
	}
	v, err := ReadVersion(ctx, r, abs)
	if err != nil {
		return Handle{}, err
	}
	return Handle{Path: abs, Version: v}, nil
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
