// Package profile collects the raw profiles written by an instrumented
// compiler during target builds and merges them into one .profdata file.
package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/glog"

	"github.com/buckleypaul/droidclang/internal/build"
	"github.com/buckleypaul/droidclang/internal/runner"
	"github.com/buckleypaul/droidclang/internal/toolchain"
)

// ErrMerge marks a failed llvm-profdata merge.
var ErrMerge = errors.New("profile merge failure")

// EnvKey is read by the compiler-rt profile runtime.
const EnvKey = "LLVM_PROFILE_FILE"

// Collector owns one run's raw profile directory.
type Collector struct {
	Runner runner.Runner
	// Dir receives one .profraw fragment per compiler process.
	Dir string
	// Stage1Install provides llvm-profdata.
	Stage1Install string
	// DistDir receives the merged profile.
	DistDir string
}

// Output returns the variable the target builder must inject. %4m makes the
// profile runtime pick a per-binary name and merge concurrent writers.
func (c *Collector) Output() build.ProfileOutput {
	return build.ProfileOutput{Key: EnvKey, Pattern: filepath.Join(c.Dir, "%4m.profraw")}
}

// Prepare creates the fragment directory.
func (c *Collector) Prepare() error {
	return os.MkdirAll(c.Dir, 0o755)
}

// MergedPath is where Merge writes the profile for version v.
func (c *Collector) MergedPath(v toolchain.Version) string {
	return filepath.Join(c.DistDir, v.ProfdataFilename())
}

// Merge merges every fragment in Dir into MergedPath(v). There is no
// partial merge: either llvm-profdata succeeds over the whole directory or
// the run fails.
func (c *Collector) Merge(ctx context.Context, v toolchain.Version) (string, error) {
	out := c.MergedPath(v)
	if err := os.MkdirAll(c.DistDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMerge, err)
	}
	profdata := filepath.Join(c.Stage1Install, "bin", "llvm-profdata")
	glog.Infof("Merging profiles from %s into %s", c.Dir, out)
	err := c.Runner.Run(ctx, runner.Command{
		Name: profdata,
		Args: []string{"merge", "-o", out, c.Dir},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMerge, err)
	}
	return out, nil
}
