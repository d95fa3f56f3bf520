// Package build runs the Android build for one lunch target with an
// acquired toolchain.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/buckleypaul/droidclang/internal/checkout"
	"github.com/buckleypaul/droidclang/internal/env"
	"github.com/buckleypaul/droidclang/internal/runner"
	"github.com/buckleypaul/droidclang/internal/toolchain"
)

var (
	// ErrTargetResolution marks a lunch target the tree does not know.
	ErrTargetResolution = errors.New("target resolution error")
	// ErrBuildFailure marks a non-zero exit of the build system.
	ErrBuildFailure = errors.New("build failure")
)

// ProfileOutput is the environment variable that makes instrumented
// compilers write raw profiles, and its value.
type ProfileOutput struct {
	Key     string
	Pattern string
}

// Request describes one target build.
type Request struct {
	Target         string
	Version        toolchain.Version
	Jobs           int
	RedirectStderr bool
	WithTidy       bool
	// Profile is set when profiles are being collected.
	Profile *ProfileOutput
}

// Result describes a finished target build.
type Result struct {
	Target    string
	Modules   []string
	Jobs      int
	StderrLog string
	// ProductOut is ANDROID_PRODUCT_OUT as reported by lunch.
	ProductOut string
	Duration   time.Duration
}

// Builder builds targets in one Android tree.
type Builder struct {
	Runner runner.Runner
	Tree   *checkout.AndroidTree
	// FallbackCompilerDir is where the compiler wrapper finds a known good
	// clang when the one under test crashes.
	FallbackCompilerDir string

	// CPUCount defaults to runtime.NumCPU.
	CPUCount func() int

	Stdout io.Writer
	Stderr io.Writer
}

// Build resolves req.Target, assembles its environment and runs the build.
func (b *Builder) Build(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res := Result{Target: req.Target}

	e, err := b.Lunch(ctx, req.Target)
	if err != nil {
		return res, err
	}
	res.ProductOut, _ = e.Get(ProductOutKey)

	res.StderrLog, err = b.Overlay(e, req)
	if err != nil {
		return res, err
	}
	glog.V(1).Infof("Environment overrides for %s: %v", req.Target, e.Overlay())
	res.Modules = Modules(req.Profile != nil)
	res.Jobs = ClampJobs(req.Jobs, b.cpuCount())

	glog.Infof("Start building target %s and modules %s.", req.Target, strings.Join(res.Modules, " "))
	args := append([]string{"build/soong/soong_ui.bash", "--make-mode", fmt.Sprintf("-j%d", res.Jobs)}, res.Modules...)
	err = b.Runner.Run(ctx, runner.Command{
		Name:   "/bin/bash",
		Args:   args,
		Dir:    b.Tree.Root,
		Env:    e.Environ(),
		Stdout: b.Stdout,
		Stderr: b.Stderr,
	})
	res.Duration = time.Since(start)
	if err != nil {
		return res, fmt.Errorf("%w: %s: %v", ErrBuildFailure, req.Target, err)
	}
	return res, nil
}

// Lunch runs envsetup and lunch for target and captures the resulting
// environment.
func (b *Builder) Lunch(ctx context.Context, target string) (*env.BuildEnvironment, error) {
	script := ". ./build/envsetup.sh; lunch " + shellQuote(target) + " >/dev/null && env"
	out, err := b.Runner.Output(ctx, runner.Command{
		Name:   "bash",
		Args:   []string{"-c", script},
		Dir:    b.Tree.Root,
		Stderr: b.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to lunch %s: %v", ErrTargetResolution, target, err)
	}
	return env.Parse(out), nil
}

// Overlay applies the orchestrator keys for req onto e and returns the
// compiler stderr log path, empty when stderr is not redirected.
func (b *Builder) Overlay(e *env.BuildEnvironment, req Request) (string, error) {
	// Soong only propagates the environment to ninja when asked; the
	// compiler wrapper and profile runtime both read it from there.
	e.Set(AllowNinjaEnvKey, "true")

	var stderrLog string
	if req.RedirectStderr {
		if dist, ok := e.Get(DistDirKey); ok && dist != "" {
			stderrLog = filepath.Join(dist, "logs", "clang-error.log")
		} else {
			stderrLog = b.Tree.DefaultStderrLog()
			if err := checkout.Remove(stderrLog); err != nil {
				return "", fmt.Errorf("removing stale %s: %w", stderrLog, err)
			}
		}
		e.Set(StderrRedirectKey, stderrLog)
		e.Set(PrebuiltCompilerPathKey, b.FallbackCompilerDir)
		e.Set(DisabledWarningsKey, strings.Join(DisabledWarnings, " "))
	}

	e.Set(PrebuiltsVersionKey, DevPrebuiltsVersion)
	e.Set(ReleaseVersionKey, req.Version.Long())

	if req.WithTidy {
		e.Set(WithTidyKey, "1")
		e.SetDefault(DefaultGlobalTidyChecksKey, strings.Join(DefaultTidyChecks, ","))
	}

	if req.Profile != nil {
		e.Set(req.Profile.Key, req.Profile.Pattern)
	}
	return stderrLog, nil
}

// Modules returns the module list for a profiling or a normal build.
func Modules(profiling bool) []string {
	if profiling {
		return append([]string(nil), ProfileModules...)
	}
	return append([]string(nil), DistModules...)
}

// ClampJobs limits requested to [1, cpus].
func ClampJobs(requested, cpus int) int {
	if cpus < 1 {
		cpus = 1
	}
	if requested < 1 {
		return 1
	}
	if requested > cpus {
		return cpus
	}
	return requested
}

func (b *Builder) cpuCount() int {
	if b.CPUCount != nil {
		return b.CPUCount()
	}
	return runtime.NumCPU()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
