package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/golang/glog"

	"github.com/buckleypaul/droidclang/internal/checkout"
	"github.com/buckleypaul/droidclang/internal/config"
	"github.com/buckleypaul/droidclang/internal/runner"
)

// Acquirer turns a config.ToolchainSource into a Handle.
type Acquirer struct {
	Runner   runner.Runner
	Checkout *checkout.ToolchainCheckout
	Stages   Stages
}

// Acquire runs exactly one acquisition path for source.
func (a *Acquirer) Acquire(ctx context.Context, source config.ToolchainSource) (Handle, error) {
	switch src := source.(type) {
	case config.PrebuiltSource:
		glog.Infof("Using prebuilt toolchain %s", src.Path)
		return Open(ctx, a.Runner, src.Path)
	case config.PackageSource:
		return a.fromPackage(ctx, src)
	case config.FromSourceBuild:
		return a.fromSource(ctx, src)
	default:
		return Handle{}, fmt.Errorf("%w: unknown toolchain source %T", config.ErrConfiguration, source)
	}
}

func (a *Acquirer) fromPackage(ctx context.Context, src config.PackageSource) (Handle, error) {
	extractDir := a.Checkout.OutPath("extracted")
	glog.Infof("Extracting toolchain package from %s into %s", src.Dir, extractDir)
	root, err := ExtractPackage(src.Dir, extractDir)
	if err != nil {
		return Handle{}, err
	}
	return Open(ctx, a.Runner, root)
}

func (a *Acquirer) fromSource(ctx context.Context, src config.FromSourceBuild) (Handle, error) {
	if src.Instrumented && src.PGO {
		return Handle{}, fmt.Errorf("%w: an instrumented build cannot also use a PGO profile", config.ErrConfiguration)
	}

	glog.Info("Building toolchain from source")
	if err := a.Stages.SetupSources(ctx); err != nil {
		return Handle{}, fmt.Errorf("setting up sources: %w", err)
	}

	// llvm-profdata from stage1 merges the profiles an instrumented stage2
	// produces, so all LLVM tools are needed in that case.
	stage1, err := a.Stages.BuildStage1(ctx, src.Instrumented)
	if err != nil {
		return Handle{}, fmt.Errorf("building stage1: %w", err)
	}

	opts := Stage2Options{Instrumented: src.Instrumented}
	if src.PGO {
		profdata, err := a.profdataFor(ctx, stage1)
		if err != nil {
			return Handle{}, err
		}
		opts.Profdata = profdata
	}

	stage2, err := a.Stages.BuildStage2(ctx, opts)
	if err != nil {
		return Handle{}, fmt.Errorf("building stage2: %w", err)
	}
	if err := a.Stages.BuildRuntimes(ctx, stage2); err != nil {
		return Handle{}, fmt.Errorf("building runtimes: %w", err)
	}
	install, err := a.Stages.Package(ctx, stage2)
	if err != nil {
		return Handle{}, fmt.Errorf("packaging toolchain: %w", err)
	}
	return Open(ctx, a.Runner, install)
}

// profdataFor returns the checked-in profile matching the stage1 version,
// or "" when there is none.
func (a *Acquirer) profdataFor(ctx context.Context, stage1 string) (string, error) {
	v, err := ReadVersion(ctx, a.Runner, stage1)
	if err != nil {
		return "", fmt.Errorf("reading stage1 version: %w", err)
	}
	path := filepath.Join(a.Checkout.ProfilesDir(), v.ProfdataFilename())
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			glog.Warningf("No PGO profile %s, building stage2 without one", path)
			return "", nil
		}
		return "", err
	}
	return path, nil
}
