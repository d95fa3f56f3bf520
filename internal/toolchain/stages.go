package toolchain

import (
	"context"
	"os"

	"github.com/buckleypaul/droidclang/internal/checkout"
	"github.com/buckleypaul/droidclang/internal/runner"
)

// Stage2Options controls the second stage compiler build.
type Stage2Options struct {
	Instrumented bool
	// Profdata is a merged profile applied to the build, empty for none.
	Profdata string
}

// Stages is the external compiler build. Each step is opaque to the
// orchestrator and fails with the underlying subprocess error.
type Stages interface {
	SetupSources(ctx context.Context) error
	// BuildStage1 returns the stage1 install directory.
	BuildStage1(ctx context.Context, withTools bool) (string, error)
	// BuildStage2 returns the stage2 install directory.
	BuildStage2(ctx context.Context, opts Stage2Options) (string, error)
	BuildRuntimes(ctx context.Context, stage2Install string) error
	// Package lays out stage2 as a versioned install and returns its path.
	Package(ctx context.Context, stage2Install string) (string, error)
}

// ScriptStages drives toolchain/llvm_android/build.py, one --stage per step.
type ScriptStages struct {
	Runner    runner.Runner
	Checkout  *checkout.ToolchainCheckout
	BuildName string
}

func (s *ScriptStages) run(ctx context.Context, stage string, extra ...string) error {
	name := s.BuildName
	if name == "" {
		name = "dev"
	}
	args := append([]string{s.Checkout.BuildScript(), "--stage", stage, "--build-name", name}, extra...)
	return s.Runner.Run(ctx, runner.Command{
		Name: "python3",
		Args: args,
		Dir:  s.Checkout.Root,
		Env:  s.env(),
	})
}

func (s *ScriptStages) env() []string {
	if s.Checkout.OutDir == "" {
		return nil
	}
	return append(os.Environ(), "OUT_DIR="+s.Checkout.OutDir)
}

func (s *ScriptStages) SetupSources(ctx context.Context) error {
	return s.run(ctx, "sources", "--source-dir", s.Checkout.OutPath("llvm-project"))
}

func (s *ScriptStages) BuildStage1(ctx context.Context, withTools bool) (string, error) {
	var extra []string
	if withTools {
		extra = append(extra, "--build-llvm-tools")
	}
	if err := s.run(ctx, "stage1", extra...); err != nil {
		return "", err
	}
	return s.Checkout.OutPath("stage1-install"), nil
}

func (s *ScriptStages) BuildStage2(ctx context.Context, opts Stage2Options) (string, error) {
	extra := []string{"--no-lldb"}
	if opts.Instrumented {
		extra = append(extra, "--instrumented")
	}
	if opts.Profdata != "" {
		extra = append(extra, "--profdata", opts.Profdata)
	}
	if err := s.run(ctx, "stage2", extra...); err != nil {
		return "", err
	}
	return s.Checkout.OutPath("stage2-install"), nil
}

func (s *ScriptStages) BuildRuntimes(ctx context.Context, stage2Install string) error {
	return s.run(ctx, "runtimes", "--install-dir", stage2Install)
}

func (s *ScriptStages) Package(ctx context.Context, stage2Install string) (string, error) {
	if err := s.run(ctx, "package", "--install-dir", stage2Install, "--strip", "--no-tar"); err != nil {
		return "", err
	}
	return s.Checkout.OutPath("install", checkout.HostTag(), "clang-dev"), nil
}
