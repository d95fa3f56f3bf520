package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/golang/glog"
	"github.com/mattn/go-isatty"

	"github.com/buckleypaul/droidclang/internal/build"
	"github.com/buckleypaul/droidclang/internal/checkout"
	"github.com/buckleypaul/droidclang/internal/config"
	"github.com/buckleypaul/droidclang/internal/orchestrator"
	"github.com/buckleypaul/droidclang/internal/runner"
	"github.com/buckleypaul/droidclang/internal/serial"
	"github.com/buckleypaul/droidclang/internal/store"
	"github.com/buckleypaul/droidclang/internal/toolchain"
	"github.com/buckleypaul/droidclang/internal/tui"
	"github.com/buckleypaul/droidclang/internal/ui"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	flag.Set("logtostderr", "true")
	os.Exit(run())
}

func run() int {
	defer glog.Flush()

	opts, c, err := parseArgs(flag.CommandLine, os.Args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			printUsageError(os.Stderr, err)
		}
		return exitUsage
	}

	cfg := loadConfig(opts.AndroidPath)
	if c.ListHistory {
		return runListHistory(os.Stdout, c, cfg)
	}
	plan, err := config.Resolve(opts, cfg)
	if err != nil {
		printUsageError(os.Stderr, err)
		return exitUsage
	}
	if opts.Target != "" && !opts.BuildOnly {
		glog.Warning("-target is ignored without -build-only")
	}

	tree, err := checkout.OpenAndroidTree(plan.AndroidPath)
	if err != nil {
		printUsageError(os.Stderr, err)
		return exitUsage
	}
	co, err := toolchainCheckout(c.ToolchainRoot, cfg.ToolchainRoot, plan.Source)
	if err != nil {
		printUsageError(os.Stderr, err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	distDir := distPath(co)
	newOrchestrator := func(out io.Writer, obs orchestrator.Observer) *orchestrator.Orchestrator {
		r := runner.DefaultRunner{Stdout: out, Stderr: out}
		o := &orchestrator.Orchestrator{
			Runner:   r,
			Tree:     tree,
			Checkout: co,
			Acquirer: &toolchain.Acquirer{
				Runner:   r,
				Checkout: co,
				Stages:   &toolchain.ScriptStages{Runner: r, Checkout: co},
			},
			Builder: &build.Builder{
				Runner:              r,
				Tree:                tree,
				FallbackCompilerDir: co.PrebuiltClangBinDir(),
				Stdout:              out,
				Stderr:              out,
			},
			DistDir:  distDir,
			Observer: obs,
		}
		if historyEnabled(c, cfg) {
			o.History = store.New(filepath.Join(distDir, "droidclang"))
		}
		if m, ok := plan.Mode.(config.DeviceTest); ok {
			o.Console = &serial.Console{
				Port:     m.ConsolePort,
				BaudRate: m.ConsoleBaudRate,
				LogDir:   filepath.Join(distDir, "logs"),
			}
		}
		return o
	}

	var summary *orchestrator.Summary
	if c.TUI && isatty.IsTerminal(os.Stdout.Fd()) {
		// Logs would corrupt the full-screen view; send them to files.
		flag.Set("logtostderr", "false")
		summary, err = tui.Run(ctx, func(ctx context.Context, obs orchestrator.Observer, out io.Writer) *orchestrator.Summary {
			return newOrchestrator(out, orchestrator.Observers{orchestrator.LogObserver{}, obs}).Run(ctx, plan)
		})
		if err != nil {
			glog.Errorf("Progress view failed: %v", err)
		}
		if summary != nil {
			fmt.Println(ui.RenderSummary(summary, ui.DefaultWidth))
		}
	} else {
		obs := orchestrator.Observers{orchestrator.LogObserver{}, &ui.Reporter{Out: os.Stdout}}
		summary = newOrchestrator(nil, obs).Run(ctx, plan)
	}

	if summary == nil {
		return exitFailed
	}
	switch summary.ExitCode() {
	case 0:
		return exitOK
	case 2:
		return exitUsage
	}
	return exitFailed
}

// toolchainCheckout picks the toolchain checkout from the flag, the config
// file or the working directory. Only a from-source build requires a real
// checkout; other sources just need an output directory.
func toolchainCheckout(flagRoot, cfgRoot string, source config.ToolchainSource) (*checkout.ToolchainCheckout, error) {
	root := flagRoot
	if root == "" {
		root = cfgRoot
	}
	var co *checkout.ToolchainCheckout
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		co = &checkout.ToolchainCheckout{Root: abs}
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		co, err = checkout.DetectToolchainCheckout(cwd)
		if err != nil {
			if _, fromSource := source.(config.FromSourceBuild); fromSource {
				return nil, fmt.Errorf("%w: %v (use -toolchain-root)", config.ErrConfiguration, err)
			}
			glog.Warningf("%v; using %s for toolchain output", err, cwd)
			co = &checkout.ToolchainCheckout{Root: cwd}
		}
	}
	co.OutDir = os.Getenv("OUT_DIR")
	return co, nil
}

func loadConfig(androidPath string) config.Config {
	if androidPath == "" {
		return config.Defaults()
	}
	return config.Load(androidPath)
}

// distPath is where run artifacts and history go: DIST_DIR when set, else
// the toolchain output directory.
func distPath(co *checkout.ToolchainCheckout) string {
	if d := os.Getenv("DIST_DIR"); d != "" {
		return d
	}
	return co.OutPath()
}

func historyEnabled(c cli, cfg config.Config) bool {
	if c.HistorySet {
		return c.History
	}
	return cfg.HistoryEnabled()
}
