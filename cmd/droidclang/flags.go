package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/buckleypaul/droidclang/internal/config"
)

// cli holds flags that are not part of config.Options.
type cli struct {
	ToolchainRoot string
	TUI           bool
	History       bool
	HistorySet    bool
	ListHistory   bool
}

func parseArgs(fs *flag.FlagSet, args []string) (config.Options, cli, error) {
	var (
		opts config.Options
		c    cli

		redirect, noRedirect bool
		clean, noClean       bool
	)

	fs.StringVar(&opts.ClangPath, "clang-path", "", "Directory with a previously built clang.")
	fs.StringVar(&opts.ClangPackagePath, "clang-package-path", "", "Directory of a pre-packaged clang (.tar.bz2 or .tar.xz) to extract and use.")
	fs.IntVar(&opts.Jobs, "j", 0, "Number of build jobs (default: config jobs, else CPU count).")
	fs.BoolVar(&opts.KeepGoing, "k", false, "Keep going when some targets cannot be built.")
	fs.BoolVar(&opts.KeepGoing, "keep-going", false, "Same as -k.")
	fs.BoolVar(&opts.BuildOnly, "build-only", false, "Build targets only, do not flash devices.")
	fs.StringVar(&opts.Target, "t", "", "Build this target only. Requires -build-only.")
	fs.StringVar(&opts.Target, "target", "", "Same as -t.")
	fs.BoolVar(&opts.WithTidy, "with-tidy", false, "Enable clang-tidy for the Android build.")
	fs.BoolVar(&redirect, "redirect-stderr", true, "Redirect clang stderr to a log file.")
	fs.BoolVar(&noRedirect, "no-redirect-stderr", false, "Do not redirect clang stderr.")
	fs.BoolVar(&clean, "clean-built-target", true, "Remove the product output of each device target after testing.")
	fs.BoolVar(&noClean, "no-clean-built-target", false, "Keep the product output of device targets.")
	fs.StringVar(&opts.FlashallPath, "flashall-path", "", "Use the flashall tool in this directory instead of fastboot.")
	fs.BoolVar(&opts.GenerateProfile, "generate-clang-profile", false, "Build an instrumented compiler and gather profiles.")
	fs.BoolVar(&opts.NoPGO, "no-pgo", false, "Do not use a PGO profile when building the compiler.")
	fs.StringVar(&c.ToolchainRoot, "toolchain-root", "", "Toolchain checkout containing toolchain/llvm_android (default: config, else detected from the working directory).")
	fs.BoolVar(&c.TUI, "tui", false, "Show a full-screen progress view when stdout is a terminal.")
	fs.BoolVar(&c.History, "history", true, "Record the run under <dist>/droidclang/history.")
	fs.BoolVar(&c.ListHistory, "list-history", false, "Print the recorded runs and exit.")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: droidclang [flags] <android-path>\n\n")
		fs.PrintDefaults()
	}

	// flag stops at the first positional; keep parsing after it so flags
	// may follow the android path.
	var paths []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return opts, c, err
		}
		if fs.NArg() == 0 {
			break
		}
		if consumed := len(rest) - fs.NArg(); consumed > 0 && rest[consumed-1] == "--" {
			paths = append(paths, fs.Args()...)
			break
		}
		paths = append(paths, fs.Arg(0))
		rest = fs.Args()[1:]
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["redirect-stderr"] && set["no-redirect-stderr"] {
		return opts, c, fmt.Errorf("%w: -redirect-stderr and -no-redirect-stderr are mutually exclusive", config.ErrConfiguration)
	}
	if set["clean-built-target"] && set["no-clean-built-target"] {
		return opts, c, fmt.Errorf("%w: -clean-built-target and -no-clean-built-target are mutually exclusive", config.ErrConfiguration)
	}
	opts.RedirectStderr = redirect && !noRedirect
	opts.CleanBuiltTarget = clean && !noClean
	opts.JobsSet = set["j"]
	c.HistorySet = set["history"]

	switch len(paths) {
	case 0:
	case 1:
		opts.AndroidPath = paths[0]
	default:
		return opts, c, fmt.Errorf("%w: expected one android path, got %d arguments", config.ErrConfiguration, len(paths))
	}
	return opts, c, nil
}

func printUsageError(w io.Writer, err error) {
	fmt.Fprintf(w, "droidclang: %v\n", err)
}
