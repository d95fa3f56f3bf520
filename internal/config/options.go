package config

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// ErrConfiguration marks invalid or conflicting inputs. It is always
// reported before any subprocess runs.
var ErrConfiguration = errors.New("configuration error")

// Options are the raw command line inputs.
type Options struct {
	AndroidPath string

	ClangPath        string
	ClangPackagePath string
	GenerateProfile  bool
	NoPGO            bool

	// Jobs is only honoured when JobsSet; otherwise the config file value
	// or the host CPU count is used.
	Jobs      int
	JobsSet   bool
	KeepGoing bool

	BuildOnly bool
	Target    string

	WithTidy         bool
	RedirectStderr   bool
	CleanBuiltTarget bool
	FlashallPath     string
}

// ToolchainSource selects where the toolchain comes from. Exactly one of
// PrebuiltSource, PackageSource and FromSourceBuild.
type ToolchainSource interface {
	isToolchainSource()
}

// PrebuiltSource uses an already built toolchain directory as is.
type PrebuiltSource struct {
	Path string
}

// PackageSource extracts the single host package found in Dir.
type PackageSource struct {
	Dir string
}

// FromSourceBuild builds stage1 and stage2 from the toolchain checkout.
type FromSourceBuild struct {
	// Instrumented builds stage2 with profile instrumentation.
	Instrumented bool
	// PGO applies the checked-in profile to stage2. Never set together
	// with Instrumented.
	PGO bool
}

func (PrebuiltSource) isToolchainSource()  {}
func (PackageSource) isToolchainSource()   {}
func (FromSourceBuild) isToolchainSource() {}

// FlashMethod selects how a device is flashed for the whole run.
type FlashMethod interface {
	isFlashMethod()
}

// FastbootFlash reboots into the bootloader and runs fastboot flashall
// with the host tools built in the Android tree.
type FastbootFlash struct{}

// ExternalFlash runs ./flashall from Dir with ANDROID_SERIAL set.
type ExternalFlash struct {
	Dir string
}

func (FastbootFlash) isFlashMethod() {}
func (ExternalFlash) isFlashMethod() {}

// Mode is either BuildOnly or DeviceTest.
type Mode interface {
	isMode()
}

// BuildOnly builds a fixed list of targets.
type BuildOnly struct {
	Targets         []string
	CollectProfiles bool
}

// DeviceTest builds, flashes and boots every connected device.
type DeviceTest struct {
	Flash           FlashMethod
	CleanProductOut bool
	BootTimeout     time.Duration
	ConsolePort     string
	ConsoleBaudRate int
}

func (BuildOnly) isMode()  {}
func (DeviceTest) isMode() {}

// Plan is a validated run description.
type Plan struct {
	AndroidPath string
	Source      ToolchainSource
	Mode        Mode

	Jobs           int
	KeepGoing      bool
	RedirectStderr bool
	WithTidy       bool
}

// Resolve validates opts against cfg and turns the flag combination into a
// Plan. Errors wrap ErrConfiguration.
func Resolve(opts Options, cfg Config) (*Plan, error) {
	if opts.AndroidPath == "" {
		return nil, fmt.Errorf("%w: android source directory is required", ErrConfiguration)
	}
	if opts.GenerateProfile && !opts.NoPGO {
		return nil, fmt.Errorf("%w: -no-pgo must be specified along with -generate-clang-profile", ErrConfiguration)
	}
	if opts.ClangPath != "" && opts.ClangPackagePath != "" {
		return nil, fmt.Errorf("%w: only one of -clang-path and -clang-package-path may be specified", ErrConfiguration)
	}

	plan := &Plan{
		AndroidPath:    opts.AndroidPath,
		Jobs:           opts.Jobs,
		KeepGoing:      opts.KeepGoing,
		RedirectStderr: opts.RedirectStderr,
		WithTidy:       opts.WithTidy,
	}
	if !opts.JobsSet {
		plan.Jobs = cfg.Jobs
		if plan.Jobs == 0 {
			plan.Jobs = runtime.NumCPU()
		}
	}

	switch {
	case opts.ClangPath != "":
		plan.Source = PrebuiltSource{Path: opts.ClangPath}
	case opts.ClangPackagePath != "":
		plan.Source = PackageSource{Dir: opts.ClangPackagePath}
	default:
		plan.Source = FromSourceBuild{Instrumented: opts.GenerateProfile, PGO: !opts.NoPGO}
	}

	if opts.BuildOnly {
		targets := cfg.Targets
		if opts.Target != "" {
			targets = []string{opts.Target}
		}
		if len(targets) == 0 {
			targets = DefaultTargets
		}
		plan.Mode = BuildOnly{
			Targets:         append([]string(nil), targets...),
			CollectProfiles: opts.GenerateProfile,
		}
		return plan, nil
	}

	flashall := opts.FlashallPath
	if flashall == "" {
		flashall = cfg.FlashallPath
	}
	var flash FlashMethod = FastbootFlash{}
	if flashall != "" {
		flash = ExternalFlash{Dir: flashall}
	}
	plan.Mode = DeviceTest{
		Flash:           flash,
		CleanProductOut: opts.CleanBuiltTarget,
		BootTimeout:     cfg.BootTimeoutDuration(),
		ConsolePort:     cfg.ConsolePort,
		ConsoleBaudRate: cfg.ConsoleBaudRate,
	}
	return plan, nil
}
