package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/buckleypaul/droidclang/internal/build"
	"github.com/buckleypaul/droidclang/internal/checkout"
	"github.com/buckleypaul/droidclang/internal/config"
	"github.com/buckleypaul/droidclang/internal/device"
	"github.com/buckleypaul/droidclang/internal/profile"
	"github.com/buckleypaul/droidclang/internal/runner"
	"github.com/buckleypaul/droidclang/internal/runner/runnertest"
	"github.com/buckleypaul/droidclang/internal/store"
	"github.com/buckleypaul/droidclang/internal/toolchain"
)

const (
	clangVersion = "Android (dev) clang version 17.0.2 (https://android.googlesource.com/toolchain/llvm-project)\n"
	lunchEnv     = "PATH=/usr/bin:/bin\nANDROID_PRODUCT_OUT=/aosp/out/target/product/marlin\n"
)

type harness struct {
	fake     *runnertest.Fake
	orch     *Orchestrator
	clangDir string
	events   []Event
	// failTargets makes the build of these lunch targets exit 1.
	failTargets map[string]bool
	devices     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "build"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "build", "envsetup.sh"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	tree, err := checkout.OpenAndroidTree(root)
	if err != nil {
		t.Fatal(err)
	}

	h := &harness{clangDir: t.TempDir(), failTargets: map[string]bool{}}
	var lunched string
	h.fake = &runnertest.Fake{Respond: func(c runner.Command) (string, error) {
		line := c.String()
		switch {
		case strings.HasSuffix(c.Name, "/bin/clang"):
			return clangVersion, nil
		case c.Name == "bash":
			lunched = c.Args[len(c.Args)-1]
			return lunchEnv, nil
		case strings.Contains(line, "soong_ui.bash"):
			for target := range h.failTargets {
				if strings.Contains(lunched, "'"+target+"'") {
					return "", runnertest.Exit("/bin/bash", 1)
				}
			}
		case strings.HasSuffix(line, "devices -l"):
			return h.devices, nil
		}
		return "", nil
	}}

	co := &checkout.ToolchainCheckout{Root: t.TempDir()}
	h.orch = &Orchestrator{
		Runner:   h.fake,
		Tree:     tree,
		Checkout: co,
		Acquirer: &toolchain.Acquirer{Runner: h.fake, Checkout: co},
		Builder: &build.Builder{
			Runner:   h.fake,
			Tree:     tree,
			CPUCount: func() int { return 8 },
		},
		DistDir:  t.TempDir(),
		Observer: ObserverFunc(func(e Event) { h.events = append(h.events, e) }),
	}
	return h
}

func (h *harness) buildOnly(keepGoing bool, targets ...string) *config.Plan {
	return &config.Plan{
		AndroidPath: h.orch.Tree.Root,
		Source:      config.PrebuiltSource{Path: h.clangDir},
		Mode:        config.BuildOnly{Targets: targets},
		Jobs:        4,
		KeepGoing:   keepGoing,
	}
}

func TestBuildOnlySingleTargetWithPrebuilt(t *testing.T) {
	h := newHarness(t)

	s := h.orch.Run(context.Background(), h.buildOnly(false, "aosp_marlin-eng"))

	if s.ExitCode() != 0 {
		t.Fatalf("expected exit 0, got %d: %v", s.ExitCode(), s.Failure())
	}
	if got := h.fake.Matching("python3"); len(got) != 0 {
		t.Errorf("prebuilt toolchain must not be built, got %v", got)
	}
	calls := h.fake.Matching("soong_ui.bash")
	if len(calls) != 1 {
		t.Fatalf("expected one build, got %v", h.fake.Lines())
	}
	if _, ok := runnertest.EnvValue(calls[0], profile.EnvKey); ok {
		t.Error("profile variable must not be set without profiling")
	}
	if !strings.HasSuffix(calls[0].String(), " dist") {
		t.Errorf("expected dist module, got %q", calls[0].String())
	}
	link, err := os.Readlink(h.orch.Tree.DevToolchainLink())
	if err != nil {
		t.Fatalf("expected clang-dev link: %v", err)
	}
	if link != h.clangDir {
		t.Errorf("link points at %s, want %s", link, h.clangDir)
	}
}

func TestBuildOnlyExitReflectsBuild(t *testing.T) {
	h := newHarness(t)
	h.failTargets["aosp_marlin-eng"] = true

	s := h.orch.Run(context.Background(), h.buildOnly(false, "aosp_marlin-eng"))

	if s.ExitCode() != 1 {
		t.Fatalf("expected exit 1, got %d", s.ExitCode())
	}
	if !errors.Is(s.Failure(), build.ErrBuildFailure) {
		t.Errorf("expected build failure, got %v", s.Failure())
	}
}

func TestBuildOnlyStopsWithoutKeepGoing(t *testing.T) {
	h := newHarness(t)
	h.failTargets["aosp_angler-eng"] = true

	h.orch.Run(context.Background(), h.buildOnly(false, "aosp_angler-eng", "aosp_marlin-eng"))

	if got := h.fake.Matching("soong_ui.bash"); len(got) != 1 {
		t.Errorf("expected the run to stop after the first target, got %d builds", len(got))
	}
}

func TestBuildOnlyKeepGoingBuildsEveryTarget(t *testing.T) {
	h := newHarness(t)
	h.failTargets["aosp_angler-eng"] = true

	s := h.orch.Run(context.Background(), h.buildOnly(true, "aosp_angler-eng", "aosp_marlin-eng"))

	if got := h.fake.Matching("soong_ui.bash"); len(got) != 2 {
		t.Errorf("expected two builds, got %d", len(got))
	}
	if s.Success() {
		t.Error("expected failure when one target failed")
	}
}

func TestProfilesMergedAfterAllTargets(t *testing.T) {
	h := newHarness(t)
	plan := h.buildOnly(false, "aosp_marlin-eng")
	plan.Mode = config.BuildOnly{Targets: []string{"aosp_marlin-eng"}, CollectProfiles: true}

	s := h.orch.Run(context.Background(), plan)

	if !s.Success() {
		t.Fatalf("unexpected failure: %v", s.Failure())
	}
	call := h.fake.Matching("soong_ui.bash")[0]
	pattern, ok := runnertest.EnvValue(call, profile.EnvKey)
	if !ok || !strings.HasSuffix(pattern, "%4m.profraw") {
		t.Errorf("expected profile pattern, got %q", pattern)
	}
	if !strings.HasSuffix(call.String(), "libc libLLVM_android-host64") {
		t.Errorf("expected profile modules, got %q", call.String())
	}
	merges := h.fake.Matching("llvm-profdata merge")
	if len(merges) != 1 {
		t.Fatalf("expected one merge, got %v", h.fake.Lines())
	}
	if want := filepath.Join(h.orch.DistDir, "clang-17.0.2.profdata"); s.Profile != want {
		t.Errorf("Profile = %s, want %s", s.Profile, want)
	}
}

func TestProfilesNotMergedAfterFailure(t *testing.T) {
	h := newHarness(t)
	h.failTargets["aosp_angler-eng"] = true
	plan := h.buildOnly(true, "aosp_angler-eng", "aosp_marlin-eng")
	plan.Mode = config.BuildOnly{Targets: []string{"aosp_angler-eng", "aosp_marlin-eng"}, CollectProfiles: true}

	h.orch.Run(context.Background(), plan)

	if got := h.fake.Matching("llvm-profdata"); len(got) != 0 {
		t.Errorf("expected no merge, got %v", got)
	}
}

func TestAcquireFailureStopsRun(t *testing.T) {
	h := newHarness(t)
	plan := h.buildOnly(false, "aosp_marlin-eng")
	plan.Source = config.PackageSource{Dir: t.TempDir()}

	s := h.orch.Run(context.Background(), plan)

	if !errors.Is(s.Failure(), toolchain.ErrPackaging) {
		t.Fatalf("expected packaging error, got %v", s.Failure())
	}
	if s.ExitCode() != 1 {
		t.Errorf("expected exit 1, got %d", s.ExitCode())
	}
	if _, err := os.Lstat(h.orch.Tree.DevToolchainLink()); !os.IsNotExist(err) {
		t.Error("link must not be touched when acquisition fails")
	}
	if len(h.fake.Matching("soong_ui.bash")) != 0 {
		t.Error("no target may build when acquisition fails")
	}
}

func TestConfigurationErrorExitCode(t *testing.T) {
	h := newHarness(t)
	plan := h.buildOnly(false, "aosp_marlin-eng")
	plan.Source = config.FromSourceBuild{Instrumented: true, PGO: true}

	s := h.orch.Run(context.Background(), plan)

	if s.ExitCode() != 2 {
		t.Errorf("expected exit 2, got %d: %v", s.ExitCode(), s.Failure())
	}
	if len(h.fake.Calls) != 0 {
		t.Errorf("expected no subprocess, got %v", h.fake.Lines())
	}
}

func TestEventsBracketTheRun(t *testing.T) {
	h := newHarness(t)
	h.orch.Run(context.Background(), h.buildOnly(false, "aosp_marlin-eng"))

	if len(h.events) == 0 {
		t.Fatal("expected events")
	}
	first, ok := h.events[0].(StepStarted)
	if !ok || first.Step != StepAcquire {
		t.Errorf("expected acquire first, got %#v", h.events[0])
	}
	if _, ok := h.events[len(h.events)-1].(RunFinished); !ok {
		t.Errorf("expected RunFinished last, got %#v", h.events[len(h.events)-1])
	}
}

func TestDeviceTestRecordsHistory(t *testing.T) {
	h := newHarness(t)
	h.devices = "List of devices attached\nREADY1 device device:marlin\nOFF1 offline device:angler\n"
	h.orch.History = store.New(filepath.Join(h.orch.DistDir, "droidclang"))
	plan := &config.Plan{
		AndroidPath: h.orch.Tree.Root,
		Source:      config.PrebuiltSource{Path: h.clangDir},
		Mode:        config.DeviceTest{Flash: config.FastbootFlash{}},
		Jobs:        4,
	}

	s := h.orch.Run(context.Background(), plan)

	if !s.Success() {
		t.Fatalf("unexpected failure: %v", s.Failure())
	}
	if s.Mode != ModeDeviceTest {
		t.Errorf("Mode = %s", s.Mode)
	}
	if got := h.fake.Matching("fastboot -s READY1 flashall"); len(got) != 1 {
		t.Errorf("expected READY1 flashed, got %v", h.fake.Lines())
	}

	runs, _ := h.orch.History.Runs()
	if len(runs) != 1 || runs[0].ID != s.RunID || !runs[0].Success {
		t.Fatalf("unexpected runs %+v", runs)
	}
	devices, _ := h.orch.History.Devices(s.RunID)
	if len(devices) != 2 {
		t.Fatalf("expected 2 device records, got %+v", devices)
	}
	if devices[1].Outcome != device.Skipped.String() || devices[1].Reason != "state offline" {
		t.Errorf("unexpected skipped record %+v", devices[1])
	}
}

type portlessConsole struct{}

func (portlessConsole) Start(string) (device.Capture, error) {
	return nil, device.ErrNoConsole
}

func TestDeviceHistoryOmitsConsoleLogWithoutPort(t *testing.T) {
	h := newHarness(t)
	h.devices = "List of devices attached\nREADY1 device device:marlin\n"
	h.orch.History = store.New(filepath.Join(h.orch.DistDir, "droidclang"))
	h.orch.Console = portlessConsole{}
	plan := &config.Plan{
		AndroidPath: h.orch.Tree.Root,
		Source:      config.PrebuiltSource{Path: h.clangDir},
		Mode:        config.DeviceTest{Flash: config.FastbootFlash{}},
		Jobs:        4,
	}

	s := h.orch.Run(context.Background(), plan)

	devices, _ := h.orch.History.Devices(s.RunID)
	if len(devices) != 1 || devices[0].Outcome != device.Passed.String() {
		t.Fatalf("unexpected device records %+v", devices)
	}
	if devices[0].ConsoleLog != "" {
		t.Errorf("expected no console log, got %q", devices[0].ConsoleLog)
	}
}

func TestDeviceTestKeepGoingStillFails(t *testing.T) {
	h := newHarness(t)
	h.devices = "List of devices attached\nA device device:angler\nB device device:marlin\n"
	h.failTargets["aosp_angler-eng"] = true
	plan := &config.Plan{
		AndroidPath: h.orch.Tree.Root,
		Source:      config.PrebuiltSource{Path: h.clangDir},
		Mode:        config.DeviceTest{Flash: config.ExternalFlash{Dir: "/opt/flashall"}},
		Jobs:        4,
		KeepGoing:   true,
	}

	s := h.orch.Run(context.Background(), plan)

	if len(s.Devices.Results) != 2 {
		t.Fatalf("expected both devices attempted, got %+v", s.Devices.Results)
	}
	if s.ExitCode() != 1 {
		t.Errorf("expected exit 1, got %d", s.ExitCode())
	}
	if got := h.fake.Matching("./flashall"); len(got) != 1 {
		t.Errorf("expected one external flash, got %d", len(got))
	}
}
