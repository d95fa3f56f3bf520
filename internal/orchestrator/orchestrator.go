// Package orchestrator sequences a run: acquire a toolchain, link it into
// the Android tree, then build targets or test connected devices.
package orchestrator

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/buckleypaul/droidclang/internal/build"
	"github.com/buckleypaul/droidclang/internal/checkout"
	"github.com/buckleypaul/droidclang/internal/config"
	"github.com/buckleypaul/droidclang/internal/device"
	"github.com/buckleypaul/droidclang/internal/linker"
	"github.com/buckleypaul/droidclang/internal/profile"
	"github.com/buckleypaul/droidclang/internal/runner"
	"github.com/buckleypaul/droidclang/internal/store"
	"github.com/buckleypaul/droidclang/internal/toolchain"
)

// Orchestrator runs one Plan.
type Orchestrator struct {
	Runner   runner.Runner
	Tree     *checkout.AndroidTree
	Checkout *checkout.ToolchainCheckout
	Acquirer *toolchain.Acquirer
	Builder  *build.Builder

	// DistDir receives the merged profile.
	DistDir string
	// ADB is the adb used for enumeration and boot checks. Defaults to
	// "adb" from PATH.
	ADB string

	// Console, History and Observer are optional.
	Console  device.Console
	History  *store.Store
	Observer Observer
}

// Run executes plan and returns its summary. It never panics on a failed
// step: the error is carried in the summary.
func (o *Orchestrator) Run(ctx context.Context, plan *config.Plan) *Summary {
	s := &Summary{
		RunID: store.NewRunID(),
		Mode:  modeName(plan.Mode),
		Start: time.Now(),
	}

	err := o.step(StepAcquire, "", func() (err error) {
		s.Toolchain, err = o.Acquirer.Acquire(ctx, plan.Source)
		return err
	})
	if err != nil {
		s.Err = err
		return o.finish(s)
	}
	glog.Infof("Using clang %s from %s", s.Toolchain.Version, s.Toolchain.Path)

	err = o.step(StepLink, o.Tree.DevToolchainLink(), func() error {
		return linker.Link(o.Tree, s.Toolchain)
	})
	if err != nil {
		s.Err = err
		return o.finish(s)
	}

	switch m := plan.Mode.(type) {
	case config.BuildOnly:
		o.buildTargets(ctx, plan, m, s)
	case config.DeviceTest:
		o.testDevices(ctx, plan, m, s)
	}
	return o.finish(s)
}

func (o *Orchestrator) buildTargets(ctx context.Context, plan *config.Plan, m config.BuildOnly, s *Summary) {
	var collector *profile.Collector
	if m.CollectProfiles {
		collector = &profile.Collector{
			Runner:        o.Runner,
			Dir:           o.Checkout.OutPath("clang-profiles"),
			Stage1Install: o.Checkout.OutPath("stage1-install"),
			DistDir:       o.DistDir,
		}
		if err := collector.Prepare(); err != nil {
			s.Err = err
			return
		}
	}

	for _, target := range m.Targets {
		req := o.request(plan, target, s.Toolchain.Version)
		if collector != nil {
			out := collector.Output()
			req.Profile = &out
		}
		res, err := o.build(ctx, req)
		outcome := TargetOutcome{Target: target, Result: res, Err: err}
		s.Targets = append(s.Targets, outcome)
		o.recordTarget(s, outcome)
		if err != nil && !plan.KeepGoing {
			glog.Errorf("Stopping after failed target %s", target)
			return
		}
	}

	if collector == nil {
		return
	}
	for _, t := range s.Targets {
		if t.Err != nil {
			glog.Warning("Skipping profile merge: not every target built")
			return
		}
	}
	err := o.step(StepMerge, collector.Dir, func() (err error) {
		s.Profile, err = collector.Merge(ctx, s.Toolchain.Version)
		return err
	})
	if err != nil {
		s.Err = err
	}
}

func (o *Orchestrator) testDevices(ctx context.Context, plan *config.Plan, m config.DeviceTest, s *Summary) {
	adb := o.adb()
	tr := &device.TestRunner{
		Runner: o.Runner,
		ADB:    adb,
		Build: func(ctx context.Context, target string) (build.Result, error) {
			return o.build(ctx, o.request(plan, target, s.Toolchain.Version))
		},
		Flasher:         o.flasher(m.Flash),
		Console:         o.Console,
		CleanProductOut: m.CleanProductOut,
		KeepGoing:       plan.KeepGoing,
		OnState: func(st device.State) {
			o.publish(DeviceState{State: st})
		},
		OnResult: func(r device.Result) {
			o.publish(DeviceResult{Result: r})
			o.recordDevice(s, r)
		},
	}
	if m.BootTimeout > 0 {
		tr.Boot = &device.BootWaiter{Runner: o.Runner, ADB: adb, Timeout: m.BootTimeout}
	}

	o.publish(StepStarted{Step: StepDevices})
	start := time.Now()
	s.Devices = tr.Run(ctx)
	var err error
	if s.Devices.Failed() {
		err = s.Failure()
	}
	o.publish(StepFinished{Step: StepDevices, Err: err, Duration: time.Since(start)})
}

func (o *Orchestrator) build(ctx context.Context, req build.Request) (build.Result, error) {
	var res build.Result
	err := o.step(StepBuild, req.Target, func() (err error) {
		res, err = o.Builder.Build(ctx, req)
		return err
	})
	return res, err
}

func (o *Orchestrator) request(plan *config.Plan, target string, v toolchain.Version) build.Request {
	return build.Request{
		Target:         target,
		Version:        v,
		Jobs:           plan.Jobs,
		RedirectStderr: plan.RedirectStderr,
		WithTidy:       plan.WithTidy,
	}
}

func (o *Orchestrator) flasher(m config.FlashMethod) device.Flasher {
	if ext, ok := m.(config.ExternalFlash); ok {
		return &device.ExternalFlasher{Runner: o.Runner, Dir: ext.Dir}
	}
	return &device.FastbootFlasher{Runner: o.Runner, BinDir: o.Tree.HostBinDir()}
}

func (o *Orchestrator) adb() string {
	if o.ADB != "" {
		return o.ADB
	}
	return "adb"
}

func (o *Orchestrator) step(step Step, subject string, fn func() error) error {
	o.publish(StepStarted{Step: step, Subject: subject})
	start := time.Now()
	err := fn()
	o.publish(StepFinished{Step: step, Subject: subject, Err: err, Duration: time.Since(start)})
	return err
}

func (o *Orchestrator) publish(e Event) {
	if o.Observer != nil {
		o.Observer.Observe(e)
	}
}

func (o *Orchestrator) finish(s *Summary) *Summary {
	s.Duration = time.Since(s.Start)
	o.recordRun(s)
	o.publish(RunFinished{Summary: s})
	return s
}

func modeName(m config.Mode) string {
	if _, ok := m.(config.DeviceTest); ok {
		return ModeDeviceTest
	}
	return ModeBuildOnly
}
