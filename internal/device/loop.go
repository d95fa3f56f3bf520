package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/buckleypaul/droidclang/internal/build"
	"github.com/buckleypaul/droidclang/internal/checkout"
	"github.com/buckleypaul/droidclang/internal/runner"
)

// State is the position of a TestRunner in its run.
type State int

const (
	Idle State = iota
	Enumerating
	NoDevices
	PerDeviceLoop
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Enumerating:
		return "enumerating"
	case NoDevices:
		return "no devices"
	case PerDeviceLoop:
		return "testing devices"
	case Done:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome of one device.
type Outcome int

const (
	Skipped Outcome = iota
	Passed
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result is the outcome of one device.
type Result struct {
	Device  Record
	Outcome Outcome
	Err     error
	// Reason says why a device was skipped.
	Reason   string
	Build    build.Result
	Duration time.Duration
	// ConsoleLog is set when the boot console was captured.
	ConsoleLog string
}

// Summary accumulates device results.
type Summary struct {
	Results []Result
	// Aborted is set when a failure stopped the loop early.
	Aborted bool
}

// Failed reports whether any device failed.
func (s Summary) Failed() bool {
	for _, r := range s.Results {
		if r.Outcome == Failed {
			return true
		}
	}
	return false
}

// Fold adds r to s and reports whether the loop should continue.
func (s Summary) Fold(r Result, keepGoing bool) (Summary, bool) {
	s.Results = append(s.Results, r)
	if r.Outcome == Failed && !keepGoing {
		s.Aborted = true
		return s, false
	}
	return s, true
}

// BuildFunc builds one lunch target.
type BuildFunc func(ctx context.Context, target string) (build.Result, error)

// Capture is a running console capture. Closing it ends the capture.
type Capture interface {
	io.Closer
	// LogPath is the file the console is written to.
	LogPath() string
}

// Console captures a device's boot console.
type Console interface {
	Start(serial string) (Capture, error)
}

// TestRunner builds, flashes and boots every ready device.
type TestRunner struct {
	Runner runner.Runner
	ADB    string

	Build   BuildFunc
	Flasher Flasher
	// Boot and Console are optional.
	Boot    *BootWaiter
	Console Console

	CleanProductOut bool
	KeepGoing       bool

	OnState  func(State)
	OnResult func(Result)
}

// Run enumerates devices and tests each in turn.
func (t *TestRunner) Run(ctx context.Context) Summary {
	t.enter(Idle)
	t.enter(Enumerating)
	devices := Enumerate(ctx, t.Runner, t.ADB)
	if len(devices) == 0 {
		glog.Info("No devices found")
		t.enter(NoDevices)
		t.enter(Done)
		return Summary{}
	}

	t.enter(PerDeviceLoop)
	var sum Summary
	for _, dev := range devices {
		r := t.testDevice(ctx, dev)
		if t.OnResult != nil {
			t.OnResult(r)
		}
		var more bool
		if sum, more = sum.Fold(r, t.KeepGoing); !more {
			glog.Errorf("Stopping after failure on %s: %v", dev.Serial, r.Err)
			break
		}
	}
	t.enter(Done)
	return sum
}

func (t *TestRunner) enter(s State) {
	if glog.V(1) {
		glog.Infof("device runner: %s", s)
	}
	if t.OnState != nil {
		t.OnState(s)
	}
}

func (t *TestRunner) testDevice(ctx context.Context, dev Record) Result {
	start := time.Now()
	res := Result{Device: dev}
	if reason := skipReason(dev); reason != "" {
		glog.Warningf("Skipping device %s: %s", dev.Serial, reason)
		res.Outcome = Skipped
		res.Reason = reason
		return res
	}

	target := dev.Target()
	glog.Infof("Testing device %s with target %s", dev.Serial, target)
	err := t.buildAndFlash(ctx, dev, target, &res)
	res.Duration = time.Since(start)
	if err != nil {
		glog.Warningf("Device %s failed: %v", dev.Serial, err)
		res.Outcome = Failed
		res.Err = err
		return res
	}
	res.Outcome = Passed
	return res
}

// skipReason is empty for devices that can be built for and flashed.
func skipReason(dev Record) string {
	switch {
	case !dev.Ready():
		return "state " + dev.State
	case dev.Product == "":
		return "no product codename reported"
	}
	return ""
}

func (t *TestRunner) buildAndFlash(ctx context.Context, dev Record, target string, res *Result) (err error) {
	res.Build, err = t.Build(ctx, target)
	if t.CleanProductOut && res.Build.ProductOut != "" {
		defer func() {
			if rmErr := checkout.RemoveTree(res.Build.ProductOut); rmErr != nil {
				glog.Warningf("Failed to clean %s: %v", res.Build.ProductOut, rmErr)
			}
		}()
	}
	if err != nil {
		return err
	}

	if t.Console != nil {
		capture, cerr := t.Console.Start(dev.Serial)
		switch {
		case cerr == nil:
			res.ConsoleLog = capture.LogPath()
			defer capture.Close()
		case errors.Is(cerr, ErrNoConsole):
		default:
			glog.Warningf("Console capture for %s unavailable: %v", dev.Serial, cerr)
		}
	}

	if err := t.Flasher.Flash(ctx, dev, res.Build.ProductOut); err != nil {
		return err
	}
	if t.Boot != nil {
		return t.Boot.Wait(ctx, dev)
	}
	return nil
}

// ErrNoConsole is returned by a Console that has no port for a device.
var ErrNoConsole = errors.New("no console port")
