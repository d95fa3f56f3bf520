package orchestrator

import (
	"time"

	"github.com/golang/glog"

	"github.com/buckleypaul/droidclang/internal/device"
)

// Step names a phase of a run.
type Step string

const (
	StepAcquire Step = "acquire toolchain"
	StepLink    Step = "link toolchain"
	StepBuild   Step = "build"
	StepMerge   Step = "merge profiles"
	StepDevices Step = "test devices"
)

// Event is published to an Observer as a run progresses.
type Event interface {
	isEvent()
}

// StepStarted is sent before a step runs. Subject names the target or
// path the step works on, if any.
type StepStarted struct {
	Step    Step
	Subject string
}

// StepFinished is sent after a step, with its error.
type StepFinished struct {
	Step     Step
	Subject  string
	Err      error
	Duration time.Duration
}

// DeviceResult is sent once per enumerated device.
type DeviceResult struct {
	Result device.Result
}

// DeviceState is sent when the device runner changes state.
type DeviceState struct {
	State device.State
}

// RunFinished is always the last event of a run.
type RunFinished struct {
	Summary *Summary
}

func (StepStarted) isEvent()  {}
func (StepFinished) isEvent() {}
func (DeviceResult) isEvent() {}
func (DeviceState) isEvent()  {}
func (RunFinished) isEvent()  {}

// Observer receives run events. Observe is called from the goroutine
// running the orchestrator.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Observers fans events out in order.
type Observers []Observer

func (o Observers) Observe(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(e)
		}
	}
}

// LogObserver writes events to glog.
type LogObserver struct{}

func (LogObserver) Observe(e Event) {
	switch e := e.(type) {
	case StepStarted:
		if e.Subject != "" {
			glog.Infof("Starting %s: %s", e.Step, e.Subject)
		} else {
			glog.Infof("Starting %s", e.Step)
		}
	case StepFinished:
		if e.Err != nil {
			glog.Warningf("%s %s failed after %s: %v", e.Step, e.Subject, e.Duration.Round(time.Second), e.Err)
		} else if glog.V(1) {
			glog.Infof("%s %s finished in %s", e.Step, e.Subject, e.Duration.Round(time.Second))
		}
	case DeviceResult:
		glog.Infof("Device %s: %s", e.Result.Device.Serial, e.Result.Outcome)
	case RunFinished:
		if e.Summary.Success() {
			glog.Infof("Run %s succeeded in %s", e.Summary.RunID, e.Summary.Duration.Round(time.Second))
		} else {
			glog.Errorf("Run %s failed: %v", e.Summary.RunID, e.Summary.Failure())
		}
	}
}
