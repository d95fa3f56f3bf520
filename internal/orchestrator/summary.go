package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/buckleypaul/droidclang/internal/build"
	"github.com/buckleypaul/droidclang/internal/config"
	"github.com/buckleypaul/droidclang/internal/device"
	"github.com/buckleypaul/droidclang/internal/toolchain"
)

// Mode names used in summaries and history.
const (
	ModeBuildOnly  = "build-only"
	ModeDeviceTest = "device-test"
)

// TargetOutcome is one build-only target.
type TargetOutcome struct {
	Target string
	Result build.Result
	Err    error
}

// Summary describes a finished run.
type Summary struct {
	RunID     string
	Mode      string
	Start     time.Time
	Duration  time.Duration
	Toolchain toolchain.Handle

	Targets []TargetOutcome
	Devices device.Summary
	// Profile is the merged profile path when profiles were collected.
	Profile string
	// Err is the error that ended the run early, if any.
	Err error
}

// Success reports whether nothing failed.
func (s *Summary) Success() bool {
	return s.Failure() == nil
}

// Failure returns the reason the run failed, or nil.
func (s *Summary) Failure() error {
	if s.Err != nil {
		return s.Err
	}
	for _, t := range s.Targets {
		if t.Err != nil {
			return t.Err
		}
	}
	if s.Devices.Failed() {
		var failed int
		for _, r := range s.Devices.Results {
			if r.Outcome == device.Failed {
				failed++
			}
		}
		return fmt.Errorf("%d device(s) failed", failed)
	}
	return nil
}

// ExitCode maps the summary to a process exit status.
func (s *Summary) ExitCode() int {
	err := s.Failure()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, config.ErrConfiguration):
		return 2
	}
	return 1
}
