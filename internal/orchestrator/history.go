package orchestrator

import (
	"time"

	"github.com/golang/glog"

	"github.com/buckleypaul/droidclang/internal/device"
	"github.com/buckleypaul/droidclang/internal/store"
)

func (o *Orchestrator) recordRun(s *Summary) {
	if o.History == nil {
		return
	}
	r := store.RunRecord{
		ID:        s.RunID,
		Timestamp: s.Start,
		Mode:      s.Mode,
		Success:   s.Success(),
		Duration:  s.Duration.Round(time.Millisecond).String(),
		Profile:   s.Profile,
	}
	if s.Toolchain.Path != "" {
		r.ToolchainPath = s.Toolchain.Path
		r.ToolchainVersion = s.Toolchain.Version.Long()
	}
	if err := s.Failure(); err != nil {
		r.Error = err.Error()
	}
	if err := o.History.AddRun(r); err != nil {
		glog.Warningf("Failed to record run history: %v", err)
	}
}

func (o *Orchestrator) recordTarget(s *Summary, t TargetOutcome) {
	if o.History == nil {
		return
	}
	r := store.TargetRecord{
		RunID:     s.RunID,
		Target:    t.Target,
		Timestamp: time.Now(),
		Success:   t.Err == nil,
		Duration:  t.Result.Duration.Round(time.Millisecond).String(),
		Modules:   t.Result.Modules,
		Jobs:      t.Result.Jobs,
		StderrLog: t.Result.StderrLog,
	}
	if t.Err != nil {
		r.Error = t.Err.Error()
	}
	if err := o.History.AddTarget(r); err != nil {
		glog.Warningf("Failed to record target history: %v", err)
	}
}

func (o *Orchestrator) recordDevice(s *Summary, res device.Result) {
	if o.History == nil {
		return
	}
	r := store.DeviceRecord{
		RunID:      s.RunID,
		Serial:     res.Device.Serial,
		Product:    res.Device.Product,
		Outcome:    res.Outcome.String(),
		Timestamp:  time.Now(),
		Duration:   res.Duration.Round(time.Millisecond).String(),
		Reason:     res.Reason,
		ConsoleLog: res.ConsoleLog,
	}
	if res.Err != nil {
		r.Reason = res.Err.Error()
	}
	if err := o.History.AddDevice(r); err != nil {
		glog.Warningf("Failed to record device history: %v", err)
	}
}
