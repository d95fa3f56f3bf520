package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/buckleypaul/droidclang/internal/runner"
)

// BootWaiter waits for a flashed device to finish booting.
type BootWaiter struct {
	Runner   runner.Runner
	ADB      string
	Timeout  time.Duration
	Interval time.Duration
}

// Wait blocks until sys.boot_completed is 1 or the timeout expires.
func (w *BootWaiter) Wait(ctx context.Context, dev Record) error {
	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	if err := w.Runner.Run(ctx, runner.Command{
		Name: w.ADB,
		Args: []string{"-s", dev.Serial, "wait-for-device"},
	}); err != nil {
		return w.timeoutOr(ctx, dev, err)
	}

	interval := w.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		out, err := w.Runner.Output(ctx, runner.Command{
			Name: w.ADB,
			Args: []string{"-s", dev.Serial, "shell", "getprop", "sys.boot_completed"},
		})
		if err == nil && strings.TrimSpace(out) == "1" {
			glog.Infof("Device %s booted", dev.Serial)
			return nil
		}
		select {
		case <-ctx.Done():
			return w.timeoutOr(ctx, dev, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (w *BootWaiter) timeoutOr(ctx context.Context, dev Record, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s did not boot within %s", ErrFlash, dev.Serial, w.Timeout)
	}
	return fmt.Errorf("%w: %s: %v", ErrFlash, dev.Serial, err)
}
