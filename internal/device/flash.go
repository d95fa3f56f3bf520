package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/buckleypaul/droidclang/internal/build"
	"github.com/buckleypaul/droidclang/internal/runner"
)

// ErrFlash marks a failed flash or a device that did not boot afterwards.
var ErrFlash = errors.New("flash failure")

// Flasher writes a freshly built image to a device.
type Flasher interface {
	Flash(ctx context.Context, dev Record, productOut string) error
}

// FastbootFlasher reboots into the bootloader and runs `fastboot flashall`
// with the host tools built in the tree.
type FastbootFlasher struct {
	Runner runner.Runner
	BinDir string
}

func (f *FastbootFlasher) Flash(ctx context.Context, dev Record, productOut string) error {
	env := os.Environ()
	if productOut != "" {
		env = append(env, build.ProductOutKey+"="+productOut)
	}
	steps := []runner.Command{
		{Name: filepath.Join(f.BinDir, "adb"), Args: []string{"-s", dev.Serial, "reboot", "bootloader"}},
		{Name: filepath.Join(f.BinDir, "fastboot"), Args: []string{"-s", dev.Serial, "flashall"}},
	}
	for _, c := range steps {
		c.Dir = f.BinDir
		c.Env = env
		if err := f.Runner.Run(ctx, c); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrFlash, dev.Serial, err)
		}
	}
	return nil
}

// ExternalFlasher runs a flashall tool from Dir, pointing it at the device
// with ANDROID_SERIAL.
type ExternalFlasher struct {
	Runner runner.Runner
	Dir    string
}

func (f *ExternalFlasher) Flash(ctx context.Context, dev Record, productOut string) error {
	env := append(os.Environ(), "ANDROID_SERIAL="+dev.Serial)
	if productOut != "" {
		env = append(env, build.ProductOutKey+"="+productOut)
	}
	err := f.Runner.Run(ctx, runner.Command{
		Name: "./flashall",
		Dir:  f.Dir,
		Env:  env,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFlash, dev.Serial, err)
	}
	return nil
}
