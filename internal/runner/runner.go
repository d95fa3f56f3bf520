package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/golang/glog"
)

// Command describes one subprocess invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env is the full child environment. When nil the child inherits the
	// parent process environment.
	Env []string

	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes subprocesses synchronously.
type Runner interface {
	// Run executes the command and streams its output to the command's
	// writers (or the process's stdout/stderr when unset).
	Run(ctx context.Context, c Command) error
	// Output executes the command and returns its standard output.
	Output(ctx context.Context, c Command) (string, error)
}

// ExitError reports a subprocess that ran and exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
}

// ExitCode returns the exit code carried by err, 0 for nil and -1 for
// errors that did not come from a finished process.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode
	}
	return -1
}

// DefaultRunner runs commands with os/exec.
type DefaultRunner struct {
	// Stdout and Stderr receive output of commands that set no writer of
	// their own. They default to the process's stdout and stderr.
	Stdout io.Writer
	Stderr io.Writer
}

func (r DefaultRunner) Run(ctx context.Context, c Command) error {
	cmd := prepare(ctx, c)
	cmd.Stdout = firstWriter(c.Stdout, r.Stdout, os.Stdout)
	cmd.Stderr = firstWriter(c.Stderr, r.Stderr, os.Stderr)

	start := time.Now()
	err := cmd.Run()
	report(c, start, err)
	return wrap(c, err, "")
}

func (r DefaultRunner) Output(ctx context.Context, c Command) (string, error) {
	cmd := prepare(ctx, c)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = firstWriter(c.Stderr, r.Stderr, os.Stderr)

	start := time.Now()
	err := cmd.Run()
	report(c, start, err)
	return stdout.String(), wrap(c, err, stdout.String())
}

func firstWriter(ws ...io.Writer) io.Writer {
	for _, w := range ws {
		if w != nil {
			return w
		}
	}
	return io.Discard
}

func prepare(ctx context.Context, c Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = c.Env
	}
	if glog.V(1) {
		if c.Dir != "" {
			glog.Infof("running %q in %s", c.String(), c.Dir)
		} else {
			glog.Infof("running %q", c.String())
		}
	}
	return cmd
}

func report(c Command, start time.Time, err error) {
	if glog.V(2) {
		glog.Infof("%s finished with exit code %d in %s",
			c.Name, exitCodeOf(err), time.Since(start).Round(time.Millisecond))
	}
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func wrap(c Command, err error, output string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Command: c.Name, ExitCode: exitErr.ExitCode(), Output: output}
	}
	return fmt.Errorf("%s: %w", c.Name, err)
}
