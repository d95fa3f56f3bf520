// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/buckleypaul/droidclang/internal/runner"
)

// Fake records every command and answers from Respond.
type Fake struct {
	mu    sync.Mutex
	Calls []runner.Command

	// Respond returns the stdout and error for a command. A nil Respond
	// succeeds with no output.
	Respond func(c runner.Command) (string, error)
}

func (f *Fake) Run(ctx context.Context, c runner.Command) error {
	out, err := f.record(c)
	if out != "" && c.Stdout != nil {
		io.WriteString(c.Stdout, out)
	}
	return err
}

func (f *Fake) Output(ctx context.Context, c runner.Command) (string, error) {
	return f.record(c)
}

func (f *Fake) record(c runner.Command) (string, error) {
	f.mu.Lock()
	c.Args = append([]string(nil), c.Args...)
	c.Env = append([]string(nil), c.Env...)
	f.Calls = append(f.Calls, c)
	respond := f.Respond
	f.mu.Unlock()

	if respond == nil {
		return "", nil
	}
	return respond(c)
}

// Lines returns every recorded command rendered with Command.String.
func (f *Fake) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		lines = append(lines, c.String())
	}
	return lines
}

// Matching returns the recorded commands whose rendered line contains substr.
func (f *Fake) Matching(substr string) []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []runner.Command
	for _, c := range f.Calls {
		if strings.Contains(c.String(), substr) {
			out = append(out, c)
		}
	}
	return out
}

// Exit builds the error a real runner returns for a non-zero exit.
func Exit(name string, code int) error {
	return &runner.ExitError{Command: name, ExitCode: code}
}

// EnvValue looks up key in a recorded command's environment.
func EnvValue(c runner.Command, key string) (string, bool) {
	prefix := key + "="
	for _, kv := range c.Env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):], true
		}
	}
	return "", false
}
