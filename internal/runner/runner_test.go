package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestOutputCapturesStdout(t *testing.T) {
	requireShell(t)

	out, err := DefaultRunner{}.Output(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo hello"},
	})
	if err != nil {
		t.Fatalf("Output returned error: %v", err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Errorf("expected hello, got %q", out)
	}
}

func TestRunReportsExitCode(t *testing.T) {
	requireShell(t)

	var buf bytes.Buffer
	err := DefaultRunner{}.Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", "exit 3"},
		Stdout: &buf,
		Stderr: &buf,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %T", err)
	}
	if ExitCode(err) != 3 {
		t.Errorf("expected exit code 3, got %d", ExitCode(err))
	}
}

func TestRunUsesGivenEnvAndDir(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	out, err := DefaultRunner{}.Output(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo $GREETING; pwd"},
		Dir:  dir,
		Env:  []string{"GREETING=hi", "PATH=/usr/bin:/bin"},
	})
	if err != nil {
		t.Fatalf("Output returned error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out)
	}
	if lines[0] != "hi" {
		t.Errorf("expected GREETING=hi, got %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], strings.TrimPrefix(dir, "/private")) {
		t.Errorf("expected pwd %s, got %s", dir, lines[1])
	}
}

func TestExitCodeOfNonExitError(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Error("expected 0 for nil")
	}
	if ExitCode(errors.New("boom")) != -1 {
		t.Error("expected -1 for plain error")
	}
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "adb", Args: []string{"devices", "-l"}}
	if c.String() != "adb devices -l" {
		t.Errorf("unexpected %q", c.String())
	}
}

func TestRunnerDefaultWriters(t *testing.T) {
	requireShell(t)

	var stdout, stderr bytes.Buffer
	r := DefaultRunner{Stdout: &stdout, Stderr: &stderr}
	err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo out; echo err >&2"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "out" {
		t.Errorf("expected stdout routed to default writer, got %q", stdout.String())
	}
	if strings.TrimSpace(stderr.String()) != "err" {
		t.Errorf("expected stderr routed to default writer, got %q", stderr.String())
	}
}
