package profile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/buckleypaul/droidclang/internal/runner"
	"github.com/buckleypaul/droidclang/internal/runner/runnertest"
	"github.com/buckleypaul/droidclang/internal/toolchain"
)

func newCollector(t *testing.T, fake *runnertest.Fake) *Collector {
	t.Helper()
	out := t.TempDir()
	return &Collector{
		Runner:        fake,
		Dir:           filepath.Join(out, "clang-profiles"),
		Stage1Install: filepath.Join(out, "stage1-install"),
		DistDir:       filepath.Join(out, "dist"),
	}
}

func TestOutputPattern(t *testing.T) {
	c := newCollector(t, &runnertest.Fake{})
	o := c.Output()
	if o.Key != "LLVM_PROFILE_FILE" {
		t.Errorf("Key = %s", o.Key)
	}
	if o.Pattern != filepath.Join(c.Dir, "%4m.profraw") {
		t.Errorf("Pattern = %s", o.Pattern)
	}
}

func TestPrepareCreatesDir(t *testing.T) {
	c := newCollector(t, &runnertest.Fake{})
	if err := c.Prepare(); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(c.Dir); err != nil || !info.IsDir() {
		t.Fatalf("profile dir not created: %v", err)
	}
}

func TestMergeInvokesStage1Profdata(t *testing.T) {
	fake := &runnertest.Fake{}
	c := newCollector(t, fake)
	v := toolchain.Version{Major: 17, Minor: 0, Patch: 2}

	out, err := c.Merge(context.Background(), v)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if out != filepath.Join(c.DistDir, "clang-17.0.2.profdata") {
		t.Errorf("merged path = %s", out)
	}
	if len(fake.Calls) != 1 {
		t.Fatalf("expected one call, got %v", fake.Lines())
	}
	call := fake.Calls[0]
	if call.Name != filepath.Join(c.Stage1Install, "bin", "llvm-profdata") {
		t.Errorf("merge tool = %s", call.Name)
	}
	wantArgs := []string{"merge", "-o", out, c.Dir}
	for i, a := range wantArgs {
		if call.Args[i] != a {
			t.Errorf("arg %d = %s, want %s", i, call.Args[i], a)
		}
	}
}

func TestMergeFailure(t *testing.T) {
	fake := &runnertest.Fake{Respond: func(c runner.Command) (string, error) {
		return "", runnertest.Exit("llvm-profdata", 1)
	}}
	c := newCollector(t, fake)

	_, err := c.Merge(context.Background(), toolchain.Version{Major: 17})
	if !errors.Is(err, ErrMerge) {
		t.Fatalf("expected ErrMerge, got %v", err)
	}
}
