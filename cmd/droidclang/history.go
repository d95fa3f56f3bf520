package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"

	"github.com/buckleypaul/droidclang/internal/config"
	"github.com/buckleypaul/droidclang/internal/store"
	"github.com/buckleypaul/droidclang/internal/ui"
)

func runListHistory(w io.Writer, c cli, cfg config.Config) int {
	co, err := toolchainCheckout(c.ToolchainRoot, cfg.ToolchainRoot, nil)
	if err != nil {
		printUsageError(os.Stderr, err)
		return exitUsage
	}
	if err := listHistory(w, store.New(filepath.Join(distPath(co), "droidclang"))); err != nil {
		glog.Error(err)
		return exitFailed
	}
	return exitOK
}

// listHistory prints every recorded run followed by its targets and
// devices.
func listHistory(w io.Writer, s *store.Store) error {
	runs, err := s.Runs()
	if err != nil {
		return fmt.Errorf("reading run history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	for _, r := range runs {
		fmt.Fprintf(w, "%s %s %s %s %s\n", badge(r.Success), r.Timestamp.Local().Format(time.DateTime),
			r.Mode, r.ID, ui.DimStyle.Render(r.Duration))
		if r.ToolchainVersion != "" {
			fmt.Fprintf(w, "    clang %s (%s)\n", r.ToolchainVersion, r.ToolchainPath)
		}
		if r.Error != "" {
			fmt.Fprintf(w, "    %s\n", r.Error)
		}

		targets, err := s.Targets(r.ID)
		if err != nil {
			return fmt.Errorf("reading target history: %w", err)
		}
		for _, t := range targets {
			fmt.Fprintf(w, "    %s %s -j%d %s\n", badge(t.Success), t.Target, t.Jobs, ui.DimStyle.Render(t.Duration))
		}

		devices, err := s.Devices(r.ID)
		if err != nil {
			return fmt.Errorf("reading device history: %w", err)
		}
		for _, d := range devices {
			line := fmt.Sprintf("    %s %s", d.Outcome, d.Serial)
			if d.Reason != "" {
				line += " " + d.Reason
			}
			if d.ConsoleLog != "" {
				line += " " + ui.DimStyle.Render(d.ConsoleLog)
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func badge(ok bool) string {
	if ok {
		return ui.SuccessBadge("PASS")
	}
	return ui.ErrorBadge("FAIL")
}
