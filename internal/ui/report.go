package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wrap"

	"github.com/buckleypaul/droidclang/internal/device"
	"github.com/buckleypaul/droidclang/internal/orchestrator"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

// Reporter prints one line per finished step and a summary panel at the
// end of the run.
type Reporter struct {
	Out   io.Writer
	Width int
}

func (r *Reporter) width() int {
	if r.Width > 0 {
		return r.Width
	}
	return DefaultWidth
}

func (r *Reporter) Observe(e orchestrator.Event) {
	switch e := e.(type) {
	case orchestrator.StepFinished:
		badge := SuccessBadge(" OK ")
		if e.Err != nil {
			badge = ErrorBadge("FAIL")
		}
		line := fmt.Sprintf("%s %s", badge, stepLabel(e.Step, e.Subject))
		line += DimStyle.Render(" " + e.Duration.Round(time.Second).String())
		fmt.Fprintln(r.Out, truncate.StringWithTail(line, uint(r.width()), "…"))
	case orchestrator.DeviceResult:
		fmt.Fprintln(r.Out, truncate.StringWithTail(deviceLine(e.Result), uint(r.width()), "…"))
	case orchestrator.RunFinished:
		fmt.Fprintln(r.Out)
		fmt.Fprintln(r.Out, RenderSummary(e.Summary, r.width()))
	}
}

// RenderSummary renders s as a panel width columns wide.
func RenderSummary(s *orchestrator.Summary, width int) string {
	var b strings.Builder
	inner := width - 4
	if inner < 20 {
		inner = 20
	}

	fmt.Fprintf(&b, "%s %s\n", DimStyle.Render("run "), s.RunID)
	fmt.Fprintf(&b, "%s %s\n", DimStyle.Render("mode"), s.Mode)
	if s.Toolchain.Path != "" {
		fmt.Fprintf(&b, "%s clang %s (%s)\n", DimStyle.Render("tool"), s.Toolchain.Version, s.Toolchain.Path)
	}

	if len(s.Targets) > 0 {
		b.WriteString("\n" + BoldStyle.Render("Targets") + "\n")
		for _, t := range s.Targets {
			if t.Err != nil {
				fmt.Fprintf(&b, "%s %s\n", ErrorBadge("FAIL"), t.Target)
				continue
			}
			fmt.Fprintf(&b, "%s %s %s\n", SuccessBadge("PASS"), t.Target,
				DimStyle.Render(t.Result.Duration.Round(time.Second).String()))
		}
	}

	if len(s.Devices.Results) > 0 {
		b.WriteString("\n" + BoldStyle.Render("Devices") + "\n")
		for _, r := range s.Devices.Results {
			b.WriteString(truncate.StringWithTail(deviceLine(r), uint(inner), "…") + "\n")
		}
		if s.Devices.Aborted {
			b.WriteString(DimStyle.Render("remaining devices not attempted") + "\n")
		}
	} else if s.Mode == orchestrator.ModeDeviceTest && s.Err == nil {
		b.WriteString("\n" + DimStyle.Render("No devices connected.") + "\n")
	}

	if s.Profile != "" {
		fmt.Fprintf(&b, "\n%s %s\n", DimStyle.Render("profile"), s.Profile)
	}

	b.WriteString("\n")
	if err := s.Failure(); err != nil {
		b.WriteString(ErrorBadge("FAILED") + "\n")
		b.WriteString(wrap.String(err.Error(), inner))
	} else {
		b.WriteString(SuccessBadge("SUCCEEDED") + " " + DimStyle.Render(s.Duration.Round(time.Second).String()))
	}

	title := "droidclang"
	if s.Toolchain.Path != "" {
		title += " · clang " + s.Toolchain.Version.Short()
	}
	return Panel(title, b.String(), width, 0, s.Success())
}

func stepLabel(step orchestrator.Step, subject string) string {
	if subject == "" {
		return string(step)
	}
	return string(step) + " " + subject
}

func deviceLine(r device.Result) string {
	var badge string
	switch r.Outcome {
	case device.Passed:
		badge = SuccessBadge("PASS")
	case device.Failed:
		badge = ErrorBadge("FAIL")
	default:
		badge = WarningBadge("SKIP")
	}
	line := fmt.Sprintf("%s %s", badge, r.Device.Serial)
	if r.Device.Model != "" {
		line += " " + r.Device.Model
	}
	if r.Device.Product != "" {
		line += " " + DimStyle.Render(r.Device.Target())
	}
	switch {
	case r.Err != nil:
		line += " " + r.Err.Error()
	case r.Outcome == device.Skipped:
		line += " " + DimStyle.Render(r.Reason)
	}
	return line
}
