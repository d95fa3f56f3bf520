// Package tui is a full-screen progress view for a run.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/buckleypaul/droidclang/internal/orchestrator"
	"github.com/buckleypaul/droidclang/internal/ui"
)

// maxLines bounds the output kept for the viewport.
const maxLines = 2000

// EventMsg carries an orchestrator event into the program.
type EventMsg struct {
	Event orchestrator.Event
}

// OutputMsg is one line of subprocess output.
type OutputMsg struct {
	Line string
}

type rowState int

const (
	rowRunning rowState = iota
	rowOK
	rowFailed
)

type row struct {
	label    string
	state    rowState
	duration time.Duration
}

// Model shows the step list above a scrolling view of build output.
type Model struct {
	cancel context.CancelFunc

	rows     []row
	output   []string
	viewport viewport.Model
	follow   bool
	status   string

	summary *orchestrator.Summary
	width   int
	height  int
}

// New returns a model that calls cancel when the user quits early.
func New(cancel context.CancelFunc) Model {
	return Model{
		cancel:   cancel,
		viewport: viewport.New(0, 0),
		follow:   true,
	}
}

// Summary is the finished run, nil if the user quit first.
func (m Model) Summary() *orchestrator.Summary {
	return m.summary
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, Keys.Quit):
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case key.Matches(msg, Keys.Follow):
			m.follow = !m.follow
			if m.follow {
				m.viewport.GotoBottom()
			}
			return m, nil
		}

	case EventMsg:
		return m.handleEvent(msg.Event)

	case OutputMsg:
		m.output = append(m.output, msg.Line)
		if len(m.output) > maxLines {
			m.output = m.output[len(m.output)-maxLines:]
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleEvent(e orchestrator.Event) (tea.Model, tea.Cmd) {
	switch e := e.(type) {
	case orchestrator.StepStarted:
		m.rows = append(m.rows, row{label: label(e.Step, e.Subject)})
		m.status = label(e.Step, e.Subject)
	case orchestrator.StepFinished:
		want := label(e.Step, e.Subject)
		for i := len(m.rows) - 1; i >= 0; i-- {
			if m.rows[i].label == want && m.rows[i].state == rowRunning {
				m.rows[i].state = rowOK
				if e.Err != nil {
					m.rows[i].state = rowFailed
				}
				m.rows[i].duration = e.Duration
				break
			}
		}
	case orchestrator.DeviceState:
		m.status = e.State.String()
	case orchestrator.DeviceResult:
		m.output = append(m.output, fmt.Sprintf("device %s: %s", e.Result.Device.Serial, e.Result.Outcome))
		m.refresh()
	case orchestrator.RunFinished:
		m.summary = e.Summary
		return m, tea.Quit
	}
	m.resize()
	return m, nil
}

func (m *Model) resize() {
	vpHeight := m.height - len(m.rows) - 4
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = vpHeight
	m.refresh()
}

func (m *Model) refresh() {
	lines := m.output
	if m.width > 0 {
		lines = make([]string, len(m.output))
		for i, l := range m.output {
			lines[i] = truncate.String(l, uint(m.width))
		}
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(ui.Title("droidclang"))
	b.WriteString("\n")
	for _, r := range m.rows {
		b.WriteString(renderRow(r))
		b.WriteString("\n")
	}
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusBar())
	return b.String()
}

func (m Model) statusBar() string {
	parts := []string{
		ui.StatusKey("↑/↓", "scroll"),
		ui.StatusKey(Keys.Follow.Help().Key, Keys.Follow.Help().Desc),
		ui.StatusKey(Keys.Quit.Help().Key, Keys.Quit.Help().Desc),
	}
	line := strings.Join(parts, "  ")
	if m.status != "" {
		line = ui.StatusBarStyle.Render(m.status) + "  " + line
	}
	if m.width > 0 {
		return ui.StatusBarStyle.Width(m.width).Render(line)
	}
	return line
}

func renderRow(r row) string {
	var mark string
	switch r.state {
	case rowOK:
		mark = lipgloss.NewStyle().Foreground(ui.Success).Render("✓")
	case rowFailed:
		mark = lipgloss.NewStyle().Foreground(ui.Error).Render("✗")
	default:
		return ui.StepActiveStyle.Render("• " + r.label)
	}
	return mark + " " + r.label + ui.DimStyle.Render(" "+r.duration.Round(time.Second).String())
}

func label(step orchestrator.Step, subject string) string {
	if subject == "" {
		return string(step)
	}
	return string(step) + " " + subject
}
