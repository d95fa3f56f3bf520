package tui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/droidclang/internal/orchestrator"
)

// Sender is implemented by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards orchestrator events to a program.
type Observer struct {
	P Sender
}

func (o Observer) Observe(e orchestrator.Event) {
	o.P.Send(EventMsg{Event: e})
}

// LineWriter turns written bytes into one OutputMsg per line.
type LineWriter struct {
	P Sender

	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write.
			w.buf.WriteString(line)
			return len(p), nil
		}
		w.P.Send(OutputMsg{Line: strings.TrimRight(line, "\r\n")})
	}
}

// Flush sends any unterminated last line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.P.Send(OutputMsg{Line: w.buf.String()})
		w.buf.Reset()
	}
}

// RunFunc executes a run, publishing to obs and writing subprocess output
// to out.
type RunFunc func(ctx context.Context, obs orchestrator.Observer, out io.Writer) *orchestrator.Summary

// Run shows the progress view while run executes. Quitting the view
// cancels the run; the summary is returned once run has returned.
func Run(ctx context.Context, run RunFunc) (*orchestrator.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(cancel), tea.WithAltScreen())
	out := &LineWriter{P: p}
	done := make(chan *orchestrator.Summary, 1)
	go func() {
		s := run(ctx, Observer{P: p}, out)
		out.Flush()
		done <- s
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, err
	}
	cancel()
	return <-done, nil
}
