package ui

import (
	"fmt"
	"io"

	"github.com/michaelscutari/romlint/internal/event"

	tea "github.com/charmbracelet/bubbletea"
)

// Interactive drives a bubbletea program from the event stream. The program
// does not read the terminal, so Ctrl+C reaches the caller's signal handler.
type Interactive struct {
	program  *tea.Program
	done     chan error
	finished bool
}

// NewInteractive starts the progress view on out.
func NewInteractive(out io.Writer, opts Options) *Interactive {
	model := NewModel(NewStyles(NewRenderer(out, opts.NoColor)), opts)
	p := tea.NewProgram(model,
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	r := &Interactive{program: p, done: make(chan error, 1)}
	go func() {
		_, err := p.Run()
		r.done <- err
	}()
	return r
}

func (r *Interactive) Handle(ev event.Event) error {
	if _, ok := ev.(event.Finished); ok {
		r.finished = true
	}
	r.program.Send(eventMsg{event: ev})
	return nil
}

// Close waits for the view to print everything it was sent. Without a
// Finished event the view is stopped instead.
func (r *Interactive) Close() error {
	if !r.finished {
		r.program.Quit()
	}
	if err := <-r.done; err != nil {
		return fmt.Errorf("progress view failed: %w", err)
	}
	return nil
}
