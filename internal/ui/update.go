package ui

import (
	"strings"

	"github.com/michaelscutari/romlint/internal/event"
	"github.com/michaelscutari/romlint/internal/pathutil"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.spinner++
		return m, tick()

	case eventMsg:
		return m, m.handleEvent(msg.event)

	case flushedMsg:
		m.flushing = false
		return m, m.flush()
	}

	return m, nil
}

func (m *Model) handleEvent(ev event.Event) tea.Cmd {
	switch ev := ev.(type) {
	case event.StartProgress:
		m.byIndex[ev.Index] = len(m.loading)
		m.loading = append(m.loading, loadingItem{label: ev.Label, loading: true})

	case event.EndProgress:
		if i, ok := m.byIndex[ev.Index]; ok {
			m.loading[i].loading = false
		}

	case event.SetStatus:
		m.status = pathutil.Display(m.opts.Base, ev.Path)

	case event.Report:
		if line := RenderReport(m.styles, m.opts, ev); line != "" {
			m.pending = append(m.pending, line)
		}
		return m.flush()

	case event.Finished:
		m.summary = ev.Summary
		m.done = true
		m.pending = append(m.pending, "\n"+RenderSummary(m.styles, ev.Summary))
		return m.flush()
	}
	return nil
}

// flush prints everything pending as one batch, then quits if the run is
// over and nothing is left.
func (m *Model) flush() tea.Cmd {
	if m.flushing {
		return nil
	}
	if len(m.pending) == 0 {
		if m.done {
			return tea.Quit
		}
		return nil
	}
	text := strings.Join(m.pending, "\n")
	m.pending = nil
	m.flushing = true
	return tea.Sequence(tea.Println(text), flushed)
}
