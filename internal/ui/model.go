package ui

import (
	"time"

	"github.com/michaelscutari/romlint/internal/event"

	tea "github.com/charmbracelet/bubbletea"
)

var spinnerFrames = []string{"⣷", "⣯", "⣟", "⡿", "⢿", "⣻", "⣽", "⣾"}

const tickInterval = 100 * time.Millisecond

type loadingItem struct {
	label   string
	loading bool
}

// Model is the live progress view: catalog loading lines plus a spinner on
// the file being checked. Reports and the summary scroll above it.
type Model struct {
	styles  Styles
	opts    Options
	spinner int
	status  string
	width   int

	loading []loadingItem
	byIndex map[int]int

	// Lines waiting for a print. Only one print is in flight at a time so
	// output keeps stream order.
	pending  []string
	flushing bool

	summary *event.Summary
	done    bool
}

// NewModel creates a progress model.
func NewModel(styles Styles, opts Options) *Model {
	return &Model{
		styles:  styles,
		opts:    opts,
		status:  "Initializing...",
		byIndex: make(map[int]int),
	}
}

// eventMsg carries one scanner event into the program.
type eventMsg struct {
	event event.Event
}

type tickMsg time.Time

// flushedMsg follows each print so the next batch can go out.
type flushedMsg struct{}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func flushed() tea.Msg {
	return flushedMsg{}
}

// Summary returns the run summary once Finished has arrived.
func (m *Model) Summary() *event.Summary {
	return m.summary
}
