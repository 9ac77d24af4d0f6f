// Package event defines what the scanner tells the reporting side: progress,
// per-file reports and the final summary.
package event

// Event is one message on the reporting stream.
type Event interface {
	isEvent()
}

// StartProgress announces a long-running step, such as loading one system's
// catalog. Index identifies the step in the matching EndProgress.
type StartProgress struct {
	Index int
	Label string
}

// EndProgress marks the step started with the same Index as done.
type EndProgress struct {
	Index int
}

// SetStatus names the file currently being checked.
type SetStatus struct {
	Path string
}

// Report carries every diagnostic collected for one file. No diagnostics
// means the file passed.
type Report struct {
	Path        string       `json:"path"`
	System      string       `json:"system"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Passed reports whether the file produced no diagnostics.
func (r Report) Passed() bool {
	return len(r.Diagnostics) == 0
}

// Finished is the last event of a run.
type Finished struct {
	Summary *Summary
}

func (StartProgress) isEvent() {}
func (EndProgress) isEvent() {}
func (SetStatus) isEvent() {}
func (Report) isEvent() {}
func (Finished) isEvent() {}

// Diagnostic is one rule failure. Terminal diagnostics stop further rules
// from running against the same file.
type Diagnostic struct {
	Message  string   `json:"message"`
	Path     string   `json:"path"`
	Hints    []string `json:"hints,omitempty"`
	Terminal bool     `json:"terminal"`
}

// NewDiagnostic builds a non-terminal diagnostic.
func NewDiagnostic(path, message string, hints ...string) Diagnostic {
	return Diagnostic{Message: message, Path: path, Hints: hints}
}

// AsTerminal returns a copy of d marked terminal.
func (d Diagnostic) AsTerminal() Diagnostic {
	d.Terminal = true
	return d
}
