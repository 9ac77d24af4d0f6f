package ui

import (
	"encoding/json"
	"io"

	rlerrors "github.com/michaelscutari/romlint/internal/errors"
	"github.com/michaelscutari/romlint/internal/event"
	"github.com/michaelscutari/romlint/internal/pathutil"
)

// JSON collects the run and writes one document when it finishes.
type JSON struct {
	out         io.Writer
	base        string
	diagnostics map[string][]event.Diagnostic
	passes      []string
}

type jsonDocument struct {
	Diagnostics map[string][]event.Diagnostic `json:"diagnostics"`
	Passes      []string                      `json:"passes"`
	Summary     *event.Summary                `json:"summary"`
}

// NewJSON creates a JSON reporter. Paths are keyed relative to base.
func NewJSON(out io.Writer, base string) *JSON {
	return &JSON{
		out:         out,
		base:        base,
		diagnostics: make(map[string][]event.Diagnostic),
		passes:      []string{},
	}
}

func (j *JSON) Handle(ev event.Event) error {
	switch ev := ev.(type) {
	case event.Report:
		path := pathutil.Display(j.base, ev.Path)
		if ev.Passed() {
			j.passes = append(j.passes, path)
		} else {
			j.diagnostics[path] = ev.Diagnostics
		}
	case event.Finished:
		doc := jsonDocument{
			Diagnostics: j.diagnostics,
			Passes:      j.passes,
			Summary:     ev.Summary,
		}
		if err := json.NewEncoder(j.out).Encode(doc); err != nil {
			return rlerrors.Wrap(err, rlerrors.ErrBrokenPipe, "writing JSON report")
		}
	}
	return nil
}

func (j *JSON) Close() error { return nil }
