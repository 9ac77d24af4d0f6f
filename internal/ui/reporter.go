// Package ui renders the scanner's event stream: an interactive progress
// view for terminals, plain styled text, and JSON.
package ui

import (
	"errors"
	"fmt"
	"io"

	rlerrors "github.com/michaelscutari/romlint/internal/errors"
	"github.com/michaelscutari/romlint/internal/event"
)

// Reporter consumes events in stream order.
type Reporter interface {
	Handle(ev event.Event) error
	// Close flushes output once the stream has ended or been abandoned.
	Close() error
}

// Consume feeds events to every reporter until Finished or the stream
// closes, then closes the reporters. A reporter error stops consumption;
// the caller should hang up the stream so producers fail fast.
func Consume(events <-chan event.Event, reporters ...Reporter) error {
	for ev := range events {
		for _, r := range reporters {
			if err := r.Handle(ev); err != nil {
				return errors.Join(err, closeAll(reporters))
			}
		}
		if _, ok := ev.(event.Finished); ok {
			break
		}
	}
	return closeAll(reporters)
}

func closeAll(reporters []Reporter) error {
	var errs []error
	for _, r := range reporters {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Plain writes styled reports and the summary line by line, with no cursor
// movement. It suits pipes and CI logs.
type Plain struct {
	out    io.Writer
	opts   Options
	styles Styles
}

// NewPlain creates a plain reporter writing to out.
func NewPlain(out io.Writer, opts Options) *Plain {
	return &Plain{
		out:    out,
		opts:   opts,
		styles: NewStyles(NewRenderer(out, opts.NoColor)),
	}
}

func (p *Plain) Handle(ev event.Event) error {
	var text string
	switch ev := ev.(type) {
	case event.Report:
		text = RenderReport(p.styles, p.opts, ev)
	case event.Finished:
		text = "\n" + RenderSummary(p.styles, ev.Summary)
	}
	if text == "" {
		return nil
	}
	return p.write(text)
}

func (p *Plain) write(text string) error {
	if _, err := fmt.Fprintln(p.out, text); err != nil {
		return rlerrors.Wrap(err, rlerrors.ErrBrokenPipe, "writing report")
	}
	return nil
}

func (p *Plain) Close() error { return nil }
