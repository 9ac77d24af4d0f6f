package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
)

var (
	// Colors
	colorPrimary   = lipgloss.Color("39")  // Blue
	colorSecondary = lipgloss.Color("245") // Gray
	colorSuccess   = lipgloss.Color("76")  // Green
	colorFailure   = lipgloss.Color("196") // Red
	colorWarning   = lipgloss.Color("214") // Orange
	colorMuted     = lipgloss.Color("240") // Dark gray
)

// Styles are the lipgloss styles bound to one output.
type Styles struct {
	Title   lipgloss.Style
	Pass    lipgloss.Style
	Fail    lipgloss.Style
	Fatal   lipgloss.Style
	Hint    lipgloss.Style
	Status  lipgloss.Style
	Spinner lipgloss.Style
	Muted   lipgloss.Style
	Stats   lipgloss.Style
}

// NewRenderer returns a renderer for w. noColor forces plain ASCII output.
func NewRenderer(w io.Writer, noColor bool) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	if noColor {
		r.SetColorProfile(termenv.Ascii)
	}
	return r
}

// NewStyles builds the styles for a renderer.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title: r.NewStyle().
			Bold(true).
			Foreground(colorPrimary),
		Pass: r.NewStyle().
			Foreground(colorSuccess),
		Fail: r.NewStyle().
			Foreground(colorFailure),
		Fatal: r.NewStyle().
			Bold(true).
			Foreground(colorFailure),
		Hint: r.NewStyle().
			Foreground(colorSecondary),
		Status: r.NewStyle().
			Foreground(colorPrimary),
		Spinner: r.NewStyle().
			Foreground(colorWarning),
		Muted: r.NewStyle().
			Foreground(colorMuted),
		Stats: r.NewStyle().
			Foreground(colorSecondary),
	}
}

// FormatSize formats a byte count for display.
func FormatSize(bytes uint64) string {
	return humanize.Bytes(bytes)
}

// FormatCount formats a count for display.
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// FormatDuration renders minutes and seconds for long runs, and seconds with
// millisecond precision otherwise.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs >= 60 {
		return fmt.Sprintf("%dm %02ds", secs/60, secs%60)
	}
	millis := d.Milliseconds()
	return fmt.Sprintf("%d.%03ds", millis/1000, millis%1000)
}
