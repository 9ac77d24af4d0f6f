package ui

import (
	"fmt"
	"strings"

	"github.com/michaelscutari/romlint/internal/event"
	"github.com/michaelscutari/romlint/internal/pathutil"
)

// Options shape what the human-readable reporters print.
type Options struct {
	// Base is the directory report paths are shown relative to.
	Base string
	// ShowPasses prints a line for files without diagnostics.
	ShowPasses bool
	// NoColor disables styling.
	NoColor bool
}

// RenderReport formats one file's outcome as a tree of diagnostics and
// hints. It returns "" for a pass when passes are hidden.
func RenderReport(st Styles, opts Options, r event.Report) string {
	path := pathutil.Display(opts.Base, r.Path)
	if r.Passed() {
		if !opts.ShowPasses {
			return ""
		}
		return st.Pass.Render("✓ " + path)
	}

	var b strings.Builder
	b.WriteString(st.Fail.Render("❌ " + path))
	for i, d := range r.Diagnostics {
		last := i == len(r.Diagnostics)-1
		branch, stem := "├─", "│ "
		if last {
			branch, stem = "└─", "  "
		}
		msg := d.Message
		if d.Terminal {
			msg = st.Fatal.Render(msg)
		}
		fmt.Fprintf(&b, "\n   %s %s", branch, msg)
		for _, hint := range d.Hints {
			fmt.Fprintf(&b, "\n   %s   %s", stem, st.Hint.Render(hint))
		}
	}
	return b.String()
}

// RenderSummary formats the per-system table and run totals.
func RenderSummary(st Styles, s *event.Summary) string {
	var b strings.Builder
	b.WriteString(st.Title.Render(fmt.Sprintf("%-10s%8s %8s", "", "Passed", "Failed")))
	for _, system := range s.Systems() {
		c := s.PerSystem[system]
		fmt.Fprintf(&b, "\n%-10s%s %s", system,
			st.Pass.Render(fmt.Sprintf("%8s", FormatCount(int64(c.Pass)))),
			st.Fail.Render(fmt.Sprintf("%8s", FormatCount(int64(c.Fail)))))
	}
	b.WriteString("\n" + st.Muted.Render(strings.Repeat("-", 27)))
	fmt.Fprintf(&b, "\n%-10s%s %s", "Total",
		st.Pass.Render(fmt.Sprintf("%8s", FormatCount(int64(s.TotalPass())))),
		st.Fail.Render(fmt.Sprintf("%8s", FormatCount(int64(s.TotalFail())))))

	total := int64(s.TotalPass() + s.TotalFail())
	fmt.Fprintf(&b, "\n\nScanned %s items (%s) in %s",
		FormatCount(total),
		FormatSize(uint64(max(s.ScannedBytes, 0))),
		st.Status.Render(FormatDuration(s.Duration())))

	if s.ArchiveCount > 0 {
		fmt.Fprintf(&b, "\n%s", st.Stats.Render(fmt.Sprintf(
			"Archives: %s holding %s, saving %s (%.1f%%)",
			FormatCount(int64(s.ArchiveCount)),
			FormatSize(s.ArchiveUncompressed),
			FormatSize(s.CompressionSaved()),
			s.CompressionRatio())))
	}
	if s.UncompressedFileCount > 0 {
		fmt.Fprintf(&b, "\n%s", st.Stats.Render(fmt.Sprintf(
			"Uncompressed files: %s (%s)",
			FormatCount(int64(s.UncompressedFileCount)),
			FormatSize(uint64(max(s.UncompressedFileBytes, 0))))))
	}
	return b.String()
}
