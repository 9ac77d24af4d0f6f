package ui

import (
	"fmt"
	"strings"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	for _, item := range m.loading {
		mark := m.styles.Spinner.Render(m.frame())
		if !item.loading {
			mark = m.styles.Pass.Render("✓")
		}
		fmt.Fprintf(&b, "Loading %s rom db... %s\n", item.label, mark)
	}

	status := m.status
	if m.width > 0 {
		status = truncateMiddle(status, max(10, m.width-6))
	}
	b.WriteString(m.styles.Spinner.Render(m.frame()))
	b.WriteString(" >> ")
	b.WriteString(m.styles.Status.Render(status))
	return b.String()
}

func (m *Model) frame() string {
	return spinnerFrames[m.spinner%len(spinnerFrames)]
}

func truncateMiddle(s string, maxLen int) string {
	runes := []rune(s)
	if maxLen <= 0 || len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	head := (maxLen - 3) / 2
	tail := maxLen - 3 - head
	return string(runes[:head]) + "..." + string(runes[len(runes)-tail:])
}
