package search

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// RenderOverlay renders the search input and match counter.
func (e *Engine) RenderOverlay(width int, dividerColor string) []string {
	if !e.active || width <= 0 {
		return nil
	}

	lines := make([]string, 0, 3)

	divider := lipgloss.NewStyle().
		Foreground(lipgloss.Color(dividerColor)).
		Render(strings.Repeat("─", width))
	lines = append(lines, divider)
	lines = append(lines, padExact(e.InputView(), width))

	status := "Type to search (esc: cancel, enter: done)"
	if e.query != "" {
		if len(e.matches) == 0 {
			status = "No matches (esc: cancel)"
		} else {
			status = fmt.Sprintf(
				"Match %d of %d  (ctrl+n: next, ctrl+p: prev, enter: done)",
				e.CurrentMatchIndex(),
				e.MatchCount(),
			)
		}
	}

	statusStyled := lipgloss.NewStyle().Faint(true).Render(status)
	lines = append(lines, padExact(statusStyled, width))

	return lines
}

func padExact(s string, w int) string {
	n := ansi.StringWidth(s)
	if n > w {
		return ansi.Truncate(s, w, "")
	}
	return s + strings.Repeat(" ", w-n)
}
