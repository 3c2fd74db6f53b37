package search

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Highlight renders text with the bytes at idx in style and the rest in
// base. idx must be sorted.
func Highlight(text string, idx []int, style, base lipgloss.Style) string {
	if len(idx) == 0 {
		return base.Render(text)
	}
	var b strings.Builder
	var run strings.Builder
	matched := false
	flush := func() {
		if run.Len() == 0 {
			return
		}
		if matched {
			b.WriteString(style.Render(run.String()))
		} else {
			b.WriteString(base.Render(run.String()))
		}
		run.Reset()
	}
	k := 0
	for i, r := range text {
		for k < len(idx) && idx[k] < i {
			k++
		}
		hit := k < len(idx) && idx[k] == i
		if hit != matched {
			flush()
			matched = hit
		}
		run.WriteRune(r)
	}
	flush()
	return b.String()
}
