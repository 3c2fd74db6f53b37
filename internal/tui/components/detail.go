package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/interpretive-systems/gitscope/internal/tui/theme"
)

// DetailView shows the output of a show operation in a scrollable pane.
type DetailView struct {
	title    string
	viewport viewport.Model
	curTheme theme.Theme
	open     bool
}

// NewDetailView creates a closed detail view.
func NewDetailView(t theme.Theme) *DetailView {
	return &DetailView{curTheme: t, viewport: viewport.New(0, 0)}
}

// Open shows text under title, scrolled to the top.
func (d *DetailView) Open(title, text string) {
	d.title = title
	d.open = true
	d.viewport.SetContent(strings.Join(d.colorize(text), "\n"))
	d.viewport.GotoTop()
}

// Close hides the view.
func (d *DetailView) Close() {
	d.open = false
}

// IsOpen reports whether the view is shown.
func (d *DetailView) IsOpen() bool {
	return d.open
}

// Title returns the title of the shown text.
func (d *DetailView) Title() string {
	return d.title
}

// SetSize updates the viewport dimensions.
func (d *DetailView) SetSize(width, height int) {
	d.viewport.Width = width
	d.viewport.Height = height
}

// Update scrolls the view.
func (d *DetailView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	d.viewport, cmd = d.viewport.Update(msg)
	return cmd
}

// Lines returns the visible lines.
func (d *DetailView) Lines() []string {
	return strings.Split(d.viewport.View(), "\n")
}

func (d *DetailView) colorize(text string) []string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "---"),
			strings.HasPrefix(l, "diff --git"), strings.HasPrefix(l, "@@"),
			strings.HasPrefix(l, "commit "):
			lines[i] = d.curTheme.MetaText(l)
		case strings.HasPrefix(l, "+"):
			lines[i] = d.curTheme.AddText(l)
		case strings.HasPrefix(l, "-"):
			lines[i] = d.curTheme.DelText(l)
		}
	}
	return lines
}
