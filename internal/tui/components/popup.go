package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/interpretive-systems/gitscope/internal/dispatch"
	"github.com/interpretive-systems/gitscope/internal/tui/search"
	"github.com/interpretive-systems/gitscope/internal/tui/theme"
)

// PopupView renders an open dispatcher popup below the rows.
type PopupView struct {
	curTheme theme.Theme
}

// NewPopupView creates a popup renderer.
func NewPopupView(t theme.Theme) *PopupView {
	return &PopupView{curTheme: t}
}

// Render returns the overlay lines for p. input is the rendered text input
// when the popup waits for text; help is the rendered key help for the
// help popup.
func (v *PopupView) Render(p *dispatch.Popup, input, help string, width int) []string {
	if p == nil || width <= 0 {
		return nil
	}
	lines := make([]string, 0, 16)
	lines = append(lines, v.curTheme.DividerText(strings.Repeat("─", width)))

	title := lipgloss.NewStyle().Bold(true)
	switch {
	case p.Kind == dispatch.PopupHelp:
		lines = append(lines, title.Render("Help (any key: close)"))
		return append(lines, strings.Split(help, "\n")...)
	case p.Kind == dispatch.PopupConfirm:
		lines = append(lines, title.Render(p.Message))
	case input != "":
		lines = append(lines, title.Render(p.Title+" (enter: confirm, esc: back)"))
	default:
		hint := "esc: close, -: arguments"
		if p.ArgMode {
			hint = "pick an argument"
		}
		lines = append(lines, title.Render(fmt.Sprintf("%s (%s)", p.Title, hint)))
	}

	if specs := p.OptionSpecs(); len(specs) > 0 && input == "" {
		lines = append(lines, v.curTheme.MetaText("Arguments"))
		for _, s := range specs {
			l := fmt.Sprintf(" -%c %s (%s)", s.Key, s.Description, s.Flag)
			if p.Options.Has(s.Option) {
				l = v.curTheme.AddText(l + " [on]")
			} else {
				l = lipgloss.NewStyle().Faint(true).Render(l)
			}
			lines = append(lines, l)
		}
	}

	if input != "" {
		return append(lines, input)
	}
	if p.Kind != dispatch.PopupConfirm {
		lines = append(lines, v.curTheme.MetaText("Actions"))
	}
	for _, e := range p.Entries {
		lines = append(lines, fmt.Sprintf(" %c %s", e.Key, e.Label))
	}
	return lines
}

// maxSelectRows bounds the entries a selection list shows at once.
const maxSelectRows = 8

// RenderSelect returns the overlay lines for a selection list: the query,
// then a window of matches around the highlighted one.
func (v *PopupView) RenderSelect(s *dispatch.Select, width int) []string {
	if s == nil || width <= 0 {
		return nil
	}
	matches := s.Matches()
	lines := []string{
		v.curTheme.DividerText(strings.Repeat("─", width)),
		lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%s (%d/%d, enter: pick, esc: back)", s.Prompt, len(matches), len(s.Labels))),
		"> " + s.Query(),
	}
	if len(matches) == 0 {
		hint := "no match"
		if s.Free && s.Query() != "" {
			hint = "enter uses " + s.Query()
		}
		return append(lines, lipgloss.NewStyle().Faint(true).Render("  "+hint))
	}
	from := max(0, min(s.Cursor()-maxSelectRows/2, len(matches)-maxSelectRows))
	to := min(len(matches), from+maxSelectRows)
	base := lipgloss.NewStyle()
	for i := from; i < to; i++ {
		m := matches[i]
		marker, style := "  ", base
		if i == s.Cursor() {
			marker, style = "> ", v.curTheme.Cursor()
		}
		lines = append(lines, marker+search.Highlight(m.Label, m.Positions, v.curTheme.Match().Inherit(style), style))
	}
	return lines
}
