package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/interpretive-systems/gitscope/internal/diff"
	"github.com/interpretive-systems/gitscope/internal/outline"
	"github.com/interpretive-systems/gitscope/internal/tui/search"
	"github.com/interpretive-systems/gitscope/internal/tui/theme"
)

// Span is an inclusive range of row indexes. A span with To < From is
// empty.
type Span struct {
	From, To int
}

// NoSpan selects nothing.
var NoSpan = Span{From: 0, To: -1}

func (s Span) contains(i int) bool { return i >= s.From && i <= s.To }

// RowView renders the visible rows of the outline with a scroll offset.
type RowView struct {
	rows   []outline.Row
	offset int
	theme  theme.Theme
	hl     *Highlighter
}

// NewRowView creates a row view. A nil highlighter disables syntax colors.
func NewRowView(t theme.Theme, hl *Highlighter) *RowView {
	return &RowView{theme: t, hl: hl}
}

// SetRows replaces the rows.
func (v *RowView) SetRows(rows []outline.Row) {
	v.rows = rows
}

// Rows returns the current rows.
func (v *RowView) Rows() []outline.Row {
	return v.rows
}

// Offset returns the index of the first rendered row.
func (v *RowView) Offset() int {
	return v.offset
}

// EnsureVisible scrolls so that row cursor is on screen.
func (v *RowView) EnsureVisible(cursor, visibleCount int) {
	if len(v.rows) == 0 || visibleCount <= 0 {
		v.offset = 0
		return
	}
	maxStart := max(len(v.rows)-visibleCount, 0)
	v.offset = max(min(v.offset, maxStart), 0)

	if cursor < v.offset {
		v.offset = cursor
	} else if cursor >= v.offset+visibleCount {
		v.offset = max(cursor-visibleCount+1, 0)
	}
	v.offset = min(v.offset, maxStart)
}

// Render renders up to height rows of the given width. matched returns the
// search match offsets of a row, if any.
func (v *RowView) Render(height, width, cursor int, sel Span, matched func(int) []int) []string {
	lines := make([]string, 0, height)
	if len(v.rows) == 0 {
		return append(lines, "Loading…")
	}

	v.EnsureVisible(cursor, height)
	end := min(v.offset+height, len(v.rows))
	for i := v.offset; i < end; i++ {
		var m []int
		if matched != nil {
			m = matched(i)
		}
		marker := "  "
		if i == cursor {
			marker = "> "
		}
		line := padToWidth(marker+v.renderRow(v.rows[i], m), width)
		switch {
		case i == cursor:
			line = v.theme.Cursor().Render(line)
		case sel.contains(i):
			line = v.theme.Selected().Render(line)
		}
		lines = append(lines, line)
	}
	return lines
}

func (v *RowView) renderRow(r outline.Row, matched []int) string {
	indent := strings.Repeat("  ", r.Depth)
	if r.IsLine() {
		return indent + v.renderLine(r, matched)
	}

	fold := "  "
	if r.Foldable {
		fold = "▾ "
		if r.Collapsed {
			fold = "▸ "
		}
	}
	var base lipgloss.Style
	switch {
	case r.Depth == 0:
		base = v.theme.Heading()
	case r.Addr.Kind.IsHunk():
		base = lipgloss.NewStyle().Foreground(lipgloss.Color(v.theme.MetaColor))
	}
	return indent + fold + search.Highlight(r.Text, matched, v.theme.Match(), base)
}

func (v *RowView) renderLine(r outline.Row, matched []int) string {
	switch r.Origin {
	case diff.OriginAddition:
		if matched != nil {
			return search.Highlight(r.Text, matched, v.theme.Match(), v.addStyle())
		}
		return v.theme.AddLine(r.Text)
	case diff.OriginDeletion:
		if matched != nil {
			return search.Highlight(r.Text, matched, v.theme.Match(), v.delStyle())
		}
		return v.theme.DelLine(r.Text)
	case diff.OriginNoNewline:
		return lipgloss.NewStyle().Faint(true).Render(r.Text)
	}
	if matched != nil || v.hl == nil || r.Text == "" {
		return search.Highlight(r.Text, matched, v.theme.Match(), lipgloss.NewStyle())
	}
	return r.Text[:1] + v.hl.Line(r.Addr.Key, r.Text[1:], lipgloss.NewStyle())
}

func (v *RowView) addStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(v.theme.AddColor)).
		Background(lipgloss.Color(v.theme.AddBgColor))
}

func (v *RowView) delStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(v.theme.DelColor)).
		Background(lipgloss.Color(v.theme.DelBgColor))
}

func padToWidth(s string, w int) string {
	width := lipgloss.Width(s)
	if width == w {
		return s
	}
	if width < w {
		return s + strings.Repeat(" ", w-width)
	}
	return ansi.Truncate(s, w, "…")
}
