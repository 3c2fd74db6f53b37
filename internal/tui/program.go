// Package tui runs the interactive loop: it renders the outline, feeds key
// presses to the dispatcher, submits operations and applies refreshes.
package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/interpretive-systems/gitscope/internal/dispatch"
	"github.com/interpretive-systems/gitscope/internal/op"
	"github.com/interpretive-systems/gitscope/internal/outline"
	"github.com/interpretive-systems/gitscope/internal/tui/components"
)

const maxNoticeLines = 6

// Run instantiates and runs the Bubble Tea program.
func Run(opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(loadSnapshot(m.loader), waitResult(m.exec.Results()), waitChange(m.changes))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout.SetSize(msg.Width, msg.Height)
		m.help.Width = msg.Width
		return m, nil
	case snapshotMsg:
		m.applySnapshot(msg)
		return m, nil
	case resultMsg:
		if !msg.ok {
			return m, nil
		}
		cmd := m.applyResult(msg.res)
		return m, tea.Batch(waitResult(m.exec.Results()), cmd)
	case changeMsg:
		m.log.Debug("repository changed")
		return m, tea.Batch(waitChange(m.changes), m.refresh())
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// Cursor blinks and the like go to whichever input has focus.
	switch {
	case m.search.IsActive():
		return m, m.search.Update(msg)
	case m.disp.Input() != nil:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// refresh loads a snapshot, joining a load already in flight.
func (m *Model) refresh() tea.Cmd {
	return loadSnapshot(m.loader)
}

// reload starts a load that does not join one already running, so the
// snapshot reflects a mutation that just finished.
func (m *Model) reload() tea.Cmd {
	m.loader.Invalidate()
	return loadSnapshot(m.loader)
}

func (m *Model) applySnapshot(msg snapshotMsg) {
	if msg.err != nil {
		m.log.Warn("refresh failed", "err", msg.err)
		m.notice = "refresh failed: " + msg.err.Error()
		return
	}
	st := msg.state
	prev := m.tree
	if prev != nil {
		if st.Generation < prev.State.Generation {
			return
		}
		if st.Fingerprint == prev.State.Fingerprint {
			prev.State = st
			m.status.SetLastRefresh(st.LoadedAt)
			return
		}
	}
	m.status.SetLastRefresh(st.LoadedAt)
	m.tree = outline.Build(st, prev, m.policy)
	m.cursor = m.tree.Resolve(prev, m.cursor)
	m.disp.Rebase(m.tree, prev)
	m.syncRows()
}

// syncRows pushes the visible rows to the view and keeps the cursor on a
// visible row.
func (m *Model) syncRows() {
	if _, ok := m.tree.RowIndex(m.cursor); !ok {
		m.cursor = outline.Cursor{Addr: m.tree.Visible(m.cursor.Addr)}
		if _, ok := m.tree.RowIndex(m.cursor); !ok {
			m.cursor = m.tree.CursorAt(0)
		}
	}
	rows := m.tree.Rows()
	m.rows.SetRows(rows)
	texts := make([]string, len(rows))
	for i, r := range rows {
		texts[i] = r.Text
	}
	m.search.SetContent(texts)
}

func (m *Model) applyResult(res op.Result) tea.Cmd {
	if res.Outcome == op.Superseded {
		return nil
	}
	if !res.Op.Kind.Mutating() {
		if res.ID != m.showID {
			return nil
		}
		if err := res.Err(); err != nil {
			m.notice = err.Error()
			return nil
		}
		m.detail.Open(res.Op.String(), res.Stdout)
		return nil
	}
	if err := res.Err(); err != nil {
		m.notice = err.Error()
	} else {
		m.notice = ""
	}
	// A failed mutation may still have changed something.
	return m.reload()
}

func (m Model) context() dispatch.Context {
	return dispatch.Context{Tree: m.tree, Cursor: m.cursor, Height: m.layout.ContentHeight(0)}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.hint = ""
	switch {
	case m.detail.IsOpen():
		switch msg.String() {
		case "esc", "q", "ctrl+g":
			m.detail.Close()
			return m, nil
		}
		return m, m.detail.Update(msg)
	case m.search.IsActive():
		return m.searchKey(msg)
	case m.disp.Input() != nil:
		return m.inputKey(msg)
	}
	return m.apply(m.disp.HandleKey(msg, m.context()))
}

func (m Model) inputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.input.Blur()
		return m.apply(m.disp.SubmitInput(m.input.Value()))
	case tea.KeyEsc, tea.KeyCtrlG:
		m.input.Blur()
		return m.apply(m.disp.CancelInput())
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) searchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+g":
		m.search.Deactivate()
		m.disp.EndSearch()
		m.cursor = m.searchFrom
		return m, nil
	case "enter":
		m.search.Deactivate()
		m.disp.EndSearch()
		return m, nil
	case "ctrl+n", "down":
		m.search.Next()
		m.jumpToMatch()
		return m, nil
	case "ctrl+p", "up":
		m.search.Previous()
		m.jumpToMatch()
		return m, nil
	}
	q := m.search.Query()
	cmd := m.search.Update(msg)
	if m.search.Query() != q && m.tree != nil {
		if i, ok := m.tree.RowIndex(m.searchFrom); ok {
			m.search.Seek(i)
		}
	}
	m.jumpToMatch()
	return m, cmd
}

func (m *Model) jumpToMatch() {
	if m.tree == nil {
		return
	}
	if i := m.search.CurrentMatchLine(); i >= 0 {
		m.cursor = m.tree.CursorAt(i)
	}
}

func (m Model) apply(a dispatch.Action) (tea.Model, tea.Cmd) {
	if a.Err != nil {
		m.hint = a.Err.Error()
	}
	switch a.Kind {
	case dispatch.ActMove:
		m.cursor = a.Cursor
	case dispatch.ActToggle:
		m.tree.Toggle(a.Addr)
		m.syncRows()
	case dispatch.ActExpandAll:
		m.tree.ExpandAll()
		m.syncRows()
	case dispatch.ActRun:
		m.submit(a.Op)
	case dispatch.ActRefresh:
		return m, m.refresh()
	case dispatch.ActQuit:
		return m, tea.Quit
	case dispatch.ActInput:
		in := m.disp.Input()
		m.input.Prompt = in.Prompt + ": "
		m.input.SetValue(in.Initial)
		m.input.CursorEnd()
		return m, m.input.Focus()
	case dispatch.ActSearch:
		m.searchFrom = m.cursor
		return m, m.search.Activate()
	case dispatch.ActSearchNext:
		m.search.Next()
		m.jumpToMatch()
	case dispatch.ActSearchPrev:
		m.search.Previous()
		m.jumpToMatch()
	}
	return m, nil
}

func (m *Model) submit(o op.Operation) {
	id, err := m.exec.Submit(o)
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.log.Debug("submitted", "id", id, "op", o.String())
	if !o.Kind.Mutating() {
		m.showID = id
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	m.status.SetKeyBuffer(m.disp.Pending())
	m.status.SetMode(m.disp.Mode().String())
	m.status.SetPending(m.exec.Pending())

	overlay := m.overlayLines()
	height := m.layout.ContentHeight(len(overlay))

	var body []string
	right := ""
	if m.tree != nil {
		right = m.tree.State.HeadName()
	}
	switch {
	case m.detail.IsOpen():
		m.detail.SetSize(m.width, height)
		body = m.detail.Lines()
		right = m.detail.Title() + " (esc: back)"
	case m.tree == nil:
		body = []string{"Loading…"}
	default:
		cur, _ := m.tree.RowIndex(m.cursor)
		body = m.rows.Render(height, m.width, cur, m.selection(cur), m.matched)
	}

	return m.layout.RenderFrame(
		lipgloss.NewStyle().Bold(true).Render("gitscope")+"  "+m.title,
		right,
		body,
		overlay,
		m.status.Render(m.width),
		m.theme,
	)
}

// selection returns the rows of the visual selection.
func (m Model) selection(cur int) components.Span {
	if !m.disp.Visual() {
		return components.NoSpan
	}
	a, ok := m.tree.RowIndex(m.disp.Selection(m.cursor).Anchor)
	if !ok {
		return components.NoSpan
	}
	return components.Span{From: min(a, cur), To: max(a, cur)}
}

func (m Model) matched(i int) []int {
	if m.search.Query() == "" {
		return nil
	}
	return m.search.MatchedIndexes(i)
}

func (m Model) overlayLines() []string {
	var lines []string
	if m.notice != "" {
		notice := strings.Split(strings.TrimRight(m.notice, "\n"), "\n")
		if len(notice) > maxNoticeLines {
			notice = append(notice[:maxNoticeLines-1], "…")
		}
		for _, l := range notice {
			lines = append(lines, m.theme.ErrorText(l))
		}
	}
	if m.hint != "" {
		lines = append(lines, lipgloss.NewStyle().Faint(true).Render(m.hint))
	}
	if p := m.disp.Popup(); p != nil {
		input := ""
		if m.disp.Input() != nil {
			input = m.input.View()
		}
		help := ""
		if p.Kind == dispatch.PopupHelp {
			help = m.help.FullHelpView(m.disp.Keys().FullHelp())
		}
		if sel := m.disp.Select(); sel != nil {
			lines = append(lines, m.popups.RenderSelect(sel, m.width)...)
		} else {
			lines = append(lines, m.popups.Render(p, input, help, m.width)...)
		}
	}
	return append(lines, m.search.RenderOverlay(m.width, m.theme.DividerColor)...)
}
