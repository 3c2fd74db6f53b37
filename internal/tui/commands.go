package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/interpretive-systems/gitscope/internal/op"
)

// loadSnapshot runs one refresh off the loop.
func loadSnapshot(l Loader) tea.Cmd {
	return func() tea.Msg {
		st, err := l.Load(context.Background())
		return snapshotMsg{state: st, err: err}
	}
}

// waitResult delivers the next executor result. It is re-armed after every
// result.
func waitResult(ch <-chan op.Result) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-ch
		return resultMsg{res: r, ok: ok}
	}
}

// waitChange delivers the next watcher trigger.
func waitChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changeMsg{}
	}
}
