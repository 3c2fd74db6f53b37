package tui

import (
	"github.com/interpretive-systems/gitscope/internal/op"
	"github.com/interpretive-systems/gitscope/internal/snapshot"
)

// snapshotMsg carries a finished refresh.
type snapshotMsg struct {
	state *snapshot.State
	err   error
}

// resultMsg carries one executor result. ok is false once the executor
// has shut down.
type resultMsg struct {
	res op.Result
	ok  bool
}

// changeMsg reports that the watcher saw the repository change.
type changeMsg struct{}
