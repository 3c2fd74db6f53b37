package tui

import (
	"bytes"
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interpretive-systems/gitscope/internal/diff"
	"github.com/interpretive-systems/gitscope/internal/gitx"
	"github.com/interpretive-systems/gitscope/internal/op"
	"github.com/interpretive-systems/gitscope/internal/outline"
	"github.com/interpretive-systems/gitscope/internal/snapshot"
	"github.com/interpretive-systems/gitscope/internal/tui/theme"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

const modifiedA = `diff --git a/a.txt b/a.txt
--- a/a.txt
+++ b/a.txt
@@ -1,2 +1,2 @@
-a
+A
 b
`

func unstagedState(gen uint64) *snapshot.State {
	return &snapshot.State{
		Generation:  gen,
		Fingerprint: 1,
		LoadedAt:    time.Date(2024, 10, 1, 12, 34, 56, 0, time.UTC),
		Branch:      gitx.BranchStatus{OID: "0123456789abcdef", Head: "main"},
		Entries:     []gitx.StatusEntry{{Path: "a.txt", Index: '.', Worktree: 'M'}},
		Commits:     []gitx.Commit{{Hash: "0123456789abcdef", Short: "0123456", Subject: "init"}},
		Unstaged:    diff.Parse(modifiedA),
	}
}

func stagedState(gen uint64) *snapshot.State {
	st := unstagedState(gen)
	st.Fingerprint = 2
	st.Entries = []gitx.StatusEntry{{Path: "a.txt", Index: 'M', Worktree: '.'}}
	st.Staged, st.Unstaged = st.Unstaged, nil
	return st
}

type fakeLoader struct {
	mu            sync.Mutex
	states        []*snapshot.State
	loads         int
	invalidations int
}

func (f *fakeLoader) Load(context.Context) (*snapshot.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.states[min(f.loads, len(f.states)-1)]
	f.loads++
	return st, nil
}

func (f *fakeLoader) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidations++
}

type fakeExecutor struct {
	mu      sync.Mutex
	ops     []op.Operation
	results chan op.Result
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{results: make(chan op.Result, 4)}
}

func (f *fakeExecutor) Submit(o op.Operation) (uint64, error) {
	if err := o.Validate(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, o)
	return uint64(len(f.ops)), nil
}

func (f *fakeExecutor) Results() <-chan op.Result { return f.results }
func (f *fakeExecutor) Pending() int              { return 0 }

func (f *fakeExecutor) submitted() []op.Operation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]op.Operation(nil), f.ops...)
}

func newModel(l *fakeLoader, e *fakeExecutor) Model {
	return New(Options{
		Title:    "/repo",
		Loader:   l,
		Executor: e,
		Theme:    theme.Get("dark"),
	})
}

// loaded returns a sized model that has applied st.
func loaded(t *testing.T, e *fakeExecutor, st *snapshot.State) Model {
	t.Helper()
	m := newModel(&fakeLoader{states: []*snapshot.State{st}}, e)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	next, _ = next.Update(snapshotMsg{state: st})
	return next.(Model)
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func plain(m Model) string {
	return ansi.Strip(m.View())
}

func TestViewRendersOutline(t *testing.T) {
	m := loaded(t, newFakeExecutor(), unstagedState(1))
	out := plain(m)

	assert.Contains(t, out, "gitscope  /repo")
	assert.Contains(t, out, ">   Head:")
	assert.Contains(t, out, "Unstaged changes")
	assert.Contains(t, out, "modified   a.txt")
	assert.Contains(t, out, "@@ -1,2 +1,2 @@")
	assert.Contains(t, out, "-a")
	assert.Contains(t, out, "+A")
	assert.Contains(t, out, "refreshed: 12:34:56")
	assert.Len(t, bytes.Split([]byte(out), []byte("\n")), 20)
}

func TestViewBeforeFirstRefresh(t *testing.T) {
	m := newModel(&fakeLoader{}, newFakeExecutor())
	assert.Empty(t, m.View())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 10})
	out := ansi.Strip(next.View())
	assert.Contains(t, out, "Loading…")
	assert.Contains(t, out, "loading")
}

func TestStageSubmitsAndRefreshes(t *testing.T) {
	e := newFakeExecutor()
	m := loaded(t, e, unstagedState(1))
	m = press(m, "j", "j")
	assert.Equal(t, outline.KindUnstagedFile, m.Cursor().Addr.Kind)

	m = press(m, "s")
	ops := e.submitted()
	require.Len(t, ops, 1)
	assert.Equal(t, op.StageFiles, ops[0].Kind)
	assert.Equal(t, []string{"a.txt"}, ops[0].Paths)

	l := &fakeLoader{states: []*snapshot.State{stagedState(2)}}
	m.loader = l
	next, cmd := m.Update(resultMsg{res: op.Result{ID: 1, Op: ops[0]}, ok: true})
	require.NotNil(t, cmd)
	assert.Equal(t, 1, l.invalidations)

	next, _ = next.Update(snapshotMsg{state: stagedState(2)})
	m = next.(Model)
	// The cursor follows the file into the staged group.
	assert.Equal(t, outline.Address{Kind: outline.KindStagedFile, Key: "a.txt"}, m.Cursor().Addr)
	assert.Contains(t, plain(m), "Staged changes")
}

func TestStaleSnapshotIgnored(t *testing.T) {
	m := loaded(t, newFakeExecutor(), stagedState(3))
	next, _ := m.Update(snapshotMsg{state: unstagedState(2)})
	m = next.(Model)
	assert.Equal(t, uint64(3), m.Tree().State.Generation)
	assert.NotContains(t, plain(m), "Unstaged changes")
}

func TestIdenticalSnapshotKeepsTree(t *testing.T) {
	m := loaded(t, newFakeExecutor(), unstagedState(1))
	tree := m.Tree()
	next, _ := m.Update(snapshotMsg{state: unstagedState(2)})
	m = next.(Model)
	assert.Same(t, tree, m.Tree())
	assert.Equal(t, uint64(2), m.Tree().State.Generation)
}

func TestFailedOperationShowsStderr(t *testing.T) {
	e := newFakeExecutor()
	m := loaded(t, e, unstagedState(1))
	res := op.Result{
		ID:       1,
		Op:       op.Operation{Kind: op.Push, Target: "origin", Ref: "main"},
		Outcome:  op.Failed,
		ExitCode: 1,
		Stderr:   "! [rejected] main -> main (fetch first)",
	}
	next, cmd := m.Update(resultMsg{res: res, ok: true})
	m = next.(Model)
	assert.NotNil(t, cmd, "state is refreshed after a failure")
	assert.Contains(t, m.Notice(), "[rejected]")
	assert.Contains(t, plain(m), "[rejected] main -> main")
}

func TestSupersededResultIgnored(t *testing.T) {
	m := loaded(t, newFakeExecutor(), unstagedState(1))
	res := op.Result{ID: 1, Op: op.Operation{Kind: op.Fetch, Target: "origin"}, Outcome: op.Superseded}
	next, _ := m.Update(resultMsg{res: res, ok: true})
	assert.Empty(t, next.(Model).Notice())
}

func TestShowOpensDetail(t *testing.T) {
	e := newFakeExecutor()
	m := loaded(t, e, unstagedState(1))
	m = press(m, "G", "tab", "G", "enter")
	ops := e.submitted()
	require.Len(t, ops, 1)
	assert.Equal(t, op.ShowCommit, ops[0].Kind)

	// An older show finishing late is dropped.
	next, _ := m.Update(resultMsg{res: op.Result{ID: 0, Op: ops[0], Stdout: "stale"}, ok: true})
	assert.NotContains(t, plain(next.(Model)), "stale")

	next, _ = next.Update(resultMsg{res: op.Result{ID: 1, Op: ops[0], Stdout: "commit 0123456\n\n    init\n+added\n"}, ok: true})
	m = next.(Model)
	out := plain(m)
	assert.Contains(t, out, "commit 0123456")
	assert.Contains(t, out, "+added")
	assert.Contains(t, out, "(esc: back)")

	m = press(m, "esc")
	assert.NotContains(t, plain(m), "+added")
}

func TestCommitPopupReadsMessage(t *testing.T) {
	e := newFakeExecutor()
	m := loaded(t, e, stagedState(1))
	m = press(m, "c")
	assert.Contains(t, plain(m), "Commit (esc: close, -: arguments)")

	m = press(m, "c")
	assert.Contains(t, plain(m), "Commit message:")
	m = press(m, "f", "i", "x", "enter")

	ops := e.submitted()
	require.Len(t, ops, 1)
	assert.Equal(t, op.Commit, ops[0].Kind)
	assert.Equal(t, "fix", ops[0].Message)
	assert.NotContains(t, plain(m), "Commit message:")
}

func TestCheckoutPicksFromBranchList(t *testing.T) {
	e := newFakeExecutor()
	st := unstagedState(1)
	st.Branches = []gitx.Branch{{Name: "main", Current: true}, {Name: "topic"}, {Name: "release"}}
	m := loaded(t, e, st)
	m = press(m, "b", "b")
	out := plain(m)
	assert.Contains(t, out, "Checkout (2/2, enter: pick, esc: back)")
	assert.Contains(t, out, "> topic")

	m = press(m, "r", "e", "l")
	out = plain(m)
	assert.Contains(t, out, "> rel")
	assert.NotContains(t, out, "topic")

	m = press(m, "enter")
	ops := e.submitted()
	require.Len(t, ops, 1)
	assert.Equal(t, op.Operation{Kind: op.Checkout, Target: "release"}, ops[0])
	assert.NotContains(t, plain(m), "Checkout (")
}

func TestViewShowsUpstreamCommits(t *testing.T) {
	st := unstagedState(1)
	st.Branch.Upstream = "origin/main"
	st.Unpulled = []gitx.Commit{{Hash: "fedcba9876543210", Short: "fedcba9", Subject: "upstream fix"}}
	st.Unpushed = []gitx.Commit{{Hash: "0123456789abcdef", Short: "0123456", Subject: "init"}}
	out := plain(loaded(t, newFakeExecutor(), st))
	assert.Contains(t, out, "Unpulled from origin/main (1)")
	assert.Contains(t, out, "fedcba9 upstream fix")
	assert.Contains(t, out, "Unpushed to origin/main (1)")
}

func TestSearchMovesCursor(t *testing.T) {
	m := loaded(t, newFakeExecutor(), unstagedState(1))
	m = press(m, "/", "0", "1", "2", "3")
	assert.Equal(t, outline.KindCommit, m.Tree().Rows()[rowOf(t, m)].Addr.Kind)
	assert.Contains(t, plain(m), "Match 1 of 1")

	m = press(m, "esc")
	assert.Equal(t, outline.KindHead, m.Cursor().Addr.Kind)
}

func TestHintForInapplicableSelection(t *testing.T) {
	m := loaded(t, newFakeExecutor(), unstagedState(1))
	m = press(m, "j", "j", "j", "j", "V", "j", "j", "j", "s")
	assert.Contains(t, plain(m), "selection")
}

// gatedQuerier blocks every status query until gate is closed.
type gatedQuerier struct {
	gate        chan struct{}
	started     chan struct{}
	statusCalls atomic.Int32
}

func (q *gatedQuerier) Status(context.Context) (gitx.Status, error) {
	q.statusCalls.Add(1)
	q.started <- struct{}{}
	<-q.gate
	return gitx.Status{Branch: gitx.BranchStatus{OID: "0123456789abcdef", Head: "main"}}, nil
}

func (q *gatedQuerier) PushRef(context.Context) (string, error) { return "", nil }
func (q *gatedQuerier) Branches(context.Context) ([]gitx.Branch, error) { return nil, nil }
func (q *gatedQuerier) Tags(context.Context) ([]gitx.Tag, error) { return nil, nil }
func (q *gatedQuerier) Remotes(context.Context) ([]string, error) { return nil, nil }
func (q *gatedQuerier) Stashes(context.Context) ([]gitx.Stash, error) { return nil, nil }
func (q *gatedQuerier) Describe(context.Context) (gitx.LatestTag, error) { return gitx.LatestTag{}, nil }
func (q *gatedQuerier) Diff(context.Context, bool) (string, error) { return "", nil }
func (q *gatedQuerier) RecentCommits(context.Context, int) ([]gitx.Commit, error) {
	return nil, nil
}
func (q *gatedQuerier) Unpulled(context.Context, int) ([]gitx.Commit, error) { return nil, nil }
func (q *gatedQuerier) Unpushed(context.Context, int) ([]gitx.Commit, error) { return nil, nil }

func TestRefreshJoinsInFlightLoad(t *testing.T) {
	q := &gatedQuerier{gate: make(chan struct{}), started: make(chan struct{}, 4)}
	m := loaded(t, newFakeExecutor(), unstagedState(1))
	m.loader = snapshot.NewLoader(q, 0, nil)

	next, first := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, first)
	next, second := next.Update(changeMsg{})
	require.NotNil(t, second)
	_, third := next.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, third)

	msgs := make(chan tea.Msg, 3)
	go func() { msgs <- first() }()
	<-q.started
	go func() { msgs <- third() }()
	go func() { msgs <- loadMsg(second) }()
	time.Sleep(50 * time.Millisecond)
	close(q.gate)

	var states []*snapshot.State
	for range 3 {
		msg := (<-msgs).(snapshotMsg)
		require.NoError(t, msg.err)
		states = append(states, msg.state)
	}
	assert.Equal(t, int32(1), q.statusCalls.Load())
	assert.Same(t, states[0], states[1])
	assert.Same(t, states[0], states[2])
}

// loadMsg runs cmd and returns the snapshot it loads, looking inside a
// batch when the watcher re-arm came with it.
func loadMsg(cmd tea.Cmd) tea.Msg {
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c == nil {
				continue
			}
			if sm, ok := c().(snapshotMsg); ok {
				return sm
			}
		}
	}
	return msg
}

func TestOnlyMutationsInvalidate(t *testing.T) {
	e := newFakeExecutor()
	m := loaded(t, e, unstagedState(1))
	l := &fakeLoader{states: []*snapshot.State{unstagedState(2)}}
	m.loader = l

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	next, cmd = next.Update(changeMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, 0, l.invalidations)

	fetch := op.Result{ID: 1, Op: op.Operation{Kind: op.Fetch, Target: "origin"}}
	_, cmd = next.Update(resultMsg{res: fetch, ok: true})
	require.NotNil(t, cmd)
	assert.Equal(t, 1, l.invalidations)
}

func rowOf(t *testing.T, m Model) int {
	t.Helper()
	i, ok := m.Tree().RowIndex(m.Cursor())
	require.True(t, ok)
	return i
}

func TestProgramEndToEnd(t *testing.T) {
	l := &fakeLoader{states: []*snapshot.State{unstagedState(1), stagedState(2)}}
	e := newFakeExecutor()
	tm := teatest.NewTestModel(t, newModel(l, e), teatest.WithInitialTermSize(80, 24))

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return bytes.Contains(out, []byte("Unstaged changes"))
	}, teatest.WithDuration(3*time.Second))

	tm.Type("jjs")
	require.Eventually(t, func() bool { return len(e.submitted()) == 1 }, 3*time.Second, 10*time.Millisecond)
	e.results <- op.Result{ID: 1, Op: e.submitted()[0]}

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return bytes.Contains(out, []byte("Staged changes"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))
}
